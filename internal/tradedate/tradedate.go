// Package tradedate parses the textual date shapes carried by trade records
// into calendar dates with day granularity.
//
// Two shapes are recognised: ISO "YYYY-MM-DD" (produced by the trade form)
// and slash "DD/MM/YYYY" (used by the fixture dataset and by dates the
// store assigns). Anything else is invalid.
package tradedate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Shape identifies which textual form a date was written in.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeISO
	ShapeSlash
)

const (
	isoLayout   = "2006-01-02"
	slashLayout = "02/01/2006"
)

var (
	ErrInvalidDate = errors.New("tradedate: invalid date")

	isoRegex   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	slashRegex = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// Date is a calendar day without time of day or location.
// The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse converts text in either recognised shape into a Date.
func Parse(text string) (Date, error) {
	d, _, err := ParseShape(text)
	return d, err
}

// ParseShape is Parse that also reports which shape matched.
// Zero fields and out-of-range fields (31/02/2027) are rejected.
func ParseShape(text string) (Date, Shape, error) {
	var y, m, d string
	shape := ShapeInvalid

	if match := isoRegex.FindStringSubmatch(text); match != nil {
		y, m, d = match[1], match[2], match[3]
		shape = ShapeISO
	} else if match := slashRegex.FindStringSubmatch(text); match != nil {
		d, m, y = match[1], match[2], match[3]
		shape = ShapeSlash
	} else {
		return Date{}, ShapeInvalid, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}

	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if year == 0 || month == 0 || day == 0 {
		return Date{}, ShapeInvalid, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}

	date := Date{Year: year, Month: time.Month(month), Day: day}
	if FromTime(date.Time()) != date {
		return Date{}, ShapeInvalid, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	return date, shape, nil
}

// FromTime truncates t to its calendar day in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the local calendar day of now.
func Today(now time.Time) Date {
	return FromTime(now.Local())
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to
// or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

// ISO formats the day as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Time().Format(isoLayout)
}

// Slash formats the day as DD/MM/YYYY, the store's canonical shape.
func (d Date) Slash() string {
	return d.Time().Format(slashLayout)
}

func (d Date) String() string {
	return d.ISO()
}

// NormalizeISO rewrites a date in either shape as YYYY-MM-DD.
func NormalizeISO(text string) (string, error) {
	d, err := Parse(text)
	if err != nil {
		return "", err
	}
	return d.ISO(), nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
