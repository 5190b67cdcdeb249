package tradedate

import (
	"errors"
	"testing"
	"time"
)

func TestParse_BothShapes(t *testing.T) {
	tests := []struct {
		in    string
		want  Date
		shape Shape
	}{
		{"2025-11-12", Date{2025, time.November, 12}, ShapeISO},
		{"12/11/2025", Date{2025, time.November, 12}, ShapeSlash},
		{"01/12/2024", Date{2024, time.December, 1}, ShapeSlash},
		{"2099-12-31", Date{2099, time.December, 31}, ShapeISO},
		{"29/02/2028", Date{2028, time.February, 29}, ShapeSlash},
	}
	for _, tt := range tests {
		got, shape, err := ParseShape(tt.in)
		if err != nil {
			t.Errorf("ParseShape(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseShape(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if shape != tt.shape {
			t.Errorf("ParseShape(%q) shape = %d, want %d", tt.in, shape, tt.shape)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"not-a-date",
		"2025/11/12",
		"12-11-2025",
		"2025-1-12",
		"1/1/2025",
		"0000-01-01",
		"2025-00-10",
		"00/10/2025",
		"31/02/2027",
		"2027-13-01",
		" 2025-11-12",
	}
	for _, in := range inputs {
		_, err := Parse(in)
		if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("Parse(%q): expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestDate_CompareAcrossShapes(t *testing.T) {
	iso, _ := Parse("2026-12-31")
	slash, _ := Parse("31/12/2026")
	if iso.Compare(slash) != 0 {
		t.Errorf("same day in two shapes should compare equal")
	}

	earlier, _ := Parse("15/03/2026")
	if !earlier.Before(iso) {
		t.Errorf("15/03/2026 should be before 2026-12-31")
	}
	if iso.Before(earlier) {
		t.Errorf("2026-12-31 should not be before 15/03/2026")
	}
	if iso.Before(slash) {
		t.Errorf("a day is not strictly before itself")
	}
}

func TestDate_Format(t *testing.T) {
	d := Date{2024, time.December, 1}
	if got := d.ISO(); got != "2024-12-01" {
		t.Errorf("ISO() = %s", got)
	}
	if got := d.Slash(); got != "01/12/2024" {
		t.Errorf("Slash() = %s", got)
	}
}

func TestToday_IgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2026, time.March, 4, 23, 59, 0, 0, time.Local)
	early := time.Date(2026, time.March, 4, 0, 0, 1, 0, time.Local)
	if Today(late) != Today(early) {
		t.Errorf("Today should truncate to the calendar day")
	}
}

func TestNormalizeISO(t *testing.T) {
	got, err := NormalizeISO("15/03/2027")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2027-03-15" {
		t.Errorf("NormalizeISO = %s, want 2027-03-15", got)
	}
	if _, err := NormalizeISO("tomorrow"); err == nil {
		t.Error("expected error for unrecognised text")
	}
}
