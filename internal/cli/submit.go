package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/workflow"
)

const (
	replacePrompt = "A trade with the same Trade Id and Version already exists. Do you want to replace it? [y/N] "
	blockedNotice = "A higher version exists for this Trade Id. Submission blocked."
)

// formFlags maps command-line flags onto form fields by wire name.
var formFlags = []struct {
	flag  string
	field string
	usage string
}{
	{"trade-id", "tradeId", "trade identifier"},
	{"version", "version", "trade version, a whole number of at least 1"},
	{"counterparty", "counterPartyId", "counterparty identifier"},
	{"book", "bookId", "book identifier"},
	{"maturity", "maturityDate", "maturity date as YYYY-MM-DD (default today)"},
}

func registerFormFlags(cmd *cobra.Command, skip ...string) {
	for _, f := range formFlags {
		if slices.Contains(skip, f.flag) {
			continue
		}
		cmd.Flags().String(f.flag, "", f.usage)
	}
}

// applyFormFlags copies every flag the user set onto form.
func applyFormFlags(cmd *cobra.Command, form *workflow.Form) error {
	for _, f := range formFlags {
		flag := cmd.Flags().Lookup(f.flag)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := form.Set(f.field, flag.Value.String()); err != nil {
			return err
		}
	}
	return nil
}

func newSubmitCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new trade or trade version",
		Example: `  tradectl submit --trade-id T009 --counterparty CP-1 --book B1 --maturity 2027-06-30
  tradectl submit --trade-id T001 --version 2 --counterparty CP-1 --book B1 --maturity 2027-06-30 --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := workflow.NewForm(app.Today())
			if err := applyFormFlags(cmd, &form); err != nil {
				return err
			}
			return submitForm(cmd, app, form, yes)
		},
	}
	registerFormFlags(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace an existing version without asking")
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "edit TRADE_ID",
		Short: "Submit a new version of an existing trade",
		Long: `edit starts from the highest stored version of TRADE_ID. Counterparty and
book stay as stored; only --version and --maturity may change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.requestContext(cmd)
			form, err := workflow.Prefill(ctx, app.Client, args[0])
			cancel()
			if err != nil {
				return err
			}
			if err := applyFormFlags(cmd, &form); err != nil {
				return err
			}
			return submitForm(cmd, app, form, yes)
		},
	}
	registerFormFlags(cmd, "trade-id")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace an existing version without asking")
	return cmd
}

// submitForm validates the form and drives the workflow, prompting before
// an overwrite unless yes is set.
func submitForm(cmd *cobra.Command, app *App, form workflow.Form, yes bool) error {
	candidate, err := form.Validate(app.Today())
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	wf := workflow.New(app.Client, app.Client, app.Bus)

	ctx, cancel := app.requestContext(cmd)
	step, err := wf.Submit(ctx, candidate)
	cancel()
	if err != nil {
		return describe(err)
	}

	if step.Stage == workflow.StageAwaitingConfirmation {
		if !yes && !confirm(cmd.InOrStdin(), out, replacePrompt) {
			wf.Cancel()
			fmt.Fprintln(out, "Replace cancelled.")
			return nil
		}
		ctx, cancel := app.requestContext(cmd)
		step, err = wf.Confirm(ctx)
		cancel()
		if err != nil {
			return describe(err)
		}
	}

	printSaved(out, notify.Upsert{Trade: step.Result.Trade, Replaced: step.Result.Replaced()})
	return nil
}

func printSaved(out io.Writer, u notify.Upsert) {
	t := u.Trade
	fmt.Fprintf(out, "Trade %s v%d %s (maturity %s, created %s, expired %s).\n",
		t.TradeID, t.Version, u.Verb(), t.MaturityDate, t.CreatedDate, t.Expired)
}

// confirm reads a yes/no answer; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// describe turns workflow errors into user-facing messages.
func describe(err error) error {
	var ve *workflow.ValidationError
	switch {
	case errors.Is(err, workflow.ErrHigherVersionExists):
		return errors.New(blockedNotice)
	case errors.As(err, &ve):
		names := make([]string, 0, len(ve.Fields))
		for name := range ve.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("  %s: %s", name, ve.Fields[name]))
		}
		return fmt.Errorf("invalid trade:\n%s", strings.Join(lines, "\n"))
	default:
		return err
	}
}
