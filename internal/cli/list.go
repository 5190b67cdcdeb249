package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/query"
)

// viewFlags are the grid state flags shared by list and watch.
type viewFlags struct {
	page     int
	pageSize int
	sort     string
	filters  []string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 0, "zero-indexed page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", notify.DefaultPageSize, "rows per page")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort column, optionally suffixed with :desc (e.g. maturityDate:desc)")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "filter as field:operator:value, repeatable (e.g. bookId:equals:B1)")
}

// state converts the flags into a list view state.
func (f *viewFlags) state() (notify.ViewState, error) {
	if f.page < 0 {
		return notify.ViewState{}, fmt.Errorf("--page must not be negative")
	}
	if f.pageSize < 1 {
		return notify.ViewState{}, fmt.Errorf("--page-size must be at least 1")
	}

	state := notify.ViewState{Page: f.page, PageSize: f.pageSize}
	if f.sort != "" {
		field, dir, _ := strings.Cut(f.sort, ":")
		s, err := query.ParseSort(field, dir)
		if err != nil {
			return notify.ViewState{}, err
		}
		state.Sort = s
	}
	for _, raw := range f.filters {
		p, err := query.ParsePredicate(raw)
		if err != nil {
			return notify.ViewState{}, err
		}
		state.Filters = append(state.Filters, p)
	}
	return state, nil
}

func newListCmd(app *App) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := flags.state()
			if err != nil {
				return err
			}
			view := notify.NewListView(app.Client, state)

			ctx, cancel := app.requestContext(cmd)
			defer cancel()
			if err := view.Refresh(ctx); err != nil {
				return err
			}
			renderView(cmd.OutOrStdout(), view)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a page of trades and patch it as submissions arrive",
		Long: `watch loads one page of trades, then follows the server's upsert stream.
Each upsert overwrites the matching row in place or is prepended as a new
row; the page is not re-queried. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := flags.state()
			if err != nil {
				return err
			}
			view := notify.NewListView(app.Client, state)

			ctx, cancel := app.requestContext(cmd)
			err = view.Refresh(ctx)
			cancel()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderView(out, view)

			sub := app.Bus.Subscribe(func(u notify.Upsert) {
				view.Apply(u)
				fmt.Fprintf(out, "\ntrade %s v%d %s\n", u.Trade.TradeID, u.Trade.Version, u.Verb())
				renderView(out, view)
			})
			defer sub.Close()

			watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return app.Client.Watch(watchCtx, app.Bus)
		},
	}
	flags.register(cmd)
	return cmd
}

// renderView prints the visible rows and a page footer.
func renderView(out io.Writer, view *notify.ListView) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRADE ID\tVERSION\tCOUNTERPARTY\tBOOK\tMATURITY\tCREATED\tEXPIRED")
	for _, t := range view.Rows() {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			t.TradeID, t.Version, t.CounterPartyID, t.BookID, t.MaturityDate, t.CreatedDate, t.Expired)
	}
	tw.Flush()

	state := view.State()
	pages := view.Pages()
	if pages == 0 {
		fmt.Fprintln(out, "no trades")
		return
	}
	fmt.Fprintf(out, "page %d of %d (%d trades)\n", state.Page+1, pages, view.Total())
}
