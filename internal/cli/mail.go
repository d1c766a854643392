package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/app"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/thread"
)

func newSyncCmd() *cobra.Command {
	var accountFlag, labelFlag string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the first page of every account and its labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := refresh(ctx, e, app.Filter{Account: accountFlag, LabelID: labelFlag})
			if err != nil {
				return err
			}
			for _, account := range e.accountsFor(accountFlag) {
				if _, err := e.coord.RefreshLabels(ctx, account); err != nil {
					e.logger.Warn("failed to refresh labels", "account", account, "error", err)
				}
			}
			e.coord.Wait()

			if jsonFlag {
				return printJSON(toJSONRefresh(res, e.coord.Snapshot().Notice))
			}
			reportRefresh(os.Stdout, os.Stderr, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "sync only this account")
	cmd.Flags().StringVar(&labelFlag, "label", "", "label to sync instead of all mail")
	return cmd
}

func newListCmd() *cobra.Command {
	var accountFlag, labelFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch and list threads, newest first",
		Long:  "Fetch the first page of threads for the selected account and label and print the thread heads.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := refresh(ctx, e, app.Filter{Account: accountFlag, LabelID: labelFlag})
			if err != nil {
				return err
			}
			e.coord.Wait()
			if res.Failed {
				fmt.Fprintln(os.Stderr, app.FailureNotice)
			}
			return printHeads(headsOf(e.coord.Snapshot(), accountFlag), limitFlag)
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "list only this account")
	cmd.Flags().StringVar(&labelFlag, "label", "", "label to list instead of all mail")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "max threads to show (0 for all)")
	return cmd
}

func newMoreCmd() *cobra.Command {
	var accountFlag, labelFlag string
	var pagesFlag int

	cmd := &cobra.Command{
		Use:   "more",
		Short: "Fetch additional pages beyond the first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if _, err := refresh(ctx, e, app.Filter{Account: accountFlag, LabelID: labelFlag}); err != nil {
				return err
			}
			for range pagesFlag {
				if !loadNextPages(ctx, e, e.accountsFor(accountFlag)) {
					break
				}
			}
			e.coord.Wait()
			return printHeads(headsOf(e.coord.Snapshot(), accountFlag), 0)
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "page only this account")
	cmd.Flags().StringVar(&labelFlag, "label", "", "label to page instead of all mail")
	cmd.Flags().IntVar(&pagesFlag, "pages", 1, "number of extra pages to fetch")
	return cmd
}

func newOfflineCmd() *cobra.Command {
	var accountFlag, labelFlag, searchFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "offline",
		Short: "List threads from the local cache without network access",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.coord.Bootstrap(ctx); err != nil {
				return fmt.Errorf("failed to restore local cache: %w", err)
			}
			snap := e.coord.Snapshot()
			if snap.UserID == "" {
				return fmt.Errorf("nothing cached yet; run 'nimbus sync' first")
			}

			var heads []domain.Message
			switch {
			case searchFlag != "":
				found, err := e.cache.SearchEmails(ctx, snap.UserID, searchFlag)
				if err != nil {
					return fmt.Errorf("failed to search local cache: %w", err)
				}
				heads = filterAccount(thread.Group(found), accountFlag)
			case labelFlag != "":
				found, err := e.cache.ListEmails(ctx, store.ListEmailOptions{
					UserID:       snap.UserID,
					AccountEmail: accountFlag,
					LabelID:      labelFlag,
				})
				if err != nil {
					return fmt.Errorf("failed to list cached emails: %w", err)
				}
				heads = thread.Group(found)
			default:
				heads = headsOf(snap, accountFlag)
			}
			return printHeads(heads, limitFlag)
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "show only this account")
	cmd.Flags().StringVar(&labelFlag, "label", "", "show only messages with this label")
	cmd.Flags().StringVar(&searchFlag, "search", "", "search subject, sender and snippet")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "max threads to show (0 for all)")
	return cmd
}

// refresh loads the registered accounts and applies f through the filter
// model, then waits for the refresh it triggers.
func refresh(ctx context.Context, e *env, f app.Filter) (app.RefreshResult, error) {
	if err := e.loadAccounts(ctx); err != nil {
		return app.RefreshResult{}, err
	}
	model := app.NewFilterModel(ctx, e.coord)
	model.Select(f)
	res, err := model.Wait()
	if err != nil {
		return res, notSignedIn(err)
	}
	return res, nil
}

// loadNextPages asks every account for its next page, triggered by the
// last head of its list. It reports whether any page was appended.
func loadNextPages(ctx context.Context, e *env, accounts []string) bool {
	snap := e.coord.Snapshot()
	appended := false
	for _, account := range accounts {
		list := snap.Messages[account]
		if len(list) == 0 {
			continue
		}
		loaded, err := e.coord.LoadMore(ctx, list[len(list)-1])
		if err != nil {
			e.logger.Warn("failed to load next page", "account", account, "error", err)
			continue
		}
		appended = appended || loaded
	}
	return appended
}

func headsOf(snap app.Snapshot, account string) []domain.Message {
	if account != "" {
		return snap.Messages[account]
	}
	return snap.Merged()
}

func filterAccount(heads []domain.Message, account string) []domain.Message {
	if account == "" {
		return heads
	}
	out := heads[:0]
	for _, h := range heads {
		if h.AccountEmail == account {
			out = append(out, h)
		}
	}
	return out
}

func printHeads(heads []domain.Message, limit int) error {
	if limit > 0 && len(heads) > limit {
		heads = heads[:limit]
	}
	if jsonFlag {
		return printJSON(toJSONHeads(heads))
	}
	if len(heads) == 0 {
		fmt.Println("No messages found.")
		return nil
	}
	return writeHeads(os.Stdout, heads)
}

// writeHeads prints one row per thread head.
func writeHeads(out io.Writer, heads []domain.Message) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UNREAD\tFROM\tSUBJECT\tDATE\tMSGS\tACCOUNT\tID")
	for _, h := range heads {
		unread := " "
		if threadUnread(h) {
			unread = "*"
		}
		from := h.From.Name
		if from == "" {
			from = h.From.Email
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			unread,
			truncate(from, 30),
			truncate(h.Subject, 50),
			h.Date.Local().Format("Jan 2, 2006"),
			h.MessageCount(),
			h.AccountEmail,
			h.ID,
		)
	}
	return w.Flush()
}

func threadUnread(h domain.Message) bool {
	if !h.IsRead {
		return true
	}
	for _, m := range h.History {
		if !m.IsRead {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func reportRefresh(out, errOut io.Writer, res app.RefreshResult) {
	fmt.Fprintf(out, "Synced %d threads across %d accounts.\n", res.Threads, res.Accounts)
	if res.Failed {
		fmt.Fprintln(errOut, app.FailureNotice)
		fmt.Fprintln(errOut, res.Err)
	}
}
