package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/app"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/scheduler"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
)

func newReadCmd() *cobra.Command {
	var accountFlag string
	var noMarkFlag bool

	cmd := &cobra.Command{
		Use:   "read <message-id>",
		Short: "Show a cached message with its full body",
		Long:  "Fetch the body of a message from the local cache and mark it read.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			msg, err := findCached(ctx, e, accountFlag, args[0])
			if err != nil {
				return err
			}
			if msg, err = e.coord.LoadBody(ctx, msg); err != nil {
				return fmt.Errorf("failed to load body: %w", notSignedIn(err))
			}
			if !noMarkFlag {
				if err := e.coord.MarkRead(ctx, msg); err != nil {
					e.logger.Warn("failed to mark read", "id", msg.ID, "error", err)
				} else {
					msg.IsRead = true
				}
			}
			e.coord.Wait()

			if jsonFlag {
				return printJSON(toJSONMessage(msg))
			}
			writeMessage(os.Stdout, msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account the message belongs to")
	cmd.Flags().BoolVar(&noMarkFlag, "no-mark", false, "do not mark the message read")
	return cmd
}

func newMarkReadCmd() *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "mark-read <message-id>...",
		Short: "Mark messages as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			for _, id := range args {
				msg, err := findCached(ctx, e, accountFlag, id)
				if err != nil {
					return err
				}
				if err := e.coord.MarkRead(ctx, msg); err != nil {
					return notSignedIn(err)
				}
			}
			e.coord.Wait()

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "mark-read", MessageID: strings.Join(args, ",")})
			}
			fmt.Printf("Marked %d message(s) read.\n", len(args))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account the messages belong to")
	return cmd
}

func newLabelsCmd() *cobra.Command {
	var accountFlag string
	var cachedFlag bool

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.loadAccounts(ctx); err != nil {
				return err
			}

			var labels []domain.Label
			for _, account := range e.accountsFor(accountFlag) {
				var ls []domain.Label
				if cachedFlag {
					ls, err = e.cache.ListLabels(ctx, e.userID, account)
				} else {
					ls, err = e.coord.RefreshLabels(ctx, account)
				}
				if err != nil {
					return fmt.Errorf("failed to list labels for %s: %w", account, notSignedIn(err))
				}
				labels = append(labels, ls...)
			}
			e.coord.Wait()

			if jsonFlag {
				return printJSON(toJSONLabels(labels))
			}
			if len(labels) == 0 {
				fmt.Println("No labels found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tID\tNAME\tTYPE")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.AccountEmail, l.ID, l.Name, l.Type)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "list labels of this account only")
	cmd.Flags().BoolVar(&cachedFlag, "cached", false, "read labels from the local cache")
	return cmd
}

func newSendCmd() *cobra.Command {
	var accountFlag, toFlag, ccFlag, subjectFlag, bodyFlag string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a plain text email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if toFlag == "" {
				return fmt.Errorf("--to is required")
			}
			if subjectFlag == "" {
				return fmt.Errorf("--subject is required")
			}

			body := bodyFlag
			if body == "-" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read body from stdin: %w", err)
				}
				body = string(b)
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.loadAccounts(ctx); err != nil {
				return err
			}
			account, err := e.defaultAccount(accountFlag)
			if err != nil {
				return err
			}

			draft := &domain.Draft{
				To:      parseAddrList(toFlag),
				CC:      parseAddrList(ccFlag),
				Subject: subjectFlag,
				Body:    body,
			}
			if err := e.coord.Send(ctx, account, draft); err != nil {
				return fmt.Errorf("failed to send email: %w", notSignedIn(err))
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "send", Email: account})
			}
			fmt.Println("Email sent.")
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account to send from")
	cmd.Flags().StringVar(&toFlag, "to", "", "recipient email addresses (comma-separated)")
	cmd.Flags().StringVar(&ccFlag, "cc", "", "CC email addresses (comma-separated)")
	cmd.Flags().StringVar(&subjectFlag, "subject", "", "email subject")
	cmd.Flags().StringVar(&bodyFlag, "body", "", "email body (use '-' to read from stdin)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var scheduleFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh all accounts periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.loadAccounts(ctx); err != nil {
				return err
			}
			expr := scheduleFlag
			if expr == "" {
				expr = e.cfg.Sync.Schedule
			}

			sched := scheduler.New(func(ctx context.Context) error {
				res, err := e.coord.RefreshAll(ctx, e.coord.AccountEmails(), app.Filter{})
				if err != nil {
					return notSignedIn(err)
				}
				return res.Err
			}, scheduler.WithLogger(e.logger))
			if err := sched.SetSchedule(expr); err != nil {
				return err
			}
			sched.Start()
			if err := sched.Trigger(); err != nil {
				return err
			}

			<-ctx.Done()
			select {
			case <-sched.Stop().Done():
			case <-time.After(30 * time.Second):
				e.logger.Warn("timed out waiting for refresh to stop")
			}
			if jsonFlag {
				return printJSON(sched.Status())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scheduleFlag, "schedule", "", "cron expression (defaults to [sync] schedule)")
	return cmd
}

// findCached looks a message up in the local cache.
func findCached(ctx context.Context, e *env, account, id string) (domain.Message, error) {
	msgs, err := e.cache.ListEmails(ctx, store.ListEmailOptions{UserID: e.userID, AccountEmail: account})
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to read local cache: %w", err)
	}
	for _, m := range msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Message{}, fmt.Errorf("message %s not found in local cache; run 'nimbus sync' first", id)
}

// writeMessage prints headers followed by the body.
func writeMessage(w io.Writer, m domain.Message) {
	fmt.Fprintf(w, "From: %s\n", m.From)
	if len(m.To) > 0 {
		fmt.Fprintf(w, "To: %s\n", joinAddrs(m.To))
	}
	if len(m.CC) > 0 {
		fmt.Fprintf(w, "Cc: %s\n", joinAddrs(m.CC))
	}
	fmt.Fprintf(w, "Date: %s\n", m.Date.Local().Format("Mon, Jan 2, 2006 at 3:04 PM"))
	fmt.Fprintf(w, "Subject: %s\n", m.Subject)
	fmt.Fprintf(w, "Account: %s\n", m.AccountEmail)
	fmt.Fprintln(w)
	fmt.Fprintln(w, m.Body)
}

func joinAddrs(addrs []domain.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// parseAddrList splits a comma-separated string of email addresses.
func parseAddrList(s string) []domain.Address {
	if s == "" {
		return nil
	}
	parts := splitTrim(s)
	addrs := make([]domain.Address, len(parts))
	for i, p := range parts {
		addrs[i] = domain.Address{Email: p}
	}
	return addrs
}

// splitTrim splits by comma and trims whitespace.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
