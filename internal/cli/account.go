package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider/gmail"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage email accounts",
	}
	cmd.AddCommand(newAccountAddCmd())
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountRemoveCmd())
	return cmd
}

func newAccountAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Add a Gmail account via OAuth",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := gmail.EnsureCredentials(); err != nil {
				return err
			}

			// The first account creates the session.
			if e.userID == "" {
				e.setUser(uuid.NewString())
				fmt.Fprintf(os.Stderr, "Created user %s\n", e.userID)
			}

			fmt.Fprintln(os.Stderr, "Starting Gmail OAuth flow...")
			token, err := gmail.Authenticate(ctx, os.Stderr)
			if err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}
			email, err := gmail.GetProfile(ctx, token)
			if err != nil {
				return fmt.Errorf("failed to get profile email: %w", err)
			}
			if err := e.tokens.SaveToken(email, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			acct := domain.Account{Email: email, DisplayName: email}
			if err := e.coord.RegisterAccount(ctx, acct); err != nil {
				return notSignedIn(err)
			}
			if _, err := e.coord.RefreshLabels(ctx, email); err != nil {
				e.logger.Warn("failed to fetch labels", "account", email, "error", err)
			}
			e.coord.Wait()

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "add", Email: email, UserID: e.userID})
			}
			fmt.Printf("Account added: %s\n", email)
			return nil
		},
	}
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
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
			accounts := e.coord.Accounts()

			if jsonFlag {
				return printJSON(toJSONAccounts(accounts))
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts configured. Run 'nimbus account add' to add one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tPROVIDER\tCREATED\tLAST SYNC")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					a.Email,
					a.Provider,
					a.CreatedAt.Format(time.DateOnly),
					formatSynced(a.LastSyncedAt),
				)
			}
			return w.Flush()
		},
	}
}

func newAccountRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <email>",
		Short: "Remove an account and its cached mail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			ctx := cmd.Context()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.loadAccounts(ctx); err != nil {
				return err
			}
			found := false
			for _, a := range e.coord.AccountEmails() {
				found = found || a == email
			}
			if !found {
				return fmt.Errorf("account not found: %s", email)
			}

			if err := e.coord.RemoveAccount(ctx, email); err != nil {
				return notSignedIn(err)
			}
			e.coord.Wait()

			if err := e.tokens.DeleteToken(email); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not remove token from keyring: %v\n", err)
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "remove", Email: email})
			}
			fmt.Printf("Account removed: %s\n", email)
			return nil
		},
	}
}

func formatSynced(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
