package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/app"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/config"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider/gmail"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store/durable"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store/sqlite"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string

	// jsonFlag enables JSON output for all commands.
	jsonFlag bool
	verbose  bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nimbus",
		Short: "Multi-account mail sync",
		Long: "nimbus keeps the threaded inboxes of several Gmail accounts in sync " +
			"with a durable store and a local cache that works offline.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(os.Stderr, verbose))
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("nimbus %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newAccountCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newMoreCmd())
	root.AddCommand(newOfflineCmd())
	root.AddCommand(newReadCmd())
	root.AddCommand(newMarkReadCmd())
	root.AddCommand(newLabelsCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newWatchCmd())
	return root
}

// ExecuteContext runs the root command. Cancelling ctx stops long-running
// commands such as watch.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// newLogger returns a text logger on w; verbose enables debug records.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the application configuration from the config file.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// env bundles everything a command needs. durable is nil when no durable
// DSN is configured.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	cache    *sqlite.DB
	durable  *durable.Store
	tokens   *store.KeyringTokenStore
	provider *gmail.Provider
	userID   string
	coord    *app.Coordinator
}

// openEnv loads config, opens both stores and builds the coordinator.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg:    cfg,
		logger: slog.Default(),
		tokens: store.NewKeyringTokenStore(),
	}

	if e.cache, err = openCache(cfg.CachePath()); err != nil {
		return nil, err
	}
	if cfg.Durable.DSN != "" {
		if e.durable, err = durable.New(cfg.Durable.Driver, cfg.Durable.DSN); err != nil {
			e.cache.Close()
			return nil, fmt.Errorf("failed to open durable store: %w", err)
		}
	}

	if e.userID, err = resolveUserID(ctx, cfg, e.cache); err != nil {
		e.close()
		return nil, err
	}

	if cfg.Gmail.ClientID != "" && cfg.Gmail.ClientSecret != "" {
		gmail.SetCredentials(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret)
	}
	e.provider = gmail.New(e.tokens,
		gmail.WithLogger(e.logger),
		gmail.WithQPS(cfg.Sync.QPS),
		gmail.WithConcurrency(cfg.Sync.Concurrency),
	)
	e.coord = e.newCoordinator()
	return e, nil
}

func (e *env) newCoordinator() *app.Coordinator {
	var d store.Durable
	if e.durable != nil {
		d = e.durable
	}
	return app.New(app.StaticSession(e.userID), e.provider, d, e.cache,
		app.WithLogger(e.logger),
		app.WithPageSize(e.cfg.Sync.PageSize),
		app.WithConcurrency(e.cfg.Sync.Concurrency),
	)
}

// setUser switches the session to userID.
func (e *env) setUser(userID string) {
	e.coord.Close()
	e.userID = userID
	e.coord = e.newCoordinator()
}

// close drains pending writes and closes the stores.
func (e *env) close() {
	if e.coord != nil {
		e.coord.Close()
	}
	if e.durable != nil {
		e.durable.Close()
	}
	e.cache.Close()
}

// loadAccounts registers the user's accounts with the coordinator. The
// durable store is authoritative when configured.
func (e *env) loadAccounts(ctx context.Context) error {
	var src store.Mirror = e.cache
	if e.durable != nil {
		src = e.durable
	}
	accounts, err := src.ListAccounts(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, a := range accounts {
		if err := e.coord.RegisterAccount(ctx, a); err != nil {
			return notSignedIn(err)
		}
	}
	return nil
}

// accountsFor returns the account flag as a list, or every account.
func (e *env) accountsFor(account string) []string {
	if account != "" {
		return []string{account}
	}
	return e.coord.AccountEmails()
}

// defaultAccount resolves the account for single-account commands: the
// flag, then [accounts] default, then the only registered account.
func (e *env) defaultAccount(account string) (string, error) {
	if account != "" {
		return account, nil
	}
	if e.cfg.Accounts.Default != "" {
		return e.cfg.Accounts.Default, nil
	}
	emails := e.coord.AccountEmails()
	switch len(emails) {
	case 0:
		return "", fmt.Errorf("no accounts configured; run 'nimbus account add' first")
	case 1:
		return emails[0], nil
	}
	return "", fmt.Errorf("several accounts configured; pass --account")
}

// openCache creates the data directory and opens the local cache.
func openCache(path string) (*sqlite.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	return db, nil
}

// resolveUserID picks the configured user, falling back to the last user
// recorded in the local cache. An empty result means nobody is signed in.
func resolveUserID(ctx context.Context, cfg *config.Config, cache store.Cache) (string, error) {
	if cfg.Session.UserID != "" {
		return cfg.Session.UserID, nil
	}
	userID, err := cache.LastUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last user: %w", err)
	}
	return userID, nil
}

func notSignedIn(err error) error {
	if errors.Is(err, app.ErrNotAuthenticated) {
		return fmt.Errorf("%s (set [session] user_id in config.toml or run 'nimbus account add')", app.SignInNotice)
	}
	return err
}
