package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"arvore/internal/api"
	"arvore/internal/auth"
	"arvore/internal/config"
	"arvore/internal/logging"
	"arvore/internal/session"
	"arvore/internal/store"

	"github.com/spf13/cobra"
)

// options are the global flags plus everything built from them.
type options struct {
	configPath string
	apiURL     string
	verbose    bool
	ephemeral  bool

	cfg *config.Config
}

// env is the wired client stack for one command.
type env struct {
	cfg      *config.Config
	sessions *session.Store
	state    *auth.State
	client   *api.Client
	auth     *auth.Service
}

func newRootCmd() *cobra.Command {
	o := &options{}
	var route string

	rootCmd := &cobra.Command{
		Use:   "arvore",
		Short: "Árvore genealógica no terminal",
		Long: `arvore is a client for the family-tree API.

It keeps your session between runs, manages the people of your lineage,
and renders the family tree of any person.

Run without arguments to start the interactive interface.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseAll()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), o, route)
		},
	}

	rootCmd.PersistentFlags().StringVar(&o.configPath, "config", "", "Config file (default: ~/.arvore/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&o.apiURL, "api-url", "", "API base URL (overrides config and ARVORE_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Log to stderr at debug level")
	rootCmd.PersistentFlags().BoolVar(&o.ephemeral, "ephemeral", false, "Keep the session in memory only")
	rootCmd.Flags().StringVar(&route, "route", "", "Path to open first, e.g. /pessoas/lista-pessoas")

	rootCmd.AddCommand(newLoginCmd(o))
	rootCmd.AddCommand(newRegisterCmd(o))
	rootCmd.AddCommand(newLogoutCmd(o))
	rootCmd.AddCommand(newStatusCmd(o))
	rootCmd.AddCommand(newPeopleCmd(o))
	rootCmd.AddCommand(newTreeCmd(o))
	rootCmd.AddCommand(newConfigCmd(o))
	return rootCmd
}

// path returns the config file in use.
func (o *options) path() string {
	if o.configPath == "" {
		return config.DefaultConfigPath()
	}
	return o.configPath
}

// load reads the config, applies flag overrides, validates the result, and
// starts logging.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.path())
	if err != nil {
		return err
	}
	if o.apiURL != "" {
		cfg.API.BaseURL = o.apiURL
	}
	if o.ephemeral {
		cfg.Session.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	if err := logging.Initialize(cfg.Logging.Dir, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode || o.verbose,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	// The TUI owns the terminal.
	if o.verbose && cmd.Root() != cmd {
		logging.AttachStderr()
	}
	logging.Boot("arvore %s: api=%s session=%s", cmd.Name(), cfg.NormalizedBaseURL(), cfg.Session.Backend)
	return nil
}

// open wires the session store, auth state and API client, and rehydrates
// the session.
func (o *options) open(ctx context.Context) (*env, error) {
	kv, err := store.Open(o.cfg.Session)
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(kv)
	if err := sessions.Ready(ctx); err != nil {
		_ = sessions.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}

	state := auth.NewState()
	client := api.New(o.cfg.NormalizedBaseURL(),
		api.WithTimeout(o.cfg.GetAPITimeout()),
		api.WithTokenSource(state),
		api.WithTokenStore(sessions),
	)
	svc := auth.NewService(state, sessions, client, nil)
	client.SetUnauthorizedHandler(svc.ForceLogout)

	if _, err := svc.CheckToken(ctx); err != nil {
		logging.Get(logging.CategoryBoot).Warn("session check failed: %v", err)
	}
	return &env{cfg: o.cfg, sessions: sessions, state: state, client: client, auth: svc}, nil
}

func (e *env) Close() {
	if err := e.sessions.Close(); err != nil {
		logging.Get(logging.CategoryStore).Warn("close session store: %v", err)
	}
}

// requireLogin fails fast for commands that need a session.
func (e *env) requireLogin() error {
	if !e.state.Authenticated() {
		return fmt.Errorf("não autenticado: execute 'arvore login' primeiro")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
