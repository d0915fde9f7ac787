package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestra-io/kestrafs/internal/config"
	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/kestrafs"
	"github.com/kestra-io/kestrafs/pkg/prompt"
	"github.com/kestra-io/kestrafs/pkg/schema"
	"github.com/kestra-io/kestrafs/pkg/store"
	"github.com/kestra-io/kestrafs/pkg/vpath"
)

var (
	flagServer    string
	flagNamespace string
	flagConfigDir string
	flagLogLevel  string
	flagLogFormat string
	flagNoInput   bool
	flagLocked    bool
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	secrets  *store.FileStore
	state    *store.FileStore
	prompter prompt.Prompter
	notifier prompt.Notifier
	client   *client.Client
}

var current *app

var rootCmd = &cobra.Command{
	Use:           "kestrafs",
	Short:         "Browse and edit a Kestra namespace as files",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", "", "Kestra server URL (overrides config and KESTRA_API_URL)")
	pf.StringVarP(&flagNamespace, "namespace", "n", "", "Namespace to operate on")
	pf.StringVar(&flagConfigDir, "config-dir", "", "Configuration directory (default $KESTRAFS_CONFIG_DIR or the user config dir)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: console or json")
	pf.BoolVar(&flagNoInput, "no-input", false, "Never prompt; fail when credentials are needed")
	pf.BoolVar(&flagLocked, "locked", false, "Never prompt for the server URL")

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(lsCmd, statCmd, catCmd, putCmd, rmCmd, mkdirCmd, mvCmd, searchCmd, startCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd, logoutCmd)
}

func newApp(cmd *cobra.Command) (*app, error) {
	dir := flagConfigDir
	if dir == "" {
		dir = config.DefaultDir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.APIURL = flagServer
	}
	if flags.Changed("namespace") {
		cfg.Namespace = flagNamespace
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("locked") {
		cfg.Locked = flagLocked
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	term := prompt.NewTerminal()
	var prompter prompt.Prompter = term
	if flagNoInput {
		prompter = prompt.NoInput{}
	}

	secrets := store.NewFileStore(cfg.SecretsPath(), 0600)
	state := store.NewFileStore(cfg.StatePath(), 0644)

	return &app{
		cfg:      cfg,
		secrets:  secrets,
		state:    state,
		prompter: prompter,
		notifier: term,
		client: client.New(client.Config{
			BaseURL:  cfg.APIURL,
			Timeout:  cfg.Timeout,
			Secrets:  secrets,
			Prompter: prompter,
			Notifier: term,
		}),
	}, nil
}

func (a *app) schemaFetcher() *schema.Fetcher {
	return schema.New(schema.Config{
		Client:   a.client,
		State:    a.state,
		Settings: a.cfg,
		Prompter: a.prompter,
		Notifier: a.notifier,
		Locked:   a.cfg.Locked,
	})
}

// filesystem returns the adapter for the configured namespace, resolving the
// server URL first.
func (a *app) filesystem(cmd *cobra.Command) (*kestrafs.FS, error) {
	if a.cfg.Namespace == "" {
		return nil, errors.New("no namespace: use --namespace, KESTRA_NAMESPACE or 'kestrafs config set-namespace'")
	}
	serverURL, err := a.schemaFetcher().ResolveURL(cmd.Context(), false)
	if err != nil {
		return nil, err
	}
	a.client.SetBaseURL(serverURL)
	return kestrafs.New(a.cfg.Namespace, a.client), nil
}

// virtualPath turns a namespace-relative argument into a virtual path.
func (a *app) virtualPath(arg string) string {
	return vpath.Join(a.cfg.Namespace, arg)
}
