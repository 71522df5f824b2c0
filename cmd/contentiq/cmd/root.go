// Package cmd implements the contentiq command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/symplistic/contentiq-widget/internal/config"
	"github.com/symplistic/contentiq-widget/internal/logging"
	"github.com/symplistic/contentiq-widget/internal/render"
)

// options are the persistent flags. Set flags override the environment.
type options struct {
	agentID       string
	token         string
	backendURL    string
	store         string
	storePath     string
	threadTimeout int
	eagerSession  bool
	logLevel      string
	logFormat     string
	format        string
	width         int

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "contentiq",
		Short: "Chat with a contentIQ agent from the terminal",
		Long: `contentiq talks to a contentIQ backend the same way the embedded web
widget does: signed requests, a persisted conversation session that expires
after inactivity, and per-message feedback.

Usage:
  contentiq chat                 # Interactive chat
  contentiq send "question"      # One-shot message
  contentiq session show         # Inspect the stored session

Configuration comes from CONTENTIQ_* environment variables (or a .env file)
and can be overridden with flags.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.agentID, "agent", "", "Agent id (CONTENTIQ_AGENT_ID)")
	f.StringVar(&opts.token, "token", "", "Hex embed token (CONTENTIQ_TOKEN)")
	f.StringVar(&opts.backendURL, "backend", "", "Backend base URL (CONTENTIQ_BACKEND_URL)")
	f.StringVar(&opts.store, "store", "", "Session storage: file, sqlite or memory (CONTENTIQ_STORE)")
	f.StringVar(&opts.storePath, "store-path", "", "Session storage path (CONTENTIQ_STORE_PATH)")
	f.IntVar(&opts.threadTimeout, "thread-timeout", 0, "Thread timeout in minutes (CONTENTIQ_THREAD_TIMEOUT_MINUTES)")
	f.BoolVar(&opts.eagerSession, "eager-session", false, "Create a local session id at start-up (CONTENTIQ_EAGER_SESSION)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL)")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json (LOG_FORMAT)")
	f.StringVar(&opts.format, "format", string(render.FormatTerminal), "Reply format: terminal, plain or html")
	f.IntVar(&opts.width, "width", render.DefaultTerminalConfig().Width, "Word wrap width for terminal output")

	root.AddCommand(
		newChatCmd(opts),
		newSendCmd(opts),
		newSessionCmd(opts),
		newValidateCmd(opts),
		newStylingCmd(opts),
	)
	return root
}

// load resolves configuration: .env, then environment, then set flags.
func (o *options) load(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("agent") {
		cfg.AgentID = o.agentID
	}
	if flags.Changed("token") {
		cfg.Token = o.token
	}
	if flags.Changed("backend") {
		cfg.BackendURL = o.backendURL
	}
	if flags.Changed("store") {
		cfg.Store = o.store
	}
	if flags.Changed("store-path") {
		cfg.StorePath = o.storePath
	}
	if flags.Changed("thread-timeout") {
		cfg.ThreadTimeoutMinutes = o.threadTimeout
	}
	if flags.Changed("eager-session") {
		cfg.EagerSession = o.eagerSession
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := render.ParseFormat(o.format); err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out, errOut io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(context.Background())
}
