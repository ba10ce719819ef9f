// Package cli defines the portfolioctl commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"portfolio.admin/internal/client"
	"portfolio.admin/internal/logging"
	"portfolio.admin/internal/session"
)

var version = "dev" // set via ldflags at build time

var errNotLoggedIn = errors.New("not logged in, run 'portfolioctl login' first")

type options struct {
	server         string
	sessionFile    string
	sessionTimeout time.Duration
	verbose        bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "portfolioctl",
		Short: "Manage portfolio site content from the command line",
		Long: `portfolioctl talks to the portfolio admin API. Log in once with the
admin secret; the session lasts while you keep using it and ends after
--session-timeout of inactivity (30 minutes by default).`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("PORTFOLIO_SERVER", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session-file", session.DefaultPath(), "where the session token is kept")
	root.PersistentFlags().DurationVar(&opts.sessionTimeout, "session-timeout", session.DefaultTimeout, "inactivity period after which the session ends")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "log session activity to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newGenerateTextCmd(opts),
		newGenerateImageCmd(opts),
	)
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return logging.Discard()
	}
	return logging.NewLoggerWithWriter(slog.LevelDebug, "text", cmd.ErrOrStderr())
}

func (o *options) connect(cmd *cobra.Command) (*client.Client, *session.Manager) {
	c := client.New(o.server)
	m := session.NewManager(c, session.NewFileStorage(o.sessionFile),
		session.WithTimeout(o.sessionTimeout),
		session.WithLogger(o.logger(cmd)),
	)
	c.SetCredentials(m)
	return c, m
}

// authenticated restores the stored session and counts this command as
// activity.
func (o *options) authenticated(cmd *cobra.Command) (*client.Client, error) {
	c, m := o.connect(cmd)
	ctx := contextOf(cmd)

	state, err := m.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if state != session.Authenticated {
		return nil, errNotLoggedIn
	}
	m.RecordActivity(session.EventKeyDown)
	if m.Tick(ctx) != session.Authenticated {
		return nil, errNotLoggedIn
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
