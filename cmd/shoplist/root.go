package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/shared-lists/internal/model"
)

// cliState is shared by every subcommand of one invocation.
type cliState struct {
	configPath string
	userFlag   string

	cfg *model.AppConfig
	log zerolog.Logger
	rt  *runtime
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:   "shoplist",
		Short: "Shared shopping lists over a single key-value table",
		Long: `shoplist stores shopping lists in one DynamoDB (or local SQLite) table
and lets an owner share a list with exactly one partner.

Run "shoplist serve" for the HTTP API, or use the list commands directly.
List commands act as the signed-in user ("shoplist login") unless --user
names someone else by id, username or email.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.log = newLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if st.rt != nil {
				return st.rt.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&st.configPath, "config", model.DefaultConfigPath(), "path to the config file")
	root.PersistentFlags().StringVar(&st.userFlag, "user", "", "act as this user (id, username or email) instead of the signed-in one")

	root.AddCommand(
		newServeCmd(st),
		newInitTableCmd(st),
		newConfigCmd(st),
		newLoginCmd(st),
		newLogoutCmd(st),
		newListsCmd(st),
		newShowCmd(st),
		newCreateCmd(st),
		newSaveCmd(st),
		newDeleteCmd(st),
		newShareCmd(st),
		newLeaveCmd(st),
	)

	return root
}

// runtime lazily opens the backends for commands that need them.
func (st *cliState) runtime(cmd *cobra.Command) (*runtime, error) {
	if st.rt != nil {
		return st.rt, nil
	}
	rt, err := newRuntime(cmd.Context(), st.cfg, st.log)
	if err != nil {
		return nil, fmt.Errorf("opening backends: %w", err)
	}
	st.rt = rt
	return rt, nil
}

func newLogger(cfg model.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if cfg.Format == "console" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		l = zerolog.New(out)
	}
	return l.Level(level).With().Timestamp().Logger()
}

// isTerminal reports whether prompts can be shown on in.
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
