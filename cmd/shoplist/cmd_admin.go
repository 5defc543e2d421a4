package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
)

func newInitTableCmd(st *cliState) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "init-table",
		Short: "Create the backing table if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}
			if st.cfg.Store.Backend == model.BackendSQLite {
				fmt.Fprintf(cmd.OutOrStdout(), "SQLite database ready at %s\n", st.cfg.Store.SQLitePath)
				return nil
			}

			if err := kv.EnsureTable(cmd.Context(), rt.dynamoClient(rt.aws), st.cfg.Store.Table, wait); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s is active\n", st.cfg.Store.Table)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to wait for a new table to become active")
	return cmd
}

func newConfigCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(st.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", st.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := model.SaveConfig(st.configPath, st.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", st.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), st.configPath)
		},
	}

	cmd.AddCommand(initCmd, pathCmd)
	return cmd
}
