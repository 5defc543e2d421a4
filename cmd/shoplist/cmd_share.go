package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/shared-lists/internal/theme"
)

func newShareCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share <listId> <user>",
		Short: "Share a list you own with one partner (id, username or email)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}
			userID, s, err := rt.callerStore(cmd.Context(), st.userFlag)
			if err != nil {
				return err
			}

			view, err := s.ShareList(cmd.Context(), userID, args[0], args[1], false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.RenderList(*view))
			return nil
		},
	}
	return cmd
}

func newLeaveCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <listId>",
		Short: "Stop seeing a list someone shared with you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}
			userID, s, err := rt.callerStore(cmd.Context(), st.userFlag)
			if err != nil {
				return err
			}

			if err := s.LeaveList(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Left %s\n", args[0])
			return nil
		},
	}
}
