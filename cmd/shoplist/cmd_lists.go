package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nhle/shared-lists/internal/model"
	"github.com/nhle/shared-lists/internal/theme"
)

// checkedPrefix marks an --item value as already checked.
const checkedPrefix = "x:"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListsCmd(st *cliState) *cobra.Command {
	var (
		take   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show every list you own or that is shared with you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}
			userID, s, err := rt.callerStore(cmd.Context(), st.userFlag)
			if err != nil {
				return err
			}

			views, err := s.GetLists(cmd.Context(), userID, take)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), views)
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.RenderOverview(views))
			return nil
		},
	}

	cmd.Flags().IntVar(&take, "take", 3, "items to show per list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(st *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <listId>",
		Short: "Show one list with all of its items",
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

			view, err := s.LoadList(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), view)
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.RenderList(*view))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newCreateCmd(st *cliState) *cobra.Command {
	var (
		listID string
		order  int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new list",
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

			if listID == "" {
				listID = uuid.NewString()
			}
			var orderPtr *int
			if cmd.Flags().Changed("order") {
				orderPtr = &order
			}

			if err := s.CreateList(cmd.Context(), userID, listID, args[0], orderPtr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", args[0], listID)
			return nil
		},
	}

	cmd.Flags().StringVar(&listID, "id", "", "list id (random UUID when omitted)")
	cmd.Flags().IntVar(&order, "order", 0, "position among your lists (next free one when omitted)")
	return cmd
}

func newSaveCmd(st *cliState) *cobra.Command {
	var (
		name  string
		order int
		items []string
		file  string
	)

	cmd := &cobra.Command{
		Use:   "save <listId>",
		Short: "Replace the name, order and items of a list",
		Long: `Replace a list's full state. Items given with --item replace every
existing item; prefix an item with "x:" to mark it checked. Name, order
and items default to their current values. With --file, the list is read as JSON
({"name": ..., "order": ..., "items": [{"name": ..., "checked": ...}]}),
"-" meaning standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}
			userID, s, err := rt.callerStore(cmd.Context(), st.userFlag)
			if err != nil {
				return err
			}

			current, err := s.LoadList(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			list := model.ShoppingList{
				ListID: args[0],
				Name:   current.Name,
				Order:  current.Order,
				Items:  current.Items,
			}
			if cmd.Flags().Changed("item") {
				list.Items = parseItems(items)
			}

			if file != "" {
				if err := readListFile(cmd.InOrStdin(), file, &list); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("name") {
				list.Name = name
			}
			if cmd.Flags().Changed("order") {
				list.Order = order
			}
			list.UserID, list.ListID = userID, args[0]

			if err := s.SaveList(cmd.Context(), list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s with %d items\n", list.Name, len(list.Items))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new list name")
	cmd.Flags().IntVar(&order, "order", 0, "new position")
	cmd.Flags().StringArrayVar(&items, "item", nil, `item text, repeatable ("x:" prefix marks it checked)`)
	cmd.Flags().StringVar(&file, "file", "", `read the list as JSON from a file ("-" for stdin)`)
	return cmd
}

func parseItems(raw []string) []model.Item {
	items := make([]model.Item, 0, len(raw))
	for _, r := range raw {
		it := model.Item{Name: r}
		if rest, ok := strings.CutPrefix(r, checkedPrefix); ok {
			it = model.Item{Name: rest, Checked: true}
		}
		items = append(items, it)
	}
	return items
}

func readListFile(stdin io.Reader, path string, list *model.ShoppingList) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(list); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func newDeleteCmd(st *cliState) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <listId>",
		Short: "Delete a list you own and all of its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !isTerminal(cmd.InOrStdin()) {
					return errors.New("refusing to delete without --yes")
				}
				confirmed := false
				err := huh.NewConfirm().
					Title(fmt.Sprintf("Delete list %s?", args[0])).
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed).
					Run()
				if err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}

			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}
			userID, s, err := rt.callerStore(cmd.Context(), st.userFlag)
			if err != nil {
				return err
			}
			if err := s.DeleteList(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
