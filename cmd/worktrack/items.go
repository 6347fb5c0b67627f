package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/worktrack/audit"
	"github.com/GoCodeAlone/worktrack/server/api"
	"github.com/GoCodeAlone/worktrack/workitem"
)

func newItemsCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Manage work items",
	}
	cmd.AddCommand(
		newItemsListCmd(client),
		newItemsShowCmd(client),
		newItemsCreateCmd(client),
		newItemsTransitionCmd(client),
		newItemsAssignCmd(client),
		newItemsCommentCmd(client),
	)
	return cmd
}

func newItemsListCmd(client func() *Client) *cobra.Command {
	var status, priority, category, assignee, sprint, search string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			for k, v := range map[string]string{
				"status": status, "priority": priority, "category": category,
				"assignee": assignee, "sprint_id": sprint, "q": search,
			} {
				if v != "" {
					q.Set(k, v)
				}
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/items"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var items []api.ItemView
			if err := client().get(cmd.Context(), path, &items); err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "filter by status")
	f.StringVar(&priority, "priority", "", "filter by priority")
	f.StringVar(&category, "category", "", "filter by category")
	f.StringVar(&assignee, "assignee", "", "filter by assignee")
	f.StringVar(&sprint, "sprint", "", `filter by sprint id ("none" for unscheduled)`)
	f.StringVarP(&search, "query", "q", "", "search number, title and description")
	f.IntVar(&limit, "limit", 0, "maximum number of items")
	return cmd
}

func printItems(w io.Writer, items []api.ItemView) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no items")
		return
	}
	fmt.Fprintf(w, "%-8s %-36s %-12s %-9s %-16s %-10s\n", "NUMBER", "TITLE", "STATUS", "PRIORITY", "ASSIGNEE", "DUE")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, it := range items {
		due := "-"
		if it.DueDate != nil {
			due = audit.FormatDate(it.DueDate)
			if it.Overdue {
				due += "!"
			}
		}
		fmt.Fprintf(w, "%-8s %-36s %-12s %-9s %-16s %-10s\n",
			it.Number,
			truncate(it.Title, 35),
			it.StatusLabel,
			it.PriorityLabel,
			truncate(orDash(it.Assignee), 15),
			due,
		)
	}
}

func newItemsShowCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item with its comments and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var it api.ItemView
			if err := client().get(cmd.Context(), "/api/items/"+url.PathEscape(args[0])+"?include=comments,history", &it); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s\n", it.Number, it.Title)
			fmt.Fprintf(w, "status:    %s\n", it.StatusLabel)
			fmt.Fprintf(w, "priority:  %s\n", it.PriorityLabel)
			fmt.Fprintf(w, "category:  %s\n", it.CategoryLabel)
			fmt.Fprintf(w, "assignee:  %s\n", orDash(it.Assignee))
			fmt.Fprintf(w, "requester: %s\n", orDash(it.Requester))
			fmt.Fprintf(w, "due:       %s\n", orDash(audit.FormatDate(it.DueDate)))
			if it.SprintID != nil {
				fmt.Fprintf(w, "sprint:    %d\n", *it.SprintID)
			}
			if it.Description != "" {
				fmt.Fprintf(w, "\n%s\n", it.Description)
			}
			if len(it.Comments) > 0 {
				fmt.Fprintln(w, "\ncomments:")
				for _, c := range it.Comments {
					fmt.Fprintf(w, "  [%s] %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.Author, c.Content)
				}
			}
			if len(it.History) > 0 {
				fmt.Fprintln(w, "\nhistory:")
				for _, h := range it.History {
					fmt.Fprintf(w, "  [%s] %s %s: %q -> %q\n",
						h.ChangedAt.Format("2006-01-02 15:04"), orDash(h.ChangedBy), h.Field, h.OldValue, h.NewValue)
				}
			}
			return nil
		},
	}
}

func newItemsCreateCmd(client func() *Client) *cobra.Command {
	var description, priority, category, assignee, due string
	var sprint int64
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a work item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"title": strings.Join(args, " ")}
			for k, v := range map[string]string{
				"description": description, "priority": priority, "category": category,
				"assignee": assignee, "due_date": due,
			} {
				if v != "" {
					body[k] = v
				}
			}
			if sprint > 0 {
				body["sprint_id"] = sprint
			}
			var it api.ItemView
			if err := client().post(cmd.Context(), "/api/items", body, &it); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (id %d)\n", it.Number, it.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&description, "description", "d", "", "description")
	f.StringVar(&priority, "priority", "", "low|medium|high|critical")
	f.StringVar(&category, "category", "", "bug|feature|task|improvement|question|support")
	f.StringVar(&assignee, "assignee", "", "assignee")
	f.StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	f.Int64Var(&sprint, "sprint", 0, "sprint id")
	return cmd
}

func newItemsTransitionCmd(client func() *Client) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Change a work item's status",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"status": strings.Join(args[1:], " "), "reason": reason}
			var it api.ItemView
			if err := client().post(cmd.Context(), "/api/items/"+url.PathEscape(args[0])+"/transition", body, &it); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", it.Number, it.StatusLabel)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in history")
	return cmd
}

func newItemsAssignCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> <assignee>",
		Short: `Assign a work item ("" to unassign)`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var it api.ItemView
			if err := client().post(cmd.Context(), "/api/items/"+url.PathEscape(args[0])+"/assign",
				map[string]string{"assignee": args[1]}, &it); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s assigned to %s\n", it.Number, orDash(it.Assignee))
			return nil
		},
	}
}

func newItemsCommentCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Add a comment to a work item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c workitem.Comment
			if err := client().post(cmd.Context(), "/api/items/"+url.PathEscape(args[0])+"/comments",
				map[string]string{"content": strings.Join(args[1:], " ")}, &c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment %d added\n", c.ID)
			return nil
		},
	}
}
