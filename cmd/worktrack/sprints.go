package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/worktrack/audit"
	"github.com/GoCodeAlone/worktrack/importer"
	"github.com/GoCodeAlone/worktrack/report"
	"github.com/GoCodeAlone/worktrack/workitem"
)

func newSprintsCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sprints",
		Aliases: []string{"sprint"},
		Short:   "Manage sprints",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/sprints"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			var sprints []workitem.Sprint
			if err := client().get(cmd.Context(), path, &sprints); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(sprints) == 0 {
				fmt.Fprintln(w, "no sprints")
				return nil
			}
			fmt.Fprintf(w, "%-6s %-30s %-10s %-10s %-10s\n", "ID", "NAME", "STATUS", "START", "END")
			fmt.Fprintln(w, strings.Repeat("-", 70))
			for _, s := range sprints {
				fmt.Fprintf(w, "%-6d %-30s %-10s %-10s %-10s\n",
					s.ID, truncate(s.Name, 29), s.Status.Label(),
					orDash(audit.FormatDate(s.StartDate)), orDash(audit.FormatDate(s.EndDate)))
			}
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "planned|active|completed|cancelled")

	var goal, start, end string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a sprint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"name": strings.Join(args, " ")}
			if goal != "" {
				body["goal"] = goal
			}
			if start != "" {
				body["start_date"] = start
			}
			if end != "" {
				body["end_date"] = end
			}
			var s workitem.Sprint
			if err := client().post(cmd.Context(), "/api/sprints", body, &s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created sprint %d (%s)\n", s.ID, s.Name)
			return nil
		},
	}
	create.Flags().StringVar(&goal, "goal", "", "sprint goal")
	create.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	create.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")

	progress := &cobra.Command{
		Use:   "progress <id>",
		Short: "Show sprint completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p report.Progress
			if err := client().get(cmd.Context(), "/api/sprints/"+url.PathEscape(args[0])+"/progress", &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d done (%.0f%%)\n", p.Name, p.Completed, p.Total, p.Percent)
			return nil
		},
	}

	cmd.AddCommand(list, create, progress)
	return cmd
}

func newReportCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Show the dashboard summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s report.Summary
			if err := client().get(cmd.Context(), "/api/reports/summary", &s); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "total:   %d\n", s.Total)
			fmt.Fprintf(w, "overdue: %d\n", s.Overdue)
			fmt.Fprintln(w, "\nby status:")
			for _, st := range workitem.Statuses() {
				fmt.Fprintf(w, "  %-12s %d\n", st.Label(), s.ByStatus[st])
			}
			fmt.Fprintln(w, "\nby priority:")
			for _, p := range workitem.Priorities() {
				fmt.Fprintf(w, "  %-12s %d\n", p.Label(), s.ByPriority[p])
			}
			fmt.Fprintln(w, "\nby category:")
			for _, c := range workitem.Categories() {
				fmt.Fprintf(w, "  %-12s %d\n", c.Label(), s.ByCategory[c])
			}
			if len(s.Sprints) > 0 {
				fmt.Fprintln(w, "\nactive sprints:")
				for _, p := range s.Sprints {
					fmt.Fprintf(w, "  %-24s %d/%d (%.0f%%)\n", truncate(p.Name, 23), p.Completed, p.Total, p.Percent)
				}
			}
			return nil
		},
	})
	return cmd
}

func newImportCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import work items from external trackers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "github <owner/repo>",
		Short: "Import a GitHub repository's issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res importer.Result
			if err := client().post(cmd.Context(), "/api/import/github", map[string]string{"repository": args[0]}, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", res.Imported, res.Skipped)
			return nil
		},
	})
	return cmd
}
