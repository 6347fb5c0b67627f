// Command worktrack is the worktrack CLI client.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoCodeAlone/worktrack/internal/version"
)

const defaultServer = "http://localhost:9090"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Server URL and token resolve from
// flags first, then WORKTRACK_SERVER / WORKTRACK_TOKEN.
func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "worktrack",
		Short:         "worktrack CLI",
		Long:          "worktrack is a command-line client for the worktrack work item tracker.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("server", defaultServer, "worktrack server URL")
	root.PersistentFlags().String("token", "", "JWT auth token")

	v.SetEnvPrefix("worktrack")
	v.AutomaticEnv()
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))
	v.SetDefault("server", defaultServer)

	client := func() *Client {
		return &Client{
			BaseURL:    strings.TrimRight(v.GetString("server"), "/"),
			Token:      v.GetString("token"),
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
		}
	}

	root.AddCommand(
		newItemsCmd(client),
		newSprintsCmd(client),
		newReportCmd(client),
		newImportCmd(client),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "worktrack %s (commit %s, built %s)\n",
					version.Version, version.Commit, version.BuildDate)
			},
		},
	)
	return root
}

// --- helpers ---

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
