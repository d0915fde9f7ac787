package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/docs"
	"github.com/kestra-io/kestrafs/pkg/store"
)

var schemaReenter bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the cached flow schema",
}

var schemaDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the flow schema from the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.schemaFetcher().Download(cmd.Context(), schemaReenter)
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached flow schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := current.schemaFetcher().Cached()
		if err != nil {
			return err
		}
		if s == "" {
			return fmt.Errorf("no schema downloaded; run 'kestrafs schema download'")
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}

var (
	docsLine int
	docsCol  int
	docsView string
)

var docsCmd = &cobra.Command{
	Use:   "docs [flow.yml]",
	Short: "Show documentation for the task at --line/--col of a local flow file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, err := current.schemaFetcher().ResolveURL(cmd.Context(), false)
		if err != nil {
			return err
		}
		current.client.SetBaseURL(serverURL)

		panel := docs.NewPanel(current.client, docs.WriterRenderer{W: cmd.OutOrStdout()})
		if docsView != "" {
			return panel.OnMessage(docs.View(docsView))
		}
		if len(args) == 0 || docsLine == 0 {
			return panel.Show()
		}

		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := panel.OnSelectionChange(cmd.Context(), string(source), docsLine, docsCol); err != nil {
			return err
		}
		if panel.LatestType() == "" {
			return panel.Show()
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Change persisted settings",
}

var configServerCmd = &cobra.Command{
	Use:   "set-server <url>",
	Short: "Set the Kestra server URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cfg.SetAPIURL(args[0])
	},
}

var configNamespaceCmd = &cobra.Command{
	Use:   "set-namespace <namespace>",
	Short: "Set the default namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cfg.SetNamespace(args[0])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and remembered credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := store.LoadSession(current.secrets)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Config:\t%s\n", current.cfg.Dir)
		fmt.Fprintf(w, "Server:\t%s\n", orNone(current.cfg.APIURL))
		fmt.Fprintf(w, "API:\t%s\n", orNone(client.APIURL(current.cfg.APIURL)))
		fmt.Fprintf(w, "Namespace:\t%s\n", orNone(current.cfg.Namespace))
		fmt.Fprintf(w, "Locked:\t%v\n", current.cfg.Locked)
		fmt.Fprintf(w, "User:\t%s\n", orNone(session.Username))

		switch {
		case session.Token == "":
			fmt.Fprintf(w, "Token:\t(none)\n")
		default:
			info, err := store.InspectToken(session.Token)
			if err != nil {
				fmt.Fprintf(w, "Token:\tstored (not a readable JWT)\n")
				break
			}
			state := "valid"
			if info.IsExpired(time.Now()) {
				state = "expired"
			}
			fmt.Fprintf(w, "Token:\t%s\n", state)
			if info.Subject != "" {
				fmt.Fprintf(w, "Subject:\t%s\n", info.Subject)
			}
			if !info.ExpiresAt.IsZero() {
				fmt.Fprintf(w, "Expires:\t%s\n", info.ExpiresAt.Format(time.RFC3339))
			}
		}

		schemaText, _ := current.state.Get(store.SchemaKey)
		fmt.Fprintf(w, "Schema:\t%s\n", map[bool]string{true: "cached", false: "not downloaded"}[schemaText != ""])
		return w.Flush()
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the remembered username and token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.ClearSession(current.secrets); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	schemaDownloadCmd.Flags().BoolVar(&schemaReenter, "reenter", false, "Prompt for the server URL even if one is configured")
	schemaCmd.AddCommand(schemaDownloadCmd, schemaShowCmd)

	docsCmd.Flags().IntVar(&docsLine, "line", 0, "Cursor line (1-based)")
	docsCmd.Flags().IntVar(&docsCol, "col", 0, "Cursor column (0-based)")
	docsCmd.Flags().StringVar(&docsView, "view", "", "Show a view instead: tasks or basics")

	configCmd.AddCommand(configServerCmd, configNamespaceCmd)
}
