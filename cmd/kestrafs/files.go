package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestra-io/kestrafs/pkg/kestrafs"
	"github.com/kestra-io/kestrafs/pkg/models"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory of the namespace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		p := "/"
		if len(args) == 1 {
			p = args[0]
		}

		entries, err := fs.ReadDirectory(cmd.Context(), current.virtualPath(p))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Type == models.TypeDirectory {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/\n", e.Name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), e.Name)
			}
		}
		return nil
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show file attributes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		st, err := fs.Stat(cmd.Context(), current.virtualPath(args[0]))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", st.Name)
		fmt.Fprintf(w, "Type:\t%s\n", st.Type)
		fmt.Fprintf(w, "Size:\t%d\n", st.Size)
		fmt.Fprintf(w, "Created:\t%s\n", st.CTime.Format(time.RFC3339))
		fmt.Fprintf(w, "Modified:\t%s\n", st.MTime.Format(time.RFC3339))
		fmt.Fprintf(w, "Read-only:\t%v\n", st.ReadOnly)
		return w.Flush()
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file or flow source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(cmd.Context(), current.virtualPath(args[0]))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var putCmd = &cobra.Command{
	Use:   "put <path> [local-file]",
	Short: "Upload a file or save a flow (reads stdin without local-file)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}

		var data []byte
		if len(args) == 2 {
			data, err = os.ReadFile(args[1])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		return fs.WriteFile(cmd.Context(), current.virtualPath(args[0]), data)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file, directory or flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		return fs.Delete(cmd.Context(), current.virtualPath(args[0]))
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		return fs.CreateDirectory(cmd.Context(), current.virtualPath(args[0]))
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		return fs.Rename(cmd.Context(), current.virtualPath(args[0]), current.virtualPath(args[1]))
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search namespace files and flows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		results, err := fs.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Print the namespace README.md, or the getting-started guide",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		return fs.Start(cmd.Context(), kestrafs.OpenerFunc(func(_ context.Context, name string, content []byte) error {
			_, err := cmd.OutOrStdout().Write(content)
			return err
		}))
	},
}
