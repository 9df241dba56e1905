package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/audiosearch/internal/version"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Remove recordings and their chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		for _, id := range args {
			if err := client.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of indexed chunks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		n, err := client.Count(ctx)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the database, the index and the embedder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		h := client.Health(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), h.Status)
		if !h.OK() {
			return fmt.Errorf("failing checks: %s", strings.Join(h.Failing(), ", "))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, version.String())
		if verbose {
			fmt.Fprintf(out, "  go: %s\n", runtime.Version())
		}
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd, countCmd, healthCmd, versionCmd)
}
