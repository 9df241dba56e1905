package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	audiosearch "github.com/kailas-cloud/audiosearch/pkg/sdk"
)

var (
	indexDuration float64
	indexStride   float64
)

var indexCmd = &cobra.Command{
	Use:   "index <glob|uri>...",
	Short: "Index recordings",
	Long: `Index recordings by file glob or URI (file://, http(s)://, s3://, minio://).

Local files get their base name without extension as ID. Other URIs get a
generated ID.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := documentsFor(args)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no recordings match %v", args)
		}

		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		var opts []audiosearch.CallOption
		if indexDuration > 0 {
			opts = append(opts, audiosearch.ChunkDuration(indexDuration))
		}
		if indexStride > 0 {
			opts = append(opts, audiosearch.ChunkStride(indexStride))
		}
		res, err := client.Index(ctx, docs, opts...)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, f := range res.Failed() {
			fmt.Fprintf(out, "FAIL  %s: %v\n", f.ID, f.Err)
		}
		fmt.Fprintf(out, "Indexed %d of %d recordings as %d chunks\n", res.Indexed, len(docs), res.Chunks)
		if n := len(res.Failed()); n > 0 {
			return fmt.Errorf("%d recordings failed", n)
		}
		return nil
	},
}

// documentsFor expands file globs and passes other URIs through.
func documentsFor(args []string) ([]audiosearch.Document, error) {
	var docs []audiosearch.Document
	for _, arg := range args {
		if strings.Contains(arg, "://") {
			docs = append(docs, audiosearch.Document{URI: arg})
			continue
		}
		paths, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", arg, err)
		}
		for _, p := range paths {
			docs = append(docs, audiosearch.Document{ID: fileID(p), URI: p})
		}
	}
	return docs, nil
}

func fileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	indexCmd.Flags().Float64Var(&indexDuration, "chunk-duration", 0, "window length in seconds (server default when 0)")
	indexCmd.Flags().Float64Var(&indexStride, "chunk-stride", 0, "hop between windows in seconds (server default when 0)")
	rootCmd.AddCommand(indexCmd)
}
