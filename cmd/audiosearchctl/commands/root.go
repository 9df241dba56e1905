// Package commands implements the audiosearchctl command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	audiosearch "github.com/kailas-cloud/audiosearch/pkg/sdk"
)

var (
	verbose  bool
	addr     string
	password string
	driver   string
	prefix   string
	fileRoot string
)

var rootCmd = &cobra.Command{
	Use:   "audiosearchctl",
	Short: "Index and search audio recordings",
	Long: `audiosearchctl talks to Valkey or Redis through the audiosearch SDK.

Recordings are cut into overlapping windows, embedded and stored as chunks.
Searches rank indexed recordings by their closest chunk.

Examples:
  audiosearchctl index 'toy-data/*.mp3'
  audiosearchctl search toy-data/song-1.mp3 --top-k 5 --exclude-self
  audiosearchctl health`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Cancelling ctx aborts in-flight calls.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "log SDK calls to stderr")
	pf.StringVar(&addr, "addr", envOr("AUDIOSEARCH_ADDR", "localhost:6379"), "database address")
	pf.StringVar(&password, "password", os.Getenv("AUDIOSEARCH_PASSWORD"), "database password")
	pf.StringVar(&driver, "driver", "valkey", "database driver: valkey or redis")
	pf.StringVar(&prefix, "prefix", "", "key prefix for chunks and the index")
	pf.StringVar(&fileRoot, "file-root", "", "directory that file URIs resolve against and may not leave")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// clientOptions turns the global flags into SDK options.
func clientOptions() ([]audiosearch.Option, error) {
	var opts []audiosearch.Option
	switch driver {
	case "valkey":
		opts = append(opts, audiosearch.WithValkey(addr, password))
	case "redis":
		opts = append(opts, audiosearch.WithRedis(addr, password))
	default:
		return nil, fmt.Errorf("unknown driver %q (want valkey or redis)", driver)
	}
	if prefix != "" {
		opts = append(opts, audiosearch.WithKeyPrefix(prefix))
	}
	if fileRoot != "" {
		opts = append(opts, audiosearch.WithFileRoot(fileRoot))
	}
	if verbose {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, audiosearch.WithLogger(slog.New(h)))
	}
	return opts, nil
}

func newClient(ctx context.Context) (*audiosearch.Client, error) {
	opts, err := clientOptions()
	if err != nil {
		return nil, err
	}
	client, err := audiosearch.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return client, nil
}
