package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonathan/cv-editor/internal/modelcache"
	"github.com/jonathan/cv-editor/internal/observability"
	"github.com/spf13/cobra"
)

var cacheMaxAge time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local AI model cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached models",
	Args:  cobra.NoArgs,
	RunE: withCache(func(ctx context.Context, store *modelcache.Store, out io.Writer, _ []string) error {
		return cacheList(ctx, store, out)
	}),
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the total size of cached models",
	Args:  cobra.NoArgs,
	RunE: withCache(func(ctx context.Context, store *modelcache.Store, out io.Writer, _ []string) error {
		total, err := store.TotalSize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, observability.FormatBytes(total))
		return nil
	}),
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Remove models unused for longer than --max-age",
	Args:  cobra.NoArgs,
	RunE: withCache(func(ctx context.Context, store *modelcache.Store, out io.Writer, _ []string) error {
		n, err := store.EvictOlderThan(ctx, cacheMaxAge, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Evicted %d model(s) unused for more than %s\n", n, cacheMaxAge)
		return nil
	}),
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <model-name> <model-type>",
	Short: "Remove every version of one model",
	Args:  cobra.ExactArgs(2),
	RunE: withCache(func(ctx context.Context, store *modelcache.Store, out io.Writer, args []string) error {
		n, err := store.Delete(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no cached model %s [%s]", args[0], args[1])
		}
		fmt.Fprintf(out, "Deleted %d version(s) of %s [%s]\n", n, args[0], args[1])
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached model",
	Args:  cobra.NoArgs,
	RunE: withCache(func(ctx context.Context, store *modelcache.Store, out io.Writer, _ []string) error {
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Model cache cleared")
		return nil
	}),
}

func init() {
	cacheEvictCmd.Flags().DurationVar(&cacheMaxAge, "max-age", modelcache.DefaultMaxAge, "Maximum time since last use")
	cacheCmd.AddCommand(cacheListCmd, cacheSizeCmd, cacheEvictCmd, cacheDeleteCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

type cacheFunc func(ctx context.Context, store *modelcache.Store, out io.Writer, args []string) error

// withCache opens the configured model cache around fn.
func withCache(fn cacheFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store := modelcache.NewStore(cfg.ModelCachePath)
		defer func() { _ = store.Close() }()
		return fn(ctx, store, os.Stdout, args)
	}
}

func cacheList(ctx context.Context, store *modelcache.Store, out io.Writer) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	total, err := store.TotalSize(ctx)
	if err != nil {
		return err
	}
	observability.NewPrinter(out).PrintCacheRecords(records, total)
	return nil
}
