package main

import (
	"context"
	"os"

	"github.com/jonathan/cv-editor/internal/observability"
	"github.com/spf13/cobra"
)

var supportCmd = &cobra.Command{
	Use:   "support",
	Short: "Report whether this device can run AI assessments locally",
	RunE:  runSupport,
}

func init() {
	rootCmd.AddCommand(supportCmd)
}

func runSupport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	support, err := newProbe(cfg).Probe(ctx)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintSupport(support)
	return nil
}
