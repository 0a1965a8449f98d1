package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/cv-editor/internal/assess"
	"github.com/jonathan/cv-editor/internal/modelcache"
	"github.com/jonathan/cv-editor/internal/observability"
	"github.com/spf13/cobra"
)

var (
	assessSection string
	assessEntry   string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess a CV section with AI",
	Long:  "Request an AI assessment of a section, or of one entry. When the server's AI quota is used up the assessment runs on the local runtime.",
	RunE:  runAssess,
}

func init() {
	assessCmd.Flags().StringVarP(&assessSection, "section", "s", "", "Section id, e.g. work-experience (required)")
	assessCmd.Flags().StringVarP(&assessEntry, "entry", "e", "", "Entry id to assess a single entry")
	_ = assessCmd.MarkFlagRequired("section")
	rootCmd.AddCommand(assessCmd)
}

func runAssess(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	api, err := newAPIClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	store := modelcache.NewStore(cfg.ModelCachePath)
	defer func() { _ = store.Close() }()

	panel := &textPane{out: os.Stderr, loadingOnly: true}
	o := assess.New(api, newRuntime(cfg, store), panel, printNotifier{out: os.Stderr},
		assess.WithTimeout(time.Duration(cfg.AssessTimeout)))

	result, err := o.Assess(ctx, assessSection, assessEntry)
	if err != nil {
		return fmt.Errorf("assessment failed: %w", err)
	}
	observability.NewPrinter(os.Stdout).PrintAssessment(assessSection, result)
	return nil
}
