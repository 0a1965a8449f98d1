// Package main provides the cv_editor command: the editor API server and
// terminal front-ends for browsing, assessing and cache maintenance.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cv_editor",
	Short: "CV editor server and terminal client",
	Long:  "cv_editor serves the CV editor API and provides terminal tools to browse sections, run AI assessments and manage the local model cache.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
