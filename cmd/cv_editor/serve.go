package main

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-editor/internal/config"
	"github.com/jonathan/cv-editor/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editor API server",
	Long:  `Start an HTTP server exposing the section, guidance, save and assessment endpoints. Configuration comes from the environment (DATABASE_URL, JWT_SECRET, REDIS_URL, GEMINI_API_KEY, ...).`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	srv, err := server.Open(context.Background(), cfg, jwtCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}
