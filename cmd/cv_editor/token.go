package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jonathan/cv-editor/internal/config"
	"github.com/jonathan/cv-editor/internal/server"
	"github.com/spf13/cobra"
)

var tokenUserID string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with JWT_SECRET",
	Long:  "Issue an API token for a user id, for use with --token or CV_EDITOR_TOKEN. A new user id is generated when --user is omitted.",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "User id (UUID)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(_ *cobra.Command, _ []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	userID := uuid.New()
	if tokenUserID != "" {
		if userID, err = uuid.Parse(tokenUserID); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
	}

	token, err := server.NewJWTService(jwtCfg).GenerateToken(userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "user: %s (expires in %s)\n", userID, jwtCfg.TokenLifetime())
	fmt.Println(token)
	return nil
}
