package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-migrator",
	Short: "Migrate face labels from Windows Photos Legacy to Immich",
	Long: `Face Migrator reads the face recognition database of the legacy
Windows Photos application, matches its labeled faces against the face
detections of an Immich instance by geometric overlap, and applies the
resulting person names through the Immich API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initEnv)
}

func initEnv() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
