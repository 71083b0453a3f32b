package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-migrator/internal/config"
	"github.com/kozaktomas/face-migrator/internal/web/handlers"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the three backend connections",
	Long: `Test the connections to the legacy database, the Immich database
and the Immich API, and print the totals each store reports.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	rt := handlers.NewRuntime(cfg)
	defer rt.Close()

	statuses := rt.Statuses(cmd.Context())

	fmt.Printf("Source database (%s):\n", cfg.Snapshot().SourceDB.Path)
	if statuses.SourceDB.Connected {
		fmt.Printf("  connected\n")
		if t := statuses.SourceDB.Totals; t != nil {
			fmt.Printf("  %d persons (%d named), %d faces, %d items\n",
				t.TotalPersons, t.NamedPersons, t.TotalFaces, t.TotalItems)
		}
	} else {
		fmt.Printf("  FAILED: %s\n", statuses.SourceDB.Error)
	}

	fmt.Printf("Target database (%s:%d/%s):\n",
		cfg.Snapshot().TargetDB.Host, cfg.Snapshot().TargetDB.Port, cfg.Snapshot().TargetDB.Name)
	if statuses.TargetDB.Connected {
		fmt.Printf("  connected\n")
		if t := statuses.TargetDB.Totals; t != nil {
			fmt.Printf("  %d persons (%d named, %d unnamed), %d faces, %d assets\n",
				t.TotalPersons, t.NamedPersons, t.UnnamedPersons, t.TotalFaces, t.TotalAssets)
		}
	} else {
		fmt.Printf("  FAILED: %s\n", statuses.TargetDB.Error)
	}

	fmt.Printf("Target API (%s):\n", cfg.Snapshot().TargetAPI.URL)
	if statuses.TargetAPI.Connected {
		fmt.Printf("  connected\n")
	} else {
		fmt.Printf("  FAILED: %s\n", statuses.TargetAPI.Error)
	}

	if !statuses.SourceDB.Connected || !statuses.TargetDB.Connected || !statuses.TargetAPI.Connected {
		return fmt.Errorf("one or more backends unreachable")
	}
	return nil
}
