package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-migrator/internal/analysis"
	"github.com/kozaktomas/face-migrator/internal/config"
	"github.com/kozaktomas/face-migrator/internal/store/immich"
	"github.com/kozaktomas/face-migrator/internal/store/legacy"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the face matching analysis from the terminal",
	Long: `Run the full analysis pipeline against the configured stores and
print a summary of each result bucket. Thresholds default to the configured
values and can be overridden per run.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Float64("min-iou", 0, "Minimum IoU threshold (overrides MIN_IOU)")
	analyzeCmd.Flags().Float64("max-center-dist", 0, "Maximum center distance threshold (overrides MAX_CENTER_DIST)")
	analyzeCmd.Flags().Bool("json", false, "Print the full result bundle as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	settings := cfg.Snapshot()

	thresholds := analysis.Thresholds{
		MinIoU:        settings.Matching.MinIoU,
		MaxCenterDist: settings.Matching.MaxCenterDist,
	}
	if v := mustGetFloat64(cmd, "min-iou"); v != 0 {
		thresholds.MinIoU = v
	}
	if v := mustGetFloat64(cmd, "max-center-dist"); v != 0 {
		thresholds.MaxCenterDist = v
	}
	asJSON := mustGetBool(cmd, "json")

	source, err := legacy.Open(settings.SourceDB.Path, settings.Matching.NameMatchMode)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer source.Close()

	target, err := immich.Open(immich.ConnConfig{
		Host:     settings.TargetDB.Host,
		Port:     settings.TargetDB.Port,
		Name:     settings.TargetDB.Name,
		User:     settings.TargetDB.User,
		Password: settings.TargetDB.Password,
	}, settings.Matching.NameMatchMode)
	if err != nil {
		return fmt.Errorf("open target database: %w", err)
	}
	defer target.Close()

	coordinator := analysis.NewCoordinator(source, target, settings.Matching.NameMatchMode)
	coordinator.SetMinMatches(settings.Matching.MinMatches)
	coordinator.SetMinClusterPhotos(settings.Matching.MinPhotosInCluster)

	var barOnce sync.Once
	var bar *progressbar.ProgressBar
	coordinator.SetMatchProgress(func(done, total int) {
		barOnce.Do(func() {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Matching"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("photos"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "=",
					SaucerHead:    ">",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		})
		_ = bar.Set(done)
	})

	fmt.Printf("Reading stores and matching faces (IoU >= %.2f, center dist <= %.2f)...\n",
		thresholds.MinIoU, thresholds.MaxCenterDist)

	bundle, err := coordinator.Run(context.Background(), thresholds)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(bundle)
	}

	printBundleSummary(bundle)
	return nil
}

func printBundleSummary(bundle *analysis.Bundle) {
	stats := bundle.Stats
	fmt.Printf("\nPipeline:\n")
	fmt.Printf("  Source: %d persons, %d faces (%d malformed skipped)\n",
		stats.SourcePersons, stats.SourceFaces, stats.MalformedSource)
	fmt.Printf("  Target: %d clusters, %d faces (%d malformed skipped)\n",
		stats.TargetClusters, stats.TargetFaces, stats.MalformedTarget)
	fmt.Printf("  Photos: %d common, %d source-only, %d target-only\n",
		stats.CommonPhotos, stats.SourceOnlyPhotos, stats.TargetOnlyPhotos)
	fmt.Printf("  Matches: %d raw, %d passing thresholds\n",
		stats.RawMatches, stats.PassingMatches)

	fmt.Printf("\nResults:\n")
	fmt.Printf("  Rename applicable:  %d\n", len(bundle.RenameApplicable))
	fmt.Printf("  Assign unclustered: %d\n", len(bundle.AssignUnclustered))
	fmt.Printf("  Merge candidates:   %d\n", len(bundle.MergeCandidates))
	fmt.Printf("  Validation issues:  %d\n", len(bundle.ValidationIssues))
	fmt.Printf("  Create face groups: %d\n", len(bundle.CreateFaceGroups))

	if len(bundle.RenameApplicable) > 0 {
		fmt.Printf("\nRename applicable:\n")
		for _, pair := range bundle.RenameApplicable {
			name := pair.ClusterName
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("  %-30s -> cluster %s %-20s %d matches, avg IoU %.2f, %s\n",
				pair.SourcePersonName, pair.ClusterID, name,
				pair.Count, pair.MeanIoU, pair.Confidence)
		}
	}
}
