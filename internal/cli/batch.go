package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ppiankov/rxwizard/internal/pipeline"
	"github.com/ppiankov/rxwizard/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Check and fix the references of many documents in parallel",
	Long: `Batch runs 'refs fix' over every source listed in a file:
- One file path or http(s) URL per line (# starts a comment)
- Sources are checked concurrently with a configurable worker count
- Remote sources are rate limited per host
- The corrected HTML and a JSON report are written for each source

Example:
  rxwizard batch sources.txt
  rxwizard batch sources.txt --concurrency 10 --output-dir ./fixed
  rxwizard batch sources.txt --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./rxwizard-fixed", "output directory for corrected documents and reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") || cfg.Concurrency.Workers <= 0 {
		cfg.Concurrency.Workers = concurrency
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  rxwizard Batch Reference Check\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	var fixed, clean, failed int
	for _, result := range results {
		if result.Error != nil {
			failed++
			reason := result.Error.Error()
			if pipeline.IsFatal(result.Error) {
				reason = "not backed by the catalog: " + reason
			}
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", result.Source, reason)
			logger.Debug("batch source failed", zap.String("source", result.Source), zap.Error(result.Error))
			if result.Report != nil {
				_ = saveJSON(batchPath(result.Index, result.Source, ".json"), result.Report)
			}
			continue
		}

		report := result.Report
		if err := saveJSON(batchPath(result.Index, result.Source, ".json"), report); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, err)
			continue
		}
		if err := os.WriteFile(batchPath(result.Index, result.Source, ".html"), []byte(report.Fixed.HTML), 0644); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write HTML: %v\n", result.Source, err)
			continue
		}

		if report.Fixed.WasModified {
			fixed++
			fmt.Fprintf(os.Stderr, "✓ %s (rebuilt: %s)\n", result.Source, formatNumbers(report.Fixed.References))
		} else {
			clean++
			fmt.Fprintf(os.Stderr, "✓ %s (already valid)\n", result.Source)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d sources\n", len(results))
	fmt.Fprintf(os.Stderr, "  Fixed:     %d\n", fixed)
	fmt.Fprintf(os.Stderr, "  Valid:     %d\n", clean)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	if stats, ok := p.CacheStats(); ok && stats.Hits > 0 {
		fmt.Fprintf(os.Stderr, "  Cached:    %d\n", stats.Hits)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

func batchPath(index int, source, ext string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%03d-%s%s", index+1, sanitizeFilename(source), ext))
}

// sanitizeFilename sanitizes a source path or URL for use as a filename
func sanitizeFilename(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = strings.Trim(replacer.Replace(s), "_.-")

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}
