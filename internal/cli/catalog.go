package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/validate"
	"github.com/spf13/cobra"
)

var (
	catalogJSON    bool
	catalogTimeout time.Duration
)

// catalogCmd groups the reference catalog commands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the approved reference catalog",
	Long: `Show the reference catalog in use, or check that the source URLs of its
references are still reachable and current.

Example:
  rxwizard catalog show
  rxwizard catalog check --catalog ./brand-refs.yaml`,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the catalog's references and claim patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		if catalogJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"version":        c.Version(),
				"product":        c.Product(),
				"base_reference": c.Base(),
				"references":     c.References(),
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Catalog %s (%s), base reference %d\n\n", c.Version(), c.Product(), c.Base())
		for _, ref := range c.References() {
			fmt.Fprintf(w, "  %2d. %s\n", ref.Number, ref.Citation)
			if ref.URL != "" {
				fmt.Fprintf(w, "      %s\n", ref.URL)
			}
		}
		fmt.Fprintf(w, "\nClaim patterns:\n")
		for _, p := range c.Patterns() {
			fmt.Fprintf(w, "  [%d] %-40s refs %s\n", p.Priority, p.Description, formatNumbers(p.Refs))
		}
		return nil
	},
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the catalog's reference URLs are reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), catalogTimeout)
		defer cancel()

		v := validate.NewValidator(cfg.HTTP.Timeout, cfg.Concurrency.LinkCheckers, cfg.HTTP.UserAgent,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy, logger.Named("validate"))
		results, err := v.CheckCatalog(ctx, c)
		if err != nil {
			return fmt.Errorf("check catalog: %w", err)
		}

		if catalogJSON {
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			printLinkChecks(cmd, results)
		}

		dead := 0
		for _, r := range results {
			if r.IsDead {
				dead++
			}
		}
		if dead > 0 {
			return fmt.Errorf("%d of %d reference URLs are unreachable", dead, len(results))
		}
		return nil
	},
}

func printLinkChecks(cmd *cobra.Command, results []model.LinkCheck) {
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "No reference URLs to check")
		return
	}
	for _, r := range results {
		switch {
		case r.IsDead:
			reason := r.Error
			if reason == "" {
				reason = fmt.Sprintf("HTTP %d", r.StatusCode)
			}
			fmt.Fprintf(w, "✗ [%d] %s (%s)\n", r.Reference, r.URL, reason)
		case r.IsVeryStale:
			fmt.Fprintf(w, "⚠️  [%d] %s (last modified %d days ago)\n", r.Reference, r.URL, *r.Age)
		case r.IsStale:
			fmt.Fprintf(w, "~ [%d] %s (last modified %d days ago)\n", r.Reference, r.URL, *r.Age)
		case !r.IsAccessible:
			fmt.Fprintf(w, "? [%d] %s (%s)\n", r.Reference, r.URL, r.Error)
		default:
			fmt.Fprintf(w, "✓ [%d] %s\n", r.Reference, r.URL)
		}
		if r.RedirectURL != "" {
			fmt.Fprintf(w, "      redirects to %s\n", r.RedirectURL)
		}
	}
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogShowCmd, catalogCheckCmd)

	catalogCmd.PersistentFlags().BoolVar(&catalogJSON, "json", false, "print JSON instead of text")
	catalogCheckCmd.Flags().DurationVar(&catalogTimeout, "timeout", 2*time.Minute, "overall timeout for the URL checks")
}
