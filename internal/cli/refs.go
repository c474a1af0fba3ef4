package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/rxwizard/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	refsOut     string
	refsJSON    bool
	refsTimeout time.Duration
)

// errCitations marks a document whose citations and references block disagree
var errCitations = errors.New("citation check failed")

// refsCmd groups the reference compliance commands
var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Check and correct the references of an HTML document",
	Long: `Refs runs the reference compliance engine over an HTML document read
from a file or an http(s) URL.

  required  references the document's claims call for (base reference included)
  validate  compare inline citations with the references block (exit 1 if they differ)
  fix       rebuild the references block from the inline citations
  audit     list claims whose expected references are not cited

Example:
  rxwizard refs validate email.html
  rxwizard refs fix email.html --out email.fixed.html
  rxwizard refs audit https://example.com/campaign.html --json`,
}

var refsRequiredCmd = &cobra.Command{
	Use:   "required <file-or-url>",
	Short: "Print the references the document's claims require",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDocument(cmd, args[0], func(p *pipeline.Pipeline, html string) error {
			required := p.Engine().ExtractRequired(html)
			if refsJSON {
				return writeJSON(cmd.OutOrStdout(), map[string][]int{"required": required})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Required references: %s\n", formatNumbers(required))
			return nil
		})
	},
}

var refsValidateCmd = &cobra.Command{
	Use:   "validate <file-or-url>",
	Short: "Compare inline citations with the references block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDocument(cmd, args[0], func(p *pipeline.Pipeline, html string) error {
			result := p.Engine().Validate(html)
			if refsJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Cited:     %s\n", formatNumbers(result.Cited))
				fmt.Fprintf(w, "Declared:  %s\n", formatNumbers(result.Declared))
				fmt.Fprintf(w, "Missing:   %s\n", formatNumbers(result.Missing))
				fmt.Fprintf(w, "Extra:     %s\n", formatNumbers(result.Extra))
				if len(result.Unknown) > 0 {
					fmt.Fprintf(w, "Unknown:   %s (not in catalog)\n", formatNumbers(result.Unknown))
				}
			}
			if !result.Valid || len(result.Unknown) > 0 {
				return errCitations
			}
			if !refsJSON {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ References block matches the citations")
			}
			return nil
		})
	},
}

var refsFixCmd = &cobra.Command{
	Use:   "fix <file-or-url>",
	Short: "Rebuild the references block from the inline citations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), refsTimeout)
		defer cancel()

		report, err := p.Check(ctx, args[0])
		if err != nil {
			if report != nil && refsJSON {
				_ = writeJSON(cmd.OutOrStdout(), report)
			}
			return err
		}

		if refsJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}

		if refsOut != "" {
			if err := os.WriteFile(refsOut, []byte(report.Fixed.HTML), 0644); err != nil {
				return fmt.Errorf("write %s: %w", refsOut, err)
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), report.Fixed.HTML)
		}

		if report.Fixed.WasModified {
			fmt.Fprintf(os.Stderr, "✓ References block rebuilt: %s\n", formatNumbers(report.Fixed.References))
		} else {
			fmt.Fprintf(os.Stderr, "✓ References block already matches the citations\n")
		}
		return nil
	},
}

var refsAuditCmd = &cobra.Command{
	Use:   "audit <file-or-url>",
	Short: "List claims whose expected references are not cited",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDocument(cmd, args[0], func(p *pipeline.Pipeline, html string) error {
			audit := p.Engine().Audit(html)
			if refsJSON {
				return writeJSON(cmd.OutOrStdout(), audit)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Required:  %s\n", formatNumbers(audit.Required))
			fmt.Fprintf(w, "Cited:     %s\n", formatNumbers(audit.Cited))
			fmt.Fprintf(w, "Uncited:   %s\n", formatNumbers(audit.Uncited))
			for _, m := range audit.Matches {
				fmt.Fprintf(w, "\n  [%d] %s (refs %s)\n      %q\n", m.Priority, m.Description, formatNumbers(m.Refs), m.Excerpt)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(refsCmd)
	refsCmd.AddCommand(refsRequiredCmd, refsValidateCmd, refsFixCmd, refsAuditCmd)

	refsCmd.PersistentFlags().BoolVar(&refsJSON, "json", false, "print JSON instead of text")
	refsCmd.PersistentFlags().DurationVar(&refsTimeout, "timeout", 2*time.Minute, "timeout for loading the document")
	refsFixCmd.Flags().StringVar(&refsOut, "out", "", "write the corrected HTML here instead of stdout")
}

// withDocument loads a document and hands its HTML to fn
func withDocument(cmd *cobra.Command, source string, fn func(p *pipeline.Pipeline, html string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), refsTimeout)
	defer cancel()

	doc, err := p.Fetcher().Load(ctx, source)
	if err != nil {
		return fmt.Errorf("load %s: %w", source, err)
	}
	if doc.Truncated {
		fmt.Fprintf(os.Stderr, "⚠️  %s exceeded %d bytes and was truncated\n", source, cfg.HTTP.MaxBodyBytes)
	}
	return fn(p, doc.HTML)
}
