package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	stepDomain      string
	stepTranscript  string
	stepLLM         bool
	stepLLMProvider string
	stepLLMModel    string
)

// stepCmd replays a transcript and prints the wizard's next reply
var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Replay a transcript and print the next wizard step as JSON",
	Long: `Step rebuilds the conversation state from a transcript and computes the
wizard's reply to the latest user message.

The transcript is a JSON array of {"role": "user"|"assistant", "content": "..."}
objects. Nothing is stored between calls: the whole transcript is replayed.

Example:
  rxwizard step --domain social-media --transcript chat.json
  cat chat.json | rxwizard step --domain hcp-email --transcript -`,
	Args: cobra.NoArgs,
	RunE: runStep,
}

func init() {
	rootCmd.AddCommand(stepCmd)

	stepCmd.Flags().StringVar(&stepDomain, "domain", "", "content domain (hcp-email, social-media, video)")
	stepCmd.Flags().StringVar(&stepTranscript, "transcript", "-", "transcript JSON file, or - for stdin")
	stepCmd.Flags().BoolVar(&stepLLM, "llm", false, "generate the document when the wizard completes")
	stepCmd.Flags().StringVar(&stepLLMProvider, "llm-provider", "", "LLM provider (openai, ollama)")
	stepCmd.Flags().StringVar(&stepLLMModel, "llm-model", "", "LLM model name")
	_ = stepCmd.MarkFlagRequired("domain")
}

func runStep(cmd *cobra.Command, args []string) error {
	domain, err := model.ParseDomain(stepDomain)
	if err != nil {
		return err
	}

	messages, err := readTranscript(stepTranscript, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if stepLLM {
		if err := enableLLM(cfg, stepLLMProvider, stepLLMModel); err != nil {
			return err
		}
	} else {
		cfg.LLM.Provider = ""
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.LLM.Timeout+30)*time.Second)
	defer cancel()

	result, err := p.Turn(ctx, domain, messages)
	if result != nil {
		if encErr := writeJSON(cmd.OutOrStdout(), result); encErr != nil {
			return encErr
		}
	}
	if err != nil && pipeline.IsFatal(err) {
		return fmt.Errorf("generated document cannot be backed by the catalog: %w", err)
	}
	return err
}

// readTranscript decodes a JSON message array from a file or, for "-", from stdin
func readTranscript(path string, stdin io.Reader) ([]model.Message, error) {
	var r io.Reader = stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var messages []model.Message
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	for i, m := range messages {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			return nil, fmt.Errorf("transcript message %d: unknown role %q", i, m.Role)
		}
	}
	return messages, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
