package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/pipeline"
	"github.com/ppiankov/rxwizard/internal/wizard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	chatDomain      string
	chatOut         string
	chatLLM         bool
	chatLLMProvider string
	chatLLMModel    string
)

// chatCmd runs the wizard interactively
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run the content wizard interactively",
	Long: `Chat asks the wizard's questions one at a time on the terminal.

With --llm the finished brief is sent to the model, the references block of the
generated HTML is rebuilt from its inline citations, and the result is written
to --out. The transcript is saved next to it so the session can be replayed
with 'rxwizard step'.

Example:
  rxwizard chat --domain hcp-email
  rxwizard chat --domain social-media --llm --out post.html
  rxwizard chat --domain video --llm --llm-provider ollama`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatDomain, "domain", "", "content domain (hcp-email, social-media, video)")
	chatCmd.Flags().StringVar(&chatOut, "out", "", "output HTML path (default: <output.dir>/<domain>-<id>.html)")
	chatCmd.Flags().BoolVar(&chatLLM, "llm", false, "generate the document when the wizard completes")
	chatCmd.Flags().StringVar(&chatLLMProvider, "llm-provider", "", "LLM provider (openai, ollama)")
	chatCmd.Flags().StringVar(&chatLLMModel, "llm-model", "", "LLM model name")
	_ = chatCmd.MarkFlagRequired("domain")
}

func runChat(cmd *cobra.Command, args []string) error {
	domain, err := model.ParseDomain(chatDomain)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chatLLM {
		if err := enableLLM(cfg, chatLLMProvider, chatLLMModel); err != nil {
			return err
		}
	} else {
		cfg.LLM.Provider = ""
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	id := uuid.New().String()
	logger.Debug("chat session started", zap.String("id", id), zap.String("domain", domain.String()))

	s := &chatSession{
		id:       id,
		domain:   domain,
		pipeline: p,
		in:       bufio.NewScanner(cmd.InOrStdin()),
		out:      cmd.OutOrStdout(),
	}
	doc, err := s.run(cmd.Context())
	if err != nil {
		return err
	}

	dir := cfg.Output.Dir
	htmlPath := chatOut
	if htmlPath != "" {
		dir = filepath.Dir(htmlPath)
	} else {
		htmlPath = filepath.Join(dir, fmt.Sprintf("%s-%s.html", domain, id))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	transcriptPath := strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + ".transcript.json"
	if err := saveJSON(transcriptPath, s.messages); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Transcript saved: %s\n", transcriptPath)

	if doc == nil {
		if !chatLLM {
			fmt.Fprintf(os.Stderr, "  Re-run with --llm to generate the document.\n")
		}
		return nil
	}

	if err := os.WriteFile(htmlPath, []byte(doc.HTML), 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Document saved: %s\n", htmlPath)
	fmt.Fprintf(os.Stderr, "  References: %s\n", formatNumbers(doc.References))
	if len(doc.Audit.Uncited) > 0 {
		fmt.Fprintf(os.Stderr, "  ⚠️  Claims without their expected citation: %s\n", formatNumbers(doc.Audit.Uncited))
	}
	return nil
}

// chatSession holds the transcript of one interactive run
type chatSession struct {
	id       string
	domain   model.Domain
	pipeline *pipeline.Pipeline
	in       *bufio.Scanner
	out      io.Writer
	messages []model.Message
}

// run asks questions until the wizard completes or input ends
func (s *chatSession) run(ctx context.Context) (*pipeline.Document, error) {
	s.say(wizard.Opening(s.domain))

	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			if err := s.in.Err(); err != nil {
				return nil, fmt.Errorf("read input: %w", err)
			}
			return nil, nil
		}

		s.messages = append(s.messages, model.UserMessage(s.in.Text()))
		result, err := s.pipeline.Turn(ctx, s.domain, s.messages)
		if result != nil {
			s.say(result.Reply.Message)
		}
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", len(s.messages), err)
		}

		if result.Reply.ShouldGenerate {
			return result.Document, nil
		}
	}
}

func (s *chatSession) say(msg string) {
	s.messages = append(s.messages, model.AssistantMessage(msg))
	fmt.Fprintf(s.out, "%s\n", msg)
}

func saveJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return writeJSON(f, v)
}

func formatNumbers(nums []int) string {
	if len(nums) == 0 {
		return "none"
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
