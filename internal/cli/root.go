package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/logging"
	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile     string
	verbose     bool
	catalogPath string
	noCache     bool
	logger      = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rxwizard",
	Short: "rxwizard - guided pharmaceutical content wizard with reference compliance",
	Long: `rxwizard walks a brand team through a short scripted conversation
(HCP email, social media post or video script), generates the content, and
keeps its citations honest.

Every inline citation is checked against an approved reference catalog.
The references block is rebuilt from what the body actually cites, the
base reference is always present, and numbers outside the catalog are
rejected rather than invented.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync(logger)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and the built-in catalog version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("rxwizard %s\n", Version)
		if c, err := catalog.Default(); err == nil {
			fmt.Printf("built-in catalog %s (%s)\n", c.Version(), c.Product())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.rxwizard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "reference catalog YAML (default: built-in catalog)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the compliance result cache")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("catalog.path", rootCmd.PersistentFlags().Lookup("catalog"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".rxwizard"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match RXWIZARD_*, e.g. RXWIZARD_LLM_MODEL
	viper.SetEnvPrefix("RXWIZARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv()

	// A missing config file is fine; a broken one is reported
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

// configKeys lists every settable key so environment-only values reach Unmarshal
var configKeys = []string{
	"catalog.path",
	"llm.provider", "llm.model", "llm.base_url", "llm.timeout", "llm.max_tokens", "llm.temperature",
	"http.timeout", "http.user_agent", "http.max_body_bytes", "http.respect_robots",
	"http.http_proxy", "http.https_proxy", "http.no_proxy",
	"cache.enabled", "cache.dir", "cache.memory_ttl", "cache.disk_ttl",
	"concurrency.workers", "concurrency.link_checkers",
	"rate_limiting.requests_per_second", "rate_limiting.burst_size",
	"output.verbose", "output.dir",
}

func bindEnv() {
	for _, key := range configKeys {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("llm.api_key", "RXWIZARD_LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("llm.base_url", "RXWIZARD_LLM_BASE_URL", "OLLAMA_BASE_URL")
}

// loadConfig layers the config file, environment and flags over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

// loadCatalog returns the configured catalog or the built-in one
func loadCatalog(cfg *model.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Catalog.Path)
}

// newPipeline builds a pipeline from the resolved configuration
func newPipeline(cfg *model.Config) (*pipeline.Pipeline, error) {
	c, err := loadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Debug("catalog loaded",
		zap.String("version", c.Version()),
		zap.String("product", c.Product()),
		zap.Int("references", len(c.Numbers())),
	)
	return pipeline.NewPipeline(cfg, c, logger), nil
}

// enableLLM applies --llm style flags and checks the provider has what it needs
func enableLLM(cfg *model.Config, provider, modelName string) error {
	if provider != "" {
		cfg.LLM.Provider = strings.ToLower(provider)
	}
	if modelName != "" {
		cfg.LLM.Model = modelName
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return nil
}
