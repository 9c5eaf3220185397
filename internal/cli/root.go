package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "aclarai",
	Short: "aclarai - claims, concepts and a versioned knowledge graph from conversations",
	Long: `aclarai turns conversational Markdown into a knowledge graph.

It extracts verifiable atomic claims with a three-stage LLM pipeline
(selection, disambiguation, decomposition), deduplicates noun-phrase
concepts by embedding similarity, and keeps graph blocks in sync with
version-commented Markdown files.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aclarai %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.aclarai/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// envBindings maps config keys to extra environment variables
var envBindings = map[string][]string{
	"llm.api_key":    {"ACLARAI_LLM_API_KEY", "OPENAI_API_KEY"},
	"llm.provider":   {"ACLARAI_LLM_PROVIDER"},
	"llm.model":      {"ACLARAI_LLM_MODEL"},
	"llm.base_url":   {"ACLARAI_LLM_BASE_URL", "OLLAMA_BASE_URL"},
	"graph.uri":      {"ACLARAI_GRAPH_URI", "NEO4J_URI"},
	"graph.username": {"ACLARAI_GRAPH_USERNAME", "NEO4J_USER"},
	"graph.password": {"ACLARAI_GRAPH_PASSWORD", "NEO4J_PASSWORD"},
	"redis.addr":     {"ACLARAI_REDIS_ADDR", "REDIS_ADDR"},
	"redis.password": {"ACLARAI_REDIS_PASSWORD", "REDIS_PASSWORD"},
	"store.path":     {"ACLARAI_STORE_PATH"},
	"vault.root":     {"ACLARAI_VAULT_ROOT", "VAULT_PATH"},
}

// initConfig reads in config file, .env and ENV variables
func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".aclarai"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("ACLARAI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, envs := range envBindings {
		_ = viper.BindEnv(append([]string{key}, envs...)...)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file and environment
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.LLM.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "anthropic") {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *model.Config) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(cfg.Logging.Mode, level)
}

// expandHome resolves a leading ~/ against the home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
