package cmd

import (
	"log"
	"time"

	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/applyflow/applyflow/internal/platform"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "applyflow"

	defaultStoreDir = ".applyflow"
)

type Config struct {
	ProfileFile  string                 `mapstructure:"profile-file"`
	PostingsFile string                 `mapstructure:"postings-file"`
	ExcludeFile  string                 `mapstructure:"exclude-file"`
	StoreDir     string                 `mapstructure:"store-dir"`
	UserAgent    string                 `mapstructure:"user-agent"`
	TokenFile    string                 `mapstructure:"token-file"`
	Preferences  *jobs.RunPreferences   `mapstructure:"preferences"`
	Search       *platform.SearchParams `mapstructure:"search"`
	Apply        *ApplyConfig           `mapstructure:"apply"`
	AI           *AIConfig              `mapstructure:"ai"`
}

type ApplyConfig struct {
	Message string `mapstructure:"message"`
	// Gateway selects where applications go: "simulated" (default) or
	// "platform".
	Gateway   string           `mapstructure:"gateway"`
	MinDelay  time.Duration    `mapstructure:"min-delay"`
	MaxDelay  time.Duration    `mapstructure:"max-delay"`
	Simulated *SimulatedConfig `mapstructure:"simulated"`
}

type SimulatedConfig struct {
	FailureRate float64 `mapstructure:"failure-rate"`
	Seed        int64   `mapstructure:"seed"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "applyflow scores job postings against a candidate profile and drives a rate-limited application queue",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("token-file", "APPLYFLOW_TOKEN_FILE"); err != nil {
		log.Fatalf("binding APPLYFLOW_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is applyflow.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("store-dir", "", "directory for the queue snapshot and application history (default is "+defaultStoreDir+")")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("store-dir", rootCmd.PersistentFlags().Lookup("store-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Only the run command is unusable without a config file. The other
	// commands work from flags alone.
	if err := viper.ReadInConfig(); err != nil && runCmd.CalledAs() != "" {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// minDelay and maxDelay tolerate a missing apply section; the queue falls
// back to its own defaults on zero values.
func (a *ApplyConfig) minDelay() time.Duration {
	if a == nil {
		return 0
	}
	return a.MinDelay
}

func (a *ApplyConfig) maxDelay() time.Duration {
	if a == nil {
		return 0
	}
	return a.MaxDelay
}

func (c *Config) storeDir() string {
	if c != nil && c.StoreDir != "" {
		return c.StoreDir
	}
	return defaultStoreDir
}
