package cmd

import (
	"log"
	"time"

	"github.com/jobcatcher/jobcatcher/internal/jobsource"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobcatcher"
)

type Config struct {
	Search      *SearchConfig   `mapstructure:"search"`
	Feeds       []string        `mapstructure:"feeds"`
	ExcludeFile string          `mapstructure:"exclude-file"`
	Resume      *ResumeConfig   `mapstructure:"resume"`
	AI          *AIConfig       `mapstructure:"ai"`
	Email       *EmailConfig    `mapstructure:"email"`
	Telegram    *TelegramConfig `mapstructure:"telegram"`
	Pipeline    *PipelineConfig `mapstructure:"pipeline"`
	History     *HistoryConfig  `mapstructure:"history"`
	Watch       *WatchConfig    `mapstructure:"watch"`
}

type SearchConfig struct {
	jobsource.SearchParams `mapstructure:",squash"`

	APIKeyFile string `mapstructure:"api-key-file"`
	CX         string `mapstructure:"cx"`
}

type ResumeConfig struct {
	TemplateFile  string `mapstructure:"template-file"`
	CandidateName string `mapstructure:"candidate-name"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type EmailConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SMTPHost      string `mapstructure:"smtp-host"`
	SMTPPort      int    `mapstructure:"smtp-port"`
	From          string `mapstructure:"from"`
	PasswordFile  string `mapstructure:"password-file"`
	SubjectPrefix string `mapstructure:"subject-prefix"`
}

type TelegramConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	TokenFile string `mapstructure:"token-file"`
	ChatID    string `mapstructure:"chat-id"`
}

type PipelineConfig struct {
	Workers     int           `mapstructure:"workers"`
	MaxPostings int           `mapstructure:"max-postings"`
	CallTimeout time.Duration `mapstructure:"call-timeout"`
	RateLimit   float64       `mapstructure:"rate-limit"`
	RateBurst   int           `mapstructure:"rate-burst"`
	OutputDir   string        `mapstructure:"output-dir"`
	LockFile    string        `mapstructure:"lock-file"`
}

type HistoryConfig struct {
	File string `mapstructure:"file"`
}

type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobcatcher is a cli agent that finds job postings, tailors a resume to them and emails it to recruiters",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envBindings := map[string]string{
		"search.api-key-file":    "GOOGLE_API_KEY_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"email.password-file":    "SMTP_PASSWORD_FILE",
		"telegram.token-file":    "TELEGRAM_TOKEN_FILE",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobcatcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
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
