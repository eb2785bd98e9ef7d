package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jobcatcher/jobcatcher/internal/ai"
	"github.com/jobcatcher/jobcatcher/internal/ai/gemini"
	"github.com/jobcatcher/jobcatcher/internal/filtering"
	"github.com/jobcatcher/jobcatcher/internal/history"
	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	"github.com/jobcatcher/jobcatcher/internal/logger"
	"github.com/jobcatcher/jobcatcher/internal/notify"
	"github.com/jobcatcher/jobcatcher/internal/pipeline"
	"github.com/jobcatcher/jobcatcher/internal/resume"
	"github.com/jobcatcher/jobcatcher/internal/scheduler"
	"github.com/jobcatcher/jobcatcher/internal/secrets"

	"github.com/gofrs/flock"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptReportBySource      = "Report by source"
	PromptPostingsToFile      = "Dump postings to file"
	PromptAppendToExcludeFile = "Append all postings to exclude file"

	defaultLockFile      = "jobcatcher.lock"
	defaultWatchInterval = 30 * time.Minute
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportBySource, PromptPostingsToFile, PromptAppendToExcludeFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the jobcatcher main command",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("watch", "w", false, "keep running passes on the configured interval")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation if found suitable postings")
	runCmd.Flags().Bool("dry-run", false, "tailor resumes and write them to the output directory instead of emailing")
	runCmd.Flags().BoolP("do-not-exclude-sent", "f", false, "do not exclude postings already emailed in previous runs")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobcatcher", zap.String("version", version))

	// the config carries secret file paths only, never secret values
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Resume == nil || config.Resume.TemplateFile == "" {
		logger.Fatal("resume template file is required under resume.template-file to tailor resumes")
	}

	template, err := resume.LoadTemplate(config.Resume.TemplateFile)
	if err != nil {
		logger.Fatal("loading resume template", zap.Error(err))
	}

	sources, err := buildSources(config, logger)
	if err != nil {
		logger.Fatal("building job sources", zap.Error(err))
	}

	tailor, err := newTailor(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building resume tailor", zap.Error(err))
	}

	dryRun := flagEnabled(cmd, "dry-run")

	var mailer *notify.Mailer
	if config.Email != nil && config.Email.Enabled {
		mailer, err = newMailer(config.Email, logger)
		if err != nil {
			logger.Fatal("building mailer", zap.Error(err))
		}
		if name := strings.TrimSpace(config.Resume.CandidateName); name != "" {
			mailer.AttachmentName = strings.ReplaceAll(strings.ToLower(name), " ", "_") + "_resume.txt"
		}
	} else if !dryRun {
		logger.Warn("email is not enabled; forcing dry-run mode")
		dryRun = true
	}

	var status *notify.Telegram
	if config.Telegram != nil && config.Telegram.Enabled {
		status, err = newStatusReporter(config.Telegram, logger)
		if err != nil {
			logger.Fatal("building telegram status reporter", zap.Error(err))
		}
	}

	var store *history.Store
	if config.History != nil && config.History.File != "" {
		store, err = history.Open(config.History.File)
		if err != nil {
			logger.Fatal("opening history store", zap.Error(err))
		}
		defer store.Close()
	}

	pipelineCfg := config.Pipeline
	if pipelineCfg == nil {
		pipelineCfg = &PipelineConfig{}
	}

	deps := &pipeline.Deps{
		Sources:  sources,
		Filters:  prepareFilters(cmd, config),
		Template: template,
		Tailor:   tailor,
		Logger:   logger,
	}
	if mailer != nil {
		deps.Notifier = mailer
	}
	if status != nil {
		deps.Status = status
	}
	if store != nil {
		deps.History = store
		deps.Records = store
	}

	pl := pipeline.New(&pipeline.Config{
		Workers:     pipelineCfg.Workers,
		MaxPostings: pipelineCfg.MaxPostings,
		CallTimeout: pipelineCfg.CallTimeout,
		RateLimit:   pipelineCfg.RateLimit,
		RateBurst:   pipelineCfg.RateBurst,
		OutputDir:   pipelineCfg.OutputDir,
		DryRun:      dryRun,
	}, deps)

	lockPath := pipelineCfg.LockFile
	if lockPath == "" {
		lockPath = defaultLockFile
	}

	watch := flagEnabled(cmd, "watch")
	autoApprove := watch || flagEnabled(cmd, "auto-approve")

	pass := func(ctx context.Context) error {
		return runPass(ctx, pl, lockPath, autoApprove, logger)
	}

	if watch {
		interval := defaultWatchInterval
		if config.Watch != nil && config.Watch.Interval > 0 {
			interval = config.Watch.Interval
		}
		scheduler.Every(ctx, interval, "pipeline pass", logger, pass)
		return
	}

	if err := pass(ctx); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

// runPass executes one guarded pipeline pass. The advisory file lock keeps
// concurrent invocations (watch mode, cron, a second shell) from overlapping.
func runPass(ctx context.Context, pl *pipeline.Pipeline, lockPath string, autoApprove bool, logger *zap.Logger) error {
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring pass lock: %w", err)
	}
	if !locked {
		logger.Warn("another pass holds the lock, skipping", zap.String("lock", lockPath))
		return nil
	}
	defer lock.Unlock()

	if autoApprove {
		result, err := pl.Run(ctx)
		if err != nil {
			return err
		}
		logPassResult(logger, result)
		return nil
	}

	postings, err := pl.Collect(ctx)
	if err != nil {
		return err
	}

	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return nil
	}

	for {
		logger.Info("current list of postings", zap.Int("count", postings.Len()))

		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := handleAction(ctx, action, pl, postings, logger); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			return err
		}
	}
}

func handleAction(ctx context.Context, action string, pl *pipeline.Pipeline, postings *jobsource.Postings, logger *zap.Logger) error {
	switch action {
	case PromptYes:
		logPassResult(logger, pl.Process(ctx, postings))
		return errExit
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReportBySource:
		pretty, _ := json.MarshalIndent(postings.ReportBySource(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		excludeFile := viper.GetString("exclude-file")
		if excludeFile == "" {
			return errors.New("exclude file is not configured")
		}

		excluded, err := jobsource.GetExcludedPostingsFromFile(excludeFile)
		if err != nil {
			return err
		}

		excluded.Append(postings.ToExcluded())
		if err := excluded.ToFile(excludeFile); err != nil {
			return err
		}

		logger.Info("appended to exclude file", zap.String("filename", excludeFile))

		postings.Exclude(jobsource.PostingIDField, excluded.PostingIDs())
		if postings.Len() == 0 {
			logger.Info("exiting", zap.String("reason", "no postings left"))
			return errExit
		}
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func logPassResult(logger *zap.Logger, result *pipeline.Result) {
	logger.Info("pass finished",
		zap.Int("fetched", result.Fetched),
		zap.Int("eligible", result.Eligible),
		zap.Int("sent", result.Sent),
		zap.Int("skipped_no_contact", result.SkippedNoContact),
		zap.Int("tailoring_failures", result.GenerationFailures),
		zap.Int("delivery_failures", result.DeliveryFailures),
	)
}

func buildSources(config *Config, logger *zap.Logger) ([]jobsource.Source, error) {
	var sources []jobsource.Source

	if config.Search != nil && strings.TrimSpace(config.Search.Query) != "" {
		apiKey, err := secrets.Load(secrets.Source{
			Name: "google api key",
			File: config.Search.APIKeyFile,
			Env:  "GOOGLE_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set search.api-key-file or GOOGLE_API_KEY_FILE)", err)
		}

		if strings.TrimSpace(config.Search.CX) == "" {
			return nil, errors.New("search.cx is required for the custom search provider")
		}

		sources = append(sources, jobsource.New(apiKey, config.Search.CX, &config.Search.SearchParams, logger))
	}

	for _, feed := range config.Feeds {
		sources = append(sources, jobsource.NewFeed(feed, logger))
	}

	if len(sources) == 0 {
		return nil, errors.New("no job sources configured: set search.query or feeds")
	}

	return sources, nil
}

func newTailor(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Tailor, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required under ai.gemini")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewTailor(generator, logger, cfg.Gemini.MaxLogLength), nil
}

func newMailer(cfg *EmailConfig, logger *zap.Logger) (*notify.Mailer, error) {
	password, err := secrets.Load(secrets.Source{
		Name: "smtp password",
		File: cfg.PasswordFile,
		Env:  "SMTP_PASSWORD",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set email.password-file or SMTP_PASSWORD_FILE)", err)
	}

	return notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, password, cfg.SubjectPrefix, logger)
}

func newStatusReporter(cfg *TelegramConfig, logger *zap.Logger) (*notify.Telegram, error) {
	token, err := secrets.Load(secrets.Source{
		Name: "telegram token",
		File: cfg.TokenFile,
		Env:  "TELEGRAM_TOKEN",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set telegram.token-file or TELEGRAM_TOKEN_FILE)", err)
	}

	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram.chat-id is required when telegram is enabled")
	}

	return notify.NewTelegram(token, cfg.ChatID, logger), nil
}

func prepareFilters(cmd *cobra.Command, config *Config) []filtering.Filter {
	historyFilter := filtering.NewHistory()
	if flagEnabled(cmd, "do-not-exclude-sent") {
		historyFilter.Disable("requested by the do-not-exclude-sent flag")
	}

	var keywords []string
	if config.Search != nil {
		keywords = config.Search.Keywords
	}

	return []filtering.Filter{
		filtering.NewKeywords(keywords),
		filtering.NewExcludeFile(viper.GetString("exclude-file")),
		historyFilter,
	}
}

func flagEnabled(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flag(name)
	return flag != nil && strings.EqualFold(flag.Value.String(), "true")
}
