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

	"github.com/applyflow/applyflow/internal/ai"
	"github.com/applyflow/applyflow/internal/ai/gemini"
	"github.com/applyflow/applyflow/internal/filtering"
	"github.com/applyflow/applyflow/internal/gateway"
	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/platform"
	"github.com/applyflow/applyflow/internal/queue"
	"github.com/applyflow/applyflow/internal/scoring"
	"github.com/applyflow/applyflow/internal/secrets"
	"github.com/applyflow/applyflow/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes             = "Yes"
	PromptNo              = "No"
	PromptBack            = "back"
	PromptReportByCompany = "Report by company"
	PromptManualApply     = "Apply postings in manual mode"
	PromptPostingsToFile  = "Dump postings to file"
	PromptAppendToExclude = "Append all postings to exclude file"

	defaultFallbackMessage = "Hello! I would like to apply for this position."
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the applyflow pipeline: filter postings and process the application queue",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("do-not-exclude-applied", "f", false, "do not exclude postings the history says were already applied to")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation if eligible postings are found")
	runCmd.Flags().StringP("exclude-file", "e", "", "file with posting IDs to exclude, one per line. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the applyflow", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.ProfileFile == "" {
		logger.Fatal("candidate profile is required under profile-file to score and apply to postings")
	}

	profile, err := jobs.LoadProfile(config.ProfileFile)
	if err != nil {
		logger.Fatal("loading the candidate profile", zap.Error(err))
	}

	prefs := config.Preferences
	if prefs == nil {
		prefs = &jobs.RunPreferences{}
	}
	if err := prefs.Validate(); err != nil {
		logger.Fatal("validating run preferences", zap.Error(err))
	}

	postings, err := getPostings(ctx, config, logger)
	if err != nil {
		logger.Fatal("getting postings", zap.Error(err))
	}

	logger.Info("getting postings", zap.Int("count", postings.Len()))

	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	fileStore, err := store.NewFileStore(config.storeDir())
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	excludedIDs, err := collectExcludedIDs(ctx, cmd, fileStore, logger)
	if err != nil {
		logger.Fatal("collecting excluded posting IDs", zap.Error(err))
	}

	engine := scoring.NewEngine()

	// Preview pass. The processor filters again on Start, the chain is
	// idempotent.
	eligible, err := filtering.Run(ctx, &filtering.Config{
		Preferences: prefs,
		ExcludedIDs: excludedIDs,
	}, filtering.Deps{
		Engine:  engine,
		Profile: profile,
		Logger:  logger,
	}, filtering.DefaultChain(), postings)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	if eligible.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return
	}

	processor := queue.New(&queue.Config{
		Preferences: prefs,
		ExcludedIDs: excludedIDs,
		Message:     applyMessage(config),
		MinDelay:    config.Apply.minDelay(),
		MaxDelay:    config.Apply.maxDelay(),
	}, &queue.Deps{
		Engine:   engine,
		Profile:  profile,
		Gateway:  buildGateway(config, logger),
		Store:    fileStore,
		Composer: buildComposer(ctx, config, logger),
		Logger:   logger,
	})

	processor.Subscribe(func(p queue.Progress) {
		fields := []zap.Field{
			zap.String("state", string(p.State)),
			zap.Int("queue", p.QueueLength),
			zap.Int("processed", p.Processed),
			zap.Int("successful", p.Successful),
			zap.Int("failed", p.Failed),
		}
		if p.Last != nil {
			fields = append(fields,
				zap.String("last_posting", p.Last.Posting.ID),
				zap.String("last_status", string(p.Last.Status)),
			)
		}
		logger.Info("queue progress", fields...)
	})

	stopOnInterrupt(ctx, cancel, processor, logger)

	action := PromptYes
	for {
		var err error
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = confirmPrompt().Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of postings", zap.Int("count", eligible.Len()))

		if err := handleAction(ctx, action, processor, eligible, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func confirmPrompt() *promptui.Select {
	items := []string{PromptYes, PromptNo, PromptReportByCompany, PromptManualApply, PromptPostingsToFile}
	if viper.GetString("exclude-file") != "" {
		items = append(items, PromptAppendToExclude)
	}

	return &promptui.Select{
		Label: "Proceed?",
		Items: items,
	}
}

func handleAction(ctx context.Context, action string, processor *queue.Processor, postings *jobs.Postings, logger *zap.Logger) error {
	switch action {
	case PromptYes:
		summary, err := processor.Start(ctx, postings)
		if err != nil {
			return err
		}
		logger.Info("queue finished",
			zap.Int("total", summary.Total),
			zap.Int("successful", summary.Successful),
			zap.Int("failed", summary.Failed),
		)
		return errExit
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptManualApply:
		return manualApply(ctx, processor, postings, logger)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(postings.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExclude:
		excludeFile := viper.GetString("exclude-file")
		if err := jobs.AppendExcludedIDs(excludeFile, postings.IDs()); err != nil {
			return err
		}
		logger.Info("appended to exclude file", zap.String("filename", excludeFile))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// manualApply lets the user pick postings one at a time. Every pick runs the
// queue with a single-item batch; applied postings leave the list.
func manualApply(ctx context.Context, processor *queue.Processor, postings *jobs.Postings, logger *zap.Logger) error {
	for {
		items := make([]string, 0, postings.Len())
		for _, jp := range postings.Items {
			items = append(items, fmt.Sprintf("%s %s / %s / %s", jp.ID, jp.Title, jp.Company, jp.URL))
		}

		postingPrompt := promptui.Select{
			Label: "Choose a posting and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := postingPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		postingID := strings.Split(selected, " ")[0]
		posting := postings.FindByID(postingID)
		if posting == nil {
			return fmt.Errorf("there is no such posting id %s", postingID)
		}

		summary, err := processor.Start(ctx, &jobs.Postings{Items: []*jobs.JobPosting{posting}})
		if err != nil {
			return err
		}

		logger.Info("manual apply finished",
			zap.String("posting_id", postingID),
			zap.Int("successful", summary.Successful),
			zap.Int("failed", summary.Failed),
		)

		kept, _ := postings.Keep(func(jp *jobs.JobPosting) bool { return jp.ID != postingID })
		postings.Items = kept.Items
	}
}

// getPostings loads the batch from the configured file, falling back to a
// platform search.
func getPostings(ctx context.Context, config *Config, logger *zap.Logger) (*jobs.Postings, error) {
	if config.PostingsFile != "" {
		return jobs.LoadPostings(config.PostingsFile)
	}

	if config.Search == nil {
		return nil, errors.New("either postings-file or a search section is required")
	}

	client, err := platformClient(config, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("starting the search", zap.String("query", config.Search.Query))

	return client.Search(ctx, config.Search)
}

// collectExcludedIDs merges the exclude file with the persisted application
// history, unless the escape flag keeps applied postings in play.
func collectExcludedIDs(ctx context.Context, cmd *cobra.Command, fileStore *store.FileStore, logger *zap.Logger) ([]string, error) {
	var ids []string

	excludeFile := viper.GetString("exclude-file")
	if excludeFile != "" {
		fromFile, err := jobs.ExcludedIDsFromFile(excludeFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded exclude file",
			zap.String("filename", excludeFile),
			zap.Int("count", len(fromFile)),
		)
		ids = append(ids, fromFile...)
	}

	if flag := cmd.Flag("do-not-exclude-applied"); flag != nil && strings.EqualFold(flag.Value.String(), "true") {
		return ids, nil
	}

	records, err := fileStore.LoadApplications(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.Status == queue.StatusSuccess {
			ids = append(ids, record.JobID)
		}
	}

	return ids, nil
}

func buildGateway(config *Config, logger *zap.Logger) gateway.Gateway {
	if config.Apply != nil && strings.EqualFold(config.Apply.Gateway, "platform") {
		client, err := platformClient(config, logger)
		if err != nil {
			logger.Fatal("building the platform gateway", zap.Error(err))
		}
		return client
	}

	var opts []gateway.SimulatedOption
	if config.Apply != nil && config.Apply.Simulated != nil {
		sim := config.Apply.Simulated
		if sim.FailureRate > 0 {
			opts = append(opts, gateway.WithFailureRate(sim.FailureRate))
		}
		if sim.Seed != 0 {
			opts = append(opts, gateway.WithSeed(sim.Seed))
		}
	}

	logger.Info("using the simulated submission gateway")
	return gateway.NewSimulated(opts...)
}

func buildComposer(ctx context.Context, config *Config, logger *zap.Logger) ai.Composer {
	if config.AI == nil || !config.AI.Enabled {
		return nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		logger.Warn("skipping AI message composer",
			zap.String("reason", "unsupported provider"),
			zap.String("provider", config.AI.Provider),
		)
		return nil
	}

	if config.AI.Gemini == nil {
		logger.Warn("skipping AI message composer", zap.String("reason", "gemini configuration is required"))
		return nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.AI.Gemini.APIKeyFile,
	})
	if err != nil {
		logger.Warn("skipping AI message composer",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file or GEMINI_API_KEY_FILE"),
		)
		return nil
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", config.AI.Gemini.Model),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, config.AI.Gemini.Model, config.AI.Gemini.MaxRetries, genLogger)
	if err != nil {
		logger.Warn("skipping AI message composer", zap.Error(err))
		return nil
	}

	return gemini.NewComposer(generator, genLogger, config.AI.Gemini.MaxLogLength)
}

func platformClient(config *Config, logger *zap.Logger) (*platform.Client, error) {
	token, err := resolveToken(config)
	if err != nil {
		return nil, fmt.Errorf(
			"loading the platform token: %w (set APPLYFLOW_TOKEN_FILE environment variable or the 'token-file' key in the configuration file)",
			err,
		)
	}

	client := platform.New(logger, token)
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	return client, nil
}

func resolveToken(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	if tokenFile == "" {
		return "", errors.New("platform token file is not configured")
	}

	return secrets.Load(secrets.Source{
		Name: "platform token",
		File: tokenFile,
	})
}

func applyMessage(config *Config) string {
	if config.Apply != nil && config.Apply.Message != "" {
		return config.Apply.Message
	}
	return defaultFallbackMessage
}

// stopOnInterrupt turns the first interrupt into a graceful stop and the
// second one into a hard cancellation.
func stopOnInterrupt(ctx context.Context, cancel context.CancelFunc, processor *queue.Processor, logger *zap.Logger) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-signals:
			logger.Info("interrupt received, stopping after the in-flight item")
			processor.Stop()
		case <-ctx.Done():
			return
		}

		select {
		case <-signals:
			logger.Warn("second interrupt received, cancelling the run")
			cancel()
		case <-ctx.Done():
		}
	}()
}
