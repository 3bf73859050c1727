package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"infomap/internal/ace"
	"infomap/internal/config"
	"infomap/internal/destination"
	"infomap/internal/embedding"
	"infomap/internal/executor"
	"infomap/internal/extract"
	"infomap/internal/generator"
	"infomap/internal/llm"
	"infomap/internal/logging"
	"infomap/internal/normalizer"
	"infomap/internal/pipeline"
	"infomap/internal/schema"
	"infomap/internal/source"
	"infomap/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workdir    string

	// Run flags
	specificFiles []string
	sourceDir     string
	outputDir     string

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "infomap",
	Short: "infomap - adaptive schema mapping for inconsistent spreadsheet extracts",
	Long: `infomap ingests inconsistently-labeled spreadsheet extracts and maps
their columns onto a fixed target schema.

Headers are cleaned and matched against the schema via embeddings; mappings
are synthesized as SQL, validated by execution, cached by header fingerprint
and improved over time through a reflect/curate feedback loop editing a
durable playbook.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workdir == "" {
			workdir, _ = os.Getwd()
		}
		path := configPath
		if path == "" {
			path = filepath.Join(workdir, "infomap.yaml")
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return logging.Initialize(workdir, logging.Options{
			Debug: verbose || cfg.Logging.Debug,
			Level: cfg.Logging.Level,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes one full pipeline run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mapping pipeline: read extracts, map them, export results",
	Long: `Processes every CSV extract in the source directory:
  1. Read and decode each file, locating the real header row
  2. Clean headers and look up the fingerprint cache
  3. On a miss, match headers semantically and synthesize a transformation
  4. Execute, validate and cache the transformation
  5. Export mapped rows as JSON records

Failed sheets are reported and skipped; the feedback loop updates the
playbook so future runs improve.`,
	RunE: runPipeline,
}

// playbookCmd manages the curated strategy playbook
var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect and edit the strategy playbook",
}

var playbookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all playbook entries",
	RunE:  playbookList,
}

var playbookShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print one playbook entry",
	Args:  cobra.ExactArgs(1),
	RunE:  playbookShow,
}

var playbookCreateCmd = &cobra.Command{
	Use:   "create [content]",
	Short: "Create a playbook entry",
	Args:  cobra.MinimumNArgs(1),
	RunE:  playbookCreate,
}

var playbookDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a playbook entry",
	Args:  cobra.ExactArgs(1),
	RunE:  playbookDelete,
}

var playbookWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the playbook directory for out-of-band edits",
	RunE:  playbookWatch,
}

// cacheCmd inspects the fingerprint cache
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the fingerprint cache",
}

var cacheLookupCmd = &cobra.Command{
	Use:   "lookup [headers...]",
	Short: "Look up the cached transformation for a header list",
	Long: `Cleans the given headers, computes their fingerprint and prints any
cached transformation. Header order matters; permuted lists have distinct
fingerprints.`,
	Args: cobra.MinimumNArgs(1),
	RunE: cacheLookup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workdir>/infomap.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workdir, "workdir", "w", "", "Working directory (default: current)")

	runCmd.Flags().StringSliceVar(&specificFiles, "files", nil, "Restrict the run to specific source files")
	runCmd.Flags().StringVar(&sourceDir, "source", "source", "Directory of raw extracts")
	runCmd.Flags().StringVar(&outputDir, "output", "processing", "Directory for mapped output")

	playbookCmd.AddCommand(playbookListCmd)
	playbookCmd.AddCommand(playbookShowCmd)
	playbookCmd.AddCommand(playbookCreateCmd)
	playbookCmd.AddCommand(playbookDeleteCmd)
	playbookCmd.AddCommand(playbookWatchCmd)
	cacheCmd.AddCommand(cacheLookupCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(playbookCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func openPlaybook() (*store.Playbook, error) {
	return store.NewPlaybook(cfg.Stores.PlaybookDir, cfg.Stores.PlaybookNamespace)
}

// runPipeline wires all components and executes one run.
func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cfg.PipelineTimeout())
	defer cancel()

	targetSchema, err := schema.Load(cfg.Mapping.SchemaPath)
	if err != nil {
		return err
	}
	logger.Info("Schema loaded",
		zap.String("path", cfg.Mapping.SchemaPath),
		zap.Int("items", len(targetSchema.Items)))

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding engine: %w", err)
	}

	client := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	})

	cache, err := store.NewMappingCache(cfg.Stores.CachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	playbook, err := openPlaybook()
	if err != nil {
		return err
	}

	extractor := extract.NewMappingExtractor(
		normalizer.NewMatcher(targetSchema, engine),
		generator.New(client, targetSchema, cfg.Mapping.Relation),
		executor.New(cfg.Mapping.Relation),
		cache,
		playbook,
		ace.NewLoop(client, playbook),
		extract.Options{
			MinConfidence: cfg.Mapping.MinConfidence,
			CachePolicy:   cfg.Mapping.CachePolicy,
		},
	)

	p := pipeline.New(
		[]pipeline.NamedStep{{Name: "csv", Step: source.NewCSVReader(sourceDir)}},
		[]pipeline.NamedStep{{Name: "mapping", Step: extractor}},
		[]pipeline.NamedStep{{Name: "json", Step: destination.NewJSONExporter(outputDir)}},
	)
	if len(specificFiles) > 0 {
		p.SetSpecificFiles(specificFiles)
	}

	return p.Run(ctx, func(line string) {
		fmt.Println(line)
	})
}

func playbookList(cmd *cobra.Command, args []string) error {
	playbook, err := openPlaybook()
	if err != nil {
		return err
	}
	entries, err := playbook.Overview()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Playbook is empty")
		return nil
	}
	for _, e := range entries {
		first := strings.SplitN(strings.TrimSpace(e.Content), "\n", 2)[0]
		fmt.Printf("%s  %s\n", e.ID, first)
	}
	return nil
}

func playbookShow(cmd *cobra.Command, args []string) error {
	playbook, err := openPlaybook()
	if err != nil {
		return err
	}
	entries, err := playbook.Overview()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == args[0] {
			fmt.Println(e.Content)
			return nil
		}
	}
	return fmt.Errorf("no playbook entry %q", args[0])
}

func playbookCreate(cmd *cobra.Command, args []string) error {
	playbook, err := openPlaybook()
	if err != nil {
		return err
	}
	id, err := playbook.Create(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", id)
	return nil
}

func playbookDelete(cmd *cobra.Command, args []string) error {
	playbook, err := openPlaybook()
	if err != nil {
		return err
	}
	if err := playbook.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

// playbookWatch reports out-of-band edits until interrupted.
func playbookWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(0)
	defer cancel()

	playbook, err := openPlaybook()
	if err != nil {
		return err
	}
	events, err := playbook.Watch(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", cfg.Stores.PlaybookDir)
	for id := range events {
		fmt.Printf("changed: %s\n", id)
	}
	return nil
}

func cacheLookup(cmd *cobra.Command, args []string) error {
	cache, err := store.NewMappingCache(cfg.Stores.CachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	cleaned := normalizer.CleanAll(args)
	fp := store.Fingerprint(cleaned)
	fmt.Printf("fingerprint: %s\n", store.ShortFingerprint(fp))

	entries, err := cache.LookupAll(fp)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no cached transformation")
		return nil
	}
	fmt.Printf("%d cached transformation(s), newest first:\n\n", len(entries))
	for i, sql := range entries {
		fmt.Printf("--- %d ---\n%s\n", i+1, sql)
	}
	return nil
}
