package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/config"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/conversation"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/logging"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/metrics"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/pacing"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/provider"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/server"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	settingsPath string
	envFile      string
	verbose      bool

	requestsLimit int
	requestsID    string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "TCP relay turning task descriptions into block programs via an LLM",
	Long: `relay accepts one task per TCP connection, runs it through a chain of
model prompts (generation, ordered correction rounds, conversion to
structured output) and writes the result back before closing the connection.

Run without a subcommand to serve.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for connections until interrupted",
	RunE:  runServe,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings and credential files if absent",
	RunE:  runInit,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the credentials and verify the model backend answers",
	RunE:  runCheck,
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Show recent entries from the request log",
	Long: `Prints the newest rows of the request log configured under
[storage] request_log, or a single row with --id.`,
	RunE: runRequests,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relay %s (%s)\n", Version, License)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", config.DefaultSettingsPath, "settings file (TOML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	requestsCmd.Flags().IntVarP(&requestsLimit, "limit", "n", 20, "number of rows to show")
	requestsCmd.Flags().StringVar(&requestsID, "id", "", "show only the request with this id")

	rootCmd.AddCommand(serveCmd, initCmd, checkCmd, requestsCmd, versionCmd)
}

// setup loads settings and builds the logger shared by every command.
func setup() (*config.Settings, *zap.Logger, func(), error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, cleanup, err := logging.New(logging.Options{File: settings.LogPath(), Verbose: verbose})
	if err != nil {
		return nil, nil, nil, err
	}
	return settings, logger, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := serve(cmd.Context(), settings, logger); err != nil {
		logger.Error("Server stopped", zap.Error(err))
		return err
	}
	return nil
}

func serve(ctx context.Context, settings *config.Settings, logger *zap.Logger) error {
	credsPath := settings.CredentialsPath()
	if err := config.EnsureCredentialFile(credsPath, logger); err != nil {
		return err
	}
	creds, err := config.LoadCredentials(credsPath)
	if err != nil {
		return err
	}

	llm, err := provider.Build(creds, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.HandlerOptions{
		ReadBuffer:     settings.Server.ReadBuffer,
		ReadTimeout:    settings.Server.ReadTimeout,
		RequestTimeout: settings.Server.RequestTimeout,
		Model:          llm.GetModel(),
	}

	if settings.Metrics.Listen != "" {
		m := metrics.New()
		llm = metrics.InstrumentProvider(llm, m)
		opts.Metrics = m
		go func() {
			if err := m.Serve(ctx, settings.Metrics.Listen, logger); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	if path := settings.RequestLogPath(); path != "" {
		requestLog, err := storage.NewRequestLog(path)
		if err != nil {
			return err
		}
		defer requestLog.Close()
		opts.RequestLog = requestLog
		logger.Info("Recording requests", zap.String("path", path))
	}

	pacer := pacing.New(settings.Pacing.Interval, settings.Pacing.Burst)
	orchestrator := conversation.NewOrchestrator(llm, pacer, settings.PromptsPath(), logger)
	srv := server.New(server.NewHandler(orchestrator, logger, opts), settings.Server.MaxWorkers, logger)

	err = srv.ListenAndServe(ctx, settings.Addr())
	logger.Info("Server stopped")
	return err
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefaultSettings(settingsPath); err != nil {
		return err
	}

	settings, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("Settings file ready", zap.String("path", settingsPath))
	return config.EnsureCredentialFile(settings.CredentialsPath(), logger)
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	creds, err := config.LoadCredentials(settings.CredentialsPath())
	if err != nil {
		return err
	}
	if _, err := config.LoadPrompts(settings.PromptsPath()); err != nil {
		return err
	}

	llm, err := provider.Build(creds, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := llm.Ping(ctx); err != nil {
		return err
	}

	logger.Info("Backend reachable", zap.String("model", llm.GetModel()))
	return nil
}

func runRequests(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}

	path := settings.RequestLogPath()
	if path == "" {
		return fmt.Errorf("no request log configured (set [storage] request_log in %s)", settingsPath)
	}
	if !config.FileExists(path) {
		return fmt.Errorf("request log %s does not exist", path)
	}

	requestLog, err := storage.NewRequestLog(path)
	if err != nil {
		return err
	}
	defer requestLog.Close()

	var entries []storage.RequestEntry
	if requestsID != "" {
		entry, err := requestLog.Load(cmd.Context(), requestsID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("request %s not found", requestsID)
		}
		entries = append(entries, *entry)
	} else {
		entries, err = requestLog.Recent(cmd.Context(), requestsLimit)
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tREMOTE\tMODEL\tSTATUS\tDURATION\tCALLS\tCRITIQUES\tREGENERATIONS\tIN\tOUT\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			e.ID,
			e.StartedAt.Local().Format(time.DateTime),
			e.RemoteAddr,
			e.Model,
			e.Status,
			e.Duration,
			e.ModelCalls,
			e.Critiques,
			e.Regenerations,
			e.RequestBytes,
			e.ResponseBytes,
			e.Error,
		)
	}
	return w.Flush()
}
