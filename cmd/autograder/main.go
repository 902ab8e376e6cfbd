package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/handler"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

var defaultModels = []string{
	"openai/gpt-4o-mini",
	"google/gemini-2.0-flash-001",
	"meta-llama/llama-3.3-70b-instruct",
}

func main() {
	// A missing .env file is fine; everything can come from flags or env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autograder",
		Short: "Grade quiz submissions with local scoring and LLM assistance",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), batchCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `autograder --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addGradingFlags registers the flags every grading command shares.
func addGradingFlags(f *pflag.FlagSet) {
	f.String("llm-url", "https://openrouter.ai/api/v1", "OpenAI-compatible API base URL")
	f.String("llm-api-key", "", "API key for the LLM provider (or set AUTOGRADER_LLM_API_KEY)")
	f.StringSliceP("models", "m", defaultModels, "Model fallback chain, tried in order (repeatable)")
	f.Duration("llm-timeout", 0, "Per-request LLM timeout (0 = client default)")
	f.String("app-name", "autograder", "Application name sent to the provider")
	f.String("app-url", "", "Application URL sent to the provider")
	f.Bool("offline", false, "Grade without an LLM provider (heuristic subjective scoring)")
	f.String("prompt-variant", string(prompts.PromptStandard), "Grading prompt variant (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("fill-blank-policy", "banded", "Fill-in-the-blank credit policy (banded, flat)")
	f.Float64("fill-blank-full", 0, "Similarity threshold for full credit (0 = policy default)")
	f.Float64("fill-blank-partial", 0, "Similarity threshold for partial credit (0 = policy default)")
	f.Int("min-answer-length", grading.DefaultMinAnswerLength, "Minimum answer length in runes for heuristic credit")
}

func addLoggingFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "autograder.db", "SQLite database path")
	addGradingFlags(f)
	addLoggingFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored grading responses as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLoggingFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	if f := cmd.Flags().Lookup("llm-api-key"); f != nil {
		_ = v.BindPFlag(llm.APIKeyPath, f)
	}

	v.SetEnvPrefix("AUTOGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(llm.LegacyAPIKeyPath, "AUTOGRADER_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")

	v.SetConfigName("autograder")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/autograder")
	v.AddConfigPath("/etc/autograder")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func gradingConfig(v *viper.Viper) model.GradingConfig {
	return model.GradingConfig{
		PromptVariant:    v.GetString("prompt-variant"),
		Lang:             v.GetString("lang"),
		FillBlankPolicy:  v.GetString("fill-blank-policy"),
		FillBlankFull:    v.GetFloat64("fill-blank-full"),
		FillBlankPartial: v.GetFloat64("fill-blank-partial"),
		MinAnswerLength:  v.GetInt("min-answer-length"),
	}
}

// buildEngine creates the grading engine and the run metadata describing it.
// In offline mode no provider client is created.
func buildEngine(v *viper.Viper) (*grading.Engine, model.RunInfo, error) {
	cfg := gradingConfig(v)
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if err := appI18n.Init(cfg.Lang); err != nil {
		return nil, model.RunInfo{}, fmt.Errorf("init i18n: %w", err)
	}

	info := model.RunInfo{
		PromptVariant:   cfg.PromptVariant,
		FillBlankPolicy: cfg.FillBlankPolicy,
		Lang:            cfg.Lang,
	}

	var completer llm.Completer
	if v.GetBool("offline") {
		slog.Warn("offline mode: subjective answers get heuristic scores")
	} else {
		key, err := llm.ResolveAPIKey(v)
		if err != nil {
			return nil, info, fmt.Errorf("%w (or pass --offline)", err)
		}
		client, err := llm.New(llm.Config{
			BaseURL: v.GetString("llm-url"),
			APIKey:  key,
			Models:  modelList(v),
			Timeout: v.GetDuration("llm-timeout"),
			AppName: v.GetString("app-name"),
			AppURL:  v.GetString("app-url"),
			Logger:  slog.Default(),
		})
		if err != nil {
			return nil, info, fmt.Errorf("create LLM client: %w", err)
		}
		completer = client
		info.Models = client.Models()
	}

	engine, err := grading.NewFromConfig(completer, cfg, grading.WithLogger(slog.Default()))
	if err != nil {
		return nil, info, fmt.Errorf("grading config: %w", err)
	}
	return engine, info, nil
}

// modelList reads the fallback chain. Environment and config values may hold
// a single comma-separated string.
func modelList(v *viper.Viper) []string {
	var models []string
	for _, m := range v.GetStringSlice("models") {
		for _, part := range strings.Split(m, ",") {
			if part = strings.TrimSpace(part); part != "" {
				models = append(models, part)
			}
		}
	}
	return models
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	engine, info, err := buildEngine(v)
	if err != nil {
		return err
	}
	if err := db.SetRunInfo(info); err != nil {
		return fmt.Errorf("record run info: %w", err)
	}

	h := handler.New(engine, db, info.Lang, slog.Default())

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"models", info.Models,
		"llm_url", v.GetString("llm-url"),
		"lang", info.Lang,
		"prompt_variant", info.PromptVariant,
		"fill_blank_policy", info.FillBlankPolicy,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAll()
	if err != nil {
		return fmt.Errorf("export responses: %w", err)
	}
	return writeJSON(v.GetString("output"), export)
}

// writeJSON writes v as indented JSON to path, or stdout for "" and "-".
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
