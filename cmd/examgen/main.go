package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thanhvu/examgen/internal/bank"
	"github.com/thanhvu/examgen/internal/export"
	"github.com/thanhvu/examgen/internal/handler"
	appI18n "github.com/thanhvu/examgen/internal/i18n"
	"github.com/thanhvu/examgen/internal/llm"
	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/raster"
	"github.com/thanhvu/examgen/internal/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examgen",
		Short: "AI-powered math exam generator for Vietnamese high schools",
	}

	serve := serveCmd()
	root.AddCommand(serve, bankCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam generator server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("bank-db", ":memory:", "SQLite path for the question bank (:memory: rebuilds from the embedded catalog)")
	f.String("provider", "gemini", "Generation provider (gemini, openai)")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the generation provider")
	f.String("llm-model", "gemini-2.5-flash", "Model name")
	f.String("raster-url", "http://localhost:3000", "Document render service base URL")
	f.StringP("lang", "l", appI18n.DefaultLang, "UI language (vi, en)")
	f.Duration("generate-timeout", 90*time.Second, "Per-request generation timeout")
	f.Duration("session-idle", 2*time.Hour, "Idle time before a browser session is dropped")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /toan)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func bankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Dump the question bank catalog as JSON",
		RunE:  runBank,
	}
	f := cmd.Flags()
	f.String("bank-db", ":memory:", "SQLite path for the question bank")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("EXAMGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examgen")
	v.AddConfigPath("/etc/examgen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newGenerator builds the configured provider client. The returned closer
// is nil when the provider holds no connection.
func newGenerator(ctx context.Context, v *viper.Viper) (llm.Generator, io.Closer, error) {
	provider := strings.ToLower(v.GetString("provider"))
	key := v.GetString("llm-key")
	modelName := v.GetString("llm-model")

	switch provider {
	case llm.ProviderGemini:
		c, err := llm.NewGemini(ctx, key, modelName)
		if err != nil {
			return nil, nil, fmt.Errorf("create Gemini client: %w", err)
		}
		return c, c, nil
	case llm.ProviderOpenAI:
		c := llm.NewOpenAI(v.GetString("llm-url"), key, modelName)
		if err := c.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("LLM health check: %w", err)
		}
		return c, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store, err := bank.New(v.GetString("bank-db"))
	if err != nil {
		return fmt.Errorf("open question bank: %w", err)
	}
	defer store.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	generator, closer, err := newGenerator(cmd.Context(), v)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.Info("generation provider ready",
		"provider", v.GetString("provider"),
		"model", v.GetString("llm-model"),
	)

	exporter := export.New(raster.New(v.GetString("raster-url")))

	sessions := session.NewManager(v.GetDuration("session-idle"))
	go func() {
		for range time.Tick(15 * time.Minute) {
			if n := sessions.Prune(time.Now()); n > 0 {
				slog.Info("pruned idle sessions", "count", n)
			}
		}
	}()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.Config{
		BasePath:        basePath,
		SecureCookies:   v.GetBool("secure-cookies"),
		GenerateTimeout: v.GetDuration("generate-timeout"),
	}

	h, err := handler.New(store, generator, exporter, sessions, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("provider"),
		"model", v.GetString("llm-model"),
		"raster_url", v.GetString("raster-url"),
		"lang", lang,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runBank(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store, err := bank.New(v.GetString("bank-db"))
	if err != nil {
		return fmt.Errorf("open question bank: %w", err)
	}
	defer store.Close()

	catalog, err := store.Catalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	for i := range catalog {
		for j := range catalog[i].Chapters {
			for k := range catalog[i].Chapters[j].Topics {
				t := &catalog[i].Chapters[j].Topics[k]
				t.Questions, err = store.Questions(t.ID)
				if err != nil {
					return fmt.Errorf("load questions for %s: %w", t.ID, err)
				}
			}
		}
	}

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
