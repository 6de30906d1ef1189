package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rentatutor/rentatutor/internal/handler"
	appI18n "github.com/rentatutor/rentatutor/internal/i18n"
	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/llm"
	"github.com/rentatutor/rentatutor/internal/llm/prompts"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
	"github.com/rentatutor/rentatutor/internal/navigator"
	"github.com/rentatutor/rentatutor/internal/store"
	"github.com/rentatutor/rentatutor/internal/tui"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rentatutor",
		Short: "Tutoring marketplace prototype with live sessions",
	}

	serve := serveCmd()
	root.AddCommand(serve, reportCmd(), simulateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `rentatutor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the marketplace web server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", ":memory:", "SQLite database path (:memory: resets on restart)")
	f.StringP("lang", "l", "en", "Default UI language (en, fr)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /tutor)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.Duration("visitor-idle-ttl", 2*time.Hour, "Forget visitors idle for longer than this")
	addSessionFlags(f)
	addLogFlags(f)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the administrator reports as JSON",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.String("db", ":memory:", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an instant-help session in the terminal",
		RunE:  runSimulate,
	}
	f := cmd.Flags()
	f.String("db", ":memory:", "SQLite database path")
	f.StringP("subject", "s", "Mathematics", "Session subject")
	f.IntP("minutes", "m", model.PriceTiers[0].Minutes, "Session length in minutes ("+tierChoices()+")")
	addSessionFlags(f)
	addLogFlags(f)
	return cmd
}

// tierChoices lists the bookable session lengths, e.g. "10, 20 or 30".
func tierChoices() string {
	mins := make([]string, len(model.PriceTiers))
	for i, t := range model.PriceTiers {
		mins[i] = strconv.Itoa(t.Minutes)
	}
	if len(mins) < 2 {
		return strings.Join(mins, "")
	}
	return strings.Join(mins[:len(mins)-1], ", ") + " or " + mins[len(mins)-1]
}

type flagSet interface {
	String(name, value, usage string) *string
	Duration(name string, value time.Duration, usage string) *time.Duration
}

func addSessionFlags(f flagSet) {
	f.Duration("reply-delay", live.DefaultReplyDelay, "How long the tutor takes to answer a chat message")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty = canned replies)")
	f.String("llm-key", "", "API key for the LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.VariantStandard), "Tutor persona (patient, standard, concise)")
}

func addLogFlags(f flagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("RENTATUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("rentatutor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/rentatutor")
	v.AddConfigPath("/etc/rentatutor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// responderFor picks the tutor side of live sessions: a model when an
// endpoint is configured, canned replies otherwise.
func responderFor(v *viper.Viper) (live.Responder, error) {
	url := v.GetString("llm-url")
	if url == "" {
		return live.CannedResponder{}, nil
	}
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}
	slog.Info("tutor replies from LLM", "url", url, "model", v.GetString("llm-model"), "variant", variant)
	return llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), prompts.Variant(variant)), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	responder, err := responderFor(v)
	if err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		BasePath:       basePath,
		SecureCookies:  v.GetBool("secure-cookies"),
		ReplyDelay:     v.GetDuration("reply-delay"),
		VisitorIdleTTL: v.GetDuration("visitor-idle-ttl"),
	}

	visitors := navigator.NewRegistry(navigator.Config{
		Actors: db,
		Lifecycle: live.Options{
			Responder:  responder,
			ReplyDelay: cfg.ReplyDelay,
		},
		OnSessionClosed: func(actor model.Actor, desc model.SessionDescriptor, snap live.Snapshot) {
			if snap.Rating == nil {
				return
			}
			if err := db.RecordSession(actor, desc, *snap.Rating, time.Now()); err != nil {
				slog.Error("record session", "student", actor.ID, "tutor", desc.TutorID, "error", err)
			}
		},
	})
	defer visitors.Shutdown()
	go visitors.Run(ctx, time.Minute, cfg.VisitorIdleTTL)

	h, err := handler.New(db, visitors, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", srv.Addr,
			"lang", lang,
			"base_path", basePath,
			"reply_delay", cfg.ReplyDelay,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(cmd.Context(), v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	report, err := db.ExportReport(time.Now())
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
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
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(ctx, v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	student, err := db.ActorByRole(model.RoleStudent)
	if err != nil {
		return fmt.Errorf("load student: %w", err)
	}

	req, err := market.NewSessionRequest(v.GetString("subject"), v.GetInt("minutes"))
	if err != nil {
		return err
	}
	desc := market.Match(req)

	responder, err := responderFor(v)
	if err != nil {
		return err
	}

	sess, err := live.Start(desc, live.Options{
		Responder:  responder,
		ReplyDelay: v.GetDuration("reply-delay"),
		OnClosed: func(snap live.Snapshot) {
			if err := db.RecordSession(*student, desc, *snap.Rating, time.Now()); err != nil {
				slog.Error("record session", "error", err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.Teardown()

	snap, err := tui.Run(ctx, sess)
	if err != nil {
		return err
	}
	if snap.Rating == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Session left without a rating.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s with %s: %d messages, rated %d/5, charged %s\n",
		desc.Subject, desc.TutorName, len(snap.Messages), snap.Rating.Stars, model.Money(desc.Price))
	return nil
}
