package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/nihongo-uy/examhub/internal/handler"
	appI18n "github.com/nihongo-uy/examhub/internal/i18n"
	"github.com/nihongo-uy/examhub/internal/model"
	"github.com/nihongo-uy/examhub/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examhub",
		Short: "Exam practice platform with random test generation",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), reloadCmd(), exportCmd(), createAdminCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examhub --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examhub.db", "SQLite database path")
	f.StringP("lang", "l", "es", "Default UI language (es, en)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-email", "", "Initial admin email (or set EXAMHUB_ADMIN_EMAIL)")
	f.String("admin-password", "", "Initial admin password (or set EXAMHUB_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import exams from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "examhub.db", "SQLite database path")
	f.Int64("user-id", 1, "User ID recorded as the content creator")
	f.Bool("validate-only", false, "Validate files without importing")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func reloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload <exam> <file>",
		Short: "Update an existing exam in place from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE:  runReload,
	}
	f := cmd.Flags()
	f.String("db", "examhub.db", "SQLite database path")
	f.Int64("user-id", 1, "User ID recorded as the content creator")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export completed test results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examhub.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin <email> <password>",
		Short: "Create an admin user, or promote an existing one",
		Args:  cobra.ExactArgs(2),
		RunE:  runCreateAdmin,
	}
	f := cmd.Flags()
	f.String("db", "examhub.db", "SQLite database path")
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

	v.SetEnvPrefix("EXAMHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examhub")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examhub")
	v.AddConfigPath("/etc/examhub")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-email"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	lang := v.GetString("lang")
	if !appI18n.IsSupported(lang) {
		slog.Warn("unsupported default language, using Spanish", "lang", lang)
		lang = "es"
	}
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.ServerConfig{
		SecureCookies: v.GetBool("secure-cookies"),
	}

	h, err := handler.New(db, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"secure_cookies", cfg.SecureCookies,
	)
	return http.ListenAndServe(addr, r)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userID := v.GetInt64("user-id")
	validateOnly := v.GetBool("validate-only")

	for _, path := range args {
		doc, err := readDocFile(path)
		if err != nil {
			return err
		}

		if validateOnly {
			valid, problems := model.ValidateExamDocument(doc)
			if !valid {
				fmt.Fprintf(os.Stderr, "%s:\n", path)
				for _, p := range problems {
					fmt.Fprintf(os.Stderr, "  %s\n", p)
				}
				return fmt.Errorf("%s: %d validation errors", path, len(problems))
			}
			fmt.Printf("%s: valid\n", path)
			continue
		}

		msg, exam, err := db.ImportExam(doc, userID)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		slog.Info("imported exam", "path", path, "exam_id", exam.ID)
		fmt.Println(msg)
	}

	return nil
}

func runReload(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	doc, err := readDocFile(args[1])
	if err != nil {
		return err
	}

	msg, exam, err := db.ReloadExam(doc, args[0], v.GetInt64("user-id"))
	if err != nil {
		return fmt.Errorf("reload %s: %w", args[0], err)
	}
	slog.Info("reloaded exam", "exam_id", exam.ID, "name", exam.Name)
	fmt.Println(msg)

	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
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

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	email, password := args[0], args[1]

	existing, err := db.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		if err := db.PromoteUser(existing.ID); err != nil {
			return fmt.Errorf("promote user: %w", err)
		}
		slog.Info("promoted user to admin", "email", email)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	slog.Info("created admin user", "email", email)

	return nil
}

func readDocFile(path string) (model.ExamDocument, error) {
	var doc model.ExamDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func seedAdmin(db *store.Store, email, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if email == "" || password == "" {
		return fmt.Errorf("admin credentials are required on first run: set --admin-email and --admin-password or the EXAMHUB_ADMIN_EMAIL and EXAMHUB_ADMIN_PASSWORD env vars")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "email", email)
	return nil
}
