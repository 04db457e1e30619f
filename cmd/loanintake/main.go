package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/crestline/loanintake/internal/api"
	"github.com/crestline/loanintake/internal/engine"
	"github.com/crestline/loanintake/internal/export"
	"github.com/crestline/loanintake/internal/genai"
	"github.com/crestline/loanintake/internal/kb"
	"github.com/crestline/loanintake/internal/lockfile"
	"github.com/crestline/loanintake/internal/messaging"
	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/registry"
	"github.com/crestline/loanintake/internal/scheduler"
	"github.com/crestline/loanintake/internal/store"
	"github.com/crestline/loanintake/internal/upload"
	"github.com/crestline/loanintake/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for loan intake state data
	DefaultStateDir = "/var/lib/loanintake"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "loanintake.db"
	// DefaultUploadDirName is the directory under the state dir for documents
	DefaultUploadDirName = "uploads"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if *flags.chat {
		if err := runChat(); err != nil {
			slog.Error("Interactive intake failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Only one daemon may own a state directory at a time.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping loan intake service with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "kb_dir", *flags.kbDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("Loan intake service failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Loan intake service exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver     string
	DatabaseURL  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	KBDir        string
	ReminderCron string
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDriver     *string
	dbDSN        *string
	apiAddr      *string
	kbDir        *string
	reminderCron *string
	chat         *bool
}

// initializeLogger sets up structured logging. LOANINTAKE_DEBUG=false
// raises the level to Info.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LOANINTAKE_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:     os.Getenv("LOANINTAKE_DB_DRIVER"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("LOANINTAKE_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		KBDir:        os.Getenv("LOANINTAKE_KB_DIR"),
		ReminderCron: os.Getenv("REMINDER_SCHEDULE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LOANINTAKE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("LOANINTAKE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"LOANINTAKE_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LOANINTAKE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"LOANINTAKE_KB_DIR", config.KBDir,
		"REMINDER_SCHEDULE", config.ReminderCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for loan intake data (overrides $LOANINTAKE_STATE_DIR)"),
		dbDriver:     flag.String("db-driver", config.DbDriver, "database driver, sqlite3 or postgres (overrides $LOANINTAKE_DB_DRIVER)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		kbDir:        flag.String("kb-dir", config.KBDir, "directory of extra knowledge base documents (overrides $LOANINTAKE_KB_DIR)"),
		reminderCron: flag.String("reminder-cron", config.ReminderCron, "cron schedule for idle-session reminders (overrides $REMINDER_SCHEDULE)"),
		chat:         flag.Bool("chat", false, "run one intake conversation on the terminal instead of the API server"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"kbDir", *flags.kbDir,
		"chat", *flags.chat)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if detectDSNType(*flags.dbDSN, *flags.dbDriver) == "sqlite3" {
		dir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	if err := os.MkdirAll(filepath.Join(*flags.stateDir, DefaultUploadDirName), 0755); err != nil {
		return err
	}
	return nil
}

// detectDSNType classifies a DSN as postgres or sqlite3. An explicit driver
// wins; otherwise PostgreSQL URL and key-value forms are recognized and
// anything else is treated as a SQLite file path.
func detectDSNType(dsn, driver string) string {
	if driver != "" {
		return driver
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// openStore builds the session store for the configured DSN.
func openStore(flags Flags) (store.Store, error) {
	switch detectDSNType(*flags.dbDSN, *flags.dbDriver) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
}

// buildKnowledgeBase assembles the knowledge base, optionally backed by
// GenAI answer rewriting and a watched document directory.
func buildKnowledgeBase(ctx context.Context, kbDir string, openaiKeySet bool) *kb.KnowledgeBase {
	var gen genai.ClientInterface
	if openaiKeySet {
		client, err := genai.NewClient()
		if err != nil {
			slog.Warn("GenAI client unavailable, knowledge base will answer from documents only", "error", err)
		} else {
			gen = client
		}
	}

	knowledge := kb.New(gen)
	if kbDir != "" {
		if err := knowledge.LoadDir(kbDir); err != nil {
			slog.Warn("Failed to load knowledge base directory", "error", err, "kb_dir", kbDir)
		}
		if err := knowledge.Watch(ctx, kbDir); err != nil {
			slog.Warn("Failed to watch knowledge base directory", "error", err, "kb_dir", kbDir)
		}
	}
	return knowledge
}

// buildSender constructs the Twilio SMS sender when credentials are present.
func buildSender() messaging.Sender {
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" {
		slog.Debug("No Twilio credentials configured, SMS replies disabled")
		return nil
	}
	sender, err := messaging.NewTwilioClient()
	if err != nil {
		slog.Warn("Failed to initialize Twilio client, SMS replies disabled", "error", err)
		return nil
	}
	return sender
}

// run wires the modules together and serves the API until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	st, err := openStore(flags)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer st.Close()

	validator := upload.NewValidator(filepath.Join(*flags.stateDir, DefaultUploadDirName))
	completion := export.NewHandler(st, *flags.stateDir)
	eng := engine.New(registry.New(), validator, completion)
	knowledge := buildKnowledgeBase(ctx, *flags.kbDir, os.Getenv("OPENAI_API_KEY") != "")
	sender := buildSender()

	if *flags.reminderCron != "" && sender != nil {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		reminder := scheduler.NewReminder(st, sender, scheduler.DefaultMaxIdle)
		if err := sched.AddJob(*flags.reminderCron, reminder.Run); err != nil {
			return fmt.Errorf("failed to schedule idle-session reminder: %w", err)
		}
		slog.Info("Idle-session reminder scheduled", "cron", *flags.reminderCron)
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	srv := api.NewServer(st, eng, knowledge, validator, sender, apiOpts...)
	return srv.Run(ctx)
}

// runChat runs a single intake conversation on stdin/stdout with an
// in-memory store. Useful for trying the flow without an HTTP client.
func runChat() error {
	st := store.NewInMemoryStore()
	defer st.Close()

	dir, err := os.MkdirTemp("", "loanintake-chat-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	validator := upload.NewValidator(filepath.Join(dir, DefaultUploadDirName))
	completion := export.NewHandler(st, dir)
	eng := engine.New(registry.New(), validator, completion)

	state := models.NewSessionState(util.GenerateSessionID())
	greeting := eng.Greeting()
	state.Append(models.SpeakerBot, greeting)
	fmt.Println(greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for !state.Complete() && scanner.Scan() {
		reply, err := eng.Advance(context.Background(), state, scanner.Text())
		if err != nil {
			return fmt.Errorf("conversation turn failed: %w", err)
		}
		fmt.Println(reply)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if state.Complete() {
		fmt.Printf("Application saved to %s\n", completion.Path())
	}
	return nil
}
