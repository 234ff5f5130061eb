package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/Tranquil/internal/api"
	"github.com/BTreeMap/Tranquil/internal/flow"
	"github.com/BTreeMap/Tranquil/internal/genai"
	"github.com/BTreeMap/Tranquil/internal/lockfile"
	"github.com/BTreeMap/Tranquil/internal/store"
	"github.com/BTreeMap/Tranquil/internal/twiliowhatsapp"
	"github.com/BTreeMap/Tranquil/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Tranquil state data
	DefaultStateDir = "/var/lib/tranquil"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "tranquil.db"
)

func main() {
	os.Exit(run())
}

// run wires and serves Tranquil, returning the process exit code.
func run() int {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		return 1
	}

	// One instance per SQLite state directory
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		lock, err := lockfile.Acquire(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			return 1
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	twilioOpts := buildTwilioOptions(config, flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping Tranquil with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "twilio", len(twilioOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, twilioOpts, apiOpts); err != nil {
		slog.Error("Tranquil failed to run", "error", err)
		return 1
	}
	slog.Info("Tranquil exited successfully")
	return 0
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	DatabaseDSN      string
	OpenAIKey        string
	GenAIEnabled     bool
	APIAddr          string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	ReferralContact  string
	CatalogPath      string
	SessionRetention time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	dbDSN            *string
	openaiKey        *string
	genaiEnabled     *bool
	apiAddr          *string
	twilioFrom       *string
	referralContact  *string
	catalogPath      *string
	sessionRetention *time.Duration
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		StateDir:         os.Getenv("TRANQUIL_STATE_DIR"),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		GenAIEnabled:     util.ParseBoolEnv("GENAI_ENABLED", true),
		APIAddr:          os.Getenv("API_ADDR"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		ReferralContact:  os.Getenv("REFERRAL_CONTACT"),
		CatalogPath:      os.Getenv("TRANQUIL_CATALOG"),
		SessionRetention: util.ParseDurationEnv("TRANQUIL_SESSION_RETENTION", flow.DefaultDoneRetention),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TRANQUIL_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("TRANQUIL_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// DATABASE_DSN takes precedence over DATABASE_URL
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
		if config.DatabaseDSN != "" {
			slog.Debug("Using DATABASE_URL as database DSN", "dsn_set", true)
		}
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"TRANQUIL_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GENAI_ENABLED", config.GenAIEnabled,
		"API_ADDR", config.APIAddr,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"TWILIO_FROM_NUMBER", config.TwilioFrom,
		"REFERRAL_CONTACT_SET", config.ReferralContact != "",
		"TRANQUIL_CATALOG", config.CatalogPath,
		"TRANQUIL_SESSION_RETENTION", config.SessionRetention)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:         flag.String("state-dir", config.StateDir, "state directory for Tranquil data (overrides $TRANQUIL_STATE_DIR)"),
		dbDSN:            flag.String("db-dsn", config.DatabaseDSN, "database DSN, a SQLite path or Postgres URL (overrides $DATABASE_DSN or $DATABASE_URL)"),
		openaiKey:        flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		genaiEnabled:     flag.Bool("genai", config.GenAIEnabled, "personalize check-in advice with GenAI (overrides $GENAI_ENABLED)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		twilioFrom:       flag.String("twilio-from", config.TwilioFrom, "Twilio sender number, prefix with whatsapp: for WhatsApp (overrides $TWILIO_FROM_NUMBER)"),
		referralContact:  flag.String("referral-contact", config.ReferralContact, "phone number notified about high-stress check-ins (overrides $REFERRAL_CONTACT)"),
		catalogPath:      flag.String("catalog", config.CatalogPath, "TOML catalog of breathing settings and professionals (overrides $TRANQUIL_CATALOG)"),
		sessionRetention: flag.Duration("session-retention", config.SessionRetention, "how long finished breathing sessions stay readable (overrides $TRANQUIL_SESSION_RETENTION)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"genaiEnabled", *flags.genaiEnabled,
		"apiAddr", *flags.apiAddr,
		"twilioFrom", *flags.twilioFrom,
		"referralContactSet", *flags.referralContact != "",
		"catalogPath", *flags.catalogPath,
		"sessionRetention", *flags.sessionRetention)

	applyStateDirOverride(config, flags)
	return flags
}

// applyStateDirOverride moves the default SQLite file into a state directory
// given on the command line, unless the DSN was set explicitly.
func applyStateDirOverride(config Config, flags Flags) {
	defaultDSN := filepath.Join(config.StateDir, DefaultDBFileName)
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == defaultDSN && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDSN == "" || store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options. A nil result
// disables GenAI advice.
func buildGenAIOptions(flags Flags) []genai.Option {
	if !*flags.genaiEnabled {
		slog.Debug("GenAI disabled by configuration")
		return nil
	}
	if *flags.openaiKey == "" {
		slog.Debug("No OpenAI API key provided, GenAI advice disabled")
		return nil
	}
	return []genai.Option{genai.WithAPIKey(*flags.openaiKey)}
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(config Config, flags Flags) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if config.TwilioAccountSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(config.TwilioAccountSID))
	}
	if config.TwilioAuthToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(config.TwilioAuthToken))
	}
	if *flags.twilioFrom != "" {
		opts = append(opts, twiliowhatsapp.WithFrom(*flags.twilioFrom))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.referralContact != "" {
		apiOpts = append(apiOpts, api.WithReferralContact(*flags.referralContact))
	}
	if *flags.catalogPath != "" {
		apiOpts = append(apiOpts, api.WithCatalogPath(*flags.catalogPath))
	}
	if flags.sessionRetention != nil {
		apiOpts = append(apiOpts, api.WithSessionRetention(*flags.sessionRetention))
	}
	return apiOpts
}
