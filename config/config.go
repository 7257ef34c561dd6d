package config

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/logging"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/J-Leg/cloudcheckin/internal/notify"
	"github.com/J-Leg/cloudcheckin/internal/retry"
	"github.com/J-Leg/cloudcheckin/internal/transcript"
)

// Constants
const (
	FAMILYID     = 108508161137369
	SETTLEDELAY  = 5 * time.Second
	TITLE        = "Cloud189 daily check-in"
	ACCOUNTSFILE = "accounts.yaml"
	LOGNAME      = "cloud-checkin"
	PORT         = "8080"
)

// LookupFunc reads one setting, os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Config for execution
type Config struct {
	Ctx   context.Context
	RunID string

	Accounts    []Account
	Retry       retry.Policy
	SettleDelay time.Duration
	FamilyID    int64
	Title       string
	Notify      notify.Config
	Port        string

	Trace        *Loggers
	LoggerClient *logging.Client
	CloudLogger  *logging.Logger
	Console      io.Writer
	Verbose      bool
	LocalEnabled bool
}

// Load parses settings from lookup. Loggers are not initialised.
func Load(lookup LookupFunc) (*Config, error) {
	cfg := &Config{
		Retry:       retry.Default(),
		SettleDelay: SETTLEDELAY,
		FamilyID:    FAMILYID,
		Title:       TITLE,
		Port:        PORT,
		Console:     os.Stdout,
	}

	var err error
	if v, ok := lookup("RETRY_ATTEMPTS"); ok && v != "" {
		if cfg.Retry.MaxAttempts, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrapf(err, "config: RETRY_ATTEMPTS %q", v)
		}
	}
	if v, ok := lookup("RETRY_DELAY"); ok && v != "" {
		if cfg.Retry.Delay, err = time.ParseDuration(v); err != nil {
			return nil, errors.Wrapf(err, "config: RETRY_DELAY %q", v)
		}
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if v, ok := lookup("SETTLE_DELAY"); ok && v != "" {
		if cfg.SettleDelay, err = time.ParseDuration(v); err != nil {
			return nil, errors.Wrapf(err, "config: SETTLE_DELAY %q", v)
		}
	}
	if v, ok := lookup("FAMILY_ID"); ok && v != "" {
		if cfg.FamilyID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "config: FAMILY_ID %q", v)
		}
	}
	if v, ok := lookup("NOTIFY_TITLE"); ok && v != "" {
		cfg.Title = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Port = v
	}
	cfg.Notify.ServerChanKey, _ = lookup("SENDKEY")
	cfg.Notify.PushPlusToken, _ = lookup("PUSHPLUS_TOKEN")
	cfg.LocalEnabled = flag(lookup, "LOCAL")
	cfg.Verbose = flag(lookup, "DEBUG")

	if cfg.Accounts, err = accountsFrom(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func flag(lookup LookupFunc, key string) bool {
	v, ok := lookup(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func accountsFrom(lookup LookupFunc) ([]Account, error) {
	if v, ok := lookup("ACCOUNTS"); ok && v != "" {
		return ParseAccounts([]byte(v))
	}
	path := ACCOUNTSFILE
	if v, ok := lookup("ACCOUNTS_FILE"); ok && v != "" {
		path = v
	}
	return LoadAccounts(path)
}

// InitConfig - load .env and the environment, then initialise loggers.
// Cloud Logging is used when PROJ_ID is set.
func InitConfig(ctx context.Context) (*Config, error) {
	// A missing .env is normal in the cloud.
	_ = godotenv.Load()

	cfg, err := Load(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.Ctx = ctx
	cfg.RunID = uuid.New().String()

	if projectID := os.Getenv("PROJ_ID"); projectID != "" {
		client, err := logging.NewClient(ctx, projectID)
		if err != nil {
			return nil, errors.Wrap(err, "config: create logging client")
		}
		cfg.LoggerClient = client
		cfg.CloudLogger = client.Logger(LOGNAME, logging.CommonLabels(map[string]string{"run_id": cfg.RunID}))
	}

	cfg.Trace = cfg.newLoggers(nil)
	return cfg, nil
}

// WithRecorder returns a copy of cfg whose loggers also write to rec.
func (cfg *Config) WithRecorder(rec *transcript.Recorder) *Config {
	runCfg := *cfg
	runCfg.Trace = cfg.newLoggers(rec)
	return &runCfg
}

// Close flushes and closes the cloud logging client, if any.
func (cfg *Config) Close() error {
	if cfg.LoggerClient == nil {
		return nil
	}
	return cfg.LoggerClient.Close()
}
