package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DuneConfig holds settings for the Dune query loader.
type DuneConfig struct {
	APIKey            string
	BaseURL           string
	Queries           map[string]int
	PollInterval      time.Duration
	QueryTimeout      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
}

// Config holds configuration for the run command.
type Config struct {
	StartDate    string
	EndDate      string
	SolStart     float64
	SolEnd       float64
	Datasets     string
	ThreadsDir   string
	GraphsDir    string
	Model        string
	IncludeL2    bool
	Archive      string
	PGDSN        string
	OpenAIAPIKey string
	WebhookURL   string
	LogLevel     string
	Dune         DuneConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("threads-dir", "threads")
		v.SetDefault("graphs-dir", "graphs")
		v.SetDefault("model", "gpt-4o")
		v.SetDefault("include-l2", false)
	})
	if err != nil {
		return Config{}, err
	}

	if err := requireSet(v, "sol-start", "sol-end"); err != nil {
		return Config{}, err
	}

	dune, err := loadDune(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		StartDate:    v.GetString("start-date"),
		EndDate:      v.GetString("end-date"),
		SolStart:     v.GetFloat64("sol-start"),
		SolEnd:       v.GetFloat64("sol-end"),
		Datasets:     v.GetString("datasets"),
		ThreadsDir:   v.GetString("threads-dir"),
		GraphsDir:    v.GetString("graphs-dir"),
		Model:        v.GetString("model"),
		IncludeL2:    v.GetBool("include-l2"),
		Archive:      v.GetString("archive"),
		PGDSN:        v.GetString("pg-dsn"),
		OpenAIAPIKey: v.GetString("openai-api-key"),
		WebhookURL:   v.GetString("webhook-url"),
		LogLevel:     v.GetString("log-level"),
		Dune:         dune,
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"dune-api-key":   "DUNE_API_KEY",
		"openai-api-key": "OPENAI_API_KEY",
		"webhook-url":    "WEBHOOK_URL",
	} {
		if err := v.BindEnv(key, "DIGEST_"+env, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("log-level", "info")
	v.SetDefault("dune-base-url", "https://api.dune.com/api/v1")
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("query-timeout", 10*time.Minute)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("requests-per-second", 1.0)
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadDune(v *viper.Viper) (DuneConfig, error) {
	queries, err := getQueryMap(v, "queries")
	if err != nil {
		return DuneConfig{}, err
	}
	return DuneConfig{
		APIKey:            v.GetString("dune-api-key"),
		BaseURL:           v.GetString("dune-base-url"),
		Queries:           queries,
		PollInterval:      v.GetDuration("poll-interval"),
		QueryTimeout:      v.GetDuration("query-timeout"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RequestsPerSecond: v.GetFloat64("requests-per-second"),
	}, nil
}

func requireSet(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		if !v.IsSet(key) {
			return fmt.Errorf("%s is required", key)
		}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	tm, err := time.Parse("2006-01-02", input)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", input)
	}
	return tm, nil
}

// getQueryMap reads metric name to Dune query id, either as a map from a
// config file or as "name=id,name=id" from the environment.
func getQueryMap(v *viper.Viper, key string) (map[string]int, error) {
	out := map[string]int{}
	if !v.IsSet(key) {
		return out, nil
	}

	switch typed := v.Get(key).(type) {
	case map[string]interface{}:
		for name, raw := range typed {
			id, err := queryID(name, fmt.Sprint(raw))
			if err != nil {
				return nil, err
			}
			out[name] = id
		}
	case map[string]string:
		for name, raw := range typed {
			id, err := queryID(name, raw)
			if err != nil {
				return nil, err
			}
			out[name] = id
		}
	case string:
		for _, pair := range strings.Split(typed, ",") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			name, raw, ok := strings.Cut(pair, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid %s entry %q: want name=id", key, strings.TrimSpace(pair))
			}
			id, err := queryID(name, raw)
			if err != nil {
				return nil, err
			}
			out[name] = id
		}
	default:
		return nil, fmt.Errorf("invalid %s: unexpected type %T", key, typed)
	}
	return out, nil
}

func queryID(name, raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("query id for %s: %w", name, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("query id for %s: must be positive", name)
	}
	return id, nil
}
