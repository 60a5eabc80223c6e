package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"quotefetcher/internal/alphavantage"
	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/ratelimit"
	"quotefetcher/internal/stooq"
)

// SymbolConfig maps an internal ticker to its provider spellings.
type SymbolConfig struct {
	Symbol         string `mapstructure:"symbol"`
	ProviderSymbol string `mapstructure:"provider_symbol"`
	StooqSymbol    string `mapstructure:"stooq_symbol"`
}

// Config holds all configuration for the quote fetcher.
type Config struct {
	// Alpha Vantage credential
	AlphavantageAPIKey string `mapstructure:"alphavantage_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`
	StooqBaseURL        string `mapstructure:"stooq_base_url"`

	// Ordered fallback chain
	Strategies []string `mapstructure:"strategies"`

	// Throttling and per-call deadline
	AlphavantageMinInterval time.Duration `mapstructure:"alphavantage_min_interval"`
	StooqMinInterval        time.Duration `mapstructure:"stooq_min_interval"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`

	// Output and logging
	OutputPath string `mapstructure:"output_path"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`

	// Items to fetch
	Symbols []SymbolConfig `mapstructure:"symbols"`
}

// DefaultSymbols is the watchlist used when none is configured.
var DefaultSymbols = []SymbolConfig{
	{Symbol: "AGI"},
	{Symbol: "FSM"},
	{Symbol: "GAU"},
	{Symbol: "NFGC"},
	{Symbol: "VGZ"},
	{Symbol: "NEWP"},
}

// RegisterFlags adds the command line flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a config file (default: ./config.yaml or $HOME/.quotefetcher/config.yaml)")
	flags.String("output", "", "path of the snapshot file to write")
	flags.StringSlice("strategies", nil, "ordered fallback strategies: quote, daily, intraday, stooq")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
}

// Load reads configuration from flags, environment variables and an optional config file.
// Flags take precedence over environment variables, which take precedence over the file.
//
// Expected environment variables:
//   - ALPHAVANTAGE_API_KEY (or ALPHAVANTAGE_KEY)
//   - ALPHAVANTAGE_BASE_URL (optional, defaults to production)
//   - STOOQ_BASE_URL (optional, defaults to production)
//   - QUOTE_SYMBOLS (optional, e.g. "AGI,FSM=FSM.TO")
//   - STRATEGIES, OUTPUT_PATH, REQUEST_TIMEOUT, LOG_LEVEL, LOG_FORMAT (optional)
//   - ALPHAVANTAGE_MIN_INTERVAL, STOOQ_MIN_INTERVAL (optional)
//
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set up environment variable support
	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	v.SetDefault("alphavantage_base_url", alphavantage.DefaultBaseURL)
	v.SetDefault("stooq_base_url", stooq.DefaultBaseURL)
	v.SetDefault("strategies", []string{string(fetcher.KindQuote), string(fetcher.KindDaily)})
	v.SetDefault("alphavantage_min_interval", ratelimit.DefaultAlphaVantageInterval)
	v.SetDefault("stooq_min_interval", ratelimit.DefaultStooqInterval)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("output_path", "data/quotes.json")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if err := readConfigFile(v, flags); err != nil {
		return nil, err
	}

	// Bind environment variables for the credential; ALPHAVANTAGE_KEY is the older name
	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY", "ALPHAVANTAGE_KEY")

	// Bind environment variables for base URLs
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("stooq_base_url", "STOOQ_BASE_URL")
	v.BindEnv("symbol_list", "QUOTE_SYMBOLS")

	// Unmarshal config into struct (handles both simple and complex fields)
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Strategies = splitList(config.Strategies)

	if list := v.GetString("symbol_list"); list != "" {
		symbols, err := ParseSymbolList(list)
		if err != nil {
			return nil, err
		}
		config.Symbols = symbols
	}
	if len(config.Symbols) == 0 {
		config.Symbols = append([]SymbolConfig(nil), DefaultSymbols...)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	bindings := map[string]string{
		"output_path": "output",
		"strategies":  "strategies",
		"log_level":   "log-level",
		"log_format":  "log-format",
	}
	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet) error {
	path := ""
	if flags != nil {
		path, _ = flags.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.quotefetcher")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// ParseSymbolList parses "AGI,FSM=FSM.TO" into symbol configs. The part after
// "=" is the Alpha Vantage spelling.
func ParseSymbolList(list string) ([]SymbolConfig, error) {
	var out []SymbolConfig
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, provider, _ := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid symbol entry %q", entry)
		}
		out = append(out, SymbolConfig{
			Symbol:         name,
			ProviderSymbol: strings.TrimSpace(provider),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("symbol list %q is empty", list)
	}
	return out, nil
}

// splitList accepts both ["quote","daily"] and ["quote,daily"] (env values arrive as one string)
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for errors that would make every request fail.
func (c *Config) Validate() error {
	kinds, err := c.Kinds()
	if err != nil {
		return err
	}

	var missing []string
	for _, k := range kinds {
		if alphavantage.Supports(k) && c.AlphavantageAPIKey == "" {
			missing = append(missing, "ALPHAVANTAGE_API_KEY")
			break
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		name := strings.TrimSpace(s.Symbol)
		if name == "" {
			return fmt.Errorf("symbol entry with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate symbol %q", name)
		}
		seen[name] = true
	}

	if c.AlphavantageMinInterval < 0 || c.StooqMinInterval < 0 {
		return fmt.Errorf("min intervals must not be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}

// Kinds returns the configured fallback chain in order.
func (c *Config) Kinds() ([]fetcher.Kind, error) {
	if len(c.Strategies) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}
	kinds := make([]fetcher.Kind, 0, len(c.Strategies))
	seen := make(map[fetcher.Kind]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		k, err := fetcher.ParseKind(s)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("strategy %q listed twice", k)
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// SymbolSet returns the configured symbols in order.
func (c *Config) SymbolSet() []fetcher.Symbol {
	out := make([]fetcher.Symbol, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		out = append(out, fetcher.Symbol{
			Name:     strings.TrimSpace(s.Symbol),
			Provider: strings.TrimSpace(s.ProviderSymbol),
			Stooq:    strings.TrimSpace(s.StooqSymbol),
		})
	}
	return out
}

// ParseLevel converts a configured log level to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
