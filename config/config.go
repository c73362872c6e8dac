package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// Config represents a complete backtest configuration
type Config struct {
	Data     DataConfig     `json:"data" yaml:"data"`
	Account  AccountConfig  `json:"account" yaml:"account"`
	Costs    CostsConfig    `json:"costs" yaml:"costs"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Sweep    SweepConfig    `json:"sweep" yaml:"sweep"`
}

// DataConfig selects the price files and the date window
type DataConfig struct {
	Paths   []string `json:"paths" yaml:"paths"` // files, directories or globs
	Workers int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Start   string   `json:"start,omitempty" yaml:"start,omitempty"` // YYYY-MM-DD
	End     string   `json:"end,omitempty" yaml:"end,omitempty"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Currency       string  `json:"currency" yaml:"currency"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// CostsConfig holds fractions of traded notional
type CostsConfig struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate"`
}

type EngineConfig struct {
	AllowShorts    bool `json:"allow_shorts" yaml:"allow_shorts"`
	PeriodsPerYear int  `json:"periods_per_year" yaml:"periods_per_year"`
}

// StrategyConfig names a registered strategy and its parameters
type StrategyConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// JournalConfig says where runs are recorded; empty fields disable that
// output.
type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	CSVDir string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty"`
	OrgDir string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// SweepConfig is the moving average grid searched by the sweep command
type SweepConfig struct {
	Shorts  []int  `json:"shorts" yaml:"shorts"`
	Longs   []int  `json:"longs" yaml:"longs"`
	Workers int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !(c.Account.InitialCapital > 0) || math.IsInf(c.Account.InitialCapital, 0) {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if !inUnit(c.Costs.CommissionRate) {
		return fmt.Errorf("costs.commission_rate must be in [0, 1)")
	}
	if !inUnit(c.Costs.SlippageRate) {
		return fmt.Errorf("costs.slippage_rate must be in [0, 1)")
	}
	if c.Engine.PeriodsPerYear < 0 {
		return fmt.Errorf("engine.periods_per_year must not be negative")
	}
	if c.Data.Workers < 0 {
		return fmt.Errorf("data.workers must not be negative")
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, err := strategies.New(c.Strategy.Name, c.Strategy.Params); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	for _, n := range append(append([]int(nil), c.Sweep.Shorts...), c.Sweep.Longs...) {
		if n <= 0 {
			return fmt.Errorf("sweep windows must be positive (got %d)", n)
		}
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("sweep.workers must not be negative")
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v < 1 }

// Window parses data.start and data.end; unset bounds are zero.
func (c *Config) Window() (from, to time.Time, err error) {
	if c.Data.Start != "" {
		if from, err = time.Parse(time.DateOnly, c.Data.Start); err != nil {
			return from, to, fmt.Errorf("data.start must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Data.End != "" {
		if to, err = time.Parse(time.DateOnly, c.Data.End); err != nil {
			return from, to, fmt.Errorf("data.end must be YYYY-MM-DD: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("data.end must not be before data.start")
	}
	return from, to, nil
}

// CostModel converts the costs section.
func (c *Config) CostModel() sim.CostModel {
	return sim.CostModel{
		CommissionRate: c.Costs.CommissionRate,
		SlippageRate:   c.Costs.SlippageRate,
	}
}

// SimConfig is the engine configuration.
func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		InitialCapital: c.Account.InitialCapital,
		Costs:          c.CostModel(),
		AllowShorts:    c.Engine.AllowShorts,
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Paths:   []string{"./data"},
			Workers: 4,
		},
		Account: AccountConfig{
			Currency:       "USD",
			InitialCapital: 100000,
		},
		Costs: CostsConfig{
			CommissionRate: sim.DefaultCommissionRate,
			SlippageRate:   sim.DefaultSlippageRate,
		},
		Engine: EngineConfig{
			PeriodsPerYear: 252,
		},
		Strategy: StrategyConfig{
			Name:   "ma-crossover",
			Params: map[string]float64{"short": 50, "long": 200},
		},
		Journal: JournalConfig{
			DBPath: "./backtest.db",
			CSVDir: "./results",
		},
		Sweep: SweepConfig{
			Shorts: []int{10, 20, 30, 50, 75, 100},
			Longs:  []int{100, 150, 200, 250, 300, 350},
		},
	}
}

// ApplyEnv overlays BACKTEST_* settings. Values come from the process
// environment, then from the env files (".env" when none are given);
// missing env files are ignored.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	fileVals := make(map[string]string)
	for _, f := range envFiles {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileVals[k]; !ok {
				fileVals[k] = v
			}
		}
	}

	getEnv := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"BACKTEST_INITIAL_CAPITAL", &c.Account.InitialCapital},
		{"BACKTEST_COMMISSION_RATE", &c.Costs.CommissionRate},
		{"BACKTEST_SLIPPAGE_RATE", &c.Costs.SlippageRate},
	}
	for _, f := range floats {
		if s, ok := getEnv(f.key); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %v", f.key, err)
			}
			*f.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"BACKTEST_WORKERS", &c.Data.Workers},
		{"BACKTEST_PERIODS_PER_YEAR", &c.Engine.PeriodsPerYear},
	}
	for _, i := range ints {
		if s, ok := getEnv(i.key); ok {
			v, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("invalid %s: %v", i.key, err)
			}
			*i.dst = v
		}
	}

	if s, ok := getEnv("BACKTEST_ALLOW_SHORTS"); ok {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid BACKTEST_ALLOW_SHORTS: %v", err)
		}
		c.Engine.AllowShorts = v
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"BACKTEST_STRATEGY", &c.Strategy.Name},
		{"BACKTEST_DB", &c.Journal.DBPath},
		{"BACKTEST_CSV_DIR", &c.Journal.CSVDir},
		{"BACKTEST_START", &c.Data.Start},
		{"BACKTEST_END", &c.Data.End},
	}
	for _, s := range strs {
		if v, ok := getEnv(s.key); ok {
			*s.dst = strings.TrimSpace(v)
		}
	}

	if s, ok := getEnv("BACKTEST_DATA"); ok {
		c.Data.Paths = nil
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Data.Paths = append(c.Data.Paths, p)
			}
		}
	}
	return nil
}
