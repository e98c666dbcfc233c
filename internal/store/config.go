package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode          string `yaml:"mode"`           // REAL or MOCK
	DryRun        bool   `yaml:"dry_run"`        // simulate order fills
	ConditionName string `yaml:"condition_name"` // server-side condition search to screen from
	ProbeSymbol   string `yaml:"probe_symbol"`   // liquid symbol used to detect a live session

	Entry struct {
		MaxStocks     int     `yaml:"max_stocks"`
		SplitBuyCount int     `yaml:"split_buy_count"`
		AssetWeight   float64 `yaml:"asset_weight"`
		MinEquity     int64   `yaml:"min_equity"`
	} `yaml:"entry"`

	Screen struct {
		MinRate     float64  `yaml:"min_rate"` // percent from open
		MinWick     float64  `yaml:"min_wick"`
		MaxWick     float64  `yaml:"max_wick"`
		NameExclude []string `yaml:"name_exclude"` // substring match
		NameSuffix  []string `yaml:"name_suffix"`  // suffix match
		Exclude     []string `yaml:"exclude"`      // symbols the bot must never touch
	} `yaml:"screen"`

	Exit struct {
		StopLossRate        float64 `yaml:"stop_loss_rate"`
		GapDownPanicRate    float64 `yaml:"gap_down_panic_rate"`
		PartialProfitRate   float64 `yaml:"partial_profit_rate"`
		PartialSellRatio    float64 `yaml:"partial_sell_ratio"`
		TrailingTriggerRate float64 `yaml:"trailing_trigger_rate"`
		TrailingStopGap     float64 `yaml:"trailing_stop_gap"`
		GraceMinutes        int     `yaml:"grace_minutes"` // early-session sell suppression
	} `yaml:"exit"`

	Session struct {
		OpenHour         int `yaml:"open_hour"`
		TimeCutHour      int `yaml:"time_cut_hour"`
		TimeCutMinute    int `yaml:"time_cut_minute"`
		EntryHour        int `yaml:"entry_hour"`
		EntryMinute      int `yaml:"entry_minute"`
		EntryWindowMins  int `yaml:"entry_window_minutes"`
		CloseHour        int `yaml:"close_hour"`
		CloseMinute      int `yaml:"close_minute"`
		WakeHour         int `yaml:"wake_hour"`
		WakeMinute       int `yaml:"wake_minute"`
	} `yaml:"session"`

	Poll struct {
		MonitorMillis   int `yaml:"monitor_millis"`
		SchedulerMillis int `yaml:"scheduler_millis"`
	} `yaml:"poll"`

	Metrics struct {
		Addr string `yaml:"addr"` // empty disables the /metrics endpoint
	} `yaml:"metrics"`

	TradeDB string `yaml:"trade_db"`
}

func (c *Config) Validate() error {
	if c.Mode != "REAL" && c.Mode != "MOCK" {
		return fmt.Errorf("invalid mode '%s': must be 'REAL' or 'MOCK'", c.Mode)
	}
	if c.ConditionName == "" {
		return fmt.Errorf("condition_name cannot be empty")
	}
	if c.Entry.MaxStocks <= 0 {
		return fmt.Errorf("entry.max_stocks must be positive, got %d", c.Entry.MaxStocks)
	}
	if c.Entry.SplitBuyCount <= 0 {
		return fmt.Errorf("entry.split_buy_count must be positive, got %d", c.Entry.SplitBuyCount)
	}
	if c.Entry.AssetWeight <= 0 || c.Entry.AssetWeight > 1 {
		return fmt.Errorf("entry.asset_weight must be in (0,1], got %.2f", c.Entry.AssetWeight)
	}
	if c.Screen.MinWick < 0 || c.Screen.MaxWick > 1 || c.Screen.MinWick > c.Screen.MaxWick {
		return fmt.Errorf("screen wick band [%.2f, %.2f] is not a valid sub-range of [0,1]", c.Screen.MinWick, c.Screen.MaxWick)
	}
	if c.Exit.StopLossRate >= 0 {
		return fmt.Errorf("exit.stop_loss_rate must be negative, got %.4f", c.Exit.StopLossRate)
	}
	if c.Exit.PartialSellRatio <= 0 || c.Exit.PartialSellRatio >= 1 {
		return fmt.Errorf("exit.partial_sell_ratio must be in (0,1), got %.2f", c.Exit.PartialSellRatio)
	}
	if c.Session.EntryWindowMins <= 0 {
		return fmt.Errorf("session.entry_window_minutes must be positive, got %d", c.Session.EntryWindowMins)
	}
	if c.Session.EntryWindowMins < c.Entry.SplitBuyCount {
		return fmt.Errorf("entry window of %d minutes cannot fit %d tranches", c.Session.EntryWindowMins, c.Entry.SplitBuyCount)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.ProbeSymbol == "" {
		c.ProbeSymbol = "005930"
	}
	if c.Session.OpenHour == 0 {
		c.Session.OpenHour = 9
	}
	if c.Session.TimeCutHour == 0 {
		c.Session.TimeCutHour = 10
	}
	if c.Session.EntryHour == 0 {
		c.Session.EntryHour = 15
	}
	if c.Session.EntryMinute == 0 {
		c.Session.EntryMinute = 10
	}
	if c.Session.EntryWindowMins == 0 {
		c.Session.EntryWindowMins = 10
	}
	if c.Session.CloseHour == 0 {
		c.Session.CloseHour = 15
		c.Session.CloseMinute = 35
	}
	if c.Session.WakeHour == 0 {
		c.Session.WakeHour = 8
		c.Session.WakeMinute = 50
	}
	if c.Poll.MonitorMillis == 0 {
		c.Poll.MonitorMillis = 500
	}
	if c.Poll.SchedulerMillis == 0 {
		c.Poll.SchedulerMillis = 5000
	}
	if c.Exit.GraceMinutes == 0 {
		c.Exit.GraceMinutes = 3
	}
	if c.TradeDB == "" {
		c.TradeDB = "trades.db"
	}
}
