package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"arbd/internal/models"
)

// DefaultPath - путь к конфигурации, если ARB_CONFIG не задан
const DefaultPath = "config/local.yaml"

// ErrNoStrategyEnabled - ни одна стратегия не включена (фатально для процесса)
var ErrNoStrategyEnabled = errors.New("no strategies enabled: enable at least one strategy in config")

// Config содержит всю конфигурацию демона
type Config struct {
	General    GeneralConfig    `yaml:"general"`
	Server     ServerConfig     `yaml:"server"`
	Risk       RiskConfig       `yaml:"risk"`
	Venues     []VenueConfig    `yaml:"venues"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Notify     NotifyConfig     `yaml:"notify"`
}

// GeneralConfig - общие настройки процесса
type GeneralConfig struct {
	DryRun    bool   `yaml:"dry_run"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json | console
}

// ServerConfig - настройки read-only API статуса
type ServerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TokenHash string `yaml:"token_hash"` // bcrypt-хеш bearer токена; пусто = без авторизации

	// Разрешённые Origin для CORS и WebSocket; пусто или "*" = все
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr возвращает адрес для net/http
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RiskConfig - лимиты риск-движка
type RiskConfig struct {
	MaxNotionalPerAsset          float64 `yaml:"max_notional_per_asset"`
	MaxOpenPositionsPerVenue     int     `yaml:"max_open_positions_per_venue"`
	MaxLeverage                  float64 `yaml:"max_leverage"`
	KillSwitchDailyLossThreshold float64 `yaml:"kill_switch_daily_loss_threshold"` // отрицательное значение, USDT

	// Время суток (UTC) ежедневного сброса дневного PNL, формат "15:04"
	DailyResetUTC string `yaml:"daily_reset_utc"`
}

// ResetOffset разбирает DailyResetUTC в смещение от полуночи
func (r RiskConfig) ResetOffset() (time.Duration, error) {
	if r.DailyResetUTC == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", r.DailyResetUTC)
	if err != nil {
		return 0, fmt.Errorf("invalid daily_reset_utc %q: %w", r.DailyResetUTC, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// VenueConfig - подключение к площадке
type VenueConfig struct {
	Name       string `yaml:"name"`
	Mode       string `yaml:"mode"` // paper | имя зарегистрированного коннектора
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	PrivateKey string `yaml:"private_key"`

	RateLimit  float64       `yaml:"rate_limit"` // запросов в секунду
	Burst      float64       `yaml:"burst"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`

	Paper PaperConfig `yaml:"paper"`
}

// PaperConfig - параметры симулированной площадки
type PaperConfig struct {
	Seed       int64            `yaml:"seed"`
	Volatility float64          `yaml:"volatility"` // относительный шаг случайного блуждания цены
	Markets    []PaperMarket    `yaml:"markets"`
	Routes     []PaperSwapRoute `yaml:"routes"`
}

// PaperMarket - начальное состояние рынка на симулированной площадке
type PaperMarket struct {
	Symbol      string  `yaml:"symbol"`
	Price       float64 `yaml:"price"`
	FundingRate float64 `yaml:"funding_rate"`
	Volume      float64 `yaml:"volume"`
}

// PaperSwapRoute - курс обмена на симулированном агрегаторе
type PaperSwapRoute struct {
	InputMint      string  `yaml:"input_mint"`
	OutputMint     string  `yaml:"output_mint"`
	Rate           float64 `yaml:"rate"` // выход за единицу входа, в целых токенах
	InputDecimals  int32   `yaml:"input_decimals"`
	OutputDecimals int32   `yaml:"output_decimals"`
}

// StrategiesConfig - настройки стратегий
type StrategiesConfig struct {
	FundingArb FundingArbConfig `yaml:"funding_arb"`
	SpotSpread SpotSpreadConfig `yaml:"spot_spread"`
	RoundTrip  RoundTripConfig  `yaml:"round_trip"`
}

// FundingArbConfig - арбитраж ставок финансирования
type FundingArbConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Venues              []string      `yaml:"venues"` // первая площадка - fallback для discovery
	MinAnnualizedSpread float64       `yaml:"min_annualized_spread"`
	CheckInterval       time.Duration `yaml:"check_interval"`
	TopSymbols          int           `yaml:"top_symbols"`
	PositionSize        float64       `yaml:"position_size"`
}

// SpotSpreadConfig - спред спотовой цены против референсной площадки
type SpotSpreadConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Venue          string        `yaml:"venue"`
	ReferenceVenue string        `yaml:"reference_venue"`
	Pairs          []string      `yaml:"pairs"` // формат BASE-QUOTE, референс торгуется по BASE
	MinSpreadBps   int64         `yaml:"min_spread_bps"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	PositionSize   float64       `yaml:"position_size"`
}

// RoundTripConfig - круговой обмен через агрегатор
type RoundTripConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Venue          string        `yaml:"venue"`
	Routes         []SwapRoute   `yaml:"routes"`
	Amount         uint64        `yaml:"amount"` // в минимальных единицах входного токена
	MinProfitBps   int64         `yaml:"min_profit_bps"`
	MaxSlippageBps uint64        `yaml:"max_slippage_bps"`
	CheckInterval  time.Duration `yaml:"check_interval"`
}

// SwapRoute - пара токенов для кругового обмена
type SwapRoute struct {
	InputMint  string `yaml:"input_mint"`
	OutputMint string `yaml:"output_mint"`
}

// NotifyConfig - публикация событий
type NotifyConfig struct {
	NATSURL            string `yaml:"nats_url"` // пусто = публикация в NATS отключена
	SubjectPrefix      string `yaml:"subject_prefix"`
	OpportunityLogSize int    `yaml:"opportunity_log_size"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			DryRun:    true,
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Risk: RiskConfig{
			MaxNotionalPerAsset:          10000,
			MaxOpenPositionsPerVenue:     5,
			MaxLeverage:                  3,
			KillSwitchDailyLossThreshold: -500,
			DailyResetUTC:                "00:00",
		},
		Strategies: StrategiesConfig{
			FundingArb: FundingArbConfig{
				Venues:              []string{"hyperliquid", "binance", "bybit"},
				MinAnnualizedSpread: 0.05,
				CheckInterval:       10 * time.Second,
				TopSymbols:          10,
				PositionSize:        1000,
			},
			SpotSpread: SpotSpreadConfig{
				Venue:          "hyperevm",
				ReferenceVenue: "hyperliquid",
				Pairs:          []string{"ETH-USDC", "BTC-USDC", "SOL-USDC"},
				MinSpreadBps:   10,
				CheckInterval:  10 * time.Second,
				PositionSize:   1,
			},
			RoundTrip: RoundTripConfig{
				Venue: "solana_jupiter",
				Routes: []SwapRoute{
					{InputMint: "So11111111111111111111111111111111111111112", OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
					{InputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", OutputMint: "So11111111111111111111111111111111111111112"},
				},
				Amount:         1_000_000_000,
				MinProfitBps:   20,
				MaxSlippageBps: 50,
				CheckInterval:  10 * time.Second,
			},
		},
		Notify: NotifyConfig{
			SubjectPrefix:      "arb",
			OpportunityLogSize: 200,
		},
	}
}

// Load загружает конфигурацию: .env → YAML документ → переменные окружения → валидация
func Load(path string) (*Config, error) {
	// .env опционален
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = getEnv("ARB_CONFIG", DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse разбирает YAML поверх значений по умолчанию (без env и валидации)
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// applyEnv переопределяет значения из переменных окружения
func (c *Config) applyEnv() {
	c.General.DryRun = getEnvAsBool("ARB_DRY_RUN", c.General.DryRun)
	c.General.LogLevel = getEnv("LOG_LEVEL", c.General.LogLevel)
	c.General.LogFormat = getEnv("LOG_FORMAT", c.General.LogFormat)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.TokenHash = getEnv("API_TOKEN_HASH", c.Server.TokenHash)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Notify.NATSURL = getEnv("NATS_URL", c.Notify.NATSURL)

	// Секреты площадок: HYPERLIQUID_PRIVATE_KEY, BINANCE_API_KEY, BYBIT_API_SECRET, ...
	for i := range c.Venues {
		v := &c.Venues[i]
		prefix := strings.ToUpper(v.Name)
		v.APIKey = getEnv(prefix+"_API_KEY", v.APIKey)
		v.APISecret = getEnv(prefix+"_API_SECRET", v.APISecret)
		v.PrivateKey = getEnv(prefix+"_PRIVATE_KEY", v.PrivateKey)
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if err := c.validateRisk(); err != nil {
		return err
	}
	if err := c.validateVenues(); err != nil {
		return err
	}
	if err := c.validateStrategies(); err != nil {
		return err
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

// validateRisk проверяет лимиты риск-движка
func (c *Config) validateRisk() error {
	r := c.Risk
	if r.MaxNotionalPerAsset <= 0 {
		return fmt.Errorf("risk.max_notional_per_asset must be positive, got %v", r.MaxNotionalPerAsset)
	}
	if r.MaxOpenPositionsPerVenue <= 0 {
		return fmt.Errorf("risk.max_open_positions_per_venue must be positive, got %d", r.MaxOpenPositionsPerVenue)
	}
	if r.MaxLeverage < 1 {
		return fmt.Errorf("risk.max_leverage must be at least 1, got %v", r.MaxLeverage)
	}
	if r.KillSwitchDailyLossThreshold >= 0 {
		return fmt.Errorf("risk.kill_switch_daily_loss_threshold must be negative, got %v", r.KillSwitchDailyLossThreshold)
	}
	if _, err := r.ResetOffset(); err != nil {
		return err
	}
	return nil
}

// validateVenues проверяет имена и дубликаты площадок
func (c *Config) validateVenues() error {
	seen := make(map[models.Venue]bool, len(c.Venues))
	for _, v := range c.Venues {
		venue, err := models.ParseVenue(v.Name)
		if err != nil {
			return fmt.Errorf("venues: %w", err)
		}
		if seen[venue] {
			return fmt.Errorf("venues: duplicate venue %s", venue)
		}
		seen[venue] = true
		if v.Timeout < 0 || v.MaxRetries < 0 || v.RateLimit < 0 {
			return fmt.Errorf("venues.%s: timeout, max_retries and rate_limit cannot be negative", venue)
		}
	}
	return nil
}

// validateStrategies проверяет включённые стратегии
func (c *Config) validateStrategies() error {
	s := c.Strategies
	if !s.FundingArb.Enabled && !s.SpotSpread.Enabled && !s.RoundTrip.Enabled {
		return ErrNoStrategyEnabled
	}

	if s.FundingArb.Enabled {
		if len(s.FundingArb.Venues) < 2 {
			return fmt.Errorf("strategies.funding_arb: at least 2 venues required, got %d", len(s.FundingArb.Venues))
		}
		seen := make(map[models.Venue]bool, len(s.FundingArb.Venues))
		for _, name := range s.FundingArb.Venues {
			if err := c.requireVenue("funding_arb", name); err != nil {
				return err
			}
			venue, _ := models.ParseVenue(name)
			if seen[venue] {
				return fmt.Errorf("strategies.funding_arb: duplicate venue %s", venue)
			}
			seen[venue] = true
		}
		if s.FundingArb.CheckInterval <= 0 || s.FundingArb.TopSymbols <= 0 || s.FundingArb.PositionSize <= 0 {
			return fmt.Errorf("strategies.funding_arb: check_interval, top_symbols and position_size must be positive")
		}
	}

	if s.SpotSpread.Enabled {
		if err := c.requireVenue("spot_spread", s.SpotSpread.Venue); err != nil {
			return err
		}
		if err := c.requireVenue("spot_spread", s.SpotSpread.ReferenceVenue); err != nil {
			return err
		}
		if len(s.SpotSpread.Pairs) == 0 {
			return fmt.Errorf("strategies.spot_spread: pairs cannot be empty")
		}
		if s.SpotSpread.CheckInterval <= 0 || s.SpotSpread.PositionSize <= 0 {
			return fmt.Errorf("strategies.spot_spread: check_interval and position_size must be positive")
		}
	}

	if s.RoundTrip.Enabled {
		if err := c.requireVenue("round_trip", s.RoundTrip.Venue); err != nil {
			return err
		}
		if len(s.RoundTrip.Routes) == 0 {
			return fmt.Errorf("strategies.round_trip: routes cannot be empty")
		}
		if s.RoundTrip.Amount == 0 || s.RoundTrip.CheckInterval <= 0 {
			return fmt.Errorf("strategies.round_trip: amount and check_interval must be positive")
		}
	}
	return nil
}

// requireVenue проверяет, что площадка стратегии описана в venues
func (c *Config) requireVenue(strategy, name string) error {
	venue, err := models.ParseVenue(name)
	if err != nil {
		return fmt.Errorf("strategies.%s: %w", strategy, err)
	}
	if _, ok := c.Venue(venue); !ok {
		return fmt.Errorf("strategies.%s: venue %s is not configured", strategy, venue)
	}
	return nil
}

// Venue возвращает настройки площадки
func (c *Config) Venue(v models.Venue) (VenueConfig, bool) {
	for _, vc := range c.Venues {
		if parsed, err := models.ParseVenue(vc.Name); err == nil && parsed == v {
			return vc, true
		}
	}
	return VenueConfig{}, false
}

// EnabledStrategies - флаги включения стратегий (для API статуса)
func (c *Config) EnabledStrategies() map[models.StrategyKind]bool {
	return map[models.StrategyKind]bool{
		models.StrategyFundingArb: c.Strategies.FundingArb.Enabled,
		models.StrategySpotSpread: c.Strategies.SpotSpread.Enabled,
		models.StrategyRoundTrip:  c.Strategies.RoundTrip.Enabled,
	}
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// splitList разбирает список через запятую
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
