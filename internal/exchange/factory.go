package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/config"
	"arbd/internal/models"
	"arbd/pkg/retry"
)

// ModePaper - встроенная симулированная площадка
const ModePaper = "paper"

// Constructor создаёт адаптер площадки по её конфигурации
type Constructor func(venue models.Venue, cfg config.VenueConfig, logger *zap.Logger) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		ModePaper: newPaperFromConfig,
	}
)

// Register подключает коннектор под именем режима (mode в конфигурации площадки)
func Register(mode string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(mode)] = c
}

// SupportedModes возвращает зарегистрированные режимы
func SupportedModes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	modes := make([]string, 0, len(registry))
	for m := range registry {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// IsSupported проверяет, зарегистрирован ли режим
func IsSupported(mode string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(mode)]
	return ok
}

// NewAdapter создаёт адаптер площадки, обёрнутый в Resilient
func NewAdapter(cfg config.VenueConfig, logger *zap.Logger) (Adapter, error) {
	venue, err := models.ParseVenue(cfg.Name)
	if err != nil {
		return nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	if mode == "" {
		mode = ModePaper
	}

	registryMu.RLock()
	ctor, ok := registry[mode]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("venue %s: unsupported mode %q (supported: %s)", venue, cfg.Mode, strings.Join(SupportedModes(), ", "))
	}

	inner, err := ctor(venue, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("venue %s: %w", venue, err)
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries + 1
	}

	return NewResilient(inner, ResilientOptions{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Retry:     retryCfg,
	}, logger), nil
}

// NewAdapters создаёт адаптеры всех настроенных площадок
func NewAdapters(cfgs []config.VenueConfig, logger *zap.Logger) (map[models.Venue]Adapter, error) {
	adapters := make(map[models.Venue]Adapter, len(cfgs))
	for _, vc := range cfgs {
		a, err := NewAdapter(vc, logger)
		if err != nil {
			return nil, err
		}
		adapters[a.Venue()] = a
	}
	return adapters, nil
}

func newPaperFromConfig(venue models.Venue, cfg config.VenueConfig, _ *zap.Logger) (Adapter, error) {
	opts := PaperOptions{
		Seed:       cfg.Paper.Seed,
		Volatility: cfg.Paper.Volatility,
	}
	for _, m := range cfg.Paper.Markets {
		if m.Symbol == "" || m.Price < 0 {
			return nil, fmt.Errorf("paper market %q: symbol required and price cannot be negative", m.Symbol)
		}
		opts.Markets = append(opts.Markets, PaperMarket{
			Symbol:      m.Symbol,
			Price:       decimal.NewFromFloat(m.Price),
			FundingRate: decimal.NewFromFloat(m.FundingRate),
			Volume:      decimal.NewFromFloat(m.Volume),
		})
	}
	for _, r := range cfg.Paper.Routes {
		if r.Rate <= 0 {
			return nil, fmt.Errorf("paper route %s -> %s: rate must be positive", r.InputMint, r.OutputMint)
		}
		opts.Routes = append(opts.Routes, PaperRoute{
			InputMint:      r.InputMint,
			OutputMint:     r.OutputMint,
			Rate:           decimal.NewFromFloat(r.Rate),
			InputDecimals:  r.InputDecimals,
			OutputDecimals: r.OutputDecimals,
		})
	}
	return NewPaper(venue, opts), nil
}
