package models

import (
	"fmt"
	"strings"
)

// Venue - торговая площадка (CEX, DEX или on-chain агрегатор)
//
// Закрытое перечисление: используется как ключ map и для риск-бакетов.
// Порядок констант значим - это порядок обхода при выборе max/min
// в детекторах (при равенстве побеждает первая площадка).
type Venue int

const (
	VenueHyperliquid Venue = iota
	VenueBinance
	VenueBybit
	VenueHyperEVM
	VenueSolanaJupiter
)

// AllVenues - все площадки в порядке перечисления
var AllVenues = []Venue{
	VenueHyperliquid,
	VenueBinance,
	VenueBybit,
	VenueHyperEVM,
	VenueSolanaJupiter,
}

var venueNames = [...]string{
	VenueHyperliquid:   "hyperliquid",
	VenueBinance:       "binance",
	VenueBybit:         "bybit",
	VenueHyperEVM:      "hyperevm",
	VenueSolanaJupiter: "solana_jupiter",
}

// String возвращает имя площадки (для логов, метрик и JSON)
func (v Venue) String() string {
	if v < 0 || int(v) >= len(venueNames) {
		return fmt.Sprintf("venue(%d)", int(v))
	}
	return venueNames[v]
}

// Valid проверяет, что значение входит в перечисление
func (v Venue) Valid() bool {
	return v >= 0 && int(v) < len(venueNames)
}

// ParseVenue разбирает имя площадки без учёта регистра
func ParseVenue(name string) (Venue, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range venueNames {
		if n == name {
			return Venue(i), nil
		}
	}
	return 0, fmt.Errorf("unknown venue: %q", name)
}

// MarshalText - JSON/YAML представление в виде строки
func (v Venue) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid venue: %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText разбирает площадку из строки
func (v *Venue) UnmarshalText(text []byte) error {
	parsed, err := ParseVenue(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
