package utils

import (
	"fmt"
	"strings"
)

const (
	minSymbolLength = 2
	maxSymbolLength = 30
)

// ValidateSymbol проверяет формат символа: буквы, цифры и разделители - _ /
func ValidateSymbol(symbol string) error {
	if len(symbol) < minSymbolLength || len(symbol) > maxSymbolLength {
		return fmt.Errorf("symbol %q must be %d-%d characters", symbol, minSymbolLength, maxSymbolLength)
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '/':
		default:
			return fmt.Errorf("symbol %q contains invalid character %q", symbol, r)
		}
	}
	return nil
}

// NormalizeSymbol приводит символ к верхнему регистру без пробелов
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SplitPair разбирает пару вида BASE-QUOTE (также BASE/QUOTE, BASE_QUOTE)
func SplitPair(pair string) (base, quote string, err error) {
	if err := ValidateSymbol(pair); err != nil {
		return "", "", err
	}
	parts := strings.FieldsFunc(NormalizeSymbol(pair), func(r rune) bool {
		return r == '-' || r == '/' || r == '_'
	})
	if len(parts) != 2 {
		return "", "", fmt.Errorf("pair %q must have form BASE-QUOTE", pair)
	}
	return parts[0], parts[1], nil
}
