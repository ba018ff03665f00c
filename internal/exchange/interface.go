package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"arbd/internal/models"
)

// Adapter определяет унифицированный интерфейс площадки.
// Реализации (коннекторы API, подпись ордеров, RPC блокчейнов) подключаются через Register.
type Adapter interface {
	// Venue возвращает площадку адаптера
	Venue() models.Venue

	// GetMarketData получает последнюю цену символа
	GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error)

	// GetFundingRate получает текущую ставку финансирования бессрочного контракта
	GetFundingRate(ctx context.Context, symbol string) (*models.FundingRate, error)

	// GetTopSymbolsByVolume возвращает до limit символов по убыванию объёма
	GetTopSymbolsByVolume(ctx context.Context, limit int) ([]string, error)

	// PlaceOrder размещает ордер. Trade.Status сообщает результат площадки.
	PlaceOrder(ctx context.Context, symbol string, side models.Side, size, price decimal.Decimal) (*models.Trade, error)
}

// Quoter - опциональная возможность агрегатора обменов: котировка
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount, slippageBps uint64) (*models.Quote, error)
}

// Swapper - опциональная возможность агрегатора: исполнение пары котировок.
// Возвращает по сделке на каждую исполненную ногу.
type Swapper interface {
	ExecuteSwap(ctx context.Context, forward, reverse *models.Quote) ([]*models.Trade, error)
}

// ErrNotSupported - у площадки нет запрошенной возможности
var ErrNotSupported = errors.New("operation not supported by venue")

// VenueError представляет ошибку от площадки
type VenueError struct {
	Venue     models.Venue
	Op        string
	Code      string
	Message   string
	Original  error
	Temporary bool // сетевые сбои, лимиты, 5xx
}

func (e *VenueError) Error() string {
	msg := e.Message
	if msg == "" && e.Original != nil {
		msg = e.Original.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: [%s] %s", e.Venue, e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Venue, e.Op, msg)
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *VenueError) Unwrap() error {
	return e.Original
}

// Retryable сообщает pkg/retry, можно ли повторить запрос
func (e *VenueError) Retryable() bool {
	return e.Temporary
}
