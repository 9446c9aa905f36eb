package simulator

import (
	"math"

	"github.com/yourusername/tradeforge/internal/models"
)

const bookDepth = 10

// BookLevel is one price level of the synthetic order book
type BookLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// OrderBook is a synthetic bid/ask ladder derived from the latest close.
// It exists for spread diagnostics; fills never consume it.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// Spread returns the top-of-book ask minus bid
func (b OrderBook) Spread() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price - b.Bids[0].Price
}

// buildOrderBook derives a 10-level ladder: spread scales inversely with the
// liquidity factor, prices step 0.05% per level and volume decays
// exponentially with a uniform jitter draw per level.
func (s *MarketSimulator) buildOrderBook(candle models.Candle) OrderBook {
	closePrice := candle.Close
	spread := closePrice * 0.001 / s.liquidity

	bidTop := closePrice - spread/2
	askTop := closePrice + spread/2

	baseVolume := candle.Volume
	if baseVolume <= 0 {
		baseVolume = 1000
	}

	book := OrderBook{
		Bids: make([]BookLevel, 0, bookDepth),
		Asks: make([]BookLevel, 0, bookDepth),
	}
	for i := 0; i < bookDepth; i++ {
		levelVolume := func() float64 {
			jitter := 0.8 + 0.4*s.rng.Float64()
			return baseVolume * math.Exp(-0.1*float64(i)) * jitter
		}
		book.Bids = append(book.Bids, BookLevel{
			Price:  bidTop * (1 - 0.0005*float64(i)),
			Volume: levelVolume(),
		})
		book.Asks = append(book.Asks, BookLevel{
			Price:  askTop * (1 + 0.0005*float64(i)),
			Volume: levelVolume(),
		})
	}

	return book
}
