package endpoint

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// QuoteSource produces a synthetic volatile quote around a base price.
type QuoteSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewQuoteSource(seed int64) *QuoteSource {
	return &QuoteSource{rng: rand.New(rand.NewSource(seed))}
}

func (q *QuoteSource) Quote() QuoteResponse {
	q.mu.Lock()
	price := 100.0 + (q.rng.Float64()*10 - 5)
	q.mu.Unlock()
	return QuoteResponse{
		Symbol:    "MCP",
		Price:     math.Round(price*100) / 100,
		Timestamp: time.Now().UnixMilli(),
	}
}
