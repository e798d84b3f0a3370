// Package market fetches time series for a ticker symbol from a
// Yahoo-chart-compatible JSON endpoint.
package market

import "time"

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Direction describes how a series moved over its window.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// Series is a fetched price history plus quote metadata.
type Series struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Range     string    `json:"range"`
	Candles   []Candle  `json:"candles"`
	Price     float64   `json:"price"`
	PrevClose float64   `json:"prev_close"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Change returns the absolute price change against the previous close.
func (s *Series) Change() float64 {
	return s.Price - s.PrevClose
}

// ChangePct returns the percentage change against the previous close.
// Returns 0 when the previous close is unknown.
func (s *Series) ChangePct() float64 {
	if s.PrevClose == 0 {
		return 0
	}
	return s.Change() / s.PrevClose * 100
}

// Direction classifies the current move. Moves under 0.05% count as flat.
func (s *Series) Direction() Direction {
	pct := s.ChangePct()
	switch {
	case pct > 0.05:
		return Up
	case pct < -0.05:
		return Down
	default:
		return Flat
	}
}

// Closes returns the close prices in candle order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}
