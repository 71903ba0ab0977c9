package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pairs-sentinel/internal/tick"
)

// flexFloat tolerates feed fields arriving as JSON strings or numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt tolerates integer fields arriving as JSON strings or numbers.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	*f = flexInt(v)
	return nil
}

// TradeMessage is one trade event from the feed.
// Field names follow the Binance trade stream payload.
type TradeMessage struct {
	EventType string    `json:"e"`
	Symbol    string    `json:"s"`
	TradeID   flexInt   `json:"t"`
	Price     flexFloat `json:"p"`
	Quantity  flexFloat `json:"q"`
	TradeTime flexInt   `json:"T"`
}

// streamEnvelope wraps a combined-stream message: {"stream": "...", "data": {...}}
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// decodeTrade parses a raw websocket frame into a TradeMessage. Both bare
// trade payloads and combined-stream envelopes are accepted.
func decodeTrade(raw []byte) (*TradeMessage, error) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	payload := raw
	if len(env.Data) > 0 {
		payload = env.Data
	}

	var msg TradeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode trade payload: %w", err)
	}
	if msg.EventType != "trade" {
		return nil, nil
	}
	return &msg, nil
}

// ToTick converts a decoded trade message into a Tick.
func (m *TradeMessage) ToTick() tick.Tick {
	return tick.Tick{
		Symbol:    strings.ToUpper(m.Symbol),
		EventTime: time.UnixMilli(int64(m.TradeTime)).UTC(),
		Price:     float64(m.Price),
		Quantity:  float64(m.Quantity),
		TradeID:   int64(m.TradeID),
	}
}
