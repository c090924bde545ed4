package model

import (
	"path/filepath"
	"strings"
	"time"
)

// EntityType identifies which kind of market data a record carries.
type EntityType string

const (
	EntityOrderbook EntityType = "orderbook"
	EntityTrade     EntityType = "trade"
)

// Subdir returns the entity's directory name under the data root.
func (e EntityType) Subdir() string {
	switch e {
	case EntityOrderbook:
		return "orderbooks"
	case EntityTrade:
		return "trades"
	}
	return string(e)
}

// FilePrefix returns the entity's batch file name prefix.
func (e EntityType) FilePrefix() string {
	switch e {
	case EntityOrderbook:
		return "orderbook"
	case EntityTrade:
		return "trades"
	}
	return string(e)
}

// PriceLevel is one (price, quantity) pair of an orderbook side.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderbookSnapshot is one venue's top-of-book state at a point in time.
// Bids and Asks are already truncated to the collector's configured depth.
type OrderbookSnapshot struct {
	LocalTS    int64  // ms since epoch, assigned on receive
	ExchangeTS int64  // ms since epoch as reported by the venue
	Datetime   string // human-readable UTC, ms precision
	Symbol     string
	Bids       []PriceLevel
	Asks       []PriceLevel
}

// TradeRecord is one executed trade. The JSON field names match the
// trade batch column names so the broadcast payload mirrors the files.
type TradeRecord struct {
	Timestamp int64   `json:"timestamp"` // ms since epoch, venue-reported
	Datetime  string  `json:"datetime"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"` // "buy" or "sell"
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Cost      float64 `json:"cost"`
	TradeID   string  `json:"trade_id"`
	OrderType string  `json:"type"`
}

// PartitionKey identifies one buffer and one output directory lineage.
type PartitionKey struct {
	Entity     EntityType
	MarketType string
	Exchange   string
	Symbol     string // normalized, path-safe
	Date       string // UTC calendar date, YYYY-MM-DD
}

// Dir returns the partition's output directory under dataRoot.
// Layout: {dataRoot}/{orderbooks|trades}/{marketType}/{exchange}/{symbol}/{date}
func (k PartitionKey) Dir(dataRoot string) string {
	return filepath.Join(dataRoot, k.Entity.Subdir(), k.MarketType, k.Exchange, k.Symbol, k.Date)
}

// NormalizeSymbol renders a trading pair identifier path-safe.
// "BTC/USDT:USDT" becomes "BTC_USDT_USDT".
func NormalizeSymbol(symbol string) string {
	s := strings.ReplaceAll(symbol, "/", "_")
	return strings.ReplaceAll(s, ":", "_")
}

// FormatDatetime renders a ms-epoch timestamp as UTC with ms precision,
// e.g. "2024-01-15 12:00:00.123".
func FormatDatetime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05.000")
}

// DateFromMillis returns the UTC calendar date of a ms-epoch timestamp.
func DateFromMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

// BroadcastEvent is the transport-agnostic notification pushed to live
// subscribers for every usable record.
type BroadcastEvent struct {
	Type       string `json:"type"` // "orderbook" or "trade"
	Exchange   string `json:"exchange_id"`
	MarketType string `json:"market_type"`
	Symbol     string `json:"symbol"`
	Payload    any    `json:"payload"`
}

// OrderbookPayload is the orderbook broadcast payload, truncated to the
// configured depth.
type OrderbookPayload struct {
	Symbol  string       `json:"symbol"`
	LocalTS int64        `json:"local_ts"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
}
