package model

import "fmt"

// ColumnKind is the physical parquet type of a batch column.
type ColumnKind int

const (
	ColumnInt64 ColumnKind = iota
	ColumnDouble
	ColumnString
)

// Column is one column of a batch file schema. Column order is part of
// the durable output contract: files in the same partition lineage must
// stay rectangular with identical column order.
type Column struct {
	Name string
	Kind ColumnKind
}

// Record is one flattened row keyed by column name. A missing key means
// an explicit null in the batch file, never an omitted column.
type Record map[string]any

// OrderbookColumns returns the fixed column layout for orderbook batches
// at the given depth: 4 header columns plus (price, quantity) pairs for
// depth bid levels then depth ask levels.
func OrderbookColumns(depth int) []Column {
	cols := []Column{
		{Name: "local_ts", Kind: ColumnInt64},
		{Name: "exchange_ts", Kind: ColumnInt64},
		{Name: "datetime", Kind: ColumnString},
		{Name: "symbol", Kind: ColumnString},
	}
	for i := 1; i <= depth; i++ {
		cols = append(cols,
			Column{Name: fmt.Sprintf("bid_p_%d", i), Kind: ColumnDouble},
			Column{Name: fmt.Sprintf("bid_q_%d", i), Kind: ColumnDouble},
		)
	}
	for i := 1; i <= depth; i++ {
		cols = append(cols,
			Column{Name: fmt.Sprintf("ask_p_%d", i), Kind: ColumnDouble},
			Column{Name: fmt.Sprintf("ask_q_%d", i), Kind: ColumnDouble},
		)
	}
	return cols
}

// TradeColumns returns the fixed column layout for trade batches.
func TradeColumns() []Column {
	return []Column{
		{Name: "timestamp", Kind: ColumnInt64},
		{Name: "datetime", Kind: ColumnString},
		{Name: "symbol", Kind: ColumnString},
		{Name: "side", Kind: ColumnString},
		{Name: "price", Kind: ColumnDouble},
		{Name: "amount", Kind: ColumnDouble},
		{Name: "cost", Kind: ColumnDouble},
		{Name: "trade_id", Kind: ColumnString},
		{Name: "type", Kind: ColumnString},
	}
}

// Record flattens the snapshot into the orderbook column layout.
// Levels beyond the book's actual depth are left absent (null columns).
func (s *OrderbookSnapshot) Record(depth int) Record {
	rec := Record{
		"local_ts":    s.LocalTS,
		"exchange_ts": s.ExchangeTS,
		"datetime":    s.Datetime,
		"symbol":      s.Symbol,
	}
	for i := 0; i < depth && i < len(s.Bids); i++ {
		rec[fmt.Sprintf("bid_p_%d", i+1)] = s.Bids[i].Price
		rec[fmt.Sprintf("bid_q_%d", i+1)] = s.Bids[i].Quantity
	}
	for i := 0; i < depth && i < len(s.Asks); i++ {
		rec[fmt.Sprintf("ask_p_%d", i+1)] = s.Asks[i].Price
		rec[fmt.Sprintf("ask_q_%d", i+1)] = s.Asks[i].Quantity
	}
	return rec
}

// Record flattens the trade into the trade column layout. Fields the
// venue did not report stay absent so they serialize as nulls.
func (t *TradeRecord) Record() Record {
	rec := Record{
		"timestamp": t.Timestamp,
		"datetime":  t.Datetime,
		"symbol":    t.Symbol,
		"price":     t.Price,
		"amount":    t.Amount,
		"cost":      t.Cost,
	}
	if t.Side != "" {
		rec["side"] = t.Side
	}
	if t.TradeID != "" {
		rec["trade_id"] = t.TradeID
	}
	if t.OrderType != "" {
		rec["type"] = t.OrderType
	}
	return rec
}
