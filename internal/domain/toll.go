package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TollRecord is one persisted vehicle-passage event. Records are created by
// the importer from upstream payloads and never updated or deleted here.
type TollRecord struct {
	ID         int64           `db:"id"`
	Station    string          `db:"station"`
	Direction  string          `db:"direction"`
	OccurredAt time.Time       `db:"occurred_at"`
	Category   string          `db:"category"`
	Amount     decimal.Decimal `db:"amount"`
	IngestedAt time.Time       `db:"ingested_at"`
}

// Passage is a raw per-hour record as served by the upstream API. Hour is an
// offset (0-23) from the requested date's midnight.
type Passage struct {
	Station   string
	Direction string
	Hour      int
	Category  string
	Amount    decimal.Decimal
}

// FetchOutcome is the successful result of a single date fetch. Empty marks
// an explicit no-data answer from the source (204, blank body or empty
// array); it must never be confused with a fetch failure, which travels as
// an error alongside a nil outcome.
type FetchOutcome struct {
	Passages []Passage
	Empty    bool
}

// VehicleCount mirrors Passage for the vehicle-counting endpoint, carrying a
// quantity instead of an amount. Consumed as a pass-through only.
type VehicleCount struct {
	Station   string
	Direction string
	Hour      int
	Category  string
	Quantity  int
}

// ImportEvent describes one successfully imported day.
type ImportEvent struct {
	Date    time.Time
	Records int
	Total   decimal.Decimal
}
