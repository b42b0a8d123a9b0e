package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotal is the per-vehicle-category slice of a report group.
type CategoryTotal struct {
	Category string
	Count    int
	Total    decimal.Decimal
}

// StationDayRow aggregates one station on one calendar date.
type StationDayRow struct {
	Station    string
	Date       time.Time
	Vehicles   int
	Total      decimal.Decimal
	Categories []CategoryTotal
}

// MonthlyReport groups a month's records by station and date. The summary
// fields are derived from Rows, so they are consistent with them by
// construction.
type MonthlyReport struct {
	Period   string // yyyy-MM
	Stations int
	Days     int
	Vehicles int
	Total    decimal.Decimal
	Rows     []StationDayRow
}

// StationRow aggregates one station over the whole month. AvgDailyRevenue is
// Total divided by the number of distinct dates the station has data for.
type StationRow struct {
	Station         string
	Vehicles        int
	Total           decimal.Decimal
	AvgDailyRevenue decimal.Decimal
	Categories      []CategoryTotal
}

// StationReport groups a month's records by station, ordered by total
// revenue descending.
type StationReport struct {
	Period   string
	Stations int
	Rows     []StationRow
}
