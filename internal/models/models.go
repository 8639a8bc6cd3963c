package models

import "time"

// PanelReading is one microinverter's readings for a single poll cycle.
// Optional metrics are nil when the gateway omits the column or the cell
// cannot be read as a number.
type PanelReading struct {
	ID     string
	Watts  int
	Volts  *float64
	TempC  *float64
	FreqHz *float64
}

// ReadingSet holds one poll's readings in document order.
type ReadingSet []PanelReading

// AggregateResult is derived from a ReadingSet, recomputed each run.
// TotalWattsForOutput equals *TotalWattsEstimated when Scaled, otherwise
// TotalWattsRaw. Averages cover only the panels reporting that metric and
// are nil when none do.
type AggregateResult struct {
	ReceivedCount       int
	ExpectedCount       *int
	TotalWattsRaw       int
	TotalWattsEstimated *int
	TotalWattsForOutput int
	AvgVolt             *float64
	AvgTempC            *float64
	AvgFreqHz           *float64
	Scaled              bool
	Timestamp           time.Time
}
