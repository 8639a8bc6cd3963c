// Package aggregate turns a poll's panel readings into totals and
// averages, extrapolating for missing panels when configured.
package aggregate

import (
	"math"
	"time"

	"github.com/lox/apsmon/internal/models"
)

// Aggregator derives an AggregateResult from a ReadingSet. Now is the
// timestamp source; tests inject a fixed clock.
type Aggregator struct {
	ScaleMissing  bool
	ExpectedCount *int
	Now           func() time.Time
}

func New(scaleMissing bool, expectedCount *int) *Aggregator {
	return &Aggregator{
		ScaleMissing:  scaleMissing,
		ExpectedCount: expectedCount,
		Now:           time.Now,
	}
}

// Aggregate computes totals and present-only averages. Scaling applies
// only when enabled, a positive expected count exceeds the received
// count, and at least one panel reported; an empty set stays at raw
// zero rather than dividing by it.
func (a *Aggregator) Aggregate(set models.ReadingSet) models.AggregateResult {
	res := models.AggregateResult{
		ReceivedCount: len(set),
		ExpectedCount: a.ExpectedCount,
		Timestamp:     a.Now(),
	}

	for _, r := range set {
		res.TotalWattsRaw += r.Watts
	}
	res.TotalWattsForOutput = res.TotalWattsRaw

	res.AvgVolt = mean(set, func(r models.PanelReading) *float64 { return r.Volts })
	res.AvgTempC = mean(set, func(r models.PanelReading) *float64 { return r.TempC })
	res.AvgFreqHz = mean(set, func(r models.PanelReading) *float64 { return r.FreqHz })

	if a.ScaleMissing && a.ExpectedCount != nil && *a.ExpectedCount > 0 &&
		*a.ExpectedCount > res.ReceivedCount && res.ReceivedCount > 0 {
		est := roundHalfUp(float64(res.TotalWattsRaw) * float64(*a.ExpectedCount) / float64(res.ReceivedCount))
		res.TotalWattsEstimated = &est
		res.TotalWattsForOutput = est
		res.Scaled = true
	}

	return res
}

// mean averages the panels that report the metric; nil when none do, so
// missing values never dilute the average.
func mean(set models.ReadingSet, pick func(models.PanelReading) *float64) *float64 {
	var sum float64
	var n int
	for _, r := range set {
		if v := pick(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// roundHalfUp rounds to the nearest integer with .5 going up.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
