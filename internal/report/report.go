// Package report shapes an aggregation for display or JSON emission.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lox/apsmon/internal/models"
)

// Document is the JSON output for one run. Absent metrics are emitted
// as null, never zero.
type Document struct {
	Source              string         `json:"source"`
	Timestamp           string         `json:"timestamp"`
	ReceivedCount       int            `json:"received_count"`
	ExpectedCount       *int           `json:"expected_count"`
	TotalWattsRaw       int            `json:"total_watts_raw"`
	TotalWattsEstimated *int           `json:"total_watts_estimated"`
	TotalWattsForOutput int            `json:"total_watts_for_output"`
	AvgVoltV            *float64       `json:"avg_volt_v"`
	AvgTempC            *float64       `json:"avg_temp_c"`
	AvgFreqHz           *float64       `json:"avg_freq_hz"`
	ScaledDueToMissing  bool           `json:"scaled_due_to_missing"`
	Panels              map[string]int `json:"panels"`
}

// NewDocument builds the JSON view of one run.
func NewDocument(source string, set models.ReadingSet, res models.AggregateResult) Document {
	panels := make(map[string]int, len(set))
	for _, r := range set {
		panels[r.ID] = r.Watts
	}
	return Document{
		Source:              source,
		Timestamp:           res.Timestamp.Format(time.RFC3339),
		ReceivedCount:       res.ReceivedCount,
		ExpectedCount:       res.ExpectedCount,
		TotalWattsRaw:       res.TotalWattsRaw,
		TotalWattsEstimated: res.TotalWattsEstimated,
		TotalWattsForOutput: res.TotalWattsForOutput,
		AvgVoltV:            res.AvgVolt,
		AvgTempC:            res.AvgTempC,
		AvgFreqHz:           res.AvgFreqHz,
		ScaledDueToMissing:  res.Scaled,
		Panels:              panels,
	}
}

// Encode renders the document as indented JSON. Struct field order and
// Go's sorted map keys keep the output byte-identical for identical
// input.
func (d Document) Encode() (string, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteText renders the human-readable summary: per-panel wattage in
// document order, counts, totals, and whichever averages exist.
func WriteText(w io.Writer, source string, set models.ReadingSet, res models.AggregateResult) {
	fmt.Fprintf(w, "Data source: %s\n\n", source)

	fmt.Fprintln(w, "Panel readings:")
	for _, r := range set {
		fmt.Fprintf(w, "  %s: %d W\n", r.ID, r.Watts)
	}
	if len(set) == 0 {
		fmt.Fprintln(w, "  (no panels reporting)")
	}
	fmt.Fprintln(w)

	if res.ExpectedCount != nil {
		fmt.Fprintf(w, "Panels reporting: %d of %d\n", res.ReceivedCount, *res.ExpectedCount)
	} else {
		fmt.Fprintf(w, "Panels reporting: %d\n", res.ReceivedCount)
	}

	fmt.Fprintf(w, "Total power (raw): %d W\n", res.TotalWattsRaw)
	if res.Scaled {
		fmt.Fprintf(w, "Total power (estimated): %d W [scaled for missing panels]\n", *res.TotalWattsEstimated)
	}
	fmt.Fprintf(w, "Total power (output): %d W\n", res.TotalWattsForOutput)

	if res.AvgVolt != nil {
		fmt.Fprintf(w, "Avg voltage: %.1f V\n", *res.AvgVolt)
	}
	if res.AvgTempC != nil {
		fmt.Fprintf(w, "Avg temp: %.1f °C\n", *res.AvgTempC)
	}
	if res.AvgFreqHz != nil {
		fmt.Fprintf(w, "Avg frequency: %.2f Hz\n", *res.AvgFreqHz)
	}
}
