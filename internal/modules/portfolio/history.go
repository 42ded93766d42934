package portfolio

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// HistoryWindow is how far back history points are kept
const HistoryWindow = 30 * 24 * time.Hour

// HistoryPoint is the portfolio value at one moment, in the display currency
type HistoryPoint struct {
	Timestamp   time.Time          `json:"timestamp"`
	AssetValues map[string]float64 `json:"asset_values"`
	TotalValue  float64            `json:"total_value"`
}

// HistorySummary describes the movement over the kept window
type HistorySummary struct {
	Since     time.Time `json:"since"`
	Until     time.Time `json:"until"`
	Points    int       `json:"points"`
	First     float64   `json:"first"`
	Last      float64   `json:"last"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
}

// appendHistory prunes points older than the window and appends point.
// Timestamps are forced to strictly increase.
func appendHistory(history []HistoryPoint, point HistoryPoint, now time.Time) []HistoryPoint {
	cutoff := now.Add(-HistoryWindow)

	kept := make([]HistoryPoint, 0, len(history)+1)
	for _, p := range history {
		if !p.Timestamp.Before(cutoff) {
			kept = append(kept, p)
		}
	}

	if n := len(kept); n > 0 && !point.Timestamp.After(kept[n-1].Timestamp) {
		point.Timestamp = kept[n-1].Timestamp.Add(time.Nanosecond)
	}
	return append(kept, point)
}

// newHistoryPoint builds a point from analytics
func newHistoryPoint(a *Analytics, at time.Time) HistoryPoint {
	values := make(map[string]float64, len(a.Distribution))
	for _, alloc := range a.Distribution {
		values[alloc.Entry.ID] = alloc.Value
	}
	return HistoryPoint{
		Timestamp:   at,
		TotalValue:  a.TotalValue,
		AssetValues: values,
	}
}

// Summarize returns the summary of history, or nil when it is empty
func Summarize(history []HistoryPoint) *HistorySummary {
	if len(history) == 0 {
		return nil
	}

	totals := make([]float64, len(history))
	for i, p := range history {
		totals[i] = p.TotalValue
	}

	first := history[0]
	last := history[len(history)-1]
	s := &HistorySummary{
		Since:  first.Timestamp,
		Until:  last.Timestamp,
		Points: len(history),
		First:  first.TotalValue,
		Last:   last.TotalValue,
		High:   floats.Max(totals),
		Low:    floats.Min(totals),
		Change: last.TotalValue - first.TotalValue,
	}
	if first.TotalValue != 0 {
		s.ChangePct = s.Change / first.TotalValue * 100
	}
	return s
}

func cloneHistory(history []HistoryPoint) []HistoryPoint {
	out := make([]HistoryPoint, len(history))
	for i, p := range history {
		values := make(map[string]float64, len(p.AssetValues))
		for k, v := range p.AssetValues {
			values[k] = v
		}
		p.AssetValues = values
		out[i] = p
	}
	return out
}
