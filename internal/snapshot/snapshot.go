// Package snapshot defines the record produced by one run and persists it as JSON.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"quotefetcher/internal/fetcher"
)

// NoMarker is written as latestObservedMarker when no quote carried an asOf value.
const NoMarker = "—"

// TimestampFormat is ISO-8601, UTC, second precision.
const TimestampFormat = "2006-01-02T15:04:05Z"

// Snapshot is the result of one run. It is built incrementally by the
// coordinator and must not be modified after Finalize.
//
// A symbol appears in at most one of Prices and Errors.
type Snapshot struct {
	AsOfRunTimestamp     time.Time
	LatestObservedMarker string
	Source               string
	Prices               map[string]float64
	Errors               map[string]string
}

// New creates an empty snapshot for a run started at startedAt.
func New(startedAt time.Time, source string) *Snapshot {
	return &Snapshot{
		AsOfRunTimestamp: startedAt.UTC().Truncate(time.Second),
		Source:           source,
		Prices:           make(map[string]float64),
		Errors:           make(map[string]string),
	}
}

// RecordPrice stores a successful quote and advances the latest marker.
func (s *Snapshot) RecordPrice(symbol string, q fetcher.Quote) {
	delete(s.Errors, symbol)
	s.Prices[symbol] = q.Float()

	if q.AsOf != "" && q.AsOf > s.LatestObservedMarker {
		s.LatestObservedMarker = q.AsOf
	}
}

// RecordError stores the failure reason for a symbol.
func (s *Snapshot) RecordError(symbol string, err error) {
	delete(s.Prices, symbol)
	s.Errors[symbol] = fetcher.Reason(err)
}

// Record stores a resolution result.
func (s *Snapshot) Record(r fetcher.Result) {
	if r.OK() {
		s.RecordPrice(r.Symbol.Name, r.Quote)
		return
	}
	s.RecordError(r.Symbol.Name, r.Error)
}

// Finalize fills the marker sentinel when no quote carried a marker.
func (s *Snapshot) Finalize() {
	if s.LatestObservedMarker == "" {
		s.LatestObservedMarker = NoMarker
	}
}

// wire is the JSON layout; field order is part of the output contract.
type wire struct {
	AsOfRunTimestamp     string             `json:"asOfRunTimestamp"`
	LatestObservedMarker string             `json:"latestObservedMarker"`
	Source               string             `json:"source"`
	Prices               map[string]float64 `json:"prices"`
	Errors               map[string]string  `json:"errors"`
}

// MarshalJSON implements json.Marshaler
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	w := wire{
		AsOfRunTimestamp:     s.AsOfRunTimestamp.UTC().Format(TimestampFormat),
		LatestObservedMarker: s.LatestObservedMarker,
		Source:               s.Source,
		Prices:               s.Prices,
		Errors:               s.Errors,
	}
	if w.LatestObservedMarker == "" {
		w.LatestObservedMarker = NoMarker
	}
	if w.Prices == nil {
		w.Prices = map[string]float64{}
	}
	if w.Errors == nil {
		w.Errors = map[string]string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339, w.AsOfRunTimestamp)
	if err != nil {
		return fmt.Errorf("invalid asOfRunTimestamp: %w", err)
	}

	*s = Snapshot{
		AsOfRunTimestamp:     ts.UTC(),
		LatestObservedMarker: w.LatestObservedMarker,
		Source:               w.Source,
		Prices:               w.Prices,
		Errors:               w.Errors,
	}
	if s.Prices == nil {
		s.Prices = make(map[string]float64)
	}
	if s.Errors == nil {
		s.Errors = make(map[string]string)
	}
	return nil
}
