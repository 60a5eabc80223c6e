package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"quotefetcher/internal/fetcher"
)

// Bar is one entry of a TIME_SERIES_* response
type Bar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// seriesKey finds the "Time Series (...)" object. Daily responses use
// "Time Series (Daily)", intraday ones "Time Series (5min)".
func seriesKey(payload map[string]json.RawMessage) (string, bool) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if strings.HasPrefix(k, "Time Series") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

// parseSeries returns the close of the most recent bar. Keys are ISO-ordered
// timestamps, so the lexicographic maximum is the latest observation.
func parseSeries(payload map[string]json.RawMessage, source string) (fetcher.Quote, error) {
	key, ok := seriesKey(payload)
	if !ok {
		return fetcher.Quote{}, fetcher.NewNoDataError("no time series returned")
	}

	var series map[string]Bar
	if err := json.Unmarshal(payload[key], &series); err != nil {
		return fetcher.Quote{}, fetcher.NewNoDataError(fmt.Sprintf("malformed %s", key))
	}
	if len(series) == 0 {
		return fetcher.Quote{}, fetcher.NewNoDataError(fmt.Sprintf("empty %s", key))
	}

	var latest string
	for ts := range series {
		if ts > latest {
			latest = ts
		}
	}

	return fetcher.NewQuote(series[latest].Close, latest, source)
}
