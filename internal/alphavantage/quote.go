package alphavantage

import (
	"encoding/json"

	"quotefetcher/internal/fetcher"
)

// GlobalQuote represents the "Global Quote" object of a GLOBAL_QUOTE response
type GlobalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

// parseGlobalQuote extracts the current price and latest trading day.
// Unknown symbols come back as an empty "Global Quote" object.
func parseGlobalQuote(payload map[string]json.RawMessage, source string) (fetcher.Quote, error) {
	raw, ok := payload["Global Quote"]
	if !ok {
		return fetcher.Quote{}, fetcher.NewNoDataError("no Global Quote returned")
	}

	var gq GlobalQuote
	if err := json.Unmarshal(raw, &gq); err != nil {
		return fetcher.Quote{}, fetcher.NewNoDataError("malformed Global Quote")
	}
	if gq.Price == "" {
		return fetcher.Quote{}, fetcher.NewNoDataError("no Global Quote returned")
	}

	return fetcher.NewQuote(gq.Price, gq.LatestTradingDay, source)
}
