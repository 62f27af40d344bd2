package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/shopspring/decimal"
)

// RateTable is one snapshot from the external rate source: every rate is
// quoted against the table's base currency.
type RateTable struct {
	Base  string
	Rates map[string]decimal.Decimal
	AsOf  time.Time
}

type Fetcher interface {
	FetchRates(ctx context.Context) (*RateTable, error)
}

// HTTPFetcher pulls the rate table from a JSON endpoint of the shape
// {"base": "USD", "rates": {"EUR": 0.9, ...}}.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPFetcher{
		url:    url,
		client: client,
	}
}

func (f *HTTPFetcher) FetchRates(ctx context.Context) (*RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, domain.TransientIOError{Op: "fetch exchange rates", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, domain.TransientIOError{
			Op:  "fetch exchange rates",
			Err: fmt.Errorf("unexpected status %d from %s", res.StatusCode, f.url),
		}
	}

	var payload struct {
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}

	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, domain.TransientIOError{Op: "decode exchange rates", Err: err}
	}

	if payload.Base == "" || len(payload.Rates) == 0 {
		return nil, domain.TransientIOError{
			Op:  "decode exchange rates",
			Err: fmt.Errorf("rate source returned an empty table"),
		}
	}

	return &RateTable{
		Base:  payload.Base,
		Rates: payload.Rates,
		AsOf:  time.Now().UTC(),
	}, nil
}
