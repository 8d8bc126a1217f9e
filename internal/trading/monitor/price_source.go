package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gridwalls/internal/core"
	apperrors "gridwalls/pkg/errors"

	"github.com/shopspring/decimal"
)

// Fetcher performs a bounded-retry GET
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

type marketQuote struct {
	ID           string           `json:"id"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
}

// PriceSource reads current prices from a CoinGecko compatible
// /coins/markets endpoint, all tokens in one request.
type PriceSource struct {
	fetcher    Fetcher
	baseURL    string
	vsCurrency string
	timeout    time.Duration
	logger     core.ILogger

	lastUpdate atomic.Value // holds time.Time
}

var _ core.IPriceSource = (*PriceSource)(nil)

// NewPriceSource creates a price source quoting in vsCurrency
func NewPriceSource(fetcher Fetcher, baseURL, vsCurrency string, timeout time.Duration, logger core.ILogger) *PriceSource {
	ps := &PriceSource{
		fetcher:    fetcher,
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: vsCurrency,
		timeout:    timeout,
		logger:     logger.WithField("component", "price_source"),
	}
	ps.lastUpdate.Store(time.Time{})
	return ps
}

// Prices returns the price of every known id. A token equal to the quote
// currency is priced at 1 without being requested. Unknown ids are absent.
func (ps *PriceSource) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))

	seen := make(map[string]struct{}, len(ids))
	request := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if strings.EqualFold(id, ps.vsCurrency) {
			prices[id] = decimal.NewFromInt(1)
			continue
		}
		request = append(request, id)
	}
	if len(request) == 0 {
		return prices, nil
	}
	sort.Strings(request)

	body, err := ps.fetcher.Fetch(ctx, ps.marketsURL(request), ps.timeout)
	if err != nil {
		return nil, err
	}

	var quotes []marketQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("%w: decode markets: %v", apperrors.ErrInvalidResponse, err)
	}

	// ids are matched case-insensitively and keyed as requested
	wanted := make(map[string][]string, len(request))
	for _, id := range request {
		key := strings.ToLower(id)
		wanted[key] = append(wanted[key], id)
	}
	for _, q := range quotes {
		if q.CurrentPrice == nil {
			continue
		}
		for _, id := range wanted[strings.ToLower(q.ID)] {
			prices[id] = *q.CurrentPrice
		}
	}

	for _, id := range request {
		if _, ok := prices[id]; !ok {
			ps.logger.Warn("No price returned", "token", id)
		}
	}

	ps.lastUpdate.Store(time.Now())
	return prices, nil
}

// LastUpdate returns when prices were last fetched, zero if never
func (ps *PriceSource) LastUpdate() time.Time {
	return ps.lastUpdate.Load().(time.Time)
}

func (ps *PriceSource) marketsURL(ids []string) string {
	q := url.Values{}
	q.Set("vs_currency", ps.vsCurrency)
	q.Set("ids", strings.ToLower(strings.Join(ids, ",")))
	return ps.baseURL + "/coins/markets?" + q.Encode()
}
