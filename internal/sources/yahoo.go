package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"indexticker/internal/httpx"
	"indexticker/internal/instruments"
)

// Yahoo rejects requests carrying an obviously non-browser User-Agent.
const yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// YahooQuote fetches price and 1-day change for all instruments in one
// batched call against the v7 quote endpoint. Yahoo exposes mirrored hosts;
// both are tried within a single attempt before the adapter gives up.
type YahooQuote struct {
	client *httpx.Client
	bases  []string
}

func NewYahooQuote(hc *httpx.Client) *YahooQuote {
	return &YahooQuote{
		client: hc,
		bases: []string{
			"https://query1.finance.yahoo.com",
			"https://query2.finance.yahoo.com",
		},
	}
}

func (p *YahooQuote) Name() string { return "yahoo" }

type yahooQuoteResult struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"regularMarketPrice"`
	ChangePct *float64 `json:"regularMarketChangePercent"`
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
	} `json:"quoteResponse"`
}

func (p *YahooQuote) Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]Quote, error) {
	syms := make([]string, 0, len(insts))
	idByYahoo := make(map[string]string, len(insts))
	for _, it := range insts {
		syms = append(syms, url.QueryEscape(it.YahooSymbol))
		idByYahoo[it.YahooSymbol] = it.ID
	}
	path := "/v7/finance/quote?symbols=" + strings.Join(syms, ",")

	var lastErr error
	for _, base := range p.bases {
		body, err := p.get(ctx, base+path)
		if err != nil {
			lastErr = err
			continue
		}

		var payload yahooQuoteResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			lastErr = malformedErr(p.Name(), fmt.Sprintf("decode: %v (%s)", err, preview(body)))
			continue
		}
		results := payload.QuoteResponse.Result
		if len(results) == 0 {
			lastErr = malformedErr(p.Name(), "empty result set")
			continue
		}

		now := time.Now()
		out := make(map[string]Quote, len(results))
		for _, r := range results {
			id, ok := idByYahoo[r.Symbol]
			if !ok {
				continue
			}
			// A symbol missing either field is left out of the result;
			// the resolver decides whether that makes the cycle degraded.
			if r.Price == nil || r.ChangePct == nil {
				continue
			}
			if !isFinite(*r.Price) || !isFinite(*r.ChangePct) || *r.Price <= 0 {
				continue
			}
			out[id] = Quote{Price: *r.Price, ChangePct: changePtr(*r.ChangePct), Source: p.Name(), FetchedAt: now}
		}
		if len(out) == 0 {
			lastErr = malformedErr(p.Name(), "results missing price/change fields")
			continue
		}
		return out, nil
	}
	return nil, lastErr
}

func (p *YahooQuote) get(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, transportErr(p.Name(), err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, transportErr(p.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, statusErr(p.Name(), resp.StatusCode, b)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
