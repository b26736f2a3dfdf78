package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"indexticker/internal/httpx"
	"indexticker/internal/instruments"
)

// YahooChart derives a quote from Yahoo's v8 chart endpoint: price is the
// most recent daily close and the 1-day change is computed from the two most
// recent valid closes. Used when the quote endpoint itself is failing but the
// vendor is otherwise reachable.
type YahooChart struct {
	client *httpx.Client
	base   string
}

func NewYahooChart(hc *httpx.Client) *YahooChart {
	return &YahooChart{client: hc, base: "https://query1.finance.yahoo.com"}
}

func (p *YahooChart) Name() string { return "yahoo-chart" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (p *YahooChart) Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]Quote, error) {
	out := make(map[string]Quote, len(insts))
	var lastErr error
	for _, it := range insts {
		q, err := p.fetchOne(ctx, it)
		if err != nil {
			lastErr = err
			continue
		}
		out[it.ID] = q
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

func (p *YahooChart) fetchOne(ctx context.Context, it instruments.Instrument) (Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", p.base, url.PathEscape(it.YahooSymbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, transportErr(p.Name(), err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return Quote{}, transportErr(p.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Quote{}, statusErr(p.Name(), resp.StatusCode, b)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Quote{}, transportErr(p.Name(), err)
	}

	var payload yahooChartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Quote{}, malformedErr(p.Name(), fmt.Sprintf("decode: %v (%s)", err, preview(body)))
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return Quote{}, malformedErr(p.Name(), "empty chart result")
	}

	// Nil entries appear for days the exchange was closed mid-series.
	var closes []float64
	for _, c := range payload.Chart.Result[0].Indicators.Quote[0].Close {
		if c == nil || !isFinite(*c) || *c <= 0 {
			continue
		}
		closes = append(closes, *c)
	}
	if len(closes) < 2 {
		return Quote{}, malformedErr(p.Name(), fmt.Sprintf("need 2 closes, got %d", len(closes)))
	}

	last := closes[len(closes)-1]
	prev := closes[len(closes)-2]
	change := (last - prev) / prev * 100
	return Quote{Price: last, ChangePct: changePtr(change), Source: p.Name(), FetchedAt: time.Now()}, nil
}
