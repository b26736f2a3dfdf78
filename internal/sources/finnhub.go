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

// Finnhub is the optional paid low-latency provider, enabled only when an API
// key is configured. One GET per symbol against the REST quote endpoint.
type Finnhub struct {
	client *httpx.Client
	apiKey string
	base   string
}

func NewFinnhub(hc *httpx.Client, apiKey string) *Finnhub {
	return &Finnhub{client: hc, apiKey: apiKey, base: "https://finnhub.io"}
}

func (p *Finnhub) Name() string { return "finnhub" }

type finnhubQuote struct {
	Current   *float64 `json:"c"`
	ChangePct *float64 `json:"dp"`
}

func (p *Finnhub) Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]Quote, error) {
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

func (p *Finnhub) fetchOne(ctx context.Context, it instruments.Instrument) (Quote, error) {
	u := p.base + "/api/v1/quote?" + url.Values{"symbol": {it.FinnhubSymbol}, "token": {p.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, transportErr(p.Name(), err)
	}
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

	var fq finnhubQuote
	if err := json.Unmarshal(body, &fq); err != nil {
		return Quote{}, malformedErr(p.Name(), fmt.Sprintf("decode: %v (%s)", err, preview(body)))
	}
	// Finnhub answers unknown symbols with an all-zero quote body.
	if fq.Current == nil || !isFinite(*fq.Current) || *fq.Current <= 0 {
		return Quote{}, malformedErr(p.Name(), "missing field c")
	}

	q := Quote{Price: *fq.Current, Source: p.Name(), FetchedAt: time.Now()}
	if fq.ChangePct != nil && isFinite(*fq.ChangePct) {
		q.ChangePct = changePtr(*fq.ChangePct)
	}
	return q, nil
}
