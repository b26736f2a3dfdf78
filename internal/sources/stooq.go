package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"indexticker/internal/httpx"
	"indexticker/internal/instruments"
)

// Stooq is the independent secondary vendor. Its daily feed is a CSV table
// (Date,Open,High,Low,Close,Volume); price is the last row's close and the
// 1-day change is derived from the two most recent rows.
type Stooq struct {
	client *httpx.Client
	base   string
}

func NewStooq(hc *httpx.Client) *Stooq {
	return &Stooq{client: hc, base: "https://stooq.com"}
}

func (p *Stooq) Name() string { return "stooq" }

func (p *Stooq) Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]Quote, error) {
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

func (p *Stooq) fetchOne(ctx context.Context, it instruments.Instrument) (Quote, error) {
	u := p.base + "/q/d/l/?" + url.Values{"s": {it.StooqSymbol}, "i": {"d"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, transportErr(p.Name(), err)
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

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

	prev, last, err := lastTwoCloses(p.Name(), body)
	if err != nil {
		return Quote{}, err
	}
	change := (last - prev) / prev * 100
	return Quote{Price: last, ChangePct: changePtr(change), Source: p.Name(), FetchedAt: time.Now()}, nil
}

// lastTwoCloses extracts the close column of the two most recent rows of a
// Date,Open,High,Low,Close,Volume table. It fails rather than guess when the
// feed has fewer than two valid rows.
func lastTwoCloses(provider string, body []byte) (prev, last float64, err error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	r.FieldsPerRecord = -1

	const closeCol = 4
	var closes []float64
	first := true
	for {
		rec, rerr := r.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, 0, malformedErr(provider, fmt.Sprintf("csv: %v", rerr))
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "Date") {
				continue
			}
		}
		if len(rec) <= closeCol {
			continue
		}
		v, perr := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if perr != nil || !isFinite(v) || v <= 0 {
			continue
		}
		closes = append(closes, v)
	}
	if len(closes) < 2 {
		return 0, 0, malformedErr(provider, fmt.Sprintf("need 2 rows, got %d (%s)", len(closes), preview(body)))
	}
	return closes[len(closes)-2], closes[len(closes)-1], nil
}
