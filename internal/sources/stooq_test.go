package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexticker/internal/httpx"
	"indexticker/internal/instruments"
)

func newStooqAgainst(t *testing.T, handler http.HandlerFunc) *Stooq {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewStooq(httpx.New(5 * time.Second))
	p.base = srv.URL
	return p
}

func nasdaqOnly() []instruments.Instrument {
	it, ok := instruments.ByID("IXIC")
	if !ok {
		panic("IXIC not in instrument table")
	}
	return []instruments.Instrument{it}
}

func TestStooqDerivesChangeFromLastTwoRows(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-01,99.00,101.00,98.00,100.00,1000\n" +
		"2024-01-02,100.50,103.00,100.00,102.00,1200\n"
	p := newStooqAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "d", r.URL.Query().Get("i"))
		assert.Equal(t, "^ndq", r.URL.Query().Get("s"))
		w.Write([]byte(csv))
	})

	quotes, err := p.Fetch(context.Background(), nasdaqOnly())

	require.NoError(t, err)
	q := quotes["IXIC"]
	assert.Equal(t, 102.00, q.Price)
	require.NotNil(t, q.ChangePct)
	assert.InDelta(t, 2.00, *q.ChangePct, 1e-9)
}

func TestStooqFailsWithFewerThanTwoRows(t *testing.T) {
	p := newStooqAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,Open,High,Low,Close,Volume\n2024-01-02,100,103,100,102,1200\n"))
	})

	_, err := p.Fetch(context.Background(), nasdaqOnly())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindMalformed, fe.Kind)
}

func TestStooqSkipsUnparsableRows(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-01,99,101,98,100.00,1000\n" +
		"2024-01-02,-,-,-,-,0\n" +
		"2024-01-03,101,105,101,104.00,1100\n"
	p := newStooqAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	})

	quotes, err := p.Fetch(context.Background(), nasdaqOnly())

	require.NoError(t, err)
	q := quotes["IXIC"]
	assert.Equal(t, 104.00, q.Price)
	assert.InDelta(t, 4.00, *q.ChangePct, 1e-9)
}

func TestStooqRateLimitStatus(t *testing.T) {
	p := newStooqAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := p.Fetch(context.Background(), nasdaqOnly())

	assert.True(t, IsRateLimited(err))
}
