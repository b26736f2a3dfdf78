package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexticker/internal/httpx"
)

func newFinnhubAgainst(t *testing.T, handler http.HandlerFunc) *Finnhub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewFinnhub(httpx.New(5*time.Second), "test-key")
	p.base = srv.URL
	return p
}

func TestFinnhubQuote(t *testing.T) {
	p := newFinnhubAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		assert.Equal(t, "^IXIC", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"c":17003.1,"d":193.1,"dp":1.15,"h":17020,"l":16900,"o":16910,"pc":16810,"t":1704230400}`)
	})

	quotes, err := p.Fetch(context.Background(), nasdaqOnly())

	require.NoError(t, err)
	q := quotes["IXIC"]
	assert.Equal(t, 17003.1, q.Price)
	require.NotNil(t, q.ChangePct)
	assert.InDelta(t, 1.15, *q.ChangePct, 1e-9)
	assert.Equal(t, "finnhub", q.Source)
}

func TestFinnhubZeroQuoteIsMalformed(t *testing.T) {
	// Finnhub answers unknown symbols with 200 and an all-zero body.
	p := newFinnhubAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`)
	})

	_, err := p.Fetch(context.Background(), nasdaqOnly())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindMalformed, fe.Kind)
}

func TestFinnhubMissingChangeIsStillAQuote(t *testing.T) {
	p := newFinnhubAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"c":17003.1,"dp":null}`)
	})

	quotes, err := p.Fetch(context.Background(), nasdaqOnly())

	require.NoError(t, err)
	assert.Nil(t, quotes["IXIC"].ChangePct)
}

func TestGateWaitsBetweenCalls(t *testing.T) {
	p := succeeding("gated", testQuotes(100))
	g := Gate(p, 30*time.Millisecond)

	start := time.Now()
	_, err := g.Fetch(context.Background(), nasdaqOnly())
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), nasdaqOnly())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 2, p.calls)
}
