package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/randpic/internal/dispatch"
)

type staticStats struct {
	stats []dispatch.KeywordStat
	err   error
}

func (s staticStats) Keywords(context.Context) ([]dispatch.KeywordStat, error) {
	return s.stats, s.err
}

var _ dispatch.Observer = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m := New()
	m.DispatchOutcome("capoo", dispatch.OutcomeDelivered)
	m.DispatchOutcome("capoo", dispatch.OutcomeDelivered)
	m.DispatchOutcome("capoo", dispatch.OutcomeRateLimited)
	m.ImageIngested("meme", true)
	m.ImageIngested("meme", false)
	m.LedgerFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatches.WithLabelValues("capoo", dispatch.OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("capoo", dispatch.OutcomeRateLimited)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingested.WithLabelValues("meme", "stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingested.WithLabelValues("meme", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerFailures))
}

func TestImageCollector(t *testing.T) {
	c := &ImageCollector{src: staticStats{stats: []dispatch.KeywordStat{
		{Name: "capoo", Count: 3},
		{Name: "meme", Count: 0},
	}}}
	assert.Equal(t, 2, testutil.CollectAndCount(c))

	expected := `
# HELP randpic_images Number of stored images per keyword
# TYPE randpic_images gauge
randpic_images{keyword="capoo"} 3
randpic_images{keyword="meme"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestImageCollector_SourceError(t *testing.T) {
	c := &ImageCollector{src: staticStats{err: errors.New("db closed")}}
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestHandler(t *testing.T) {
	m := New()
	m.TrackImages(staticStats{stats: []dispatch.KeywordStat{{Name: "capoo", Count: 1}}})
	m.DispatchOutcome("capoo", dispatch.OutcomeDelivered)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `randpic_dispatch_total{keyword="capoo",outcome="delivered"} 1`)
	assert.Contains(t, string(body), `randpic_images{keyword="capoo"} 1`)
}
