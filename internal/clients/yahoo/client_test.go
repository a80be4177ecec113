package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/omegafolio/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartJSON(timestamps []int64, closes []string) string {
	ts := ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprintf("%d", t)
	}
	cs := ""
	for i, c := range closes {
		if i > 0 {
			cs += ","
		}
		cs += c
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, ts, cs)
}

func TestGetDailyCloses(t *testing.T) {
	day := func(d string) int64 {
		ts, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		return ts.Unix()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/2330.TW")
		fmt.Fprint(w, chartJSON(
			[]int64{day("2024-04-01"), day("2024-04-02"), day("2024-04-03")},
			[]string{"100.5", "null", "102.0"},
		))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, logger.New(logger.Config{Level: "error"}))
	bars, err := c.GetDailyCloses(context.Background(), "2330.TW",
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Null close dropped
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-04-01", bars[0].Date)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, "2024-04-03", bars[1].Date)
	assert.Equal(t, 102.0, bars[1].Close)
}

func TestGetDailyCloses_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, logger.New(logger.Config{Level: "error"}))
	_, err := c.GetDailyCloses(context.Background(), "BOGUS",
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}

func TestGetDailyCloses_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chartJSON([]int64{1712016000}, []string{"99.0"}))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, logger.New(logger.Config{Level: "error"}))
	bars, err := c.GetDailyCloses(context.Background(), "2317.TW",
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 2, calls)
}
