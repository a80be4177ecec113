package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/omegafolio/internal/clients/yahoo"
	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	bars map[string][]yahoo.Bar
	errs map[string]error
}

func (s *stubFetcher) GetDailyCloses(_ context.Context, symbol string, _, _ time.Time) ([]yahoo.Bar, error) {
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	return s.bars[symbol], nil
}

func TestFetchPriceTable(t *testing.T) {
	fetcher := &stubFetcher{bars: map[string][]yahoo.Bar{
		"AAA": {{Date: "2024-04-01", Close: 10}, {Date: "2024-04-02", Close: 11}},
		"BBB": {{Date: "2024-04-01", Close: 20}, {Date: "2024-04-02", Close: 21}},
	}}
	svc := NewService(fetcher, nil, zerolog.Nop())

	pt, err := svc.FetchPriceTable(context.Background(), []string{"AAA", "BBB"}, "2024-04-01", "2024-04-30")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, pt.Symbols)
	assert.Equal(t, 2, pt.Rows())
}

func TestFetchPriceTableExcludesFailedSymbols(t *testing.T) {
	fetcher := &stubFetcher{
		bars: map[string][]yahoo.Bar{
			"AAA": {{Date: "2024-04-01", Close: 10}, {Date: "2024-04-02", Close: 11}},
		},
		errs: map[string]error{"BBB": errors.New("upstream 404")},
	}
	svc := NewService(fetcher, nil, zerolog.Nop())

	pt, err := svc.FetchPriceTable(context.Background(), []string{"AAA", "BBB"}, "2024-04-01", "2024-04-30")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA"}, pt.Symbols)
}

func TestFetchPriceTableNoData(t *testing.T) {
	fetcher := &stubFetcher{errs: map[string]error{
		"AAA": errors.New("upstream 404"),
		"BBB": errors.New("upstream 404"),
	}}
	svc := NewService(fetcher, nil, zerolog.Nop())

	_, err := svc.FetchPriceTable(context.Background(), []string{"AAA", "BBB"}, "2024-04-01", "2024-04-30")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestFetchPriceTableUsesCache(t *testing.T) {
	db, err := database.New(database.Config{Path: t.TempDir() + "/cache.db", Name: "cache", Profile: database.ProfileCache})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	cache := NewCacheRepository(db.Conn(), time.Hour, zerolog.Nop())

	calls := 0
	fetcher := &countingFetcher{inner: &stubFetcher{bars: map[string][]yahoo.Bar{
		"AAA": {{Date: "2024-04-01", Close: 10}, {Date: "2024-04-02", Close: 11}},
	}}, calls: &calls}
	svc := NewService(fetcher, cache, zerolog.Nop())

	_, err = svc.FetchPriceTable(context.Background(), []string{"AAA"}, "2024-04-01", "2024-04-30")
	require.NoError(t, err)
	_, err = svc.FetchPriceTable(context.Background(), []string{"AAA"}, "2024-04-01", "2024-04-30")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second fetch should be served from cache")
}

type countingFetcher struct {
	inner *stubFetcher
	calls *int
}

func (c *countingFetcher) GetDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.Bar, error) {
	*c.calls++
	return c.inner.GetDailyCloses(ctx, symbol, start, end)
}
