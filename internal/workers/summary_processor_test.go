package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/piaxis/inventory-sync/internal/adapters/redis_adapter"
	"github.com/piaxis/inventory-sync/internal/workers"
	"github.com/piaxis/inventory-sync/test/helpers"
)

// scriptedQuerier returns one canned row per QueryRow call, in order.
type scriptedQuerier struct {
	rows []scriptedRow
	call int
}

type scriptedRow struct {
	scan func(dest ...any) error
}

func (q *scriptedQuerier) QueryRow(_ context.Context, _ string, _ ...interface{}) pgx.Row {
	row := q.rows[q.call]
	q.call++
	return row
}

func (r scriptedRow) Scan(dest ...any) error { return r.scan(dest...) }

func countsRow(products int, quantity int64, outOfStock int) scriptedRow {
	return scriptedRow{scan: func(dest ...any) error {
		*dest[0].(*int) = products
		*dest[1].(*int64) = quantity
		*dest[2].(*int) = outOfStock
		return nil
	}}
}

func errorRow(err error) scriptedRow {
	return scriptedRow{scan: func(...any) error { return err }}
}

func summaryTask(t *testing.T, storeID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(workers.SummaryPayload{StoreID: storeID})
	require.NoError(t, err)
	return asynq.NewTask(workers.TypeRefreshSummary, payload)
}

func TestSummaryProcessor_RefreshSummary(t *testing.T) {
	tr := helpers.SetupTestRedis(t)
	cache := redis_a.NewCache(tr.Client, time.Hour, helpers.TestLogger())

	lastImport := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	querier := &scriptedQuerier{rows: []scriptedRow{
		countsRow(12, 240, 2),
		{scan: func(dest ...any) error {
			*dest[0].(**time.Time) = &lastImport
			return nil
		}},
	}}

	processor := workers.NewSummaryProcessor(querier, cache, helpers.TestLogger())
	require.NoError(t, processor.RefreshSummary(context.Background(), summaryTask(t, "store-1")))

	var cached workers.StoreSummary
	err := cache.Get(context.Background(), redis_a.BuildKey(redis_a.PrefixSummary, "store-1"), &cached)
	require.NoError(t, err)
	assert.Equal(t, 12, cached.ProductCount)
	assert.Equal(t, int64(240), cached.TotalQuantity)
	assert.Equal(t, 2, cached.OutOfStock)
	require.NotNil(t, cached.LastImportAt)
	assert.Equal(t, lastImport, cached.LastImportAt.UTC())
}

func TestSummaryProcessor_LastImportFailureIsNonFatal(t *testing.T) {
	tr := helpers.SetupTestRedis(t)
	cache := redis_a.NewCache(tr.Client, time.Hour, helpers.TestLogger())

	querier := &scriptedQuerier{rows: []scriptedRow{
		countsRow(3, 30, 0),
		errorRow(errors.New("connection reset")),
	}}

	processor := workers.NewSummaryProcessor(querier, cache, helpers.TestLogger())
	require.NoError(t, processor.RefreshSummary(context.Background(), summaryTask(t, "store-1")))

	var cached workers.StoreSummary
	err := cache.Get(context.Background(), redis_a.BuildKey(redis_a.PrefixSummary, "store-1"), &cached)
	require.NoError(t, err)
	assert.Equal(t, 3, cached.ProductCount)
	assert.Nil(t, cached.LastImportAt)
}

func TestSummaryProcessor_RejectsMalformedPayload(t *testing.T) {
	tr := helpers.SetupTestRedis(t)
	cache := redis_a.NewCache(tr.Client, time.Hour, helpers.TestLogger())

	processor := workers.NewSummaryProcessor(&scriptedQuerier{}, cache, helpers.TestLogger())
	err := processor.RefreshSummary(context.Background(), asynq.NewTask(workers.TypeRefreshSummary, []byte("not json")))
	assert.Error(t, err)
}
