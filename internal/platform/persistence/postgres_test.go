package persistence

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDB_Pool(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	// A nil pool is enough to check the accessor; opening a real pgxpool
	// needs a live database.
	var nilPool *pgxpool.Pool
	db := &PostgresDB{
		pool:   nilPool,
		logger: logger,
	}
	assert.Equal(t, nilPool, db.Pool(), "Pool() should return the configured pool")
}

// The repositories are written against Querier so the same code can run on
// the pool, inside a ledger transaction, or against pgxmock in tests.
func TestQuerierSatisfiedByMock(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	var q Querier = mockPool
	assert.NotNil(t, q)
}
