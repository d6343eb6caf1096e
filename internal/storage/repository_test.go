package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendwise/internal/core"
	"spendwise/internal/store"
	"spendwise/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storetest.StoreSuite{
		NewStore: func(clock func() time.Time) (store.Store, error) {
			return NewSQLiteRepository(":memory:", WithClock(clock))
		},
	})
}

// TestPostgresStore runs against a real server when SPENDWISE_TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SPENDWISE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SPENDWISE_TEST_DATABASE_URL not set")
	}
	suite.Run(t, &storetest.StoreSuite{
		NewStore: func(clock func() time.Time) (store.Store, error) {
			r, err := NewPostgresRepository(dsn, WithClock(clock))
			if err != nil {
				return nil, err
			}
			if _, err := r.db.Exec(`DELETE FROM expenses; DELETE FROM users`); err != nil {
				r.Close()
				return nil, err
			}
			return r, nil
		},
	})
}

// FileDBTestSuite covers behaviour specific to on-disk SQLite databases.
type FileDBTestSuite struct {
	suite.Suite
	path string
}

func (suite *FileDBTestSuite) SetupTest() {
	suite.path = filepath.Join(suite.T().TempDir(), "nested", "spendwise.db")
}

func (suite *FileDBTestSuite) TestCreatesDirectoryAndPersists() {
	ctx := context.Background()

	repo, err := NewSQLiteRepository(suite.path)
	require.NoError(suite.T(), err)

	d, _ := core.ParseDate("2025-02-14")
	created, err := repo.CreateExpense(ctx, "alice", core.ExpenseFields{
		Date: d, Amount: core.NewMoney(4200), Category: core.Entertainment, Description: "Cinema",
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), repo.Close())

	// Reopening runs migrations again, which must be a no-op.
	repo, err = NewSQLiteRepository(suite.path)
	require.NoError(suite.T(), err)
	defer repo.Close()

	got, err := repo.GetExpense(ctx, "alice", created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Cinema", got.Description)
	assert.Equal(suite.T(), int64(4200), got.Amount.Cents)
	assert.Equal(suite.T(), "2025-02-14", got.Date.String())
	assert.True(suite.T(), created.CreatedAt.Equal(got.CreatedAt))
}

func (suite *FileDBTestSuite) TestClosedDatabaseIsUnavailable() {
	repo, err := NewSQLiteRepository(suite.path)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), repo.Close())

	_, err = repo.ListExpenses(context.Background(), "alice")
	assert.ErrorIs(suite.T(), err, core.ErrStoreUnavailable)

	assert.ErrorIs(suite.T(), repo.Ping(context.Background()), core.ErrStoreUnavailable)
}

func TestFileDBTestSuite(t *testing.T) {
	suite.Run(t, new(FileDBTestSuite))
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ?`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, Postgres.Rebind(q))
}

func TestTimestampRoundTripSortsLexically(t *testing.T) {
	a := time.Date(2025, 1, 1, 10, 0, 0, 5, time.UTC)
	b := time.Date(2025, 1, 1, 10, 0, 0, 500000000, time.UTC)

	sa, sb := formatTimestamp(a), formatTimestamp(b)
	assert.Less(t, sa, sb)
	assert.Len(t, sa, len(sb))

	back, err := parseTimestamp(sa)
	require.NoError(t, err)
	assert.True(t, back.Equal(a))
}
