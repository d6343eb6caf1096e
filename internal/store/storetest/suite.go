// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendwise/internal/core"
	"spendwise/internal/store"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory builds a fresh, empty store stamping times from clock.
type Factory func(clock func() time.Time) (store.Store, error)

// StoreSuite exercises a store through its public contract only.
type StoreSuite struct {
	suite.Suite
	NewStore Factory

	store store.Store
	clock *Clock
	ctx   context.Context
}

func (suite *StoreSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.clock = NewClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	s, err := suite.NewStore(suite.clock.Now)
	require.NoError(suite.T(), err, "failed to create store")
	suite.store = s
}

func (suite *StoreSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func fields(date string, cents int64, cat core.Category, desc string) core.ExpenseFields {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.ExpenseFields{Date: d, Amount: core.NewMoney(cents), Category: cat, Description: desc}
}

func (suite *StoreSuite) create(userID string, f core.ExpenseFields) core.Expense {
	e, err := suite.store.CreateExpense(suite.ctx, userID, f)
	require.NoError(suite.T(), err, "failed to create expense %q", f.Description)
	suite.clock.Advance(time.Second)
	return e
}

func (suite *StoreSuite) TestCreateStampsRecord() {
	e := suite.create("alice", fields("2025-01-05", 1250, core.Food, "Lunch"))

	assert.NotEmpty(suite.T(), e.ID)
	assert.Equal(suite.T(), "alice", e.UserID)
	assert.Equal(suite.T(), "2025-01-05", e.Date.String())
	assert.Equal(suite.T(), int64(1250), e.Amount.Cents)
	assert.Equal(suite.T(), core.Food, e.Category)
	assert.True(suite.T(), e.CreatedAt.Equal(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)), "created at %v", e.CreatedAt)
	assert.True(suite.T(), e.CreatedAt.Equal(e.UpdatedAt))

	got, err := suite.store.GetExpense(suite.ctx, "alice", e.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), e.ID, got.ID)
	assert.Equal(suite.T(), e.Description, got.Description)
	assert.True(suite.T(), e.CreatedAt.Equal(got.CreatedAt))
}

func (suite *StoreSuite) TestCreateAllowsZeroAmount() {
	e := suite.create("alice", fields("2025-01-05", 0, core.Other, "Free sample"))
	assert.Equal(suite.T(), int64(0), e.Amount.Cents)
}

func (suite *StoreSuite) TestCreateRejectsInvalidFields() {
	cases := []core.ExpenseFields{
		fields("2025-01-05", -1, core.Food, "negative"),
		fields("2025-01-05", 100, core.Category("Travel"), "unknown"),
		fields("2025-01-05", 100, core.Food, "  "),
		{Amount: core.NewMoney(1), Category: core.Food, Description: "no date"},
	}
	for _, f := range cases {
		_, err := suite.store.CreateExpense(suite.ctx, "alice", f)
		assert.ErrorIs(suite.T(), err, core.ErrValidation, "fields %+v", f)
	}
	list, err := suite.store.ListExpenses(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

func (suite *StoreSuite) TestEmptyUserIsAccessError() {
	_, err := suite.store.ListExpenses(suite.ctx, "")
	assert.ErrorIs(suite.T(), err, core.ErrAccess)

	_, err = suite.store.CreateExpense(suite.ctx, " ", fields("2025-01-05", 100, core.Food, "x"))
	assert.ErrorIs(suite.T(), err, core.ErrAccess)

	err = suite.store.DeleteExpense(suite.ctx, "", "some-id")
	assert.ErrorIs(suite.T(), err, core.ErrAccess)
}

func (suite *StoreSuite) TestListOrdersNewestDateFirst() {
	suite.create("alice", fields("2024-12-31", 100, core.Food, "old"))
	suite.create("alice", fields("2025-01-02", 200, core.Bills, "newest"))
	suite.create("alice", fields("2025-01-01", 300, core.Other, "same day first"))
	suite.create("alice", fields("2025-01-01", 400, core.Other, "same day second"))
	suite.create("bob", fields("2025-02-01", 500, core.Food, "not alice"))

	list, err := suite.store.ListExpenses(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 4)

	var got []string
	for _, e := range list {
		got = append(got, e.Description)
	}
	assert.Equal(suite.T(), []string{"newest", "same day second", "same day first", "old"}, got)
}

func (suite *StoreSuite) TestUpdateChangesOnlyListedFields() {
	e := suite.create("alice", fields("2025-01-05", 1000, core.Food, "Lunch"))
	suite.clock.Advance(time.Hour)

	amount := core.NewMoney(1500)
	updated, err := suite.store.UpdateExpense(suite.ctx, "alice", e.ID, core.ExpensePatch{Amount: &amount})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), int64(1500), updated.Amount.Cents)
	assert.Equal(suite.T(), "Lunch", updated.Description)
	assert.Equal(suite.T(), core.Food, updated.Category)
	assert.Equal(suite.T(), e.ID, updated.ID)
	assert.True(suite.T(), updated.CreatedAt.Equal(e.CreatedAt))
	assert.True(suite.T(), updated.UpdatedAt.After(e.UpdatedAt))

	got, err := suite.store.GetExpense(suite.ctx, "alice", e.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1500), got.Amount.Cents)
	assert.True(suite.T(), got.UpdatedAt.Equal(updated.UpdatedAt))
}

func (suite *StoreSuite) TestUpdateValidatesMergedRecord() {
	e := suite.create("alice", fields("2025-01-05", 1000, core.Food, "Lunch"))
	blank := ""
	_, err := suite.store.UpdateExpense(suite.ctx, "alice", e.ID, core.ExpensePatch{Description: &blank})
	assert.ErrorIs(suite.T(), err, core.ErrValidation)

	got, err := suite.store.GetExpense(suite.ctx, "alice", e.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Lunch", got.Description)
}

func (suite *StoreSuite) TestUpdateMissingIsNotFound() {
	amount := core.NewMoney(1)
	_, err := suite.store.UpdateExpense(suite.ctx, "alice", "00000000-0000-0000-0000-000000000000", core.ExpensePatch{Amount: &amount})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *StoreSuite) TestDeleteIsPermanentAndReported() {
	e := suite.create("alice", fields("2025-01-05", 1000, core.Food, "Lunch"))

	require.NoError(suite.T(), suite.store.DeleteExpense(suite.ctx, "alice", e.ID))

	_, err := suite.store.GetExpense(suite.ctx, "alice", e.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	err = suite.store.DeleteExpense(suite.ctx, "alice", e.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound, "second delete must not silently succeed")

	err = suite.store.DeleteExpense(suite.ctx, "alice", "")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *StoreSuite) TestOtherUsersRecordsAreInvisible() {
	e := suite.create("alice", fields("2025-01-05", 1000, core.Food, "Lunch"))

	_, err := suite.store.GetExpense(suite.ctx, "mallory", e.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	desc := "hijacked"
	_, err = suite.store.UpdateExpense(suite.ctx, "mallory", e.ID, core.ExpensePatch{Description: &desc})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	err = suite.store.DeleteExpense(suite.ctx, "mallory", e.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	got, err := suite.store.GetExpense(suite.ctx, "alice", e.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Lunch", got.Description)
}

func (suite *StoreSuite) TestUsers() {
	u, err := suite.store.CreateUser(suite.ctx, " Alice ", "hash")
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), u.ID)
	assert.Equal(suite.T(), "alice", u.Username)

	got, err := suite.store.GetUserByUsername(suite.ctx, "ALICE")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, got.ID)
	assert.Equal(suite.T(), "hash", got.PasswordHash)

	_, err = suite.store.CreateUser(suite.ctx, "alice", "other")
	assert.ErrorIs(suite.T(), err, core.ErrUsernameUnavailable)

	_, err = suite.store.GetUserByUsername(suite.ctx, "nobody")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	users, err := suite.store.ListUsers(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), users, 1)
}

func (suite *StoreSuite) TestPing() {
	assert.NoError(suite.T(), suite.store.Ping(suite.ctx))
}
