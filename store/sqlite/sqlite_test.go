package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/kidpoints/points"
	"github.com/warp/kidpoints/store/sqlite"
)

var (
	day   = points.NewDate(2025, time.March, 10)
	stamp = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SaveFamily(ctx, points.Family{ID: "fam-1", Name: "Smith", Timezone: "Europe/Paris"}))
	require.NoError(t, s.SaveChild(ctx, points.Child{ID: "c1", FamilyID: "fam-1", Name: "Ava", Age: 7}))
	require.NoError(t, s.SaveChild(ctx, points.Child{ID: "c2", FamilyID: "fam-1", Name: "Ben", Age: 5}))
	return s
}

func activity(id string, child string, pts int64, status points.Status) points.Activity {
	typ := points.TypeGood
	if pts < 0 {
		typ = points.TypeBad
	}
	return points.Activity{
		ID:           points.ActivityID(id),
		ChildID:      points.ChildID(child),
		ItemID:       "b1",
		Type:         typ,
		Date:         day,
		EarnedPoints: pts,
		Status:       status,
		CreatedAt:    stamp,
	}
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func TestStore_AppendAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := activity("a1", "c1", 3, points.StatusApproved)
	a.Note = "good job"
	require.NoError(t, s.Append(ctx, a))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, a.ChildID, got.ChildID)
	assert.Equal(t, a.Date, got.Date)
	assert.Equal(t, a.EarnedPoints, got.EarnedPoints)
	assert.Equal(t, "good job", got.Note)
	assert.True(t, stamp.Equal(got.CreatedAt))
	assert.Nil(t, got.DecidedAt)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_Append_DuplicateID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, activity("a1", "c1", 3, points.StatusApproved)))
	err := s.Append(ctx, activity("a1", "c1", 3, points.StatusApproved))
	assert.ErrorIs(t, err, points.ErrValidation)
}

func TestStore_Query(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seed := []points.Activity{
		activity("a1", "c1", 3, points.StatusApproved),
		activity("a2", "c1", -1, points.StatusApproved),
		activity("a3", "c1", 2, points.StatusPending),
		activity("a4", "c2", 5, points.StatusApproved),
	}
	later := activity("a5", "c1", 1, points.StatusApproved)
	later.Date = day.AddDays(2)
	seed = append(seed, later)
	for _, a := range seed {
		require.NoError(t, s.Append(ctx, a))
	}

	tests := []struct {
		name   string
		filter points.ActivityFilter
		want   int
	}{
		{"all", points.ActivityFilter{}, 5},
		{"child", points.ActivityFilter{ChildID: "c1"}, 4},
		{"status", points.ActivityFilter{ChildID: "c1", Status: points.StatusApproved}, 3},
		{"type", points.ActivityFilter{Type: points.TypeBad}, 1},
		{"day", points.ActivityFilter{ChildID: "c1", Date: day}, 3},
		{"range", points.ActivityFilter{From: day.AddDays(1), To: day.AddDays(3)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestStore_UpdateStatus_CompareAndSet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, activity("a1", "c1", 3, points.StatusPending)))

	decided := stamp.Add(time.Hour)
	require.NoError(t, s.UpdateStatus(ctx, "a1", points.StatusPending, points.StatusApproved, "mom", decided))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, points.StatusApproved, got.Status)
	assert.Equal(t, "mom", got.ApprovedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, decided.Equal(*got.DecidedAt))

	err = s.UpdateStatus(ctx, "a1", points.StatusPending, points.StatusRejected, "dad", decided)
	assert.ErrorIs(t, err, points.ErrValidation)

	err = s.UpdateStatus(ctx, "ghost", points.StatusPending, points.StatusApproved, "mom", decided)
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_SumPoints(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, a := range []points.Activity{
		activity("a1", "c1", 3, points.StatusApproved),
		activity("a2", "c1", -5, points.StatusApproved),
		activity("a3", "c1", 10, points.StatusPending),
		activity("a4", "c2", 7, points.StatusApproved),
	} {
		require.NoError(t, s.Append(ctx, a))
	}

	approved, err := s.SumPoints(ctx, "c1", points.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), approved)

	pending, err := s.SumPoints(ctx, "c1", points.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pending)

	none, err := s.SumPoints(ctx, "nobody", points.StatusApproved)
	require.NoError(t, err)
	assert.Zero(t, none)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestStore_Behaviors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	two := 2

	require.NoError(t, s.SaveBehavior(ctx, points.Behavior{ID: "read", FamilyID: "fam-1", Name: "Read", Points: 2, IsRepeatable: true, MaxPerDay: &two, Active: true}))
	require.NoError(t, s.SaveBehavior(ctx, points.Behavior{ID: "bed", FamilyID: "fam-1", Name: "Make bed", Points: 1, Category: "chores", Active: true}))
	require.NoError(t, s.SaveBehavior(ctx, points.Behavior{ID: "other", FamilyID: "fam-2", Name: "Other", Points: 1}))

	read, err := s.Behavior(ctx, "read")
	require.NoError(t, err)
	require.NotNil(t, read.MaxPerDay)
	assert.Equal(t, 2, *read.MaxPerDay)
	assert.True(t, read.IsRepeatable)

	bed, err := s.Behavior(ctx, "bed")
	require.NoError(t, err)
	assert.Nil(t, bed.MaxPerDay)
	assert.Equal(t, "chores", bed.Category)

	list, err := s.Behaviors(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, points.ItemID("bed"), list[0].ID)

	// Editing replaces the row.
	read.Points = 5
	read.Active = false
	require.NoError(t, s.SaveBehavior(ctx, read))
	read, err = s.Behavior(ctx, "read")
	require.NoError(t, err)
	assert.Equal(t, int64(5), read.Points)
	assert.False(t, read.Active)

	_, err = s.Behavior(ctx, "ghost")
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_Rewards(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveReward(ctx, points.Reward{ID: "movie", FamilyID: "fam-1", Name: "Movie", Cost: 10, Color: "#ff0000"}))

	r, err := s.Reward(ctx, "movie")
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.Cost)
	assert.Equal(t, "#ff0000", r.Color)

	list, err := s.Rewards(ctx, "fam-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.Reward(ctx, "ghost")
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_ImportCatalog(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := points.ImportCatalog(ctx, s,
		[]points.Behavior{{ID: "b1", FamilyID: "fam-1", Name: "One", Points: 1, Active: true}, {ID: "b2", FamilyID: "fam-1", Name: "Two", Points: -2, Active: true}},
		[]points.Reward{{ID: "r1", FamilyID: "fam-1", Name: "Prize", Cost: 4}},
	)
	require.NoError(t, err)

	bs, err := s.Behaviors(ctx, "fam-1")
	require.NoError(t, err)
	assert.Len(t, bs, 2)
	rs, err := s.Rewards(ctx, "fam-1")
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

// =============================================================================
// FAMILIES & CHILDREN
// =============================================================================

func TestStore_Families(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	f, err := s.Family(ctx, "fam-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", f.Timezone)
	assert.False(t, f.CreatedAt.IsZero())

	all, err := s.Families(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.Family(ctx, "ghost")
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_Children(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	kids, err := s.Children(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, points.ChildID("c1"), kids[0].ID)

	all, err := s.Children(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = s.SaveChild(ctx, points.Child{ID: "c9", FamilyID: "ghost", Name: "Nobody"})
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_SaveChildKeepsCachedBalance(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedBalance(ctx, "c1", 42))
	require.NoError(t, s.SaveChild(ctx, points.Child{ID: "c1", FamilyID: "fam-1", Name: "Ava", Age: 8}))

	c, err := s.Child(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.TotalPoints)
	assert.Equal(t, 8, c.Age)

	err = s.SetCachedBalance(ctx, "ghost", 1)
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestStore_Reset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, activity("a1", "c1", 3, points.StatusApproved)))

	require.NoError(t, s.Reset(ctx))

	all, err := s.Query(ctx, points.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	fams, err := s.Families(ctx)
	require.NoError(t, err)
	assert.Empty(t, fams)
}

// =============================================================================
// RECORDER OVER SQLITE
// =============================================================================

func TestRecorder_OverSQLite(t *testing.T) {
	// GIVEN: B001 worth 3, not repeatable; reward costing 2
	// WHEN: B001 twice, then redeem
	// THEN: second B001 is AlreadyDoneToday; balance 3 -> 1; cache follows

	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBehavior(ctx, points.Behavior{ID: "B001", FamilyID: "fam-1", Name: "Brush teeth", Points: 3, Active: true}))
	require.NoError(t, s.SaveReward(ctx, points.Reward{ID: "R001", FamilyID: "fam-1", Name: "Sticker", Cost: 2}))

	rec := points.NewRecorder(s)

	_, err := rec.RecordBehavior(ctx, "c1", "B001", day, "")
	require.NoError(t, err)
	_, err = rec.RecordBehavior(ctx, "c1", "B001", day, "")
	assert.ErrorIs(t, err, points.ErrIneligible)

	_, err = rec.RedeemReward(ctx, "c1", "R001", "")
	require.NoError(t, err)

	balance, err := rec.Balances.CurrentBalance(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	c, err := s.Child(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TotalPoints)
}
