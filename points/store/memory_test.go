package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/kidpoints/points"
)

func activity(id, child string, day int) points.Activity {
	return points.Activity{
		ID:           points.ActivityID(id),
		ChildID:      points.ChildID(child),
		ItemID:       "read",
		Type:         points.TypeGood,
		Date:         points.NewDate(2025, time.March, day),
		EarnedPoints: 2,
		Status:       points.StatusApproved,
	}
}

func TestMemory_AppendRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Append(ctx, activity("A1", "c1", 10)))
	err := m.Append(ctx, activity("A1", "c2", 10))

	var verr *points.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)
}

func TestMemory_QueryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Append(ctx, activity("A1", "c1", 10)))
	require.NoError(t, m.Append(ctx, activity("A2", "c1", 11)))
	require.NoError(t, m.Append(ctx, activity("A3", "c2", 11)))

	got, err := m.Query(ctx, points.ActivityFilter{Date: points.NewDate(2025, time.March, 11)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = m.Query(ctx, points.ActivityFilter{ChildID: "c1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	got[0].EarnedPoints = 100

	stored, err := m.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.EarnedPoints)
}

func TestMemory_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := activity("A1", "c1", 10)
	a.Status = points.StatusPending
	require.NoError(t, m.Append(ctx, a))
	at := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	require.NoError(t, m.UpdateStatus(ctx, "A1", points.StatusPending, points.StatusApproved, "mom", at))

	got, err := m.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, points.StatusApproved, got.Status)
	assert.Equal(t, "mom", got.ApprovedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, at.Equal(*got.DecidedAt))

	// A decided activity can't be decided again.
	err = m.UpdateStatus(ctx, "A1", points.StatusPending, points.StatusRejected, "dad", at)
	var verr *points.ValidationError
	assert.ErrorAs(t, err, &verr)

	err = m.UpdateStatus(ctx, "nope", points.StatusPending, points.StatusApproved, "mom", at)
	var nf *points.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestMemory_ChildrenAcrossFamilies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveChild(ctx, points.Child{ID: "b", FamilyID: "f2"}))
	require.NoError(t, m.SaveChild(ctx, points.Child{ID: "a", FamilyID: "f1"}))

	all, err := m.Children(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, points.ChildID("a"), all[0].ID)

	f2, err := m.Children(ctx, "f2")
	require.NoError(t, err)
	require.Len(t, f2, 1)
	assert.Equal(t, points.ChildID("b"), f2[0].ID)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveFamily(ctx, points.Family{ID: "f1"}))
	require.NoError(t, m.SaveChild(ctx, points.Child{ID: "c1", FamilyID: "f1"}))
	require.NoError(t, m.Append(ctx, activity("A1", "c1", 10)))

	require.NoError(t, m.Reset(ctx))

	families, err := m.Families(ctx)
	require.NoError(t, err)
	assert.Empty(t, families)
	_, err = m.Get(ctx, "A1")
	var nf *points.NotFoundError
	assert.ErrorAs(t, err, &nf)

	// The store is usable after a reset.
	require.NoError(t, m.Append(ctx, activity("A1", "c1", 10)))
}
