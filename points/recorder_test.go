package points_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/kidpoints/points"
	"github.com/warp/kidpoints/points/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const family = points.FamilyID("fam-1")

var march10 = points.NewDate(2025, time.March, 10)

type fixture struct {
	ctx   context.Context
	store *store.Memory
	rec   *points.Recorder
}

// newFixture returns a recorder over an in-memory store with one family and
// child C001. The clock starts at 2025-03-10 09:00 UTC and ticks one second
// per read so CreatedAt ordering is deterministic.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	rec := points.NewRecorder(mem)

	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	rec.Ledger.Now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}

	require.NoError(t, mem.SaveFamily(ctx, points.Family{ID: family, Name: "Smith", Timezone: "UTC"}))
	require.NoError(t, mem.SaveChild(ctx, points.Child{ID: "C001", FamilyID: family, Name: "Ava"}))
	return &fixture{ctx: ctx, store: mem, rec: rec}
}

func intPtr(n int) *int { return &n }

func (f *fixture) behavior(t *testing.T, id string, pts int64, repeatable bool, maxPerDay *int) points.Behavior {
	t.Helper()
	b := points.Behavior{
		ID:           points.ItemID(id),
		FamilyID:     family,
		Name:         id,
		Points:       pts,
		IsRepeatable: repeatable,
		MaxPerDay:    maxPerDay,
		Active:       true,
	}
	require.NoError(t, f.store.SaveBehavior(f.ctx, b))
	return b
}

func (f *fixture) reward(t *testing.T, id string, cost int64) points.Reward {
	t.Helper()
	r := points.Reward{ID: points.ItemID(id), FamilyID: family, Name: id, Cost: cost}
	require.NoError(t, f.store.SaveReward(f.ctx, r))
	return r
}

func (f *fixture) balance(t *testing.T, child points.ChildID) int64 {
	t.Helper()
	b, err := f.rec.Balances.CurrentBalance(f.ctx, child)
	require.NoError(t, err)
	return b
}

func (f *fixture) ledgerSize(t *testing.T) int {
	t.Helper()
	all, err := f.rec.Ledger.Query(f.ctx, points.ActivityFilter{})
	require.NoError(t, err)
	return len(all)
}

func requireReason(t *testing.T, err error, want points.Reason) {
	t.Helper()
	var elig *points.EligibilityError
	require.ErrorAs(t, err, &elig)
	assert.Equal(t, want, elig.Reason)
}

// =============================================================================
// RECORD BEHAVIOR
// =============================================================================

func TestRecorder_EndToEnd_SingleShotBehavior(t *testing.T) {
	// GIVEN: C001 with balance 0 and B001 worth 3, not repeatable
	// WHEN: B001 is recorded twice on the same day
	// THEN: first succeeds with +3, second is AlreadyDoneToday, balance stays 3

	f := newFixture(t)
	f.behavior(t, "B001", 3, false, nil)

	a, err := f.rec.RecordBehavior(f.ctx, "C001", "B001", march10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.EarnedPoints)
	assert.Equal(t, points.TypeGood, a.Type)
	assert.Equal(t, points.StatusApproved, a.Status)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, int64(3), f.balance(t, "C001"))

	_, err = f.rec.RecordBehavior(f.ctx, "C001", "B001", march10, "")
	requireReason(t, err, points.ReasonAlreadyDoneToday)
	assert.Equal(t, int64(3), f.balance(t, "C001"))
}

func TestRecorder_DailyCap_TwoOfThree(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "read", 2, true, intPtr(2))

	var ok int
	var lastErr error
	for i := 0; i < 3; i++ {
		if _, err := f.rec.RecordBehavior(f.ctx, "C001", "read", march10, ""); err != nil {
			lastErr = err
		} else {
			ok++
		}
	}

	assert.Equal(t, 2, ok)
	requireReason(t, lastErr, points.ReasonDailyLimitReached)
	assert.Equal(t, int64(4), f.balance(t, "C001"))
}

func TestRecorder_DailyCap_ResetsNextDay(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "read", 2, true, intPtr(1))

	_, err := f.rec.RecordBehavior(f.ctx, "C001", "read", march10, "")
	require.NoError(t, err)
	_, err = f.rec.RecordBehavior(f.ctx, "C001", "read", march10.AddDays(1), "")
	assert.NoError(t, err, "cap is per calendar day")
}

func TestRecorder_SingleShot_IgnoresUnrelatedActivity(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "bed", 1, false, nil)
	f.behavior(t, "dishes", 2, true, nil)

	_, err := f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.rec.RecordBehavior(f.ctx, "C001", "dishes", march10, "")
		require.NoError(t, err, "unbounded repeatable behavior")
	}

	_, err = f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	requireReason(t, err, points.ReasonAlreadyDoneToday)
}

func TestRecorder_SingleShot_MaxPerDayIgnored(t *testing.T) {
	// A non-repeatable behavior is a checkbox even when MaxPerDay is set.
	f := newFixture(t)
	f.behavior(t, "bed", 1, false, intPtr(5))

	_, err := f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	require.NoError(t, err)
	_, err = f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	requireReason(t, err, points.ReasonAlreadyDoneToday)
}

func TestRecorder_InactiveBehavior(t *testing.T) {
	f := newFixture(t)
	b := f.behavior(t, "old", 5, true, nil)
	b.Active = false
	require.NoError(t, f.store.SaveBehavior(f.ctx, b))

	_, err := f.rec.RecordBehavior(f.ctx, "C001", "old", march10, "")
	requireReason(t, err, points.ReasonItemInactive)
	assert.Equal(t, 0, f.ledgerSize(t))
}

func TestRecorder_BadBehaviorCanGoNegative(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "hit", -4, true, nil)

	a, err := f.rec.RecordBehavior(f.ctx, "C001", "hit", march10, "sibling")
	require.NoError(t, err)
	assert.Equal(t, points.TypeBad, a.Type)
	assert.Equal(t, int64(-4), a.EarnedPoints)
	assert.Equal(t, "sibling", a.Note)
	assert.Equal(t, int64(-4), f.balance(t, "C001"))
}

func TestRecorder_ZeroDayMeansFamilyToday(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveFamily(f.ctx, points.Family{ID: family, Timezone: "Pacific/Auckland"}))
	f.behavior(t, "read", 1, true, nil)

	// 20:00 UTC on March 10 is 09:00 on March 11 in Auckland (UTC+13).
	f.rec.Ledger.Now = func() time.Time { return time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC) }
	a, err := f.rec.RecordBehavior(f.ctx, "C001", "read", points.Date{}, "")
	require.NoError(t, err)
	assert.Equal(t, march10.AddDays(1), a.Date)
}

func TestRecorder_NotFound(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "read", 1, true, nil)
	require.NoError(t, f.store.SaveBehavior(f.ctx, points.Behavior{ID: "theirs", FamilyID: "fam-2", Points: 1, Active: true}))
	require.NoError(t, f.store.SaveReward(f.ctx, points.Reward{ID: "their-prize", FamilyID: "fam-2", Cost: 0}))

	tests := []struct {
		name string
		run  func() error
		kind string
	}{
		{"missing behavior", func() error {
			_, err := f.rec.RecordBehavior(f.ctx, "C001", "nope", march10, "")
			return err
		}, "behavior"},
		{"other family's behavior", func() error {
			_, err := f.rec.RecordBehavior(f.ctx, "C001", "theirs", march10, "")
			return err
		}, "behavior"},
		{"missing child", func() error {
			_, err := f.rec.RecordBehavior(f.ctx, "ghost", "read", march10, "")
			return err
		}, "child"},
		{"other family's reward", func() error {
			_, err := f.rec.RedeemReward(f.ctx, "C001", "their-prize", "")
			return err
		}, "reward"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var nf *points.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tt.kind, nf.Kind)
			assert.Equal(t, points.KindNotFound, points.Kind(err))
		})
	}
	assert.Equal(t, 0, f.ledgerSize(t))
}

// =============================================================================
// REDEEM REWARD
// =============================================================================

func TestRecorder_RedeemReward_Insufficient_LedgerUnchanged(t *testing.T) {
	// GIVEN: balance 5, reward costs 10
	// WHEN: redeeming
	// THEN: InsufficientPointsError{10, 5}, nothing appended

	f := newFixture(t)
	f.behavior(t, "chores", 5, false, nil)
	f.reward(t, "bike", 10)
	_, err := f.rec.RecordBehavior(f.ctx, "C001", "chores", march10, "")
	require.NoError(t, err)
	before := f.ledgerSize(t)

	_, err = f.rec.RedeemReward(f.ctx, "C001", "bike", "")

	var insufficient *points.InsufficientPointsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(10), insufficient.Required)
	assert.Equal(t, int64(5), insufficient.Available)
	assert.Equal(t, before, f.ledgerSize(t))
	assert.Equal(t, int64(5), f.balance(t, "C001"))
}

func TestRecorder_RedeemReward_Success(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "chores", 12, false, nil)
	f.reward(t, "movie", 10)
	_, err := f.rec.RecordBehavior(f.ctx, "C001", "chores", march10, "")
	require.NoError(t, err)

	a, err := f.rec.RedeemReward(f.ctx, "C001", "movie", "friday")
	require.NoError(t, err)

	assert.Equal(t, points.TypeReward, a.Type)
	assert.Equal(t, int64(-10), a.EarnedPoints)
	assert.Equal(t, points.StatusApproved, a.Status)
	assert.Equal(t, march10, a.Date)
	assert.Equal(t, int64(2), f.balance(t, "C001"))

	child, err := f.store.Child(f.ctx, "C001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), child.TotalPoints, "cache refreshed on write")
}

func TestRecorder_RedeemReward_ExactBalance(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "chores", 10, false, nil)
	f.reward(t, "movie", 10)
	_, err := f.rec.RecordBehavior(f.ctx, "C001", "chores", march10, "")
	require.NoError(t, err)

	_, err = f.rec.RedeemReward(f.ctx, "C001", "movie", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.balance(t, "C001"))

	_, err = f.rec.RedeemReward(f.ctx, "C001", "movie", "")
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)
}

func TestRecorder_RedeemReward_NegativeBalanceBlocksFreeReward(t *testing.T) {
	// A free reward still needs balance >= 0.
	f := newFixture(t)
	f.behavior(t, "hit", -1, true, nil)
	f.reward(t, "sticker", 0)
	_, err := f.rec.RecordBehavior(f.ctx, "C001", "hit", march10, "")
	require.NoError(t, err)

	_, err = f.rec.RedeemReward(f.ctx, "C001", "sticker", "")
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)
}

// =============================================================================
// BATCH
// =============================================================================

func TestRecorder_Batch_PartialSuccess(t *testing.T) {
	// GIVEN: X with maxPerDay=1
	// WHEN: batch {X: 3}
	// THEN: 1 success, 2 DailyLimitReached, exactly 1 activity for X

	f := newFixture(t)
	f.behavior(t, "X", 2, true, intPtr(1))

	res, err := f.rec.RecordBatch(f.ctx, "C001", map[points.ItemID]int{"X": 3}, march10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Items, 3)
	assert.True(t, res.Items[0].Succeeded())
	for _, item := range res.Items[1:] {
		requireReason(t, item.Err, points.ReasonDailyLimitReached)
	}

	xs, err := f.rec.Ledger.Query(f.ctx, points.ActivityFilter{ItemID: "X"})
	require.NoError(t, err)
	assert.Len(t, xs, 1)
}

func TestRecorder_Batch_OrderAndSkips(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "b1", 1, true, nil)
	f.behavior(t, "b2", 2, true, nil)

	res, err := f.rec.RecordBatch(f.ctx, "C001", map[points.ItemID]int{"b2": 2, "b1": 1, "b3": 0, "b4": -1}, march10)
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.Equal(t, points.ItemID("b1"), res.Items[0].BehaviorID)
	assert.Equal(t, points.ItemID("b2"), res.Items[1].BehaviorID)
	assert.Equal(t, points.ItemID("b2"), res.Items[2].BehaviorID)
	assert.Equal(t, int64(5), f.balance(t, "C001"))
}

func TestRecorder_Batch_UnknownBehaviorFailsEachTap(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "b1", 1, true, nil)

	res, err := f.rec.RecordBatch(f.ctx, "C001", map[points.ItemID]int{"b1": 1, "zz": 2}, march10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.ErrorIs(t, res.Items[2].Err, points.ErrNotFound)
}

func TestRecorder_Batch_RejectsHugeCounts(t *testing.T) {
	// GIVEN: an uncapped repeatable behavior
	// WHEN: a batch asks for more taps than MaxTapsPerItem
	// THEN: ValidationError and nothing is written

	f := newFixture(t)
	f.behavior(t, "b1", 1, true, nil)
	f.behavior(t, "b2", 1, true, nil)

	_, err := f.rec.RecordBatch(f.ctx, "C001", map[points.ItemID]int{"b1": 1, "b2": 2147483647}, march10)
	var verr *points.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "deltas.b2", verr.Field)

	all, err := f.rec.Ledger.Query(f.ctx, points.ActivityFilter{ChildID: "C001"})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecorder_Batch_UnknownChild(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.RecordBatch(f.ctx, "ghost", map[points.ItemID]int{"b1": 1}, march10)
	assert.ErrorIs(t, err, points.ErrNotFound)
}

// =============================================================================
// HISTORY & INVARIANTS
// =============================================================================

func TestRecorder_CatalogEditDoesNotRewriteHistory(t *testing.T) {
	f := newFixture(t)
	b := f.behavior(t, "read", 3, true, nil)
	_, err := f.rec.RecordBehavior(f.ctx, "C001", "read", march10, "")
	require.NoError(t, err)

	b.Points = 10
	require.NoError(t, f.store.SaveBehavior(f.ctx, b))
	assert.Equal(t, int64(3), f.balance(t, "C001"), "history keeps the old value")

	_, err = f.rec.RecordBehavior(f.ctx, "C001", "read", march10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(13), f.balance(t, "C001"))
}

func TestRecorder_BalanceIndependentOfOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveChild(f.ctx, points.Child{ID: "C002", FamilyID: family}))
	f.behavior(t, "a", 5, true, nil)
	f.behavior(t, "b", -3, true, nil)
	f.behavior(t, "c", 1, true, nil)

	for _, id := range []points.ItemID{"a", "b", "c", "a"} {
		_, err := f.rec.RecordBehavior(f.ctx, "C001", id, march10, "")
		require.NoError(t, err)
	}
	for _, id := range []points.ItemID{"c", "a", "a", "b"} {
		_, err := f.rec.RecordBehavior(f.ctx, "C002", id, march10, "")
		require.NoError(t, err)
	}

	c1, c2 := f.balance(t, "C001"), f.balance(t, "C002")
	assert.Equal(t, int64(8), c1)
	assert.Equal(t, c1, c2)

	all, err := f.rec.Ledger.Query(f.ctx, points.ActivityFilter{ChildID: "C001", Status: points.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, c1, points.SumEarned(all))
}

func TestRecorder_ConcurrentTapsRespectCap(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "read", 1, true, intPtr(3))

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.rec.RecordBehavior(f.ctx, "C001", "read", march10, ""); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int64(3), f.balance(t, "C001"))
}

// sharedStore stands in for a database several server processes write to.
// Its WithChildLock plays the role of a database lock.
type sharedStore struct {
	*store.Memory

	mu      sync.Mutex
	held    map[points.ChildID]*sync.Mutex
	calls   atomic.Int32
	lockErr error
}

func (s *sharedStore) WithChildLock(ctx context.Context, id points.ChildID, fn func(context.Context) error) error {
	s.calls.Add(1)
	if s.lockErr != nil {
		return s.lockErr
	}
	s.mu.Lock()
	if s.held == nil {
		s.held = make(map[points.ChildID]*sync.Mutex)
	}
	l, ok := s.held[id]
	if !ok {
		l = &sync.Mutex{}
		s.held[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func TestRecorder_StoreLockCoversSeveralRecorders(t *testing.T) {
	// GIVEN: two recorders (two server processes) over one shared store
	// WHEN: both tap a behavior capped at 3 per day, 20 times each
	// THEN: exactly 3 taps are recorded in total

	f := newFixture(t)
	f.behavior(t, "read", 1, true, intPtr(3))
	shared := &sharedStore{Memory: f.store}
	recs := []*points.Recorder{points.NewRecorder(shared), points.NewRecorder(shared)}
	require.NotNil(t, recs[0].Locker)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 40; i++ {
		rec := recs[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rec.RecordBehavior(f.ctx, "C001", "read", march10, ""); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int32(40), shared.calls.Load())
	all, err := f.rec.Ledger.Query(f.ctx, points.ActivityFilter{ChildID: "C001", ItemID: "read"})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecorder_StoreLockFailure(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "read", 1, true, nil)
	f.reward(t, "toy", 0)
	shared := &sharedStore{Memory: f.store, lockErr: errors.New("connection reset")}
	rec := points.NewRecorder(shared)

	_, err := rec.RecordBehavior(f.ctx, "C001", "read", march10, "")
	assert.ErrorIs(t, err, points.ErrStorage)
	_, err = rec.RedeemReward(f.ctx, "C001", "toy", "")
	assert.ErrorIs(t, err, points.ErrStorage)

	all, err := f.rec.Ledger.Query(f.ctx, points.ActivityFilter{ChildID: "C001"})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecorder_StoreLockPassesRuleErrorsThrough(t *testing.T) {
	f := newFixture(t)
	f.behavior(t, "bed", 1, false, nil)
	rec := points.NewRecorder(&sharedStore{Memory: f.store})

	_, err := rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	require.NoError(t, err)
	_, err = rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	requireReason(t, err, points.ReasonAlreadyDoneToday)
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

func TestRecorder_Approval_PendingDoesNotCount(t *testing.T) {
	f := newFixture(t)
	f.rec.RequireApproval = true
	f.behavior(t, "read", 4, true, nil)

	a, err := f.rec.RecordBehavior(f.ctx, "C001", "read", march10, "")
	require.NoError(t, err)
	assert.Equal(t, points.StatusPending, a.Status)
	assert.Equal(t, int64(0), f.balance(t, "C001"))

	approved, err := f.rec.Approve(f.ctx, a.ID, "mom")
	require.NoError(t, err)
	assert.Equal(t, points.StatusApproved, approved.Status)
	assert.Equal(t, "mom", approved.ApprovedBy)
	require.NotNil(t, approved.DecidedAt)
	assert.Equal(t, int64(4), f.balance(t, "C001"))

	_, err = f.rec.Approve(f.ctx, a.ID, "mom")
	assert.ErrorIs(t, err, points.ErrValidation, "already decided")
}

func TestRecorder_Approval_Reject(t *testing.T) {
	f := newFixture(t)
	f.rec.RequireApproval = true
	f.behavior(t, "read", 4, true, nil)

	a, err := f.rec.RecordBehavior(f.ctx, "C001", "read", march10, "")
	require.NoError(t, err)

	rejected, err := f.rec.Reject(f.ctx, a.ID, "dad")
	require.NoError(t, err)
	assert.Equal(t, points.StatusRejected, rejected.Status)
	assert.Equal(t, int64(0), f.balance(t, "C001"))

	_, err = f.rec.Approve(f.ctx, a.ID, "mom")
	assert.ErrorIs(t, err, points.ErrValidation)
}

func TestRecorder_Approval_RechecksDailyCap(t *testing.T) {
	// GIVEN: a checkbox behavior logged twice while pending (pending doesn't count)
	// WHEN: both are approved
	// THEN: the second approval is AlreadyDoneToday

	f := newFixture(t)
	f.rec.RequireApproval = true
	f.behavior(t, "bed", 1, false, nil)

	first, err := f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	require.NoError(t, err)
	second, err := f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	require.NoError(t, err)

	_, err = f.rec.Approve(f.ctx, first.ID, "mom")
	require.NoError(t, err)
	_, err = f.rec.Approve(f.ctx, second.ID, "mom")
	requireReason(t, err, points.ReasonAlreadyDoneToday)

	still, err := f.rec.Ledger.Get(f.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, points.StatusPending, still.Status)
}

func TestRecorder_Approval_UnknownActivity(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Approve(f.ctx, "nope", "mom")
	assert.ErrorIs(t, err, points.ErrNotFound)
}

// =============================================================================
// OBSERVER
// =============================================================================

type countingObserver struct {
	mu       sync.Mutex
	recorded int
	rejected map[string]int
}

func (o *countingObserver) ActivityRecorded(points.Activity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorded++
}

func (o *countingObserver) ActivityRejected(kind string, reason points.Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejected == nil {
		o.rejected = map[string]int{}
	}
	o.rejected[kind+"/"+string(reason)]++
}

func TestRecorder_Observer(t *testing.T) {
	f := newFixture(t)
	obs := &countingObserver{}
	f.rec.Observer = obs
	f.behavior(t, "bed", 1, false, nil)
	f.reward(t, "bike", 100)

	_, _ = f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	_, _ = f.rec.RecordBehavior(f.ctx, "C001", "bed", march10, "")
	_, _ = f.rec.RedeemReward(f.ctx, "C001", "bike", "")

	assert.Equal(t, 1, obs.recorded)
	assert.Equal(t, 1, obs.rejected["EligibilityError/AlreadyDoneToday"])
	assert.Equal(t, 1, obs.rejected["InsufficientPointsError/"])
}
