/*
recorder.go - The single mutation entry point

PURPOSE:
  Every point a child earns or spends goes through the Recorder. It ties
  the catalog, the eligibility rules, the balance and the ledger together
  so that a check and the append it guards happen as one step.

FLOWS:
  RecordBehavior: lookup -> eligibility -> append -> refresh cache
  RedeemReward:   lookup -> affordability -> append (-cost) -> refresh cache
  RecordBatch:    RecordBehavior once per tap, in behavior-ID order.
                  Partial success: earlier taps stay recorded when a later
                  one hits a daily cap.
  Approve/Reject: decide a Pending activity. Approval re-runs the check
                  that would have guarded the append.

CONCURRENCY:
  Calls for the same child are serialized by a per-child mutex, so two
  simultaneous taps can't both pass a daily cap of 1. Different children
  proceed in parallel. When the store is a ChildLocker (store/postgres)
  the store's lock is taken too, which covers other processes.

APPROVAL POLICY:
  With RequireApproval set, behaviors are appended Pending and do not
  count toward the balance or the daily cap until approved. Redemptions
  are always appended Approved: affordability is their gate.

SEE ALSO:
  - eligibility.go, balance.go, ledger.go
  - api/handlers.go: HTTP adapter
*/
package points

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
)

// Observer receives recorder outcomes. metrics.Prometheus implements it.
type Observer interface {
	ActivityRecorded(a Activity)
	ActivityRejected(kind string, reason Reason)
}

type nopObserver struct{}

func (nopObserver) ActivityRecorded(Activity)        {}
func (nopObserver) ActivityRejected(string, Reason) {}

// Recorder is safe for concurrent use.
type Recorder struct {
	Catalog     CatalogStore
	Families    FamilyStore
	Ledger      *Ledger
	Eligibility *Evaluator
	Balances    *BalanceCalculator

	// RequireApproval appends behaviors as Pending.
	RequireApproval bool
	Observer        Observer

	// Locker, when set, serializes a child across processes.
	Locker ChildLocker

	locks keyedMutex
}

// NewRecorder wires every component over one store.
func NewRecorder(store Store) *Recorder {
	ledger := NewLedger(store)
	r := &Recorder{
		Catalog:     store,
		Families:    store,
		Ledger:      ledger,
		Eligibility: &Evaluator{Ledger: ledger},
		Balances:    &BalanceCalculator{Ledger: ledger, Families: store},
		Observer:    nopObserver{},
	}
	if l, ok := store.(ChildLocker); ok {
		r.Locker = l
	}
	return r
}

// =============================================================================
// BEHAVIORS
// =============================================================================

// RecordBehavior logs one performance of a behavior. A zero day means
// today in the family's timezone.
func (r *Recorder) RecordBehavior(ctx context.Context, childID ChildID, behaviorID ItemID, day Date, note string) (Activity, error) {
	a, err := r.withChild(ctx, childID, func(ctx context.Context) (Activity, error) {
		return r.recordBehaviorLocked(ctx, childID, behaviorID, day, note)
	})
	if err != nil {
		r.rejected(err)
		return Activity{}, err
	}
	return a, nil
}

func (r *Recorder) recordBehaviorLocked(ctx context.Context, childID ChildID, behaviorID ItemID, day Date, note string) (Activity, error) {
	child, err := r.child(ctx, childID)
	if err != nil {
		return Activity{}, err
	}
	b, err := r.behavior(ctx, child, behaviorID)
	if err != nil {
		return Activity{}, err
	}
	if day.IsZero() {
		if day, err = r.today(ctx, child); err != nil {
			return Activity{}, err
		}
	}

	elig, err := r.Eligibility.Evaluate(ctx, child.ID, b, day)
	if err != nil {
		return Activity{}, err
	}
	if !elig.Allowed {
		return Activity{}, &EligibilityError{Reason: elig.Reason, ChildID: child.ID, ItemID: b.ID, Date: day}
	}

	status := StatusApproved
	if r.RequireApproval {
		status = StatusPending
	}
	a, err := r.Ledger.Append(ctx, Activity{
		ChildID:      child.ID,
		ItemID:       b.ID,
		Type:         b.Type(),
		Date:         day,
		EarnedPoints: b.Points,
		Status:       status,
		Note:         note,
	})
	if err != nil {
		return Activity{}, err
	}
	r.committed(ctx, a)
	return a, nil
}

// =============================================================================
// REWARDS
// =============================================================================

// RedeemReward spends points on a reward, dated today in the family's
// timezone. The ledger is untouched when the child can't afford it.
func (r *Recorder) RedeemReward(ctx context.Context, childID ChildID, rewardID ItemID, note string) (Activity, error) {
	a, err := r.withChild(ctx, childID, func(ctx context.Context) (Activity, error) {
		return r.redeemLocked(ctx, childID, rewardID, note)
	})
	if err != nil {
		r.rejected(err)
		return Activity{}, err
	}
	return a, nil
}

func (r *Recorder) redeemLocked(ctx context.Context, childID ChildID, rewardID ItemID, note string) (Activity, error) {
	child, err := r.child(ctx, childID)
	if err != nil {
		return Activity{}, err
	}
	reward, err := r.reward(ctx, child, rewardID)
	if err != nil {
		return Activity{}, err
	}
	if err := r.checkAffordable(ctx, child.ID, reward.Cost); err != nil {
		return Activity{}, err
	}
	day, err := r.today(ctx, child)
	if err != nil {
		return Activity{}, err
	}

	a, err := r.Ledger.Append(ctx, Activity{
		ChildID:      child.ID,
		ItemID:       reward.ID,
		Type:         TypeReward,
		Date:         day,
		EarnedPoints: -reward.Cost,
		Status:       StatusApproved,
		Note:         note,
	})
	if err != nil {
		return Activity{}, err
	}
	r.committed(ctx, a)
	return a, nil
}

func (r *Recorder) checkAffordable(ctx context.Context, childID ChildID, cost int64) error {
	balance, err := r.Balances.CurrentBalance(ctx, childID)
	if err != nil {
		return err
	}
	if balance < cost {
		return &InsufficientPointsError{ChildID: childID, Required: cost, Available: balance}
	}
	return nil
}

// =============================================================================
// BATCH
// =============================================================================

// BatchItem is the outcome of one tap in a batch.
type BatchItem struct {
	BehaviorID ItemID
	Activity   *Activity
	Err        error
}

func (i BatchItem) Succeeded() bool { return i.Err == nil }

type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// RecordBatch commits the "save all pending taps" flow. Each tap is an
// independent RecordBehavior; failures do not undo earlier successes.
// Behaviors are processed in ascending ID order so results are stable.
// A count above MaxTapsPerItem rejects the whole batch before any write.
func (r *Recorder) RecordBatch(ctx context.Context, childID ChildID, deltas map[ItemID]int, day Date) (BatchResult, error) {
	if err := checkTapCounts(deltas); err != nil {
		return BatchResult{}, err
	}
	if _, err := r.child(ctx, childID); err != nil {
		return BatchResult{}, err
	}

	ids := make([]ItemID, 0, len(deltas))
	for id, n := range deltas {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var res BatchResult
	for _, id := range ids {
		for n := 0; n < deltas[id]; n++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			item := BatchItem{BehaviorID: id}
			a, err := r.RecordBehavior(ctx, childID, id, day, "")
			if err != nil {
				item.Err = err
				res.Failed++
			} else {
				item.Activity = &a
				res.Succeeded++
			}
			res.Items = append(res.Items, item)
		}
	}
	return res, nil
}

// =============================================================================
// APPROVAL
// =============================================================================

// Approve moves a Pending activity to Approved after re-checking the rule
// that guards it: the daily cap for behaviors, affordability for rewards.
func (r *Recorder) Approve(ctx context.Context, id ActivityID, approver string) (Activity, error) {
	pending, err := r.Ledger.Get(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	a, err := r.withChild(ctx, pending.ChildID, func(ctx context.Context) (Activity, error) {
		return r.approveLocked(ctx, id, approver)
	})
	if err != nil {
		r.rejected(err)
		return Activity{}, err
	}
	return a, nil
}

func (r *Recorder) approveLocked(ctx context.Context, id ActivityID, approver string) (Activity, error) {
	// Re-read under the lock; another caller may have decided it already.
	pending, err := r.Ledger.Get(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	if pending.Status != StatusPending {
		return Activity{}, &ValidationError{Field: "status", Message: "activity " + string(id) + " is already " + string(pending.Status)}
	}

	switch pending.Type {
	case TypeReward:
		if err := r.checkAffordable(ctx, pending.ChildID, -pending.EarnedPoints); err != nil {
			return Activity{}, err
		}
	default:
		b, err := r.Catalog.Behavior(ctx, pending.ItemID)
		if err != nil {
			return Activity{}, storageErr("get behavior", err)
		}
		elig, err := r.Eligibility.Evaluate(ctx, pending.ChildID, b, pending.Date)
		if err != nil {
			return Activity{}, err
		}
		if !elig.Allowed {
			return Activity{}, &EligibilityError{Reason: elig.Reason, ChildID: pending.ChildID, ItemID: b.ID, Date: pending.Date}
		}
	}

	a, err := r.Ledger.Transition(ctx, id, StatusApproved, approver)
	if err != nil {
		return Activity{}, err
	}
	r.committed(ctx, a)
	return a, nil
}

// Reject moves a Pending activity to Rejected. Rejected activities never
// count toward a balance.
func (r *Recorder) Reject(ctx context.Context, id ActivityID, approver string) (Activity, error) {
	pending, err := r.Ledger.Get(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	return r.withChild(ctx, pending.ChildID, func(ctx context.Context) (Activity, error) {
		a, err := r.Ledger.Transition(ctx, id, StatusRejected, approver)
		if err != nil {
			return Activity{}, err
		}
		r.committed(ctx, a)
		return a, nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// withChild runs fn holding the child's in-process lock and, when the
// store provides one, its cross-process lock. fn's errors come back
// unchanged; a failure of the store lock itself is a StorageError.
func (r *Recorder) withChild(ctx context.Context, id ChildID, fn func(context.Context) (Activity, error)) (Activity, error) {
	unlock := r.locks.Lock(string(id))
	defer unlock()

	if r.Locker == nil {
		return fn(ctx)
	}

	var (
		a     Activity
		fnErr error
	)
	err := r.Locker.WithChildLock(ctx, id, func(ctx context.Context) error {
		a, fnErr = fn(ctx)
		return fnErr
	})
	if fnErr != nil {
		return Activity{}, fnErr
	}
	if err != nil {
		return Activity{}, storageErr("lock child", err)
	}
	return a, nil
}

func (r *Recorder) child(ctx context.Context, id ChildID) (Child, error) {
	if id == "" {
		return Child{}, &ValidationError{Field: "child_id", Message: "required"}
	}
	c, err := r.Families.Child(ctx, id)
	if err != nil {
		return Child{}, storageErr("get child", err)
	}
	return c, nil
}

// behavior looks up a catalog behavior owned by the child's family.
// A behavior from another family is reported as not found.
func (r *Recorder) behavior(ctx context.Context, child Child, id ItemID) (Behavior, error) {
	if id == "" {
		return Behavior{}, &ValidationError{Field: "behavior_id", Message: "required"}
	}
	b, err := r.Catalog.Behavior(ctx, id)
	if err != nil {
		return Behavior{}, storageErr("get behavior", err)
	}
	if b.FamilyID != child.FamilyID {
		return Behavior{}, &NotFoundError{Kind: "behavior", ID: string(id)}
	}
	return b, nil
}

func (r *Recorder) reward(ctx context.Context, child Child, id ItemID) (Reward, error) {
	if id == "" {
		return Reward{}, &ValidationError{Field: "reward_id", Message: "required"}
	}
	rw, err := r.Catalog.Reward(ctx, id)
	if err != nil {
		return Reward{}, storageErr("get reward", err)
	}
	if rw.FamilyID != child.FamilyID {
		return Reward{}, &NotFoundError{Kind: "reward", ID: string(id)}
	}
	return rw, nil
}

func (r *Recorder) today(ctx context.Context, child Child) (Date, error) {
	f, err := r.Families.Family(ctx, child.FamilyID)
	if err != nil {
		return Date{}, storageErr("get family", err)
	}
	return DateOf(r.Ledger.Now().In(f.Location())), nil
}

// committed refreshes the balance cache after a ledger write. The write
// already happened, so a failed refresh is logged and left to the audit.
func (r *Recorder) committed(ctx context.Context, a Activity) {
	if _, err := r.Balances.Refresh(ctx, a.ChildID); err != nil {
		log.Printf("[Recorder] balance cache refresh failed for child %s: %v", a.ChildID, err)
	}
	r.observer().ActivityRecorded(a)
}

func (r *Recorder) rejected(err error) {
	var reason Reason
	var elig *EligibilityError
	if errors.As(err, &elig) {
		reason = elig.Reason
	}
	r.observer().ActivityRejected(Kind(err), reason)
}

func (r *Recorder) observer() Observer {
	if r.Observer == nil {
		return nopObserver{}
	}
	return r.Observer
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
