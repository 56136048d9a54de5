/*
balance.go - Balance calculation

PURPOSE:
  Answers "how many points does this child have?" by summing approved
  activities. Nothing else is authoritative.

THE CACHE:
  Child.TotalPoints exists so list views don't sum the ledger per row. It
  is a materialized copy of CurrentBalance, rewritten by Refresh after
  every ledger write for that child. Verify compares the two; the audit
  job (api/scheduler.go) repairs any drift from writers outside the
  Recorder.

PENDING DELTA:
  The tap-to-count UI keeps a local, uncommitted map of behavior -> count.
  PendingDelta turns that map into a point preview. It is pure: no ledger
  access, so a preview can never be mistaken for committed points.

EXAMPLE:
  Ledger for child c1: [+3 Good, -2 Bad, -5 Reward, +10 Good (Pending)]
  CurrentBalance(c1) = 3 - 2 - 5 = -4   (pending +10 not counted)
*/
package points

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceCalculator derives balances from the ledger. Families is optional;
// without it Refresh and Verify are no-ops.
type BalanceCalculator struct {
	Ledger   *Ledger
	Families FamilyStore
}

// CurrentBalance sums approved activities for the child.
func (bc *BalanceCalculator) CurrentBalance(ctx context.Context, childID ChildID) (int64, error) {
	return bc.sum(ctx, childID, StatusApproved)
}

func (bc *BalanceCalculator) sum(ctx context.Context, childID ChildID, status Status) (int64, error) {
	if s, ok := bc.Ledger.Store.(PointSummer); ok {
		total, err := s.SumPoints(ctx, childID, status)
		if err != nil {
			return 0, storageErr("sum points", err)
		}
		return total, nil
	}
	txs, err := bc.Ledger.Store.Query(ctx, ActivityFilter{ChildID: childID, Status: status})
	if err != nil {
		return 0, storageErr("query activities", err)
	}
	return SumEarned(txs), nil
}

// SumEarned adds EarnedPoints. Callers filter by status first.
func SumEarned(activities []Activity) int64 {
	var total int64
	for _, a := range activities {
		total += a.EarnedPoints
	}
	return total
}

func (bc *BalanceCalculator) CanAfford(ctx context.Context, childID ChildID, cost int64) (bool, error) {
	balance, err := bc.CurrentBalance(ctx, childID)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

// MaxTapsPerItem bounds the count of one behavior in a batch or preview.
const MaxTapsPerItem = 100

// checkTapCounts fails with *ValidationError on a count above MaxTapsPerItem.
func checkTapCounts(counts map[ItemID]int) error {
	for id, n := range counts {
		if n > MaxTapsPerItem {
			return &ValidationError{
				Field:   "deltas." + string(id),
				Message: fmt.Sprintf("at most %d taps per behavior, got %d", MaxTapsPerItem, n),
			}
		}
	}
	return nil
}

// PendingDelta previews the points a batch of uncommitted taps would add.
// Non-positive counts are ignored. Every counted ID must be in lookup.
func PendingDelta(counts map[ItemID]int, lookup map[ItemID]Behavior) (int64, error) {
	if err := checkTapCounts(counts); err != nil {
		return 0, err
	}
	var total int64
	for id, n := range counts {
		if n <= 0 {
			continue
		}
		b, ok := lookup[id]
		if !ok {
			return 0, &NotFoundError{Kind: "behavior", ID: string(id)}
		}
		total += b.Points * int64(n)
	}
	return total, nil
}

// =============================================================================
// CACHE MAINTENANCE
// =============================================================================

// Refresh recomputes the child's balance and writes it to the cache.
func (bc *BalanceCalculator) Refresh(ctx context.Context, childID ChildID) (int64, error) {
	balance, err := bc.CurrentBalance(ctx, childID)
	if err != nil {
		return 0, err
	}
	if bc.Families == nil {
		return balance, nil
	}
	if err := bc.Families.SetCachedBalance(ctx, childID, balance); err != nil {
		return balance, storageErr("set cached balance", err)
	}
	return balance, nil
}

type CacheCheck struct {
	ChildID ChildID
	Cached  int64
	Derived int64
}

func (c CacheCheck) Drifted() bool { return c.Cached != c.Derived }

// Verify compares the cached TotalPoints with the ledger sum.
func (bc *BalanceCalculator) Verify(ctx context.Context, childID ChildID) (CacheCheck, error) {
	derived, err := bc.CurrentBalance(ctx, childID)
	if err != nil {
		return CacheCheck{}, err
	}
	check := CacheCheck{ChildID: childID, Derived: derived, Cached: derived}
	if bc.Families == nil {
		return check, nil
	}
	child, err := bc.Families.Child(ctx, childID)
	if err != nil {
		return CacheCheck{}, storageErr("get child", err)
	}
	check.Cached = child.TotalPoints
	return check, nil
}

// =============================================================================
// SUMMARY - What the dashboard shows
// =============================================================================

// Summary is the balance plus one day's movement.
type Summary struct {
	ChildID          ChildID
	Day              Date
	Balance          int64
	EarnedToday      int64 // approved Good points on Day
	LostToday        int64 // approved Bad points on Day, as a positive number
	SpentToday       int64 // approved redemptions on Day, as a positive number
	AwaitingApproval int64 // net points of Pending activities, any day
}

func (bc *BalanceCalculator) Summary(ctx context.Context, childID ChildID, day Date) (Summary, error) {
	s := Summary{ChildID: childID, Day: day}

	var err error
	if s.Balance, err = bc.CurrentBalance(ctx, childID); err != nil {
		return Summary{}, err
	}
	if s.AwaitingApproval, err = bc.sum(ctx, childID, StatusPending); err != nil {
		return Summary{}, err
	}

	todays, err := bc.Ledger.Store.Query(ctx, ActivityFilter{ChildID: childID, Status: StatusApproved, Date: day})
	if err != nil {
		return Summary{}, storageErr("query activities", err)
	}
	for _, a := range todays {
		switch a.Type {
		case TypeGood:
			s.EarnedToday += a.EarnedPoints
		case TypeBad:
			s.LostToday -= a.EarnedPoints
		case TypeReward:
			s.SpentToday -= a.EarnedPoints
		}
	}
	return s, nil
}

// =============================================================================
// REWARD PROGRESS
// =============================================================================

type RewardProgress struct {
	Reward     Reward
	Affordable bool
	Missing    int64           // points still needed, 0 when affordable
	Percent    decimal.Decimal // 0-100, two decimal places
}

var hundred = decimal.NewFromInt(100)

// Progress reports how close the child is to each reward, cheapest first.
func (bc *BalanceCalculator) Progress(ctx context.Context, childID ChildID, rewards []Reward) ([]RewardProgress, error) {
	balance, err := bc.CurrentBalance(ctx, childID)
	if err != nil {
		return nil, err
	}
	out := make([]RewardProgress, 0, len(rewards))
	for _, r := range rewards {
		out = append(out, ProgressFor(r, balance))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reward.Cost < out[j].Reward.Cost })
	return out, nil
}

// ProgressFor computes one reward's progress for a known balance.
func ProgressFor(r Reward, balance int64) RewardProgress {
	p := RewardProgress{Reward: r, Affordable: balance >= r.Cost}
	if !p.Affordable {
		p.Missing = r.Cost - balance
	}
	switch {
	case r.Cost <= 0 || p.Affordable:
		p.Percent = hundred
	case balance <= 0:
		p.Percent = decimal.Zero
	default:
		p.Percent = decimal.NewFromInt(balance).Mul(hundred).Div(decimal.NewFromInt(r.Cost)).Round(2)
	}
	return p
}
