/*
eligibility.go - May this child log this behavior today?

RULES (in order):
  1. Inactive behavior                        -> ItemInactive
  2. Count approved activities for (child, behavior, date)
  3. Not repeatable: allowed iff count == 0   -> AlreadyDoneToday
  4. Repeatable with MaxPerDay: count < max   -> DailyLimitReached
  5. Repeatable, no MaxPerDay                 -> always allowed

  A non-repeatable behavior is a checkbox: ticking it once uses it up for
  the day, whatever MaxPerDay says. A repeatable behavior is a counter.

  Rewards are not checked here. Redemption is gated by affordability only
  (see BalanceCalculator.CanAfford).

"NOT ELIGIBLE" IS NOT AN ERROR:
  Evaluate returns a result with a Reason. The error return is reserved
  for storage failures. The Recorder turns a negative result into an
  EligibilityError for its own callers.
*/
package points

import "context"

type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonDailyLimitReached Reason = "DailyLimitReached"
	ReasonAlreadyDoneToday  Reason = "AlreadyDoneToday"
	ReasonItemInactive      Reason = "ItemInactive"
)

// Eligibility is the outcome of one check.
// Remaining is nil when the behavior has no daily cap.
type Eligibility struct {
	ItemID    ItemID
	Allowed   bool
	Reason    Reason
	Count     int
	Remaining *int
}

// Evaluator reads the ledger; it never writes.
type Evaluator struct {
	Ledger *Ledger
}

func (e *Evaluator) Evaluate(ctx context.Context, childID ChildID, b Behavior, day Date) (Eligibility, error) {
	if !b.Active {
		return Eligibility{ItemID: b.ID, Reason: ReasonItemInactive}, nil
	}

	count, err := e.Ledger.Count(ctx, ActivityFilter{
		ChildID: childID,
		ItemID:  b.ID,
		Status:  StatusApproved,
		Date:    day,
	})
	if err != nil {
		return Eligibility{}, err
	}
	return Decide(b, count), nil
}

// EvaluateAll checks every behavior for one child and day, in input order.
func (e *Evaluator) EvaluateAll(ctx context.Context, childID ChildID, behaviors []Behavior, day Date) ([]Eligibility, error) {
	// One ledger read for the whole day instead of one per behavior.
	todays, err := e.Ledger.Store.Query(ctx, ActivityFilter{
		ChildID: childID,
		Status:  StatusApproved,
		Date:    day,
	})
	if err != nil {
		return nil, storageErr("query activities", err)
	}
	counts := make(map[ItemID]int, len(todays))
	for _, a := range todays {
		counts[a.ItemID]++
	}

	out := make([]Eligibility, len(behaviors))
	for i, b := range behaviors {
		if !b.Active {
			out[i] = Eligibility{ItemID: b.ID, Reason: ReasonItemInactive}
			continue
		}
		out[i] = Decide(b, counts[b.ID])
	}
	return out, nil
}

// Decide applies rules 3-5 to an active behavior already performed count
// times on the day in question.
func Decide(b Behavior, count int) Eligibility {
	res := Eligibility{ItemID: b.ID, Count: count, Allowed: true, Reason: ReasonOK}

	switch {
	case !b.IsRepeatable:
		remaining := 1 - count
		if remaining < 0 {
			remaining = 0
		}
		res.Remaining = &remaining
		if count > 0 {
			res.Allowed = false
			res.Reason = ReasonAlreadyDoneToday
		}
	case b.MaxPerDay != nil:
		remaining := *b.MaxPerDay - count
		if remaining < 0 {
			remaining = 0
		}
		res.Remaining = &remaining
		if count >= *b.MaxPerDay {
			res.Allowed = false
			res.Reason = ReasonDailyLimitReached
		}
	}
	return res
}
