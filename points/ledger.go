/*
ledger.go - Append-only activity log

PURPOSE:
  The Ledger is the source of truth for every point a child has earned,
  lost or spent. Balance is always computed by summing activities; there
  is no separate balance field that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no delete, no edit of points, item, type or date.
  2. STATUS ONLY: the one permitted change is Pending -> Approved|Rejected.
  3. SIGN FOLLOWS TYPE: Good >= 0, Bad <= 0, Reward <= 0.

WHAT THE LEDGER DOES NOT DO:
  It does not compute balances and does not check eligibility. Those live
  in balance.go and eligibility.go so each rule has one home.

EXAMPLE:
  ledger := points.NewLedger(store)
  a, err := ledger.Append(ctx, points.Activity{
      ChildID: "c1", ItemID: "b1", Type: points.TypeGood,
      Date: points.NewDate(2025, time.March, 10), EarnedPoints: 3,
  })
  // a.ID, a.CreatedAt and a.Status (Approved) are filled in.
*/
package points

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ledger validates and stores activities.
type Ledger struct {
	Store ActivityStore
	Now   func() time.Time
	NewID func() ActivityID
}

func NewLedger(store ActivityStore) *Ledger {
	return &Ledger{
		Store: store,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: func() ActivityID { return ActivityID(uuid.NewString()) },
	}
}

// Append assigns ID and CreatedAt, defaults Status to Approved, validates
// and stores the record. The returned activity is what was stored.
func (l *Ledger) Append(ctx context.Context, a Activity) (Activity, error) {
	if a.Status == "" {
		a.Status = StatusApproved
	}
	a.Note = strings.TrimSpace(a.Note)
	if err := ValidateActivity(a); err != nil {
		return Activity{}, err
	}
	a.ID = l.NewID()
	a.CreatedAt = l.Now()
	if err := l.Store.Append(ctx, a); err != nil {
		return Activity{}, storageErr("append activity", err)
	}
	return a, nil
}

// Query returns matching activities, newest first. Each call returns a new
// slice the caller may keep.
func (l *Ledger) Query(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, &ValidationError{Field: "to", Message: "date range ends before it starts"}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status " + string(f.Status)}
	}
	out, err := l.Store.Query(ctx, f)
	if err != nil {
		return nil, storageErr("query activities", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Count is len(Query(f)) without the sort.
func (l *Ledger) Count(ctx context.Context, f ActivityFilter) (int, error) {
	out, err := l.Store.Query(ctx, f)
	if err != nil {
		return 0, storageErr("count activities", err)
	}
	return len(out), nil
}

func (l *Ledger) Get(ctx context.Context, id ActivityID) (Activity, error) {
	a, err := l.Store.Get(ctx, id)
	if err != nil {
		return Activity{}, storageErr("get activity", err)
	}
	return a, nil
}

// Transition decides a pending activity. Only Pending -> Approved and
// Pending -> Rejected are allowed.
func (l *Ledger) Transition(ctx context.Context, id ActivityID, to Status, approver string) (Activity, error) {
	if to != StatusApproved && to != StatusRejected {
		return Activity{}, &ValidationError{Field: "status", Message: "can only move to Approved or Rejected"}
	}
	a, err := l.Get(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	if a.Status != StatusPending {
		return Activity{}, &ValidationError{Field: "status", Message: "activity " + string(id) + " is already " + string(a.Status)}
	}
	at := l.Now()
	if err := l.Store.UpdateStatus(ctx, id, StatusPending, to, approver, at); err != nil {
		return Activity{}, storageErr("update activity status", err)
	}
	a.Status = to
	a.ApprovedBy = approver
	a.DecidedAt = &at
	return a, nil
}

// ValidateActivity checks required fields and the sign/type rule.
func ValidateActivity(a Activity) error {
	switch {
	case a.ChildID == "":
		return &ValidationError{Field: "child_id", Message: "required"}
	case a.ItemID == "":
		return &ValidationError{Field: "item_id", Message: "required"}
	case a.Date.IsZero():
		return &ValidationError{Field: "date", Message: "required"}
	case !a.Type.Valid():
		return &ValidationError{Field: "type", Message: "must be Good, Bad or Reward"}
	case !a.Status.Valid():
		return &ValidationError{Field: "status", Message: "must be Approved, Pending or Rejected"}
	}
	switch a.Type {
	case TypeGood:
		if a.EarnedPoints < 0 {
			return &ValidationError{Field: "earned_points", Message: "Good activity cannot have negative points"}
		}
	case TypeBad, TypeReward:
		if a.EarnedPoints > 0 {
			return &ValidationError{Field: "earned_points", Message: string(a.Type) + " activity cannot have positive points"}
		}
	}
	return nil
}
