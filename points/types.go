/*
Package points provides the family points engine.

PURPOSE:
  Caregivers define behaviors (good or bad, worth points) and rewards
  (costing points). Children earn and spend points through activities.
  This package owns the rules: how a balance is derived, when a behavior
  may be logged again today, and when a reward can be redeemed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Family / Child: who owns the catalog and who earns points
  - Behavior / Reward: catalog items
  - Activity: an immutable ledger record of one behavior or redemption
  - ActivityFilter: ledger query

DESIGN PRINCIPLES:
  1. Derived balance: a child's balance is the sum of approved activities.
     Child.TotalPoints is a cache rewritten after every ledger write.
  2. Snapshots: an activity copies the item's points when it is created.
     Editing the catalog later never changes history.
  3. Sign follows type: Good >= 0, Bad <= 0, Reward <= 0.

USAGE:
  recorder := points.NewRecorder(store)
  activity, err := recorder.RecordBehavior(ctx, "child-1", "brush-teeth", points.Today(time.UTC), "")

SEE ALSO:
  - ledger.go: append-only activity log
  - eligibility.go: daily limit rules
  - balance.go: balance calculation
  - recorder.go: the single mutation entry point
*/
package points

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type FamilyID string
type ChildID string
type ItemID string
type ActivityID string

// =============================================================================
// FAMILY & CHILD
// =============================================================================

type Family struct {
	ID        FamilyID
	Name      string
	Email     string
	Phone     string
	Timezone  string // IANA name; empty means UTC
	CreatedAt time.Time
}

// Location returns the family's calendar location. Unknown zones fall back to UTC.
func (f Family) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Child is owned by exactly one family.
// TotalPoints is a read cache of the derived balance, never written directly
// by callers. See BalanceCalculator.Refresh.
type Child struct {
	ID          ChildID
	FamilyID    FamilyID
	Name        string
	Age         int
	Gender      string
	Avatar      string
	TotalPoints int64
	CreatedAt   time.Time
}

// =============================================================================
// CATALOG
// =============================================================================

type ActivityType string

const (
	TypeGood   ActivityType = "Good"
	TypeBad    ActivityType = "Bad"
	TypeReward ActivityType = "Reward"
)

func (t ActivityType) Valid() bool {
	switch t {
	case TypeGood, TypeBad, TypeReward:
		return true
	}
	return false
}

// Behavior is a catalog definition of something a child does.
type Behavior struct {
	ID           ItemID
	FamilyID     FamilyID
	Name         string
	Points       int64
	Category     string
	Color        string
	IsRepeatable bool
	MaxPerDay    *int // nil = no daily cap; only consulted when IsRepeatable
	Active       bool
}

// Type is derived from the sign of Points. Zero-point behaviors are Good.
func (b Behavior) Type() ActivityType {
	if b.Points < 0 {
		return TypeBad
	}
	return TypeGood
}

// Reward is a catalog definition of something a child can buy with points.
type Reward struct {
	ID       ItemID
	FamilyID FamilyID
	Name     string
	Cost     int64
	Category string
	Color    string
}

// =============================================================================
// ACTIVITY - Ledger record
// =============================================================================

type Status string

const (
	StatusApproved Status = "Approved"
	StatusPending  Status = "Pending"
	StatusRejected Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusPending, StatusRejected:
		return true
	}
	return false
}

// Activity is one ledger entry. Only Status, ApprovedBy and DecidedAt ever
// change after creation, and only through Ledger.Transition.
type Activity struct {
	ID           ActivityID
	ChildID      ChildID
	ItemID       ItemID
	Type         ActivityType
	Date         Date
	EarnedPoints int64
	Status       Status
	CreatedAt    time.Time
	Note         string
	ApprovedBy   string
	DecidedAt    *time.Time
}

// ActivityFilter selects ledger records. Zero-valued fields match everything.
// From and To are inclusive.
type ActivityFilter struct {
	ChildID ChildID
	ItemID  ItemID
	Status  Status
	Type    ActivityType
	Date    Date
	From    Date
	To      Date
}

// Matches reports whether a satisfies every set field of f.
func (f ActivityFilter) Matches(a Activity) bool {
	if f.ChildID != "" && a.ChildID != f.ChildID {
		return false
	}
	if f.ItemID != "" && a.ItemID != f.ItemID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if !f.Date.IsZero() && a.Date != f.Date {
		return false
	}
	if !f.From.IsZero() && a.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.Date.After(f.To) {
		return false
	}
	return true
}
