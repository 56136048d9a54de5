/*
store.go - Persistence interfaces

PURPOSE:
  Defines the contracts between the engine and the database. The engine
  never holds its own copy of activity history: every component reads
  through one injected ActivityStore.

KEY INTERFACES:
  ActivityStore: append-only activity persistence plus the one permitted
                 mutation (status transition)
  PointSummer:   optional fast path for balance sums
  CatalogStore:  read-only catalog lookups
  CatalogWriter: administrative catalog edits
  CatalogImporter: optional all-or-nothing catalog import
  FamilyStore:   families, children and the cached balance column

IMPLEMENTATIONS:
  - points/store/memory.go: in-memory, for tests and the "memory" driver
  - store/sqlite/sqlite.go: default
  - store/postgres/postgres.go: gorm + PostgreSQL

ERRORS:
  Lookups of a missing record return a *NotFoundError. Any other failure
  is treated by the engine as a StorageError.
*/
package points

import (
	"context"
	"time"
)

// =============================================================================
// ACTIVITY STORE - Append-only
// =============================================================================

// ActivityStore persists activities. There is no Delete and no general
// Update: UpdateStatus is a compare-and-set on the status column only.
type ActivityStore interface {
	// Append persists a fully populated activity.
	Append(ctx context.Context, a Activity) error

	// Query returns matching activities. Order is not guaranteed; the
	// Ledger sorts.
	Query(ctx context.Context, f ActivityFilter) ([]Activity, error)

	// Get returns a single activity or *NotFoundError.
	Get(ctx context.Context, id ActivityID) (Activity, error)

	// UpdateStatus moves id from one status to another. It fails with
	// *ValidationError when the current status is not from.
	UpdateStatus(ctx context.Context, id ActivityID, from, to Status, approver string, at time.Time) error
}

// ChildLocker is implemented by stores shared by several processes. The
// Recorder runs each check and the append it guards inside WithChildLock.
// fn's error must be returned unchanged.
type ChildLocker interface {
	WithChildLock(ctx context.Context, id ChildID, fn func(ctx context.Context) error) error
}

// PointSummer is implemented by stores that can sum points in the database.
type PointSummer interface {
	SumPoints(ctx context.Context, childID ChildID, status Status) (int64, error)
}

// =============================================================================
// CATALOG STORE
// =============================================================================

type CatalogStore interface {
	Behaviors(ctx context.Context, familyID FamilyID) ([]Behavior, error)
	Rewards(ctx context.Context, familyID FamilyID) ([]Reward, error)
	Behavior(ctx context.Context, id ItemID) (Behavior, error)
	Reward(ctx context.Context, id ItemID) (Reward, error)
}

// CatalogWriter saves catalog items, inserting or replacing by ID.
type CatalogWriter interface {
	SaveBehavior(ctx context.Context, b Behavior) error
	SaveReward(ctx context.Context, r Reward) error
}

// CatalogImporter is implemented by stores that can save a whole catalog
// in one transaction.
type CatalogImporter interface {
	ImportCatalog(ctx context.Context, behaviors []Behavior, rewards []Reward) error
}

// ImportCatalog saves behaviors and rewards, atomically when w supports it.
// Without CatalogImporter a failure can leave earlier items saved.
func ImportCatalog(ctx context.Context, w CatalogWriter, behaviors []Behavior, rewards []Reward) error {
	if imp, ok := w.(CatalogImporter); ok {
		return storageErr("import catalog", imp.ImportCatalog(ctx, behaviors, rewards))
	}
	for _, b := range behaviors {
		if err := w.SaveBehavior(ctx, b); err != nil {
			return storageErr("save behavior", err)
		}
	}
	for _, r := range rewards {
		if err := w.SaveReward(ctx, r); err != nil {
			return storageErr("save reward", err)
		}
	}
	return nil
}

// =============================================================================
// FAMILY STORE
// =============================================================================

type FamilyStore interface {
	SaveFamily(ctx context.Context, f Family) error
	Family(ctx context.Context, id FamilyID) (Family, error)
	Families(ctx context.Context) ([]Family, error)

	SaveChild(ctx context.Context, c Child) error
	Child(ctx context.Context, id ChildID) (Child, error)
	// Children lists a family's children; an empty familyID lists all.
	Children(ctx context.Context, familyID FamilyID) ([]Child, error)

	// SetCachedBalance overwrites Child.TotalPoints. Only the
	// BalanceCalculator calls it.
	SetCachedBalance(ctx context.Context, id ChildID, total int64) error
}

// Store is everything a backend provides.
type Store interface {
	ActivityStore
	CatalogStore
	CatalogWriter
	FamilyStore
}
