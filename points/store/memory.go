// Package store provides in-memory implementations of the points stores.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/kidpoints/points"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements points.Store. Activities are kept per child in
// insertion order; the ledger does its own sorting.
type Memory struct {
	mu         sync.RWMutex
	activities map[points.ChildID][]points.Activity
	byID       map[points.ActivityID]points.ChildID
	behaviors  map[points.ItemID]points.Behavior
	rewards    map[points.ItemID]points.Reward
	families   map[points.FamilyID]points.Family
	children   map[points.ChildID]points.Child
}

var _ points.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		activities: make(map[points.ChildID][]points.Activity),
		byID:       make(map[points.ActivityID]points.ChildID),
		behaviors:  make(map[points.ItemID]points.Behavior),
		rewards:    make(map[points.ItemID]points.Reward),
		families:   make(map[points.FamilyID]points.Family),
		children:   make(map[points.ChildID]points.Child),
	}
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// Append adds a single activity. Append-only.
func (m *Memory) Append(_ context.Context, a points.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byID[a.ID]; dup {
		return &points.ValidationError{Field: "id", Message: "duplicate activity id " + string(a.ID)}
	}
	m.activities[a.ChildID] = append(m.activities[a.ChildID], cloneActivity(a))
	m.byID[a.ID] = a.ChildID
	return nil
}

func (m *Memory) Query(_ context.Context, f points.ActivityFilter) ([]points.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []points.Activity
	if f.ChildID != "" {
		result = filter(m.activities[f.ChildID], f, result)
		return result, nil
	}
	for _, list := range m.activities {
		result = filter(list, f, result)
	}
	return result, nil
}

func filter(list []points.Activity, f points.ActivityFilter, into []points.Activity) []points.Activity {
	for _, a := range list {
		if f.Matches(a) {
			into = append(into, cloneActivity(a))
		}
	}
	return into
}

func (m *Memory) Get(_ context.Context, id points.ActivityID) (points.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index(id)
	if !ok {
		return points.Activity{}, &points.NotFoundError{Kind: "activity", ID: string(id)}
	}
	return cloneActivity(m.activities[m.byID[id]][i]), nil
}

func (m *Memory) UpdateStatus(_ context.Context, id points.ActivityID, from, to points.Status, approver string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index(id)
	if !ok {
		return &points.NotFoundError{Kind: "activity", ID: string(id)}
	}
	list := m.activities[m.byID[id]]
	if list[i].Status != from {
		return &points.ValidationError{Field: "status", Message: "activity " + string(id) + " is " + string(list[i].Status) + ", not " + string(from)}
	}
	decided := at
	list[i].Status = to
	list[i].ApprovedBy = approver
	list[i].DecidedAt = &decided
	return nil
}

func (m *Memory) index(id points.ActivityID) (int, bool) {
	childID, ok := m.byID[id]
	if !ok {
		return 0, false
	}
	for i, a := range m.activities[childID] {
		if a.ID == id {
			return i, true
		}
	}
	return 0, false
}

func cloneActivity(a points.Activity) points.Activity {
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		a.DecidedAt = &t
	}
	return a
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SaveBehavior(_ context.Context, b points.Behavior) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.MaxPerDay != nil {
		n := *b.MaxPerDay
		b.MaxPerDay = &n
	}
	m.behaviors[b.ID] = b
	return nil
}

func (m *Memory) SaveReward(_ context.Context, r points.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[r.ID] = r
	return nil
}

func (m *Memory) Behaviors(_ context.Context, familyID points.FamilyID) ([]points.Behavior, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []points.Behavior
	for _, b := range m.behaviors {
		if b.FamilyID == familyID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Rewards(_ context.Context, familyID points.FamilyID) ([]points.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []points.Reward
	for _, r := range m.rewards {
		if r.FamilyID == familyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Behavior(_ context.Context, id points.ItemID) (points.Behavior, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.behaviors[id]
	if !ok {
		return points.Behavior{}, &points.NotFoundError{Kind: "behavior", ID: string(id)}
	}
	return b, nil
}

func (m *Memory) Reward(_ context.Context, id points.ItemID) (points.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rewards[id]
	if !ok {
		return points.Reward{}, &points.NotFoundError{Kind: "reward", ID: string(id)}
	}
	return r, nil
}

// =============================================================================
// FAMILIES & CHILDREN
// =============================================================================

func (m *Memory) SaveFamily(_ context.Context, f points.Family) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.families[f.ID] = f
	return nil
}

func (m *Memory) Family(_ context.Context, id points.FamilyID) (points.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.families[id]
	if !ok {
		return points.Family{}, &points.NotFoundError{Kind: "family", ID: string(id)}
	}
	return f, nil
}

func (m *Memory) Families(_ context.Context) ([]points.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]points.Family, 0, len(m.families))
	for _, f := range m.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveChild inserts or replaces a child. The cached balance of an existing
// child is kept; only SetCachedBalance changes it.
func (m *Memory) SaveChild(_ context.Context, c points.Child) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.children[c.ID]; ok {
		c.TotalPoints = existing.TotalPoints
	}
	m.children[c.ID] = c
	return nil
}

func (m *Memory) Child(_ context.Context, id points.ChildID) (points.Child, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.children[id]
	if !ok {
		return points.Child{}, &points.NotFoundError{Kind: "child", ID: string(id)}
	}
	return c, nil
}

// Children lists a family's children. An empty familyID lists every child.
func (m *Memory) Children(_ context.Context, familyID points.FamilyID) ([]points.Child, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []points.Child
	for _, c := range m.children {
		if familyID == "" || c.FamilyID == familyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetCachedBalance(_ context.Context, id points.ChildID, total int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.children[id]
	if !ok {
		return &points.NotFoundError{Kind: "child", ID: string(id)}
	}
	c.TotalPoints = total
	m.children[id] = c
	return nil
}

// Reset clears every map (for demo scenarios).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := NewMemory()
	m.activities = fresh.activities
	m.byID = fresh.byID
	m.behaviors = fresh.behaviors
	m.rewards = fresh.rewards
	m.families = fresh.families
	m.children = fresh.children
	return nil
}
