/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with a demo
	family. Each scenario creates the family, its children, the starter
	catalog, and a history recorded through the Recorder so every daily
	cap and affordability rule applies exactly as it would for a real tap.

AVAILABLE SCENARIOS:

	starter-family:  Family, two children, starter catalog, no history
	busy-week:       Six days of routines, a bad behavior, a redemption
	approval-queue:  Behaviors waiting for a parent's approval
	catalog-change:  Points of a behavior raised after it was logged

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create family "demo" and children "demo-ava", "demo-leo"
 3. Import factory.StarterCatalogJSON("demo")
 4. Record history relative to the family's today

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-week"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h, demo)
 3. Add to 'loaders'

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - factory/presets.go: starter catalog
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/warp/kidpoints/factory"
	"github.com/warp/kidpoints/points"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	demoFamily points.FamilyID = "demo"
	demoAva    points.ChildID  = "demo-ava"
	demoLeo    points.ChildID  = "demo-leo"
)

var scenarios = []ScenarioDTO{
	{
		ID:          "starter-family",
		Name:        "Starter Family",
		Description: "Two children and the starter catalog, nothing recorded yet",
	},
	{
		ID:          "busy-week",
		Name:        "Busy Week",
		Description: "Six days of routines and reading, one bad day, a sticker redeemed today",
	},
	{
		ID:          "approval-queue",
		Name:        "Approval Queue",
		Description: "Approved history plus behaviors waiting for a parent's decision",
	},
	{
		ID:          "catalog-change",
		Name:        "Catalog Change",
		Description: "Reading raised from 2 to 5 points; earlier entries keep 2",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler, today points.Date) error

var loaders = map[string]scenarioLoader{
	"starter-family": func(context.Context, *Handler, points.Date) error { return nil },
	"busy-week":      loadBusyWeekScenario,
	"approval-queue": loadApprovalQueueScenario,
	"catalog-change": loadCatalogChangeScenario,
}

// resetter is implemented by stores that can clear every table.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, &points.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", req.ScenarioID)})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.reset(ctx); err != nil {
		writeError(w, err)
		return
	}

	today, err := h.seedDemoFamily(ctx)
	if err == nil {
		err = load(ctx, h, today)
	}
	if err == nil {
		err = h.refreshDemoBalances(ctx)
	}
	if err != nil {
		writeError(w, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.currentScenario = req.ScenarioID
	log.Printf("[API] Loaded scenario %s", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(resetter)
	if !ok {
		return &points.ValidationError{Field: "store", Message: "this store cannot be reset"}
	}
	if err := rs.Reset(ctx); err != nil {
		return &points.StorageError{Op: "reset", Err: err}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedDemoFamily creates the family, children and catalog shared by every
// scenario and returns the family's today.
func (h *Handler) seedDemoFamily(ctx context.Context) (points.Date, error) {
	f := points.Family{ID: demoFamily, Name: "The Demo Family", Timezone: h.DefaultTimezone}
	if err := h.Store.SaveFamily(ctx, f); err != nil {
		return points.Date{}, err
	}
	children := []points.Child{
		{ID: demoAva, FamilyID: demoFamily, Name: "Ava", Age: 9, Avatar: "fox"},
		{ID: demoLeo, FamilyID: demoFamily, Name: "Leo", Age: 6, Avatar: "bear"},
	}
	for _, c := range children {
		if err := h.Store.SaveChild(ctx, c); err != nil {
			return points.Date{}, err
		}
	}
	if _, err := h.importCatalog(ctx, demoFamily, []byte(factory.StarterCatalogJSON(string(demoFamily)))); err != nil {
		return points.Date{}, err
	}
	return points.DateOf(h.Recorder.Ledger.Now().In(f.Location())), nil
}

func (h *Handler) refreshDemoBalances(ctx context.Context) error {
	for _, id := range []points.ChildID{demoAva, demoLeo} {
		if _, err := h.Recorder.Balances.Refresh(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func demoItem(name string) points.ItemID {
	return points.ItemID(string(demoFamily) + "-" + name)
}

// record logs behavior n times on day through the Recorder.
func record(ctx context.Context, h *Handler, child points.ChildID, behavior string, day points.Date, n int) error {
	for i := 0; i < n; i++ {
		if _, err := h.Recorder.RecordBehavior(ctx, child, demoItem(behavior), day, ""); err != nil {
			return err
		}
	}
	return nil
}

func loadBusyWeekScenario(ctx context.Context, h *Handler, today points.Date) error {
	for offset := -6; offset <= -1; offset++ {
		day := today.AddDays(offset)
		for _, child := range []points.ChildID{demoAva, demoLeo} {
			if err := record(ctx, h, child, "brush-teeth", day, 1); err != nil {
				return err
			}
			if err := record(ctx, h, child, "make-bed", day, 1); err != nil {
				return err
			}
		}
		// Ava reads up to the daily cap; Leo reads every other day.
		if err := record(ctx, h, demoAva, "read", day, 3); err != nil {
			return err
		}
		if offset%2 == 0 {
			if err := record(ctx, h, demoLeo, "read", day, 1); err != nil {
				return err
			}
		}
	}

	if err := record(ctx, h, demoLeo, "hitting", today.AddDays(-3), 1); err != nil {
		return err
	}
	if err := record(ctx, h, demoLeo, "talk-back", today.AddDays(-3), 2); err != nil {
		return err
	}

	_, err := h.Recorder.RedeemReward(ctx, demoAva, demoItem("sticker"), "Picked the unicorn")
	return err
}

// Pending entries are appended directly: the Recorder only creates them
// when the server runs with approval required.
func loadApprovalQueueScenario(ctx context.Context, h *Handler, today points.Date) error {
	for offset := -3; offset <= -1; offset++ {
		if err := record(ctx, h, demoAva, "homework", today.AddDays(offset), 1); err != nil {
			return err
		}
	}

	pending := []struct {
		child    points.ChildID
		behavior string
		note     string
	}{
		{demoAva, "help-out", "Set the table"},
		{demoLeo, "help-out", "Fed the cat"},
		{demoLeo, "homework", ""},
	}
	for _, p := range pending {
		b, err := h.Store.Behavior(ctx, demoItem(p.behavior))
		if err != nil {
			return err
		}
		_, err = h.Recorder.Ledger.Append(ctx, points.Activity{
			ChildID:      p.child,
			ItemID:       b.ID,
			Type:         b.Type(),
			Date:         today,
			EarnedPoints: b.Points,
			Status:       points.StatusPending,
			Note:         p.note,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func loadCatalogChangeScenario(ctx context.Context, h *Handler, today points.Date) error {
	if err := record(ctx, h, demoAva, "read", today.AddDays(-1), 2); err != nil {
		return err
	}

	b, err := h.Store.Behavior(ctx, demoItem("read"))
	if err != nil {
		return err
	}
	if b.Points != 2 {
		return errors.New("starter catalog changed: expected read to be worth 2")
	}
	b.Points = 5
	if err := h.Store.SaveBehavior(ctx, b); err != nil {
		return err
	}

	return record(ctx, h, demoAva, "read", today, 1)
}
