/*
handlers.go - HTTP API handlers for the points engine

PURPOSE:
  Exposes the points engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to package points.

ENDPOINTS:
  Recording:
    POST   /api/recordBehavior                  Log one behavior
    POST   /api/redeemReward                    Spend points on a reward
    POST   /api/recordBatch                     Save pending taps

  Families:
    GET    /api/families                        List families
    POST   /api/families                        Create or update a family
    GET    /api/families/{familyID}             Get family
    GET    /api/families/{familyID}/children    List children
    POST   /api/families/{familyID}/children    Create or update a child

  Catalog:
    GET    /api/families/{familyID}/behaviors   List behaviors
    POST   /api/families/{familyID}/behaviors   Save behavior (loose JSON)
    GET    /api/families/{familyID}/rewards     List rewards
    POST   /api/families/{familyID}/rewards     Save reward (loose JSON)
    GET    /api/families/{familyID}/catalog     Export catalog
    POST   /api/families/{familyID}/catalog     Import catalog
    POST   /api/families/{familyID}/catalog/starter  Import starter catalog

  Children:
    GET    /api/children/{childID}              Get child
    GET    /api/children/{childID}/balance      Ledger balance and cache
    GET    /api/children/{childID}/summary      Today's movement (?date=)
    GET    /api/children/{childID}/progress     Progress toward each reward
    GET    /api/children/{childID}/activities   History (?from&to&date&status&type&item)
    GET    /api/children/{childID}/eligibility  Checklist for a day (?date=)
    POST   /api/children/{childID}/preview      Points preview of pending taps

  Approvals:
    GET    /api/activities/pending              Pending activities (?child=)
    GET    /api/activities/{activityID}         Get activity
    POST   /api/activities/{activityID}/approve Approve
    POST   /api/activities/{activityID}/reject  Reject

  Admin:
    POST   /api/admin/audit                     Run the balance cache audit
    GET    /api/health                          Store ping

ERROR HANDLING:
  Every failure is written by writeError as {kind, message, reason}:
  - 400: ValidationError
  - 404: NotFoundError
  - 409: EligibilityError, InsufficientPointsError
  - 500: StorageError (logged once here)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/kidpoints/factory"
	"github.com/warp/kidpoints/points"
)

// maxBodyBytes bounds catalog uploads.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    points.Store
	Recorder *points.Recorder
	Audit    *BalanceAudit

	// DefaultTimezone is used for families created without one.
	DefaultTimezone string

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store. The recorder must use the same
// store. The audit is created disabled; callers set Interval and Start it.
func NewHandler(store points.Store, recorder *points.Recorder) *Handler {
	return &Handler{
		Store:           store,
		Recorder:        recorder,
		Audit:           NewBalanceAudit(store, recorder.Balances, 0),
		DefaultTimezone: "UTC",
	}
}

// =============================================================================
// RECORDING ENDPOINTS
// =============================================================================

// RecordBehavior logs one behavior for a child.
func (h *Handler) RecordBehavior(w http.ResponseWriter, r *http.Request) {
	var req RecordBehaviorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("child_id", req.ChildID, "behavior_id", req.BehaviorID); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.Recorder.RecordBehavior(r.Context(), points.ChildID(req.ChildID), points.ItemID(req.BehaviorID), req.Date, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// RedeemReward spends points on a reward.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req RedeemRewardRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("child_id", req.ChildID, "reward_id", req.RewardID); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.Recorder.RedeemReward(r.Context(), points.ChildID(req.ChildID), points.ItemID(req.RewardID), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// RecordBatch saves the pending tap counts. Individual failures are
// reported per item with status 200; only a failure of the whole batch
// (unknown child, bad body) is an error response.
func (h *Handler) RecordBatch(w http.ResponseWriter, r *http.Request) {
	var req RecordBatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("child_id", req.ChildID); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.Recorder.RecordBatch(r.Context(), points.ChildID(req.ChildID), toDeltas(req.Deltas), req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(res))
}

// =============================================================================
// FAMILY ENDPOINTS
// =============================================================================

// ListFamilies returns all families.
func (h *Handler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.Store.Families(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]FamilyDTO, len(families))
	for i, f := range families {
		dtos[i] = toFamilyDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFamily creates or updates a family, optionally with the starter
// catalog.
func (h *Handler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req CreateFamilyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("name", req.Name); err != nil {
		writeError(w, err)
		return
	}

	tz := req.Timezone
	if tz == "" {
		tz = h.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		writeError(w, &points.ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", tz)})
		return
	}

	f := points.Family{
		ID:        points.FamilyID(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Phone:     req.Phone,
		Timezone:  tz,
		CreatedAt: time.Now().UTC(),
	}
	if f.ID == "" {
		f.ID = points.FamilyID(uuid.NewString())
	}

	ctx := r.Context()
	if err := h.Store.SaveFamily(ctx, f); err != nil {
		writeError(w, err)
		return
	}
	if req.StarterCatalog {
		if _, err := h.importCatalog(ctx, f.ID, []byte(factory.StarterCatalogJSON(string(f.ID)))); err != nil {
			writeError(w, err)
			return
		}
	}

	saved, err := h.Store.Family(ctx, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFamilyDTO(saved))
}

// GetFamily returns a single family.
func (h *Handler) GetFamily(w http.ResponseWriter, r *http.Request) {
	f, err := h.Store.Family(r.Context(), familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFamilyDTO(f))
}

// ListChildren returns a family's children with their cached balances.
func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	children, err := h.Store.Children(ctx, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]ChildDTO, len(children))
	for i, c := range children {
		dtos[i] = toChildDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateChild creates or updates a child's profile. The balance is never
// taken from the request.
func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req CreateChildRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("name", req.Name); err != nil {
		writeError(w, err)
		return
	}
	if req.Age < 0 {
		writeError(w, &points.ValidationError{Field: "age", Message: "cannot be negative"})
		return
	}

	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}

	c := points.Child{
		ID:        points.ChildID(req.ID),
		FamilyID:  f.ID,
		Name:      strings.TrimSpace(req.Name),
		Age:       req.Age,
		Gender:    req.Gender,
		Avatar:    req.Avatar,
		CreatedAt: time.Now().UTC(),
	}
	if c.ID == "" {
		c.ID = points.ChildID(uuid.NewString())
	}
	if err := h.Store.SaveChild(ctx, c); err != nil {
		writeError(w, err)
		return
	}

	// A re-saved child keeps its ledger; make sure the cache reflects it.
	if _, err := h.Recorder.Balances.Refresh(ctx, c.ID); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.Store.Child(ctx, c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChildDTO(saved))
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

// ListBehaviors returns the family's behaviors, inactive ones included.
func (h *Handler) ListBehaviors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	behaviors, err := h.Store.Behaviors(ctx, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(factory.Catalog{FamilyID: f.ID, Behaviors: behaviors}).Behaviors)
}

// SaveBehavior inserts or replaces a behavior. Past activities keep the
// points they were recorded with.
func (h *Handler) SaveBehavior(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	b, err := factory.ParseBehavior(data, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.checkBehaviorOwner(ctx, b); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Store.SaveBehavior(ctx, b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBehaviorJSON(b))
}

// ListRewards returns the family's rewards.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	rewards, err := h.Store.Rewards(ctx, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(factory.Catalog{FamilyID: f.ID, Rewards: rewards}).Rewards)
}

// SaveReward inserts or replaces a reward.
func (h *Handler) SaveReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	rw, err := factory.ParseReward(data, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.checkRewardOwner(ctx, rw); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Store.SaveReward(ctx, rw); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardJSON(rw))
}

// ExportCatalog returns the family's catalog in the canonical JSON form
// that ImportCatalog accepts.
func (h *Handler) ExportCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.Store.Family(ctx, familyParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	cat, err := h.catalog(ctx, f.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(cat))
}

// ImportCatalog saves every behavior and reward in the body. The whole
// document is validated before anything is written.
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	cat, err := h.importCatalog(r.Context(), familyParam(r), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(cat))
}

// LoadStarterCatalog imports the built-in starter catalog for the family.
func (h *Handler) LoadStarterCatalog(w http.ResponseWriter, r *http.Request) {
	familyID := familyParam(r)
	cat, err := h.importCatalog(r.Context(), familyID, []byte(factory.StarterCatalogJSON(string(familyID))))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(cat))
}

func (h *Handler) importCatalog(ctx context.Context, familyID points.FamilyID, data []byte) (factory.Catalog, error) {
	if _, err := h.Store.Family(ctx, familyID); err != nil {
		return factory.Catalog{}, err
	}
	cat, err := factory.ParseCatalog(data, familyID)
	if err != nil {
		return factory.Catalog{}, err
	}
	for _, b := range cat.Behaviors {
		if err := h.checkBehaviorOwner(ctx, b); err != nil {
			return factory.Catalog{}, err
		}
	}
	for _, rw := range cat.Rewards {
		if err := h.checkRewardOwner(ctx, rw); err != nil {
			return factory.Catalog{}, err
		}
	}
	if err := points.ImportCatalog(ctx, h.Store, cat.Behaviors, cat.Rewards); err != nil {
		return factory.Catalog{}, err
	}
	log.Printf("[API] Imported catalog for family %s: %d behaviors, %d rewards", familyID, len(cat.Behaviors), len(cat.Rewards))
	return cat, nil
}

func (h *Handler) catalog(ctx context.Context, familyID points.FamilyID) (factory.Catalog, error) {
	behaviors, err := h.Store.Behaviors(ctx, familyID)
	if err != nil {
		return factory.Catalog{}, err
	}
	rewards, err := h.Store.Rewards(ctx, familyID)
	if err != nil {
		return factory.Catalog{}, err
	}
	return factory.Catalog{FamilyID: familyID, Behaviors: behaviors, Rewards: rewards}, nil
}

// Catalog IDs are global, so an ID another family already uses can't be
// taken over by a save.
func (h *Handler) checkBehaviorOwner(ctx context.Context, b points.Behavior) error {
	existing, err := h.Store.Behavior(ctx, b.ID)
	switch {
	case points.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.FamilyID != b.FamilyID:
		return &points.ValidationError{Field: "id", Message: fmt.Sprintf("behavior %s belongs to another family", b.ID)}
	}
	return nil
}

func (h *Handler) checkRewardOwner(ctx context.Context, rw points.Reward) error {
	existing, err := h.Store.Reward(ctx, rw.ID)
	switch {
	case points.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.FamilyID != rw.FamilyID:
		return &points.ValidationError{Field: "id", Message: fmt.Sprintf("reward %s belongs to another family", rw.ID)}
	}
	return nil
}

// =============================================================================
// CHILD ENDPOINTS
// =============================================================================

// GetChild returns a single child.
func (h *Handler) GetChild(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.Child(r.Context(), childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChildDTO(c))
}

// GetBalance returns the ledger balance. The cached column is included so
// drift is visible.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Store.Child(ctx, childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := h.Recorder.Balances.CurrentBalance(ctx, c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{ChildID: string(c.ID), Balance: balance, Cached: c.TotalPoints})
}

// GetSummary returns the balance and one day's movement. The day defaults
// to today in the family's timezone.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Store.Child(ctx, childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	day, err := h.dayParam(ctx, r, c)
	if err != nil {
		writeError(w, err)
		return
	}

	s, err := h.Recorder.Balances.Summary(ctx, c.ID, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// GetProgress returns progress toward every family reward, cheapest first.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Store.Child(ctx, childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	rewards, err := h.Store.Rewards(ctx, c.FamilyID)
	if err != nil {
		writeError(w, err)
		return
	}

	progress, err := h.Recorder.Balances.Progress(ctx, c.ID, rewards)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTOs(progress))
}

// GetActivities returns the child's history, newest first.
func (h *Handler) GetActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Store.Child(ctx, childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	f := points.ActivityFilter{
		ChildID: c.ID,
		ItemID:  points.ItemID(q.Get("item")),
		Status:  points.Status(q.Get("status")),
		Type:    points.ActivityType(q.Get("type")),
	}
	if f.Type != "" && !f.Type.Valid() {
		writeError(w, &points.ValidationError{Field: "type", Message: "unknown type " + string(f.Type)})
		return
	}
	dates := []struct {
		name string
		dst  *points.Date
	}{{"date", &f.Date}, {"from", &f.From}, {"to", &f.To}}
	for _, d := range dates {
		if *d.dst, err = queryDate(r, d.name); err != nil {
			writeError(w, err)
			return
		}
	}

	activities, err := h.Recorder.Ledger.Query(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTOs(activities))
}

// GetEligibility returns the day's checklist: every family behavior with
// whether it can be logged again.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Store.Child(ctx, childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	day, err := h.dayParam(ctx, r, c)
	if err != nil {
		writeError(w, err)
		return
	}
	behaviors, err := h.Store.Behaviors(ctx, c.FamilyID)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.Recorder.Eligibility.EvaluateAll(ctx, c.ID, behaviors, day)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]EligibilityDTO, len(results))
	for i, e := range results {
		dtos[i] = EligibilityDTO{
			BehaviorID: string(e.ItemID),
			Name:       behaviors[i].Name,
			Points:     behaviors[i].Points,
			Allowed:    e.Allowed,
			Reason:     string(e.Reason),
			Count:      e.Count,
			Remaining:  e.Remaining,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewBatch shows the balance the pending taps would produce. Nothing
// is written.
func (h *Handler) PreviewBatch(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	c, err := h.Store.Child(ctx, childParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	behaviors, err := h.Store.Behaviors(ctx, c.FamilyID)
	if err != nil {
		writeError(w, err)
		return
	}
	lookup := make(map[points.ItemID]points.Behavior, len(behaviors))
	for _, b := range behaviors {
		lookup[b.ID] = b
	}

	delta, err := points.PendingDelta(toDeltas(req.Deltas), lookup)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := h.Recorder.Balances.CurrentBalance(ctx, c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{
		ChildID:   string(c.ID),
		Balance:   balance,
		Delta:     delta,
		Projected: balance + delta,
	})
}

// =============================================================================
// APPROVAL ENDPOINTS
// =============================================================================

// ListPending returns activities awaiting a decision, optionally for one
// child.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	f := points.ActivityFilter{
		ChildID: points.ChildID(r.URL.Query().Get("child")),
		Status:  points.StatusPending,
	}
	activities, err := h.Recorder.Ledger.Query(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTOs(activities))
}

// GetActivity returns a single activity.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.Recorder.Ledger.Get(r.Context(), activityParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// ApproveActivity approves a pending activity. The daily cap or
// affordability is checked again first.
func (h *Handler) ApproveActivity(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.Recorder.Approve(r.Context(), activityParam(r), req.Approver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// RejectActivity rejects a pending activity.
func (h *Handler) RejectActivity(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.Recorder.Reject(r.Context(), activityParam(r), req.Approver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerAudit runs the balance cache audit now.
func (h *Handler) TriggerAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.Audit.RunNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, &points.StorageError{Op: "ping", Err: err})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps the engine's error kinds to HTTP statuses. Storage
// failures are the only ones logged.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %v", err)
	}
	writeJSON(w, status, toErrorResponse(err))
}

func statusFor(err error) int {
	switch points.Kind(err) {
	case points.KindValidation:
		return http.StatusBadRequest
	case points.KindNotFound:
		return http.StatusNotFound
	case points.KindEligibility, points.KindInsufficientPoints:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	return decodeJSON(r, v, false)
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(r *http.Request, v any) error {
	return decodeJSON(r, v, true)
}

func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	case errors.Is(err, points.ErrValidation):
		return err
	}
	return &points.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &points.ValidationError{Field: "body", Message: err.Error()}
	}
	return data, nil
}

// required takes field name / value pairs and fails on the first blank one.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return &points.ValidationError{Field: pairs[i], Message: "is required"}
		}
	}
	return nil
}

func toDeltas(in map[string]int) map[points.ItemID]int {
	out := make(map[points.ItemID]int, len(in))
	for id, n := range in {
		out[points.ItemID(id)] = n
	}
	return out
}

func familyParam(r *http.Request) points.FamilyID {
	return points.FamilyID(chi.URLParam(r, "familyID"))
}

func childParam(r *http.Request) points.ChildID {
	return points.ChildID(chi.URLParam(r, "childID"))
}

func activityParam(r *http.Request) points.ActivityID {
	return points.ActivityID(chi.URLParam(r, "activityID"))
}

func queryDate(r *http.Request, name string) (points.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return points.Date{}, nil
	}
	d, err := points.ParseDate(s)
	if err != nil {
		return points.Date{}, &points.ValidationError{Field: name, Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s)}
	}
	return d, nil
}

// dayParam reads ?date=, defaulting to today in the child's family
// timezone by the recorder's clock.
func (h *Handler) dayParam(ctx context.Context, r *http.Request, c points.Child) (points.Date, error) {
	day, err := queryDate(r, "date")
	if err != nil || !day.IsZero() {
		return day, err
	}
	f, err := h.Store.Family(ctx, c.FamilyID)
	if err != nil {
		return points.Date{}, err
	}
	return points.DateOf(h.Recorder.Ledger.Now().In(f.Location())), nil
}
