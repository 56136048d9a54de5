/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names are
  snake_case; dates are "YYYY-MM-DD" strings; timestamps are RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Families:   FamilyDTO, CreateFamilyRequest, ChildDTO, CreateChildRequest
  Catalog:    factory.BehaviorJSON, factory.RewardJSON, factory.CatalogJSON
  Recording:  RecordBehaviorRequest, RedeemRewardRequest, RecordBatchRequest,
              ActivityDTO, BatchResultDTO
  Approvals:  DecisionRequest
  Balance:    BalanceDTO, SummaryDTO, ProgressDTO, EligibilityDTO,
              PreviewRequest, PreviewDTO
  Errors:     ErrorResponse
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the points engine, not in DTOs. Catalog bodies go
  through factory.ParseBehavior / ParseReward, which accept loose casing.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: catalog JSON types
*/
package api

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/kidpoints/factory"
	"github.com/warp/kidpoints/points"
)

// =============================================================================
// FAMILIES & CHILDREN
// =============================================================================

type FamilyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateFamilyRequest creates or updates a family. ID is generated when
// empty. StarterCatalog seeds the family with factory.StarterCatalogJSON.
type CreateFamilyRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Timezone       string `json:"timezone"`
	StarterCatalog bool   `json:"starter_catalog"`
}

type ChildDTO struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	Name        string    `json:"name"`
	Age         int       `json:"age,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	TotalPoints int64     `json:"total_points"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateChildRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Avatar string `json:"avatar"`
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordBehaviorRequest is the body of POST /api/recordBehavior. An empty
// date means today in the family's timezone.
type RecordBehaviorRequest struct {
	ChildID    string      `json:"child_id"`
	BehaviorID string      `json:"behavior_id"`
	Date       points.Date `json:"date"`
	Note       string      `json:"note"`
}

type RedeemRewardRequest struct {
	ChildID  string `json:"child_id"`
	RewardID string `json:"reward_id"`
	Note     string `json:"note"`
}

// RecordBatchRequest carries the uncommitted tap counts, behavior ID ->
// number of taps.
type RecordBatchRequest struct {
	ChildID string         `json:"child_id"`
	Date    points.Date    `json:"date"`
	Deltas  map[string]int `json:"deltas"`
}

type ActivityDTO struct {
	ID           string      `json:"id"`
	ChildID      string      `json:"child_id"`
	ItemID       string      `json:"item_id"`
	Type         string      `json:"type"`
	Date         points.Date `json:"date"`
	EarnedPoints int64       `json:"earned_points"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	Note         string      `json:"note,omitempty"`
	ApprovedBy   string      `json:"approved_by,omitempty"`
	DecidedAt    *time.Time  `json:"decided_at,omitempty"`
}

type BatchItemDTO struct {
	BehaviorID string         `json:"behavior_id"`
	Activity   *ActivityDTO   `json:"activity,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

type BatchResultDTO struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Items     []BatchItemDTO `json:"items"`
}

// DecisionRequest is the optional body of approve / reject.
type DecisionRequest struct {
	Approver string `json:"approver"`
}

// =============================================================================
// BALANCE & PROGRESS
// =============================================================================

// BalanceDTO reports the ledger balance alongside the cached column.
type BalanceDTO struct {
	ChildID string `json:"child_id"`
	Balance int64  `json:"balance"`
	Cached  int64  `json:"cached"`
}

type SummaryDTO struct {
	ChildID          string      `json:"child_id"`
	Date             points.Date `json:"date"`
	Balance          int64       `json:"balance"`
	EarnedToday      int64       `json:"earned_today"`
	LostToday        int64       `json:"lost_today"`
	SpentToday       int64       `json:"spent_today"`
	AwaitingApproval int64       `json:"awaiting_approval"`
}

type ProgressDTO struct {
	Reward     factory.RewardJSON `json:"reward"`
	Affordable bool               `json:"affordable"`
	Missing    int64              `json:"missing"`
	Percent    decimal.Decimal    `json:"percent"`
}

type EligibilityDTO struct {
	BehaviorID string `json:"behavior_id"`
	Name       string `json:"name"`
	Points     int64  `json:"points"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
	Count      int    `json:"count"`
	Remaining  *int   `json:"remaining"`
}

type PreviewRequest struct {
	Deltas map[string]int `json:"deltas"`
}

// PreviewDTO shows what saving the pending taps would do. Nothing is
// written; Projected ignores daily caps.
type PreviewDTO struct {
	ChildID   string `json:"child_id"`
	Balance   int64  `json:"balance"`
	Delta     int64  `json:"delta"`
	Projected int64  `json:"projected"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every failed request. Reason is set for
// eligibility failures only; Required and Available for insufficient points.
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	Required  *int64 `json:"required,omitempty"`
	Available *int64 `json:"available,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toFamilyDTO(f points.Family) FamilyDTO {
	tz := f.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return FamilyDTO{
		ID:        string(f.ID),
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Timezone:  tz,
		CreatedAt: f.CreatedAt,
	}
}

func toChildDTO(c points.Child) ChildDTO {
	return ChildDTO{
		ID:          string(c.ID),
		FamilyID:    string(c.FamilyID),
		Name:        c.Name,
		Age:         c.Age,
		Gender:      c.Gender,
		Avatar:      c.Avatar,
		TotalPoints: c.TotalPoints,
		CreatedAt:   c.CreatedAt,
	}
}

func toActivityDTO(a points.Activity) ActivityDTO {
	return ActivityDTO{
		ID:           string(a.ID),
		ChildID:      string(a.ChildID),
		ItemID:       string(a.ItemID),
		Type:         string(a.Type),
		Date:         a.Date,
		EarnedPoints: a.EarnedPoints,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		Note:         a.Note,
		ApprovedBy:   a.ApprovedBy,
		DecidedAt:    a.DecidedAt,
	}
}

func toActivityDTOs(list []points.Activity) []ActivityDTO {
	out := make([]ActivityDTO, len(list))
	for i, a := range list {
		out[i] = toActivityDTO(a)
	}
	return out
}

func toBatchResultDTO(res points.BatchResult) BatchResultDTO {
	out := BatchResultDTO{
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Items:     make([]BatchItemDTO, len(res.Items)),
	}
	for i, item := range res.Items {
		dto := BatchItemDTO{BehaviorID: string(item.BehaviorID)}
		if item.Activity != nil {
			a := toActivityDTO(*item.Activity)
			dto.Activity = &a
		}
		if item.Err != nil {
			e := toErrorResponse(item.Err)
			dto.Error = &e
		}
		out.Items[i] = dto
	}
	return out
}

func toSummaryDTO(s points.Summary) SummaryDTO {
	return SummaryDTO{
		ChildID:          string(s.ChildID),
		Date:             s.Day,
		Balance:          s.Balance,
		EarnedToday:      s.EarnedToday,
		LostToday:        s.LostToday,
		SpentToday:       s.SpentToday,
		AwaitingApproval: s.AwaitingApproval,
	}
}

func toProgressDTOs(list []points.RewardProgress) []ProgressDTO {
	out := make([]ProgressDTO, len(list))
	for i, p := range list {
		out[i] = ProgressDTO{
			Reward:     toRewardJSON(p.Reward),
			Affordable: p.Affordable,
			Missing:    p.Missing,
			Percent:    p.Percent,
		}
	}
	return out
}

func toBehaviorJSON(b points.Behavior) factory.BehaviorJSON {
	return factory.ToJSON(factory.Catalog{FamilyID: b.FamilyID, Behaviors: []points.Behavior{b}}).Behaviors[0]
}

func toRewardJSON(r points.Reward) factory.RewardJSON {
	return factory.ToJSON(factory.Catalog{FamilyID: r.FamilyID, Rewards: []points.Reward{r}}).Rewards[0]
}

func toErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Kind: points.Kind(err), Message: err.Error()}
	var elig *points.EligibilityError
	if errors.As(err, &elig) {
		resp.Reason = string(elig.Reason)
	}
	var short *points.InsufficientPointsError
	if errors.As(err, &short) {
		resp.Required = &short.Required
		resp.Available = &short.Available
	}
	return resp
}
