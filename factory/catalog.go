/*
Package factory converts catalog JSON into points types.

PURPOSE:
  Catalogs arrive from the admin UI, from exports of the older mobile app
  and from hand-edited files. Field names are not consistent across those
  sources ("isRepeatable", "is_repeatable", "IsRepeatable"). This package
  is the one place that tolerates the variation; everything past it sees
  canonical points.Behavior and points.Reward values.

JSON SCHEMA:
  {
    "family_id": "fam-1",
    "behaviors": [
      {"id": "brush", "name": "Brush teeth", "points": 1},
      {"id": "read", "name": "Read 20 minutes", "points": 2,
       "is_repeatable": true, "max_per_day": 3},
      {"id": "hit", "name": "Hitting", "points": -3, "type": "Bad",
       "is_repeatable": true}
    ],
    "rewards": [
      {"id": "movie", "name": "Movie night", "cost": 25}
    ]
  }

NORMALIZATION:
  - Keys match case-insensitively, ignoring "_" and "-".
  - Numbers may be JSON numbers or numeric strings.
  - max_per_day of 0 or null means no cap.
  - "active" defaults to true.
  - A reward may give "points" instead of "cost"; the sign is dropped.
  - "type", when present, must agree with the sign of points.

USAGE:
  cat, err := factory.ParseCatalog([]byte(body), "fam-1")
  err = points.ImportCatalog(ctx, store, cat.Behaviors, cat.Rewards)

SEE ALSO:
  - points/types.go: Behavior and Reward
  - api/handlers.go: POST /api/families/{familyID}/catalog
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/kidpoints/points"
)

// Catalog is a parsed, validated catalog for one family.
type Catalog struct {
	FamilyID  points.FamilyID
	Behaviors []points.Behavior
	Rewards   []points.Reward
}

// =============================================================================
// JSON SCHEMA TYPES (canonical output)
// =============================================================================

type CatalogJSON struct {
	FamilyID  string         `json:"family_id"`
	Behaviors []BehaviorJSON `json:"behaviors"`
	Rewards   []RewardJSON   `json:"rewards"`
}

type BehaviorJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Points       int64  `json:"points"`
	Type         string `json:"type"`
	Category     string `json:"category,omitempty"`
	Color        string `json:"color,omitempty"`
	IsRepeatable bool   `json:"is_repeatable"`
	MaxPerDay    *int   `json:"max_per_day,omitempty"`
	Active       bool   `json:"active"`
}

type RewardJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Cost     int64  `json:"cost"`
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog parses and validates a catalog. A non-empty familyID
// overrides whatever family the document names.
func ParseCatalog(data []byte, familyID points.FamilyID) (Catalog, error) {
	root, err := decodeObject(data, "catalog")
	if err != nil {
		return Catalog{}, err
	}

	cat := Catalog{FamilyID: familyID}
	if cat.FamilyID == "" {
		fam, err := root.str("familyid", "family")
		if err != nil {
			return Catalog{}, err
		}
		cat.FamilyID = points.FamilyID(fam)
	}
	if cat.FamilyID == "" {
		return Catalog{}, &points.ValidationError{Field: "family_id", Message: "required"}
	}

	seen := make(map[points.ItemID]string)
	unique := func(id points.ItemID, field string) error {
		if prev, dup := seen[id]; dup {
			return &points.ValidationError{Field: field, Message: fmt.Sprintf("duplicate id %q (also %s)", id, prev)}
		}
		seen[id] = field
		return nil
	}

	behaviors, err := root.list("behaviors")
	if err != nil {
		return Catalog{}, err
	}
	for i, raw := range behaviors {
		field := fmt.Sprintf("behaviors[%d]", i)
		b, err := parseBehavior(raw, field)
		if err != nil {
			return Catalog{}, err
		}
		if err := unique(b.ID, field); err != nil {
			return Catalog{}, err
		}
		b.FamilyID = cat.FamilyID
		cat.Behaviors = append(cat.Behaviors, b)
	}

	rewards, err := root.list("rewards")
	if err != nil {
		return Catalog{}, err
	}
	for i, raw := range rewards {
		field := fmt.Sprintf("rewards[%d]", i)
		r, err := parseReward(raw, field)
		if err != nil {
			return Catalog{}, err
		}
		if err := unique(r.ID, field); err != nil {
			return Catalog{}, err
		}
		r.FamilyID = cat.FamilyID
		cat.Rewards = append(cat.Rewards, r)
	}
	return cat, nil
}

// ParseBehavior parses a single behavior object with the same rules.
func ParseBehavior(data []byte, familyID points.FamilyID) (points.Behavior, error) {
	b, err := parseBehavior(data, "behavior")
	if err != nil {
		return points.Behavior{}, err
	}
	b.FamilyID = familyID
	return b, nil
}

// ParseReward parses a single reward object with the same rules.
func ParseReward(data []byte, familyID points.FamilyID) (points.Reward, error) {
	r, err := parseReward(data, "reward")
	if err != nil {
		return points.Reward{}, err
	}
	r.FamilyID = familyID
	return r, nil
}

func parseBehavior(data []byte, field string) (points.Behavior, error) {
	obj, err := decodeObject(data, field)
	if err != nil {
		return points.Behavior{}, err
	}

	var b points.Behavior
	id, err := obj.str("id", "behaviorid")
	if err != nil {
		return b, err
	}
	b.ID = points.ItemID(id)
	if b.Name, err = obj.str("name", "title"); err != nil {
		return b, err
	}
	if b.Points, err = obj.int("points", "value"); err != nil {
		return b, err
	}
	if b.Category, err = obj.str("category"); err != nil {
		return b, err
	}
	if b.Color, err = obj.str("color", "colour"); err != nil {
		return b, err
	}
	if b.IsRepeatable, err = obj.boolean(false, "isrepeatable", "repeatable"); err != nil {
		return b, err
	}
	if b.Active, err = obj.boolean(true, "active", "isactive"); err != nil {
		return b, err
	}

	limit, err := obj.int("maxperday", "dailylimit")
	if err != nil {
		return b, err
	}
	switch {
	case limit < 0:
		return b, &points.ValidationError{Field: field + ".max_per_day", Message: "cannot be negative"}
	case limit > 0:
		n := int(limit)
		b.MaxPerDay = &n
	}

	typ, err := obj.str("type")
	if err != nil {
		return b, err
	}
	if err := checkType(typ, b.Points, field); err != nil {
		return b, err
	}

	return b, required(field, string(b.ID), b.Name)
}

func parseReward(data []byte, field string) (points.Reward, error) {
	obj, err := decodeObject(data, field)
	if err != nil {
		return points.Reward{}, err
	}

	var r points.Reward
	id, err := obj.str("id", "rewardid")
	if err != nil {
		return r, err
	}
	r.ID = points.ItemID(id)
	if r.Name, err = obj.str("name", "title"); err != nil {
		return r, err
	}
	if r.Category, err = obj.str("category"); err != nil {
		return r, err
	}
	if r.Color, err = obj.str("color", "colour"); err != nil {
		return r, err
	}

	if obj.has("cost", "price") {
		if r.Cost, err = obj.int("cost", "price"); err != nil {
			return r, err
		}
		if r.Cost < 0 {
			return r, &points.ValidationError{Field: field + ".cost", Message: "cannot be negative"}
		}
	} else {
		// Older exports store rewards as negative points.
		pts, err := obj.int("points", "value")
		if err != nil {
			return r, err
		}
		if pts < 0 {
			pts = -pts
		}
		r.Cost = pts
	}

	return r, required(field, string(r.ID), r.Name)
}

func checkType(typ string, pts int64, field string) error {
	if typ == "" {
		return nil
	}
	switch strings.ToLower(typ) {
	case "good":
		if pts < 0 {
			return &points.ValidationError{Field: field + ".points", Message: "Good behavior cannot have negative points"}
		}
	case "bad":
		if pts > 0 {
			return &points.ValidationError{Field: field + ".points", Message: "Bad behavior cannot have positive points"}
		}
	default:
		return &points.ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown behavior type %q", typ)}
	}
	return nil
}

func required(field, id, name string) error {
	if id == "" {
		return &points.ValidationError{Field: field + ".id", Message: "required"}
	}
	if name == "" {
		return &points.ValidationError{Field: field + ".name", Message: "required"}
	}
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ToJSON renders a catalog in canonical form. ParseCatalog accepts it back.
func ToJSON(c Catalog) CatalogJSON {
	out := CatalogJSON{
		FamilyID:  string(c.FamilyID),
		Behaviors: make([]BehaviorJSON, 0, len(c.Behaviors)),
		Rewards:   make([]RewardJSON, 0, len(c.Rewards)),
	}
	for _, b := range c.Behaviors {
		out.Behaviors = append(out.Behaviors, BehaviorJSON{
			ID:           string(b.ID),
			Name:         b.Name,
			Points:       b.Points,
			Type:         string(b.Type()),
			Category:     b.Category,
			Color:        b.Color,
			IsRepeatable: b.IsRepeatable,
			MaxPerDay:    b.MaxPerDay,
			Active:       b.Active,
		})
	}
	for _, r := range c.Rewards {
		out.Rewards = append(out.Rewards, RewardJSON{
			ID:       string(r.ID),
			Name:     r.Name,
			Cost:     r.Cost,
			Category: r.Category,
			Color:    r.Color,
		})
	}
	return out
}

// =============================================================================
// LOOSE OBJECT DECODING
// =============================================================================

// object is a JSON object keyed by normalized field name.
type object struct {
	field  string
	values map[string]json.RawMessage
}

func decodeObject(data []byte, field string) (object, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return object{}, &points.ValidationError{Field: field, Message: "invalid JSON object: " + err.Error()}
	}
	obj := object{field: field, values: make(map[string]json.RawMessage, len(raw))}
	for k, v := range raw {
		obj.values[normalizeKey(k)] = v
	}
	return obj, nil
}

// normalizeKey folds "isRepeatable", "is_repeatable" and "Is-Repeatable"
// to "isrepeatable".
func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}

// lookup returns the first present, non-null alias.
func (o object) lookup(aliases ...string) (json.RawMessage, string, bool) {
	for _, a := range aliases {
		if v, ok := o.values[a]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, a, true
		}
	}
	return nil, "", false
}

func (o object) has(aliases ...string) bool {
	_, _, ok := o.lookup(aliases...)
	return ok
}

func (o object) invalid(key, msg string) error {
	return &points.ValidationError{Field: o.field + "." + key, Message: msg}
}

func (o object) str(aliases ...string) (string, error) {
	v, key, ok := o.lookup(aliases...)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	// IDs are sometimes numeric in older exports.
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", o.invalid(key, "must be a string")
}

func (o object) int(aliases ...string) (int64, error) {
	v, key, ok := o.lookup(aliases...)
	if !ok {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, o.invalid(key, "must be a number")
		}
		n = json.Number(strings.TrimSpace(s))
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, o.invalid(key, "must be a whole number")
	}
	return i, nil
}

func (o object) boolean(def bool, aliases ...string) (bool, error) {
	v, key, ok := o.lookup(aliases...)
	if !ok {
		return def, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed, nil
		}
	}
	return false, o.invalid(key, "must be true or false")
}

func (o object) list(aliases ...string) ([]json.RawMessage, error) {
	v, key, ok := o.lookup(aliases...)
	if !ok {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, o.invalid(key, "must be an array")
	}
	return out, nil
}
