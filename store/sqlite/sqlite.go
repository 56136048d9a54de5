/*
Package sqlite provides a SQLite-backed implementation of points.Store.

PURPOSE:
  The default backend. One file holds families, children, the catalog and
  the activity ledger.

INTERFACES IMPLEMENTED:
  points.Store:           activities, catalog, families and children
  points.PointSummer:     balance sums in SQL
  points.CatalogImporter: catalog import in one transaction

APPEND-ONLY ENFORCEMENT:
  - No DELETE on activities (Reset aside, which clears every table)
  - The only UPDATE on activities is UpdateStatus, guarded by
    "WHERE status = ?" so it is a compare-and-set
  - earned_points, item_id, type and date are never rewritten

KEY TABLES:
  families:   timezone drives "today"
  children:   total_points is the balance cache
  behaviors:  points, is_repeatable, max_per_day (NULL = no cap), active
  rewards:    cost
  activities: the ledger

INDEXES:
  - idx_activities_child_item_date: eligibility counts (hot path)
  - idx_activities_child_status:    balance sums
  - idx_activities_status:          pending approval list

IN-MEMORY DATABASES:
  go-sqlite3 gives every connection its own ":memory:" database, so the
  pool is pinned to one connection for that path.

USAGE:
  store, err := sqlite.New("./data/kidpoints.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  recorder := points.NewRecorder(store)

SEE ALSO:
  - points/store.go: interface definitions
  - points/store/memory.go: in-memory implementation
  - store/postgres: gorm + PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/kidpoints/points"
)

const timeLayout = time.RFC3339Nano

// Store implements points.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		timezone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS children (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id),
		name TEXT NOT NULL,
		age INTEGER DEFAULT 0,
		gender TEXT,
		avatar TEXT,
		total_points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_children_family
		ON children(family_id);

	CREATE TABLE IF NOT EXISTS behaviors (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		points INTEGER NOT NULL,
		category TEXT,
		color TEXT,
		is_repeatable BOOLEAN NOT NULL DEFAULT FALSE,
		max_per_day INTEGER,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_behaviors_family
		ON behaviors(family_id);

	CREATE TABLE IF NOT EXISTS rewards (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		cost INTEGER NOT NULL,
		category TEXT,
		color TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rewards_family
		ON rewards(family_id);

	-- Activities (append-only ledger)
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		child_id TEXT NOT NULL REFERENCES children(id),
		item_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('Good', 'Bad', 'Reward')),
		date TEXT NOT NULL,
		earned_points INTEGER NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Approved', 'Pending', 'Rejected')),
		note TEXT,
		approved_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_child_item_date
		ON activities(child_id, item_id, date);
	CREATE INDEX IF NOT EXISTS idx_activities_child_status
		ON activities(child_id, status);
	CREATE INDEX IF NOT EXISTS idx_activities_status
		ON activities(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// ACTIVITY STORE (points.ActivityStore interface)
// =============================================================================

const activityColumns = `id, child_id, item_id, type, date, earned_points, status, note, approved_by, decided_at, created_at`

func (s *Store) Append(ctx context.Context, a points.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO activities (` + activityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.ChildID,
		a.ItemID,
		a.Type,
		a.Date.String(),
		a.EarnedPoints,
		a.Status,
		nullString(a.Note),
		nullString(a.ApprovedBy),
		nullTime(a.DecidedAt),
		a.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &points.ValidationError{Field: "id", Message: "duplicate activity id " + string(a.ID)}
		}
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f points.ActivityFilter) ([]points.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := activityWhere(f)
	return s.queryActivities(ctx, `SELECT `+activityColumns+` FROM activities`+where+` ORDER BY created_at DESC, id DESC`, args...)
}

// activityWhere translates a filter into a WHERE clause. Dates are stored
// as YYYY-MM-DD so string comparison orders them correctly.
func activityWhere(f points.ActivityFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.ChildID != "" {
		add("child_id = ?", f.ChildID)
	}
	if f.ItemID != "" {
		add("item_id = ?", f.ItemID)
	}
	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.Type != "" {
		add("type = ?", f.Type)
	}
	if !f.Date.IsZero() {
		add("date = ?", f.Date.String())
	}
	if !f.From.IsZero() {
		add("date >= ?", f.From.String())
	}
	if !f.To.IsZero() {
		add("date <= ?", f.To.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) Get(ctx context.Context, id points.ActivityID) (points.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryActivities(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	if err != nil {
		return points.Activity{}, err
	}
	if len(list) == 0 {
		return points.Activity{}, &points.NotFoundError{Kind: "activity", ID: string(id)}
	}
	return list[0], nil
}

// UpdateStatus is the one UPDATE the ledger allows.
func (s *Store) UpdateStatus(ctx context.Context, id points.ActivityID, from, to points.Status, approver string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET status = ?, approved_by = ?, decided_at = ? WHERE id = ? AND status = ?`,
		to, nullString(approver), at.UTC().Format(timeLayout), id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM activities WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &points.NotFoundError{Kind: "activity", ID: string(id)}
	}
	if err != nil {
		return err
	}
	return &points.ValidationError{Field: "status", Message: fmt.Sprintf("activity %s is %s, not %s", id, current, from)}
}

// SumPoints implements points.PointSummer.
func (s *Store) SumPoints(ctx context.Context, childID points.ChildID, status points.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(earned_points), 0) FROM activities WHERE child_id = ? AND status = ?`,
		childID, status,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]points.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []points.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func scanActivity(rows *sql.Rows) (points.Activity, error) {
	var (
		a          points.Activity
		date       string
		note       sql.NullString
		approvedBy sql.NullString
		decidedAt  sql.NullString
		createdAt  string
	)

	err := rows.Scan(
		&a.ID, &a.ChildID, &a.ItemID, &a.Type, &date, &a.EarnedPoints,
		&a.Status, &note, &approvedBy, &decidedAt, &createdAt,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan activity: %w", err)
	}

	if a.Date, err = points.ParseDate(date); err != nil {
		return a, fmt.Errorf("activity %s has corrupt date %q", a.ID, date)
	}
	a.Note = note.String
	a.ApprovedBy = approvedBy.String
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if decidedAt.Valid {
		t, _ := time.Parse(timeLayout, decidedAt.String)
		a.DecidedAt = &t
	}
	return a, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

const behaviorColumns = `id, family_id, name, points, category, color, is_repeatable, max_per_day, active`

func (s *Store) SaveBehavior(ctx context.Context, b points.Behavior) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBehavior(ctx, s.db, b)
}

func saveBehavior(ctx context.Context, db execer, b points.Behavior) error {
	var maxPerDay sql.NullInt64
	if b.MaxPerDay != nil {
		maxPerDay = sql.NullInt64{Int64: int64(*b.MaxPerDay), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO behaviors (`+behaviorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			points = excluded.points,
			category = excluded.category,
			color = excluded.color,
			is_repeatable = excluded.is_repeatable,
			max_per_day = excluded.max_per_day,
			active = excluded.active
	`,
		b.ID, b.FamilyID, b.Name, b.Points,
		nullString(b.Category), nullString(b.Color),
		b.IsRepeatable, maxPerDay, b.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save behavior %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) Behavior(ctx context.Context, id points.ItemID) (points.Behavior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryBehaviors(ctx, `SELECT `+behaviorColumns+` FROM behaviors WHERE id = ?`, id)
	if err != nil {
		return points.Behavior{}, err
	}
	if len(list) == 0 {
		return points.Behavior{}, &points.NotFoundError{Kind: "behavior", ID: string(id)}
	}
	return list[0], nil
}

func (s *Store) Behaviors(ctx context.Context, familyID points.FamilyID) ([]points.Behavior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBehaviors(ctx, `SELECT `+behaviorColumns+` FROM behaviors WHERE family_id = ? ORDER BY id`, familyID)
}

func (s *Store) queryBehaviors(ctx context.Context, query string, args ...any) ([]points.Behavior, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query behaviors: %w", err)
	}
	defer rows.Close()

	var out []points.Behavior
	for rows.Next() {
		var (
			b         points.Behavior
			category  sql.NullString
			color     sql.NullString
			maxPerDay sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.FamilyID, &b.Name, &b.Points, &category, &color, &b.IsRepeatable, &maxPerDay, &b.Active); err != nil {
			return nil, fmt.Errorf("failed to scan behavior: %w", err)
		}
		b.Category = category.String
		b.Color = color.String
		if maxPerDay.Valid {
			n := int(maxPerDay.Int64)
			b.MaxPerDay = &n
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const rewardColumns = `id, family_id, name, cost, category, color`

func (s *Store) SaveReward(ctx context.Context, r points.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveReward(ctx, s.db, r)
}

func saveReward(ctx context.Context, db execer, r points.Reward) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO rewards (`+rewardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			cost = excluded.cost,
			category = excluded.category,
			color = excluded.color
	`,
		r.ID, r.FamilyID, r.Name, r.Cost, nullString(r.Category), nullString(r.Color),
	)
	if err != nil {
		return fmt.Errorf("failed to save reward %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Reward(ctx context.Context, id points.ItemID) (points.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryRewards(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = ?`, id)
	if err != nil {
		return points.Reward{}, err
	}
	if len(list) == 0 {
		return points.Reward{}, &points.NotFoundError{Kind: "reward", ID: string(id)}
	}
	return list[0], nil
}

func (s *Store) Rewards(ctx context.Context, familyID points.FamilyID) ([]points.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRewards(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE family_id = ? ORDER BY id`, familyID)
}

func (s *Store) queryRewards(ctx context.Context, query string, args ...any) ([]points.Reward, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var out []points.Reward
	for rows.Next() {
		var (
			r        points.Reward
			category sql.NullString
			color    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.FamilyID, &r.Name, &r.Cost, &category, &color); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		r.Category = category.String
		r.Color = color.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImportCatalog implements points.CatalogImporter. Either every item is
// saved or none is.
func (s *Store) ImportCatalog(ctx context.Context, behaviors []points.Behavior, rewards []points.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, b := range behaviors {
		if err := saveBehavior(ctx, tx, b); err != nil {
			return err
		}
	}
	for _, r := range rewards {
		if err := saveReward(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// FAMILY STORE
// =============================================================================

func (s *Store) SaveFamily(ctx context.Context, f points.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO families (id, name, email, phone, timezone, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			timezone = excluded.timezone
	`,
		f.ID, f.Name, nullString(f.Email), nullString(f.Phone), nullString(f.Timezone),
		createdAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save family %s: %w", f.ID, err)
	}
	return nil
}

func (s *Store) Family(ctx context.Context, id points.FamilyID) (points.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryFamilies(ctx, `SELECT id, name, email, phone, timezone, created_at FROM families WHERE id = ?`, id)
	if err != nil {
		return points.Family{}, err
	}
	if len(list) == 0 {
		return points.Family{}, &points.NotFoundError{Kind: "family", ID: string(id)}
	}
	return list[0], nil
}

func (s *Store) Families(ctx context.Context) ([]points.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFamilies(ctx, `SELECT id, name, email, phone, timezone, created_at FROM families ORDER BY id`)
}

func (s *Store) queryFamilies(ctx context.Context, query string, args ...any) ([]points.Family, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var out []points.Family
	for rows.Next() {
		var (
			f                      points.Family
			email, phone, timezone sql.NullString
			createdAt              string
		)
		if err := rows.Scan(&f.ID, &f.Name, &email, &phone, &timezone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		f.Email = email.String
		f.Phone = phone.String
		f.Timezone = timezone.String
		f.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

const childColumns = `id, family_id, name, age, gender, avatar, total_points, created_at`

// SaveChild inserts or updates a child's profile. total_points is left
// alone on update; only SetCachedBalance writes it.
func (s *Store) SaveChild(ctx context.Context, c points.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO children (`+childColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			age = excluded.age,
			gender = excluded.gender,
			avatar = excluded.avatar
	`,
		c.ID, c.FamilyID, c.Name, c.Age, nullString(c.Gender), nullString(c.Avatar),
		c.TotalPoints, createdAt.Format(timeLayout),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &points.NotFoundError{Kind: "family", ID: string(c.FamilyID)}
		}
		return fmt.Errorf("failed to save child %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) Child(ctx context.Context, id points.ChildID) (points.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryChildren(ctx, `SELECT `+childColumns+` FROM children WHERE id = ?`, id)
	if err != nil {
		return points.Child{}, err
	}
	if len(list) == 0 {
		return points.Child{}, &points.NotFoundError{Kind: "child", ID: string(id)}
	}
	return list[0], nil
}

func (s *Store) Children(ctx context.Context, familyID points.FamilyID) ([]points.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if familyID == "" {
		return s.queryChildren(ctx, `SELECT `+childColumns+` FROM children ORDER BY id`)
	}
	return s.queryChildren(ctx, `SELECT `+childColumns+` FROM children WHERE family_id = ? ORDER BY id`, familyID)
}

func (s *Store) SetCachedBalance(ctx context.Context, id points.ChildID, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE children SET total_points = ? WHERE id = ?`, total, id)
	if err != nil {
		return fmt.Errorf("failed to set cached balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &points.NotFoundError{Kind: "child", ID: string(id)}
	}
	return nil
}

func (s *Store) queryChildren(ctx context.Context, query string, args ...any) ([]points.Child, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var out []points.Child
	for rows.Next() {
		var (
			c              points.Child
			gender, avatar sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Age, &gender, &avatar, &c.TotalPoints, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		c.Gender = gender.String
		c.Avatar = avatar.String
		c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Children before families, activities before children: foreign keys.
	tables := []string{"activities", "children", "behaviors", "rewards", "families"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
