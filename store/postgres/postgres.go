/*
Package postgres provides a gorm + PostgreSQL implementation of points.Store.

PURPOSE:
  For hosted deployments where several server processes share one
  database. Behavior matches store/sqlite; only the persistence layer
  differs.

INTERFACES IMPLEMENTED:
  points.Store, points.PointSummer, points.CatalogImporter,
  points.ChildLocker
  Reset for demo scenarios

CROSS-PROCESS LOCKING:
  WithChildLock holds pg_advisory_xact_lock(hashtext(child_id)) in its own
  transaction while the recorder checks and appends, so two processes
  can't both pass the same daily cap.

MODELS:
  Each table has a private row struct with gorm tags. toX / fromX convert
  between rows and points types; nothing outside this file sees a row.

APPEND-ONLY ENFORCEMENT:
  Activities are created with Create and changed only by UpdateStatus,
  which updates status/approved_by/decided_at WHERE status = from.

USAGE:
  store, err := postgres.Open(os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/kidpoints/points"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// =============================================================================
// MODELS
// =============================================================================

type familyRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Email     string
	Phone     string
	Timezone  string
	CreatedAt time.Time
}

func (familyRow) TableName() string { return "families" }

type childRow struct {
	ID          string `gorm:"primaryKey"`
	FamilyID    string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Age         int
	Gender      string
	Avatar      string
	TotalPoints int64 `gorm:"not null;default:0"`
	CreatedAt   time.Time
}

func (childRow) TableName() string { return "children" }

type behaviorRow struct {
	ID           string `gorm:"primaryKey"`
	FamilyID     string `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	Points       int64  `gorm:"not null"`
	Category     string
	Color        string
	IsRepeatable bool `gorm:"not null"`
	MaxPerDay    *int
	Active       bool `gorm:"not null"` // no default tag: false must reach the INSERT
}

func (behaviorRow) TableName() string { return "behaviors" }

type rewardRow struct {
	ID       string `gorm:"primaryKey"`
	FamilyID string `gorm:"not null;index"`
	Name     string `gorm:"not null"`
	Cost     int64  `gorm:"not null"`
	Category string
	Color    string
}

func (rewardRow) TableName() string { return "rewards" }

type activityRow struct {
	ID           string `gorm:"primaryKey"`
	ChildID      string `gorm:"not null;index:idx_activities_child_item_day;index:idx_activities_child_status"`
	ItemID       string `gorm:"not null;index:idx_activities_child_item_day"`
	Type         string `gorm:"not null"`
	Day          string `gorm:"size:10;not null;index:idx_activities_child_item_day"`
	EarnedPoints int64  `gorm:"not null"`
	Status       string `gorm:"not null;index:idx_activities_child_status;index"`
	Note         string
	ApprovedBy   string
	DecidedAt    *time.Time
	CreatedAt    time.Time
}

func (activityRow) TableName() string { return "activities" }

// =============================================================================
// STORE
// =============================================================================

// Store implements points.Store on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema. Open the
// handle with TranslateError so duplicate IDs are reported as such.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&familyRow{}, &childRow{}, &behaviorRow{}, &rewardRow{}, &activityRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func (s *Store) Append(ctx context.Context, a points.Activity) error {
	row := fromActivity(a)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &points.ValidationError{Field: "id", Message: "duplicate activity id " + string(a.ID)}
		}
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f points.ActivityFilter) ([]points.Activity, error) {
	var rows []activityRow
	if err := applyFilter(s.db.WithContext(ctx), f).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	out := make([]points.Activity, 0, len(rows))
	for _, r := range rows {
		a, err := r.toActivity()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func applyFilter(q *gorm.DB, f points.ActivityFilter) *gorm.DB {
	if f.ChildID != "" {
		q = q.Where("child_id = ?", string(f.ChildID))
	}
	if f.ItemID != "" {
		q = q.Where("item_id = ?", string(f.ItemID))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if !f.Date.IsZero() {
		q = q.Where("day = ?", f.Date.String())
	}
	if !f.From.IsZero() {
		q = q.Where("day >= ?", f.From.String())
	}
	if !f.To.IsZero() {
		q = q.Where("day <= ?", f.To.String())
	}
	return q
}

func (s *Store) Get(ctx context.Context, id points.ActivityID) (points.Activity, error) {
	var row activityRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points.Activity{}, &points.NotFoundError{Kind: "activity", ID: string(id)}
	}
	if err != nil {
		return points.Activity{}, fmt.Errorf("failed to get activity: %w", err)
	}
	return row.toActivity()
}

// WithChildLock runs fn while this process holds the child's advisory lock.
// Nothing is written through the lock transaction; rolling it back
// releases the lock.
func (s *Store) WithChildLock(ctx context.Context, id points.ChildID, fn func(ctx context.Context) error) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin lock transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	if err := lockChild(tx, id); err != nil {
		return fmt.Errorf("failed to lock child %s: %w", id, err)
	}
	return fn(ctx)
}

func lockChild(tx *gorm.DB, id points.ChildID) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", string(id)).Error
}

func (s *Store) UpdateStatus(ctx context.Context, id points.ActivityID, from, to points.Status, approver string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row activityRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", string(id)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &points.NotFoundError{Kind: "activity", ID: string(id)}
		}
		if err != nil {
			return err
		}
		if row.Status != string(from) {
			return &points.ValidationError{Field: "status", Message: fmt.Sprintf("activity %s is %s, not %s", id, row.Status, from)}
		}
		return markDecided(tx, id, from, to, approver, at).Error
	})
}

// markDecided is the conditional UPDATE behind UpdateStatus.
func markDecided(tx *gorm.DB, id points.ActivityID, from, to points.Status, approver string, at time.Time) *gorm.DB {
	decided := at.UTC()
	return tx.Model(&activityRow{}).
		Where("id = ? AND status = ?", string(id), string(from)).
		Updates(map[string]any{"status": string(to), "approved_by": approver, "decided_at": &decided})
}

func (s *Store) SumPoints(ctx context.Context, childID points.ChildID, status points.Status) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&activityRow{}).
		Select("COALESCE(SUM(earned_points), 0)").
		Where("child_id = ? AND status = ?", string(childID), string(status)).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

func fromActivity(a points.Activity) activityRow {
	return activityRow{
		ID:           string(a.ID),
		ChildID:      string(a.ChildID),
		ItemID:       string(a.ItemID),
		Type:         string(a.Type),
		Day:          a.Date.String(),
		EarnedPoints: a.EarnedPoints,
		Status:       string(a.Status),
		Note:         a.Note,
		ApprovedBy:   a.ApprovedBy,
		DecidedAt:    a.DecidedAt,
		CreatedAt:    a.CreatedAt,
	}
}

func (r activityRow) toActivity() (points.Activity, error) {
	day, err := points.ParseDate(r.Day)
	if err != nil {
		return points.Activity{}, fmt.Errorf("activity %s has corrupt date %q", r.ID, r.Day)
	}
	return points.Activity{
		ID:           points.ActivityID(r.ID),
		ChildID:      points.ChildID(r.ChildID),
		ItemID:       points.ItemID(r.ItemID),
		Type:         points.ActivityType(r.Type),
		Date:         day,
		EarnedPoints: r.EarnedPoints,
		Status:       points.Status(r.Status),
		Note:         r.Note,
		ApprovedBy:   r.ApprovedBy,
		DecidedAt:    r.DecidedAt,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func upsert(columns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

var (
	behaviorColumns = []string{"family_id", "name", "points", "category", "color", "is_repeatable", "max_per_day", "active"}
	rewardColumns   = []string{"family_id", "name", "cost", "category", "color"}
)

func (s *Store) SaveBehavior(ctx context.Context, b points.Behavior) error {
	return saveBehavior(s.db.WithContext(ctx), b)
}

func (s *Store) SaveReward(ctx context.Context, r points.Reward) error {
	return saveReward(s.db.WithContext(ctx), r)
}

func (s *Store) ImportCatalog(ctx context.Context, behaviors []points.Behavior, rewards []points.Reward) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range behaviors {
			if err := saveBehavior(tx, b); err != nil {
				return fmt.Errorf("failed to save behavior %s: %w", b.ID, err)
			}
		}
		for _, r := range rewards {
			if err := saveReward(tx, r); err != nil {
				return fmt.Errorf("failed to save reward %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func saveBehavior(tx *gorm.DB, b points.Behavior) error {
	row := fromBehavior(b)
	return tx.Clauses(upsert(behaviorColumns...)).Create(&row).Error
}

func saveReward(tx *gorm.DB, r points.Reward) error {
	row := fromReward(r)
	return tx.Clauses(upsert(rewardColumns...)).Create(&row).Error
}

func (s *Store) Behavior(ctx context.Context, id points.ItemID) (points.Behavior, error) {
	var row behaviorRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points.Behavior{}, &points.NotFoundError{Kind: "behavior", ID: string(id)}
	}
	if err != nil {
		return points.Behavior{}, err
	}
	return row.toBehavior(), nil
}

func (s *Store) Behaviors(ctx context.Context, familyID points.FamilyID) ([]points.Behavior, error) {
	var rows []behaviorRow
	if err := s.db.WithContext(ctx).Where("family_id = ?", string(familyID)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]points.Behavior, len(rows))
	for i, r := range rows {
		out[i] = r.toBehavior()
	}
	return out, nil
}

func (s *Store) Reward(ctx context.Context, id points.ItemID) (points.Reward, error) {
	var row rewardRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points.Reward{}, &points.NotFoundError{Kind: "reward", ID: string(id)}
	}
	if err != nil {
		return points.Reward{}, err
	}
	return row.toReward(), nil
}

func (s *Store) Rewards(ctx context.Context, familyID points.FamilyID) ([]points.Reward, error) {
	var rows []rewardRow
	if err := s.db.WithContext(ctx).Where("family_id = ?", string(familyID)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]points.Reward, len(rows))
	for i, r := range rows {
		out[i] = r.toReward()
	}
	return out, nil
}

func fromBehavior(b points.Behavior) behaviorRow {
	return behaviorRow{
		ID:           string(b.ID),
		FamilyID:     string(b.FamilyID),
		Name:         b.Name,
		Points:       b.Points,
		Category:     b.Category,
		Color:        b.Color,
		IsRepeatable: b.IsRepeatable,
		MaxPerDay:    b.MaxPerDay,
		Active:       b.Active,
	}
}

func (r behaviorRow) toBehavior() points.Behavior {
	return points.Behavior{
		ID:           points.ItemID(r.ID),
		FamilyID:     points.FamilyID(r.FamilyID),
		Name:         r.Name,
		Points:       r.Points,
		Category:     r.Category,
		Color:        r.Color,
		IsRepeatable: r.IsRepeatable,
		MaxPerDay:    r.MaxPerDay,
		Active:       r.Active,
	}
}

func fromReward(r points.Reward) rewardRow {
	return rewardRow{
		ID:       string(r.ID),
		FamilyID: string(r.FamilyID),
		Name:     r.Name,
		Cost:     r.Cost,
		Category: r.Category,
		Color:    r.Color,
	}
}

func (r rewardRow) toReward() points.Reward {
	return points.Reward{
		ID:       points.ItemID(r.ID),
		FamilyID: points.FamilyID(r.FamilyID),
		Name:     r.Name,
		Cost:     r.Cost,
		Category: r.Category,
		Color:    r.Color,
	}
}

// =============================================================================
// FAMILIES & CHILDREN
// =============================================================================

func (s *Store) SaveFamily(ctx context.Context, f points.Family) error {
	row := familyRow{
		ID:        string(f.ID),
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Timezone:  f.Timezone,
		CreatedAt: f.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(upsert("name", "email", "phone", "timezone")).Create(&row).Error
}

func (s *Store) Family(ctx context.Context, id points.FamilyID) (points.Family, error) {
	var row familyRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points.Family{}, &points.NotFoundError{Kind: "family", ID: string(id)}
	}
	if err != nil {
		return points.Family{}, err
	}
	return row.toFamily(), nil
}

func (s *Store) Families(ctx context.Context) ([]points.Family, error) {
	var rows []familyRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]points.Family, len(rows))
	for i, r := range rows {
		out[i] = r.toFamily()
	}
	return out, nil
}

func (r familyRow) toFamily() points.Family {
	return points.Family{
		ID:        points.FamilyID(r.ID),
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Timezone:  r.Timezone,
		CreatedAt: r.CreatedAt,
	}
}

// SaveChild leaves total_points alone on update.
func (s *Store) SaveChild(ctx context.Context, c points.Child) error {
	var fam familyRow
	err := s.db.WithContext(ctx).Select("id").First(&fam, "id = ?", string(c.FamilyID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &points.NotFoundError{Kind: "family", ID: string(c.FamilyID)}
	}
	if err != nil {
		return err
	}

	row := childRow{
		ID:          string(c.ID),
		FamilyID:    string(c.FamilyID),
		Name:        c.Name,
		Age:         c.Age,
		Gender:      c.Gender,
		Avatar:      c.Avatar,
		TotalPoints: c.TotalPoints,
		CreatedAt:   c.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(upsert("family_id", "name", "age", "gender", "avatar")).Create(&row).Error
}

func (s *Store) Child(ctx context.Context, id points.ChildID) (points.Child, error) {
	var row childRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points.Child{}, &points.NotFoundError{Kind: "child", ID: string(id)}
	}
	if err != nil {
		return points.Child{}, err
	}
	return row.toChild(), nil
}

func (s *Store) Children(ctx context.Context, familyID points.FamilyID) ([]points.Child, error) {
	q := s.db.WithContext(ctx).Order("id")
	if familyID != "" {
		q = q.Where("family_id = ?", string(familyID))
	}
	var rows []childRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]points.Child, len(rows))
	for i, r := range rows {
		out[i] = r.toChild()
	}
	return out, nil
}

func (s *Store) SetCachedBalance(ctx context.Context, id points.ChildID, total int64) error {
	res := s.db.WithContext(ctx).Model(&childRow{}).Where("id = ?", string(id)).Update("total_points", total)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &points.NotFoundError{Kind: "child", ID: string(id)}
	}
	return nil
}

func (r childRow) toChild() points.Child {
	return points.Child{
		ID:          points.ChildID(r.ID),
		FamilyID:    points.FamilyID(r.FamilyID),
		Name:        r.Name,
		Age:         r.Age,
		Gender:      r.Gender,
		Avatar:      r.Avatar,
		TotalPoints: r.TotalPoints,
		CreatedAt:   r.CreatedAt,
	}
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("TRUNCATE activities, children, behaviors, rewards, families").Error
}
