package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/okian/trials/internal/domain/model"
)

const driverPostgres = "postgres"

// attemptRow is the SQL shape of a TestAttempt.
type attemptRow struct {
	ID                string     `gorm:"primaryKey;size:64"`
	UserID            string     `gorm:"index;size:128;not null"`
	TestType          string     `gorm:"size:32;not null"`
	VideoURL          string     `gorm:"not null"`
	AnnotatedVideoURL *string
	Status            string     `gorm:"index;size:16;not null"`
	Result            *string    `gorm:"type:text"`
	Score             *int
	Remarks           *string    `gorm:"type:text"`
	AssessedBy        *string    `gorm:"size:128"`
	AssessedAt        *time.Time `gorm:"index"`
	CreatedAt         time.Time  `gorm:"index;not null"`
}

func (attemptRow) TableName() string { return "test_attempt" }

// athleteRow is the SQL shape of an AthleteProfile.
type athleteRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	ClerkID   string `gorm:"index;size:128"`
	Name      string `gorm:"size:255"`
	Age       int
	Gender    string `gorm:"size:32"`
	Sport     string `gorm:"size:64"`
	Height    float64
	Weight    float64
	City      string `gorm:"size:128"`
	Contact   string `gorm:"size:64"`
	CreatedAt time.Time `gorm:"index"`
}

func (athleteRow) TableName() string { return "athlete" }

func toAttemptRow(a *model.TestAttempt) attemptRow {
	return attemptRow{
		ID:                a.ID,
		UserID:            a.UserID,
		TestType:          string(a.TestType),
		VideoURL:          a.VideoURL,
		AnnotatedVideoURL: a.AnnotatedVideoURL,
		Status:            string(a.Status),
		Result:            a.Result,
		Score:             a.Score,
		Remarks:           a.Remarks,
		AssessedBy:        a.AssessedBy,
		AssessedAt:        a.AssessedAt,
		CreatedAt:         a.CreatedAt,
	}
}

func (r *attemptRow) toModel() model.TestAttempt {
	return model.TestAttempt{
		ID:                r.ID,
		UserID:            r.UserID,
		TestType:          model.TestType(r.TestType),
		VideoURL:          r.VideoURL,
		AnnotatedVideoURL: r.AnnotatedVideoURL,
		Status:            model.Status(r.Status),
		Result:            r.Result,
		Score:             r.Score,
		Remarks:           r.Remarks,
		AssessedBy:        r.AssessedBy,
		AssessedAt:        r.AssessedAt,
		CreatedAt:         r.CreatedAt,
	}
}

func toAthleteRow(a *model.AthleteProfile) athleteRow {
	return athleteRow(*a)
}

func (r *athleteRow) toModel() model.AthleteProfile {
	return model.AthleteProfile(*r)
}

// patchColumns maps the non-nil fields of p to column updates.
func patchColumns(p *model.AttemptPatch) map[string]any {
	cols := make(map[string]any)
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.Result != nil {
		cols["result"] = *p.Result
	}
	if p.AnnotatedVideoURL != nil {
		cols["annotated_video_url"] = *p.AnnotatedVideoURL
	}
	if p.Score != nil {
		cols["score"] = *p.Score
	}
	if p.Remarks != nil {
		cols["remarks"] = *p.Remarks
	}
	if p.AssessedBy != nil {
		cols["assessed_by"] = *p.AssessedBy
	}
	if p.AssessedAt != nil {
		cols["assessed_at"] = *p.AssessedAt
	}
	return cols
}

// orderClause renders the ORDER BY for q.
func orderClause(q *Query) string {
	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}
	created := "created_at " + dir + ", id " + dir
	if q.OrderBy == OrderAssessedAt {
		return "assessed_at " + dir + " NULLS LAST, " + created
	}
	return created
}

func statusStrings(ss []model.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// GormStore is a Store backed by a SQL database through gorm.
type GormStore struct {
	db          *gorm.DB
	autoMigrate bool
}

// Compile-time interface check.
var _ Store = (*GormStore)(nil)

// OpenPostgres opens a gorm handle on a PostgreSQL DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewGormStore wraps db, migrating the schema unless disabled.
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	s := &GormStore{db: db, autoMigrate: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&attemptRow{}, &athleteRow{}); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

func (s *GormStore) CreateAttempt(ctx context.Context, a model.TestAttempt) error {
	defer observe(driverPostgres, "create_attempt", time.Now())
	row := toAttemptRow(&a)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create attempt %s: %w", a.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("create attempt %s: %w", a.ID, err)
	}
	return nil
}

func (s *GormStore) GetAttempt(ctx context.Context, id string) (model.TestAttempt, error) {
	defer observe(driverPostgres, "get_attempt", time.Now())
	return s.getAttempt(s.db.WithContext(ctx), id)
}

func (s *GormStore) getAttempt(tx *gorm.DB, id string) (model.TestAttempt, error) {
	var row attemptRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.TestAttempt{}, fmt.Errorf("get attempt %s: %w", id, ErrNotFound)
		}
		return model.TestAttempt{}, fmt.Errorf("get attempt %s: %w", id, err)
	}
	return row.toModel(), nil
}

// PatchAttempt runs a guarded UPDATE and re-reads the row in one transaction.
func (s *GormStore) PatchAttempt(ctx context.Context, id string, p model.AttemptPatch) (model.TestAttempt, error) {
	defer observe(driverPostgres, "patch_attempt", time.Now())
	var out model.TestAttempt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols := patchColumns(&p)
		if len(cols) > 0 {
			q := tx.Model(&attemptRow{}).Where("id = ?", id)
			if len(p.IfStatus) > 0 {
				q = q.Where("status IN ?", statusStrings(p.IfStatus))
			}
			if p.IfResultUnset {
				q = q.Where("result IS NULL")
			}
			res := q.Updates(cols)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				current, err := s.getAttempt(tx, id)
				if err != nil {
					return err
				}
				return fmt.Errorf("attempt in status %s (result set: %t): %w", current.Status, current.Result != nil, ErrConflict)
			}
		}
		a, err := s.getAttempt(tx, id)
		if err != nil {
			return err
		}
		if len(cols) == 0 && !p.Holds(&a) {
			return fmt.Errorf("attempt in status %s: %w", a.Status, ErrConflict)
		}
		out = a
		return nil
	})
	if err != nil {
		return model.TestAttempt{}, fmt.Errorf("patch attempt %s: %w", id, err)
	}
	return out, nil
}

func (s *GormStore) ListAttempts(ctx context.Context, q Query) ([]model.TestAttempt, error) {
	defer observe(driverPostgres, "list_attempts", time.Now())
	tx := s.db.WithContext(ctx).Model(&attemptRow{})
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", statusStrings(q.Statuses))
	}
	tx = tx.Order(orderClause(&q))
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []attemptRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]model.TestAttempt, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *GormStore) DeleteAttempt(ctx context.Context, id string) error {
	defer observe(driverPostgres, "delete_attempt", time.Now())
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&attemptRow{})
	if res.Error != nil {
		return fmt.Errorf("delete attempt %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete attempt %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) PutAthlete(ctx context.Context, a model.AthleteProfile) error {
	defer observe(driverPostgres, "put_athlete", time.Now())
	if a.ID == "" {
		return fmt.Errorf("put athlete: %w: empty id", ErrInvalidRecord)
	}
	row := toAthleteRow(&a)
	// Save upserts on the primary key.
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("put athlete %s: %w", a.ID, err)
	}
	return nil
}

func (s *GormStore) ListAthletes(ctx context.Context) ([]model.AthleteProfile, error) {
	defer observe(driverPostgres, "list_athletes", time.Now())
	return s.findAthletes(s.db.WithContext(ctx))
}

func (s *GormStore) FindAthletes(ctx context.Context, userIDs []string) ([]model.AthleteProfile, error) {
	defer observe(driverPostgres, "find_athletes", time.Now())
	if len(userIDs) == 0 {
		return nil, nil
	}
	return s.findAthletes(s.db.WithContext(ctx).Where("clerk_id IN ? OR id IN ?", userIDs, userIDs))
}

func (s *GormStore) findAthletes(tx *gorm.DB) ([]model.AthleteProfile, error) {
	var rows []athleteRow
	if err := tx.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	out := make([]model.AthleteProfile, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *GormStore) CountAthletes(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&athleteRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count athletes: %w", err)
	}
	return int(n), nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
