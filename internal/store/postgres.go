package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/alekspetrov/ideabot/internal/idea"
)

type profileModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	TelegramID    int64     `gorm:"uniqueIndex;not null"`
	Username      string    `gorm:"not null;default:''"`
	FirstName     string    `gorm:"not null;default:''"`
	Paused        bool      `gorm:"not null;default:false"`
	ConfirmMode   bool      `gorm:"not null;default:false"`
	DigestEnabled bool      `gorm:"not null;default:true"`
	Onboarded     bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (profileModel) TableName() string { return "profiles" }

func (m *profileModel) toDomain() *idea.Profile {
	return &idea.Profile{
		ID:            m.ID,
		TelegramID:    m.TelegramID,
		Username:      m.Username,
		FirstName:     m.FirstName,
		Paused:        m.Paused,
		ConfirmMode:   m.ConfirmMode,
		DigestEnabled: m.DigestEnabled,
		Onboarded:     m.Onboarded,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type ideaModel struct {
	ID               string                      `gorm:"type:char(26);primaryKey"`
	ProfileID        string                      `gorm:"type:uuid;not null;index:idx_ideas_profile_created,priority:1"`
	Input            string                      `gorm:"type:varchar(8);not null"`
	Transcript       string                      `gorm:"type:text;not null"`
	EditedTranscript *string                     `gorm:"type:text"`
	Category         string                      `gorm:"not null"`
	EditedCategory   *string                     ``
	Confidence       float64                     `gorm:"not null;default:0"`
	Tags             datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	Starred          bool                        `gorm:"not null;default:false"`
	Archived         bool                        `gorm:"not null;default:false"`
	CreatedAt        time.Time                   `gorm:"not null;index:idx_ideas_profile_created,priority:2,sort:desc"`
	UpdatedAt        time.Time                   `gorm:"not null"`
}

func (ideaModel) TableName() string { return "ideas" }

func (m *ideaModel) toDomain() *idea.Idea {
	tags := []string(m.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &idea.Idea{
		ID:               m.ID,
		ProfileID:        m.ProfileID,
		Input:            idea.InputKind(m.Input),
		Transcript:       m.Transcript,
		EditedTranscript: m.EditedTranscript,
		Category:         m.Category,
		EditedCategory:   m.EditedCategory,
		Confidence:       m.Confidence,
		Tags:             tags,
		Starred:          m.Starred,
		Archived:         m.Archived,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

func ideasToDomain(models []ideaModel) []*idea.Idea {
	out := make([]*idea.Idea, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out
}

// PostgresStore keeps profiles and ideas in PostgreSQL through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to dsn and auto-migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&profileModel{}, &ideaModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetOrCreateProfile upserts on telegram_id and returns the row.
func (s *PostgresStore) GetOrCreateProfile(ctx context.Context, in ProfileInput) (*idea.Profile, error) {
	m := profileModel{
		ID:            uuid.NewString(),
		TelegramID:    in.TelegramID,
		Username:      in.Username,
		FirstName:     in.FirstName,
		DigestEnabled: true,
		CreatedAt:     time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name"}),
	}).Create(&m).Error
	if err != nil {
		return nil, wrap("get_or_create_profile", err)
	}

	p, err := s.GetProfile(ctx, in.TelegramID)
	return p, wrap("get_or_create_profile", err)
}

// GetProfile looks a profile up by Telegram user id.
func (s *PostgresStore) GetProfile(ctx context.Context, telegramID int64) (*idea.Profile, error) {
	var m profileModel
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&m).Error; err != nil {
		return nil, wrap("get_profile", gormErr(err))
	}
	return m.toDomain(), nil
}

// UpdateProfileSettings stores the chat toggles.
func (s *PostgresStore) UpdateProfileSettings(ctx context.Context, profileID string, st idea.Settings) error {
	res := s.db.WithContext(ctx).Model(&profileModel{}).Where("id = ?", profileID).Updates(map[string]any{
		"paused":         st.Paused,
		"confirm_mode":   st.ConfirmMode,
		"digest_enabled": st.DigestEnabled,
	})
	return wrap("update_profile_settings", rowsAffected(res))
}

// MarkOnboarded records that the user finished the welcome flow.
func (s *PostgresStore) MarkOnboarded(ctx context.Context, profileID string) error {
	res := s.db.WithContext(ctx).Model(&profileModel{}).Where("id = ?", profileID).Update("onboarded", true)
	return wrap("mark_onboarded", rowsAffected(res))
}

// ListDigestProfiles returns profiles that receive the weekly digest.
func (s *PostgresStore) ListDigestProfiles(ctx context.Context) ([]*idea.Profile, error) {
	var models []profileModel
	if err := s.db.WithContext(ctx).Where("digest_enabled = ?", true).Order("created_at").Find(&models).Error; err != nil {
		return nil, wrap("list_digest_profiles", err)
	}
	out := make([]*idea.Profile, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

// live scopes a query to the profile's unarchived ideas.
func (s *PostgresStore) live(ctx context.Context, profileID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&ideaModel{}).
		Where("profile_id = ? AND archived = ?", profileID, false)
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

// CreateIdea persists a new idea with a fresh ULID.
func (s *PostgresStore) CreateIdea(ctx context.Context, in NewIdea) (*idea.Idea, error) {
	if err := validateNewIdea(in); err != nil {
		return nil, wrap("create_idea", err)
	}

	now := time.Now().UTC()
	m := ideaModel{
		ID:         newIdeaID(),
		ProfileID:  in.ProfileID,
		Input:      string(in.Input),
		Transcript: in.Transcript,
		Category:   in.Category,
		Confidence: in.Confidence,
		Tags:       datatypes.JSONSlice[string](idea.NormalizeTags(in.Tags)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, wrap("create_idea", err)
	}
	return m.toDomain(), nil
}

// GetIdea returns one idea owned by profileID.
func (s *PostgresStore) GetIdea(ctx context.Context, profileID, id string) (*idea.Idea, error) {
	var m ideaModel
	if err := s.live(ctx, profileID).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, wrap("get_idea", gormErr(err))
	}
	return m.toDomain(), nil
}

// RecentIdeas returns a newest-first page.
func (s *PostgresStore) RecentIdeas(ctx context.Context, profileID string, offset, limit int) ([]*idea.Idea, error) {
	var models []ideaModel
	err := newestFirst(s.live(ctx, profileID)).Offset(max(offset, 0)).Limit(limit).Find(&models).Error
	if err != nil {
		return nil, wrap("recent_ideas", err)
	}
	return ideasToDomain(models), nil
}

// CountIdeas counts a profile's live ideas.
func (s *PostgresStore) CountIdeas(ctx context.Context, profileID string) (int, error) {
	var n int64
	if err := s.live(ctx, profileID).Count(&n).Error; err != nil {
		return 0, wrap("count_ideas", err)
	}
	return int(n), nil
}

// SearchIdeas matches query against the displayed text, category and tags.
func (s *PostgresStore) SearchIdeas(ctx context.Context, profileID, query string, limit int) ([]*idea.Idea, error) {
	pattern := likePattern(query)
	var models []ideaModel
	err := newestFirst(s.live(ctx, profileID).Where(
		"COALESCE(edited_transcript, transcript) ILIKE ? OR COALESCE(edited_category, category) ILIKE ? OR tags::text ILIKE ?",
		pattern, pattern, pattern,
	)).Limit(limit).Find(&models).Error
	if err != nil {
		return nil, wrap("search_ideas", err)
	}
	return ideasToDomain(models), nil
}

// IdeasByCategory matches the displayed category case-insensitively.
func (s *PostgresStore) IdeasByCategory(ctx context.Context, profileID, category string, limit int) ([]*idea.Idea, error) {
	var models []ideaModel
	err := newestFirst(s.live(ctx, profileID).
		Where("LOWER(COALESCE(edited_category, category)) = LOWER(?)", strings.TrimSpace(category))).
		Limit(limit).Find(&models).Error
	if err != nil {
		return nil, wrap("ideas_by_category", err)
	}
	return ideasToDomain(models), nil
}

// StarredIdeas returns starred ideas newest-first.
func (s *PostgresStore) StarredIdeas(ctx context.Context, profileID string, limit int) ([]*idea.Idea, error) {
	var models []ideaModel
	err := newestFirst(s.live(ctx, profileID).Where("starred = ?", true)).Limit(limit).Find(&models).Error
	if err != nil {
		return nil, wrap("starred_ideas", err)
	}
	return ideasToDomain(models), nil
}

// IdeasSince returns ideas created at or after since, oldest first.
func (s *PostgresStore) IdeasSince(ctx context.Context, profileID string, since time.Time) ([]*idea.Idea, error) {
	var models []ideaModel
	err := s.live(ctx, profileID).Where("created_at >= ?", since.UTC()).
		Order("created_at ASC").Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, wrap("ideas_since", err)
	}
	return ideasToDomain(models), nil
}

// UpdateIdea applies u to a live idea and returns the result.
func (s *PostgresStore) UpdateIdea(ctx context.Context, profileID, id string, u Update) (*idea.Idea, error) {
	if u.Empty() {
		return s.GetIdea(ctx, profileID, id)
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if u.EditedTranscript != nil {
		fields["edited_transcript"] = *u.EditedTranscript
	}
	if u.EditedCategory != nil {
		fields["edited_category"] = *u.EditedCategory
	}
	if u.Starred != nil {
		fields["starred"] = *u.Starred
	}
	if u.Archived != nil {
		fields["archived"] = *u.Archived
	}
	if u.Tags != nil {
		fields["tags"] = datatypes.JSONSlice[string](idea.NormalizeTags(u.Tags))
	}

	res := s.live(ctx, profileID).Where("id = ?", id).Updates(fields)
	if err := rowsAffected(res); err != nil {
		return nil, wrap("update_idea", err)
	}

	var m ideaModel
	if err := s.db.WithContext(ctx).Where("id = ? AND profile_id = ?", id, profileID).First(&m).Error; err != nil {
		return nil, wrap("update_idea", gormErr(err))
	}
	return m.toDomain(), nil
}

// Stats aggregates a profile's live ideas.
func (s *PostgresStore) Stats(ctx context.Context, profileID string, since time.Time) (*idea.Stats, error) {
	var row struct {
		Total      int
		ThisPeriod int
		Starred    int
		Voice      int
	}
	err := s.live(ctx, profileID).Select(
		"COUNT(*) AS total, "+
			"COUNT(*) FILTER (WHERE created_at >= ?) AS this_period, "+
			"COUNT(*) FILTER (WHERE starred) AS starred, "+
			"COUNT(*) FILTER (WHERE input = 'voice') AS voice",
		since.UTC(),
	).Scan(&row).Error
	if err != nil {
		return nil, wrap("stats", err)
	}

	top := []idea.CategoryCount{}
	err = s.live(ctx, profileID).
		Select("COALESCE(edited_category, category) AS category, COUNT(*) AS count").
		Group("COALESCE(edited_category, category)").
		Order("count DESC").Order("category ASC").
		Limit(topCategoryLimit).Scan(&top).Error
	if err != nil {
		return nil, wrap("stats", err)
	}

	return &idea.Stats{
		Total:         row.Total,
		ThisPeriod:    row.ThisPeriod,
		Starred:       row.Starred,
		Voice:         row.Voice,
		TopCategories: top,
	}, nil
}

// Categories returns the profile's categories, most used first.
func (s *PostgresStore) Categories(ctx context.Context, profileID string) ([]string, error) {
	out := []string{}
	err := s.live(ctx, profileID).
		Group("COALESCE(edited_category, category)").
		Order("COUNT(*) DESC").Order("MAX(created_at) DESC").
		Pluck("COALESCE(edited_category, category)", &out).Error
	if err != nil {
		return nil, wrap("categories", err)
	}
	return out, nil
}

func rowsAffected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
