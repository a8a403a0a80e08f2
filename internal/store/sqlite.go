package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// schemaVersion is the latest SQLite schema version.
// Bump it when adding migrations.
const schemaVersion = 1

// SQLiteStore keeps profiles and ideas in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) ideabot.db under dataPath and migrates it.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	dataPath = expandHome(dataPath)
	if err := os.MkdirAll(dataPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "ideabot.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dataPath}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS profiles (
		  id             TEXT PRIMARY KEY,
		  telegram_id    INTEGER NOT NULL UNIQUE,
		  username       TEXT NOT NULL DEFAULT '',
		  first_name     TEXT NOT NULL DEFAULT '',
		  paused         INTEGER NOT NULL DEFAULT 0,
		  confirm_mode   INTEGER NOT NULL DEFAULT 0,
		  digest_enabled INTEGER NOT NULL DEFAULT 1,
		  onboarded      INTEGER NOT NULL DEFAULT 0,
		  created_at     INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ideas (
		  id                TEXT PRIMARY KEY,
		  profile_id        TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		  input             TEXT NOT NULL,
		  transcript        TEXT NOT NULL,
		  edited_transcript TEXT,
		  category          TEXT NOT NULL,
		  edited_category   TEXT,
		  confidence        REAL NOT NULL DEFAULT 0,
		  tags_json         TEXT NOT NULL DEFAULT '[]',
		  starred           INTEGER NOT NULL DEFAULT 0,
		  archived          INTEGER NOT NULL DEFAULT 0,
		  created_at        INTEGER NOT NULL,
		  updated_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ideas_profile_created
		ON ideas(profile_id, created_at DESC)
		WHERE archived = 0;
		`
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version=%d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const profileColumns = `id, telegram_id, username, first_name, paused, confirm_mode, digest_enabled, onboarded, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*idea.Profile, error) {
	var (
		p         idea.Profile
		createdAt int64
	)
	err := row.Scan(&p.ID, &p.TelegramID, &p.Username, &p.FirstName,
		&p.Paused, &p.ConfirmMode, &p.DigestEnabled, &p.Onboarded, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// GetOrCreateProfile returns the profile for in.TelegramID, creating it on
// first contact. Username and first name are refreshed on every call.
func (s *SQLiteStore) GetOrCreateProfile(ctx context.Context, in ProfileInput) (*idea.Profile, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, telegram_id, username, first_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
		  username = excluded.username,
		  first_name = excluded.first_name
	`, uuid.NewString(), in.TelegramID, in.Username, in.FirstName, toMillis(time.Now()))
	if err != nil {
		return nil, wrap("get_or_create_profile", err)
	}

	p, err := s.GetProfile(ctx, in.TelegramID)
	return p, wrap("get_or_create_profile", err)
}

// GetProfile looks a profile up by Telegram user id.
func (s *SQLiteStore) GetProfile(ctx context.Context, telegramID int64) (*idea.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE telegram_id = ?`, telegramID)
	p, err := scanProfile(row)
	return p, wrap("get_profile", err)
}

// UpdateProfileSettings stores the chat toggles.
func (s *SQLiteStore) UpdateProfileSettings(ctx context.Context, profileID string, st idea.Settings) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET paused = ?, confirm_mode = ?, digest_enabled = ?
		WHERE id = ?
	`, st.Paused, st.ConfirmMode, st.DigestEnabled, profileID)
	return wrap("update_profile_settings", affectedOne(res, err))
}

// MarkOnboarded records that the user finished the welcome flow.
func (s *SQLiteStore) MarkOnboarded(ctx context.Context, profileID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET onboarded = 1 WHERE id = ?`, profileID)
	return wrap("mark_onboarded", affectedOne(res, err))
}

// ListDigestProfiles returns profiles that receive the weekly digest.
func (s *SQLiteStore) ListDigestProfiles(ctx context.Context) ([]*idea.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE digest_enabled = 1 ORDER BY created_at`)
	if err != nil {
		return nil, wrap("list_digest_profiles", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*idea.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, wrap("list_digest_profiles", err)
		}
		out = append(out, p)
	}
	return out, wrap("list_digest_profiles", rows.Err())
}

const ideaColumns = `id, profile_id, input, transcript, edited_transcript, category, edited_category,
	confidence, tags_json, starred, archived, created_at, updated_at`

func scanIdea(row interface{ Scan(...any) error }) (*idea.Idea, error) {
	var (
		i                    idea.Idea
		input, tagsJSON      string
		editedText, editedCt sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&i.ID, &i.ProfileID, &input, &i.Transcript, &editedText, &i.Category, &editedCt,
		&i.Confidence, &tagsJSON, &i.Starred, &i.Archived, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	i.Input = idea.InputKind(input)
	if editedText.Valid {
		i.EditedTranscript = &editedText.String
	}
	if editedCt.Valid {
		i.EditedCategory = &editedCt.String
	}
	if err := json.Unmarshal([]byte(tagsJSON), &i.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags for %s: %w", i.ID, err)
	}
	i.CreatedAt = fromMillis(createdAt)
	i.UpdatedAt = fromMillis(updatedAt)
	return &i, nil
}

func (s *SQLiteStore) queryIdeas(ctx context.Context, op, where string, args ...any) ([]*idea.Idea, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE `+where, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []*idea.Idea{}
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, i)
	}
	return out, wrap(op, rows.Err())
}

// CreateIdea persists a new idea with a fresh ULID.
func (s *SQLiteStore) CreateIdea(ctx context.Context, in NewIdea) (*idea.Idea, error) {
	if err := validateNewIdea(in); err != nil {
		return nil, wrap("create_idea", err)
	}

	tags := idea.NormalizeTags(in.Tags)
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, wrap("create_idea", err)
	}

	now := time.Now()
	i := &idea.Idea{
		ID:         newIdeaID(),
		ProfileID:  in.ProfileID,
		Input:      in.Input,
		Transcript: in.Transcript,
		Category:   in.Category,
		Confidence: in.Confidence,
		Tags:       tags,
		CreatedAt:  fromMillis(toMillis(now)),
		UpdatedAt:  fromMillis(toMillis(now)),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ideas (id, profile_id, input, transcript, category, confidence, tags_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, i.ProfileID, string(i.Input), i.Transcript, i.Category, i.Confidence, string(tagsJSON),
		toMillis(now), toMillis(now))
	if err != nil {
		return nil, wrap("create_idea", err)
	}

	return i, nil
}

// GetIdea returns one idea owned by profileID.
func (s *SQLiteStore) GetIdea(ctx context.Context, profileID, id string) (*idea.Idea, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = ? AND profile_id = ? AND archived = 0`, id, profileID)
	i, err := scanIdea(row)
	return i, wrap("get_idea", err)
}

// RecentIdeas returns a newest-first page.
func (s *SQLiteStore) RecentIdeas(ctx context.Context, profileID string, offset, limit int) ([]*idea.Idea, error) {
	return s.queryIdeas(ctx, "recent_ideas",
		`profile_id = ? AND archived = 0 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		profileID, limit, max(offset, 0))
}

// CountIdeas counts a profile's live ideas.
func (s *SQLiteStore) CountIdeas(ctx context.Context, profileID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas WHERE profile_id = ? AND archived = 0`, profileID).Scan(&n)
	return n, wrap("count_ideas", err)
}

// SearchIdeas matches query against the displayed text, category and tags.
func (s *SQLiteStore) SearchIdeas(ctx context.Context, profileID, query string, limit int) ([]*idea.Idea, error) {
	pattern := likePattern(query)
	return s.queryIdeas(ctx, "search_ideas", `
		profile_id = ? AND archived = 0 AND (
		  COALESCE(edited_transcript, transcript) LIKE ? ESCAPE '\' OR
		  COALESCE(edited_category, category) LIKE ? ESCAPE '\' OR
		  tags_json LIKE ? ESCAPE '\'
		)
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		profileID, pattern, pattern, pattern, limit)
}

// IdeasByCategory matches the displayed category case-insensitively.
func (s *SQLiteStore) IdeasByCategory(ctx context.Context, profileID, category string, limit int) ([]*idea.Idea, error) {
	return s.queryIdeas(ctx, "ideas_by_category", `
		profile_id = ? AND archived = 0 AND LOWER(COALESCE(edited_category, category)) = LOWER(?)
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		profileID, strings.TrimSpace(category), limit)
}

// StarredIdeas returns starred ideas newest-first.
func (s *SQLiteStore) StarredIdeas(ctx context.Context, profileID string, limit int) ([]*idea.Idea, error) {
	return s.queryIdeas(ctx, "starred_ideas",
		`profile_id = ? AND archived = 0 AND starred = 1 ORDER BY created_at DESC, id DESC LIMIT ?`,
		profileID, limit)
}

// IdeasSince returns ideas created at or after since, oldest first.
func (s *SQLiteStore) IdeasSince(ctx context.Context, profileID string, since time.Time) ([]*idea.Idea, error) {
	return s.queryIdeas(ctx, "ideas_since",
		`profile_id = ? AND archived = 0 AND created_at >= ? ORDER BY created_at ASC, id ASC`,
		profileID, toMillis(since))
}

// UpdateIdea applies u to a live idea and returns the result. Archiving is
// allowed; the returned idea then has Archived set.
func (s *SQLiteStore) UpdateIdea(ctx context.Context, profileID, id string, u Update) (*idea.Idea, error) {
	if u.Empty() {
		return s.GetIdea(ctx, profileID, id)
	}

	sets := []string{"updated_at = ?"}
	args := []any{toMillis(time.Now())}

	if u.EditedTranscript != nil {
		sets = append(sets, "edited_transcript = ?")
		args = append(args, *u.EditedTranscript)
	}
	if u.EditedCategory != nil {
		sets = append(sets, "edited_category = ?")
		args = append(args, *u.EditedCategory)
	}
	if u.Starred != nil {
		sets = append(sets, "starred = ?")
		args = append(args, *u.Starred)
	}
	if u.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, *u.Archived)
	}
	if u.Tags != nil {
		data, err := json.Marshal(idea.NormalizeTags(u.Tags))
		if err != nil {
			return nil, wrap("update_idea", err)
		}
		sets = append(sets, "tags_json = ?")
		args = append(args, string(data))
	}

	args = append(args, id, profileID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE ideas SET `+strings.Join(sets, ", ")+` WHERE id = ? AND profile_id = ? AND archived = 0`, args...)
	if err := affectedOne(res, err); err != nil {
		return nil, wrap("update_idea", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = ? AND profile_id = ?`, id, profileID)
	i, err := scanIdea(row)
	return i, wrap("update_idea", err)
}

// Stats aggregates a profile's live ideas. ThisPeriod counts ideas created
// at or after since.
func (s *SQLiteStore) Stats(ctx context.Context, profileID string, since time.Time) (*idea.Stats, error) {
	st := &idea.Stats{TopCategories: []idea.CategoryCount{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(starred), 0),
		       COALESCE(SUM(CASE WHEN input = 'voice' THEN 1 ELSE 0 END), 0)
		FROM ideas WHERE profile_id = ? AND archived = 0
	`, toMillis(since), profileID).Scan(&st.Total, &st.ThisPeriod, &st.Starred, &st.Voice)
	if err != nil {
		return nil, wrap("stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(edited_category, category) AS c, COUNT(*) AS n
		FROM ideas WHERE profile_id = ? AND archived = 0
		GROUP BY c ORDER BY n DESC, c ASC LIMIT ?
	`, profileID, topCategoryLimit)
	if err != nil {
		return nil, wrap("stats", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cc idea.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, wrap("stats", err)
		}
		st.TopCategories = append(st.TopCategories, cc)
	}
	return st, wrap("stats", rows.Err())
}

// Categories returns the profile's categories, most used first.
func (s *SQLiteStore) Categories(ctx context.Context, profileID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(edited_category, category) AS c
		FROM ideas WHERE profile_id = ? AND archived = 0
		GROUP BY c ORDER BY COUNT(*) DESC, MAX(created_at) DESC
	`, profileID)
	if err != nil {
		return nil, wrap("categories", err)
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, wrap("categories", err)
		}
		out = append(out, c)
	}
	return out, wrap("categories", rows.Err())
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
