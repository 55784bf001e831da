package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLStorage is a Store on top of database/sql. The same queries run against
// Postgres (lib/pq) and SQLite (modernc); placeholders are written as ? and
// rebound for Postgres.
type SQLStorage struct {
	db       *sql.DB
	postgres bool
}

// NewPostgresStorage connects to Postgres and applies the schema
func NewPostgresStorage(host, port, user, password, dbName, sslMode string) (*SQLStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return newSQLStorage(db, true)
}

// NewSQLiteStorage opens (or creates) a SQLite database at path.
// ":memory:" gives a private throwaway database.
func NewSQLiteStorage(path string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: an in-memory database exists per connection, and
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	return newSQLStorage(db, false)
}

func newSQLStorage(db *sql.DB, postgres bool) (*SQLStorage, error) {
	s := &SQLStorage{db: db, postgres: postgres}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}
	return s, nil
}

// Init creates necessary tables
func (s *SQLStorage) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS found_items (
		id VARCHAR(64) PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		contact TEXT NOT NULL DEFAULT '',
		image_uri TEXT NOT NULL DEFAULT '',
		found_date VARCHAR(10) NOT NULL,
		owner_email TEXT NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'Active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_found_items_created_at ON found_items(created_at);

	CREATE TABLE IF NOT EXISTS notices (
		id VARCHAR(64) PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		year TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		posted_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		id VARCHAR(64) PRIMARY KEY,
		title TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		year TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		popularity INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS study_groups (
		id VARCHAR(64) PRIMARY KEY,
		name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		meeting_time TEXT NOT NULL DEFAULT '',
		created_by_email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS study_group_members (
		group_id VARCHAR(64) NOT NULL REFERENCES study_groups(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (group_id, email)
	);

	CREATE TABLE IF NOT EXISTS events (
		id VARCHAR(64) PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		event_date VARCHAR(10) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`

	_, err := s.db.Exec(query)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches q as a literal substring under LIKE ... ESCAPE '\'
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// rebind turns ? placeholders into $n for Postgres
func (s *SQLStorage) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const itemColumns = `id, title, description, location, contact, image_uri,
	found_date, owner_email, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (models.FoundItem, error) {
	var item models.FoundItem
	var status string
	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &item.Location, &item.Contact, &item.ImageURI,
		&item.Date, &item.OwnerEmail, &status, &item.CreatedAt,
	)
	item.Status = models.ItemStatus(status)
	item.CreatedAt = item.CreatedAt.UTC()
	return item, err
}

func (s *SQLStorage) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.FoundItem, error) {
	query := `SELECT ` + itemColumns + ` FROM found_items WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Owner != "" {
		query += ` AND owner_email = ?`
		args = append(args, filter.Owner)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\')`
		like := containsPattern(q)
		args = append(args, like, like, like)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.FoundItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem retrieves an item by ID
func (s *SQLStorage) GetItem(ctx context.Context, id string) (models.FoundItem, error) {
	query := `SELECT ` + itemColumns + ` FROM found_items WHERE id = ?`

	item, err := scanItem(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.FoundItem{}, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to get item")
		return models.FoundItem{}, err
	}
	return item, nil
}

func (s *SQLStorage) CreateItem(ctx context.Context, item models.FoundItem) error {
	query := `
	INSERT INTO found_items (
		id, title, description, location, contact, image_uri,
		found_date, owner_email, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.Status == "" {
		item.Status = models.StatusActive
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		item.ID, item.Title, item.Description, item.Location, item.Contact, item.ImageURI,
		item.Date, item.OwnerEmail, string(item.Status), item.CreatedAt.UTC(), now,
	)
	if err != nil {
		log.Error().Err(err).Str("id", item.ID).Msg("Failed to save item")
		return fmt.Errorf("%w: %v", models.ErrWrite, err)
	}
	return nil
}

func (s *SQLStorage) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM found_items WHERE id = ?`), id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to delete item")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *SQLStorage) UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) (models.FoundItem, error) {
	query := `UPDATE found_items SET status = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, s.rebind(query), string(status), time.Now().UTC(), id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to update item status")
		return models.FoundItem{}, fmt.Errorf("%w: %v", models.ErrWrite, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.FoundItem{}, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return s.GetItem(ctx, id)
}

func (s *SQLStorage) ListNotices(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, error) {
	query := `SELECT id, title, content, department, year, type, posted_by, created_at
	FROM notices WHERE 1=1`
	var args []any
	if filter.Department != "" {
		query += ` AND department = ?`
		args = append(args, filter.Department)
	}
	if filter.Year != "" {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`
		args = append(args, containsPattern(q), containsPattern(q))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notices := make([]models.Notice, 0)
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Department, &n.Year, &n.Type, &n.PostedBy, &n.CreatedAt); err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

func (s *SQLStorage) CreateNotice(ctx context.Context, n models.Notice) error {
	query := `INSERT INTO notices (id, title, content, department, year, type, posted_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		n.ID, n.Title, n.Content, n.Department, n.Year, n.Type, n.PostedBy, n.CreatedAt.UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to save notice")
		return fmt.Errorf("%w: %v", models.ErrWrite, err)
	}
	return nil
}

func (s *SQLStorage) ListResources(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, error) {
	query := `SELECT id, title, subject, year, url, popularity, created_at FROM resources WHERE 1=1`
	var args []any
	if filter.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, filter.Subject)
	}
	if filter.Year != "" {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(subject) LIKE ? ESCAPE '\')`
		args = append(args, containsPattern(q), containsPattern(q))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.Title, &r.Subject, &r.Year, &r.URL, &r.Popularity, &r.CreatedAt); err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

func (s *SQLStorage) CreateResource(ctx context.Context, r models.Resource) error {
	query := `INSERT INTO resources (id, title, subject, year, url, popularity, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		r.ID, r.Title, r.Subject, r.Year, r.URL, r.Popularity, r.CreatedAt.UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to save resource")
		return fmt.Errorf("%w: %v", models.ErrWrite, err)
	}
	return nil
}

func (s *SQLStorage) ListGroups(ctx context.Context) ([]models.StudyGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, name, subject, description, meeting_time, created_by_email, created_at
	FROM study_groups
	ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}

	groups := make([]models.StudyGroup, 0)
	for rows.Next() {
		var g models.StudyGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Subject, &g.Description, &g.MeetingTime, &g.CreatedByEmail, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// members are loaded after the group cursor is closed; sqlite runs on a
	// single connection
	for i := range groups {
		members, err := s.groupMembers(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Members = members
	}
	return groups, nil
}

func (s *SQLStorage) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT email FROM study_group_members WHERE group_id = ? ORDER BY position ASC`), groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		members = append(members, email)
	}
	return members, rows.Err()
}

func (s *SQLStorage) CreateGroup(ctx context.Context, g models.StudyGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
	INSERT INTO study_groups (id, name, subject, description, meeting_time, created_by_email, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.Name, g.Subject, g.Description, g.MeetingTime, g.CreatedByEmail, g.CreatedAt.UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to save study group")
		return fmt.Errorf("%w: %v", models.ErrWrite, err)
	}

	for i, email := range g.Members {
		_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO study_group_members (group_id, email, position) VALUES (?, ?, ?)
		ON CONFLICT (group_id, email) DO NOTHING`), g.ID, email, i)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrWrite, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStorage) JoinGroup(ctx context.Context, id, email string) (models.StudyGroup, error) {
	var g models.StudyGroup
	err := s.db.QueryRowContext(ctx, s.rebind(`
	SELECT id, name, subject, description, meeting_time, created_by_email, created_at
	FROM study_groups WHERE id = ?`), id).
		Scan(&g.ID, &g.Name, &g.Subject, &g.Description, &g.MeetingTime, &g.CreatedByEmail, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StudyGroup{}, fmt.Errorf("group %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.StudyGroup{}, err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
	INSERT INTO study_group_members (group_id, email, position)
	SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM study_group_members WHERE group_id = ?
	ON CONFLICT (group_id, email) DO NOTHING`), id, email, id)
	if err != nil {
		log.Error().Err(err).Str("group_id", id).Msg("Failed to join study group")
		return models.StudyGroup{}, fmt.Errorf("%w: %v", models.ErrWrite, err)
	}

	members, err := s.groupMembers(ctx, id)
	if err != nil {
		return models.StudyGroup{}, err
	}
	g.Members = members
	return g, nil
}

func (s *SQLStorage) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, title, description, location, event_date, created_at
	FROM events
	ORDER BY event_date ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLStorage) CreateEvent(ctx context.Context, e models.Event) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
	INSERT INTO events (id, title, description, location, event_date, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.Title, e.Description, e.Location, e.Date, e.CreatedAt.UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to save event")
		return fmt.Errorf("%w: %v", models.ErrWrite, err)
	}
	return nil
}

// Ping verifies the database connection
func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
