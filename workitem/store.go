package workitem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repo is the entity store: keyed CRUD over items, sprints, comments and
// history. Implementations run either directly against the database or
// inside a transaction handed out by Store.InTx.
type Repo interface {
	// CreateItem persists a new item and sets its ID, Number and Version.
	CreateItem(ctx context.Context, w *WorkItem) error
	GetItem(ctx context.Context, id int64) (*WorkItem, error)
	ListItems(ctx context.Context, f Filter) ([]*WorkItem, error)
	// UpdateItem saves w if its Version matches the stored one, then bumps
	// w.Version. A mismatch yields ErrConflict.
	UpdateItem(ctx context.Context, w *WorkItem) error
	// DeleteItem removes an item together with its comments and history.
	DeleteItem(ctx context.Context, id int64) error
	ItemExists(ctx context.Context, id int64) (bool, error)
	CountItems(ctx context.Context, f Filter) (int, error)
	// CountItemsBy groups matching items by status, priority or category.
	CountItemsBy(ctx context.Context, by GroupBy, f Filter) (map[string]int, error)
	// TouchItem refreshes updated_at without other changes.
	TouchItem(ctx context.Context, id int64, at time.Time) error

	CreateSprint(ctx context.Context, s *Sprint) error
	GetSprint(ctx context.Context, id int64) (*Sprint, error)
	ListSprints(ctx context.Context, f SprintFilter) ([]*Sprint, error)
	UpdateSprint(ctx context.Context, s *Sprint) error
	// DeleteSprint removes a sprint and its comments and detaches its items.
	DeleteSprint(ctx context.Context, id int64) error
	SprintExists(ctx context.Context, id int64) (bool, error)
	TouchSprint(ctx context.Context, id int64, at time.Time) error

	CreateComment(ctx context.Context, c *Comment) error
	// ListComments returns an owner's comments, newest first.
	ListComments(ctx context.Context, owner Owner) ([]*Comment, error)

	// AppendHistory inserts entries and sets their IDs.
	AppendHistory(ctx context.Context, entries []*HistoryEntry) error
	// ListHistory returns an item's history, newest first.
	ListHistory(ctx context.Context, itemID int64) ([]*HistoryEntry, error)
}

// Store is a Repo that can open a transactional scope.
type Store interface {
	Repo
	// InTx runs fn against a transactional Repo. The transaction commits
	// when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Repo) error) error
	Close() error
}

// GroupBy names a column CountItemsBy may group on.
type GroupBy string

const (
	GroupByStatus   GroupBy = "status"
	GroupByPriority GroupBy = "priority"
	GroupByCategory GroupBy = "category"
)

// Filter controls which items are returned by ListItems and counted by
// CountItems. Zero fields do not constrain.
type Filter struct {
	Status        *Status    `json:"status,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	Category      *Category  `json:"category,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	Requester     string     `json:"requester,omitempty"`
	SprintID      *int64     `json:"sprint_id,omitempty"`
	NoSprint      bool       `json:"no_sprint,omitempty"`
	DueBefore     *time.Time `json:"due_before,omitempty"`
	DueAfter      *time.Time `json:"due_after,omitempty"`
	HasDueDate    bool       `json:"has_due_date,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	ExternalRef   string     `json:"external_ref,omitempty"`
	// Search is a case-insensitive substring match on number, title and description.
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS sprints (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	goal        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	start_date  DATETIME,
	end_date    DATETIME,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	number       TEXT UNIQUE,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	priority     TEXT NOT NULL,
	category     TEXT NOT NULL,
	assignee     TEXT NOT NULL DEFAULT '',
	requester    TEXT NOT NULL DEFAULT '',
	due_date     DATETIME,
	sprint_id    INTEGER REFERENCES sprints(id) ON DELETE SET NULL,
	external_ref TEXT NOT NULL DEFAULT '',
	version      INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	resolved_at  DATETIME
);

CREATE TABLE IF NOT EXISTS comments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER REFERENCES items(id) ON DELETE CASCADE,
	sprint_id  INTEGER REFERENCES sprints(id) ON DELETE CASCADE,
	author     TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	CHECK ((item_id IS NULL) <> (sprint_id IS NULL))
);

CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	field      TEXT NOT NULL,
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	changed_by TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	changed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_priority ON items(priority);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
CREATE INDEX IF NOT EXISTS idx_items_assignee ON items(assignee);
CREATE INDEX IF NOT EXISTS idx_items_sprint ON items(sprint_id);
CREATE INDEX IF NOT EXISTS idx_items_due ON items(due_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_items_external_ref ON items(external_ref) WHERE external_ref <> '';
CREATE INDEX IF NOT EXISTS idx_comments_item ON comments(item_id);
CREATE INDEX IF NOT EXISTS idx_comments_sprint ON comments(sprint_id);
CREATE INDEX IF NOT EXISTS idx_history_item ON history(item_id);
`

// DefaultNumberPrefix is prepended to item ids to form ticket numbers.
const DefaultNumberPrefix = "WI"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo implements Repo over a queryer.
type repo struct {
	q      queryer
	prefix string
}

// SQLiteStore persists the tracker in a SQLite database.
type SQLiteStore struct {
	repo
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. prefix is used for ticket numbers; empty selects
// DefaultNumberPrefix. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath, prefix string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY; also keeps the pragma below on the only connection
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return &SQLiteStore{repo: repo{q: db, prefix: prefix}, db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// InTx implements Store.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Repo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Persistence("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&repo{q: tx, prefix: s.prefix}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return Persistence("commit transaction", err)
	}
	return nil
}

// --- items ---

const itemColumns = `id, number, title, description, status, priority, category, assignee, requester,
	due_date, sprint_id, external_ref, version, created_at, updated_at, resolved_at`

func (r *repo) CreateItem(ctx context.Context, w *WorkItem) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO items
			(title, description, status, priority, category, assignee, requester,
			 due_date, sprint_id, external_ref, version, created_at, updated_at, resolved_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.Title, w.Description, string(w.Status), string(w.Priority), string(w.Category),
		w.Assignee, w.Requester,
		nullTime(w.DueDate), nullInt(w.SprintID), w.ExternalRef, 1,
		w.CreatedAt.UTC(), w.UpdatedAt.UTC(), nullTime(w.ResolvedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Conflictf("create item", "external reference %q already imported", w.ExternalRef)
		}
		return Persistence("insert item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Persistence("insert item", err)
	}
	number := r.prefix + "-" + strconv.FormatInt(id, 10)
	if _, err := r.q.ExecContext(ctx, `UPDATE items SET number = ? WHERE id = ?`, number, id); err != nil {
		return Persistence("assign item number", err)
	}
	w.ID = id
	w.Number = number
	w.Version = 1
	return nil
}

func (r *repo) GetItem(ctx context.Context, id int64) (*WorkItem, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	w, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundf("get item", "work item %d not found", id)
	}
	if err != nil {
		return nil, Persistence("get item", err)
	}
	return w, nil
}

func (r *repo) ListItems(ctx context.Context, f Filter) ([]*WorkItem, error) {
	where, args := itemWhere(f)
	q := strings.Builder{}
	q.WriteString(`SELECT ` + itemColumns + ` FROM items` + where)
	q.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", f.Limit))
		if f.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", f.Offset))
		}
	}

	rows, err := r.q.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, Persistence("list items", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*WorkItem
	for rows.Next() {
		w, err := scanItem(rows)
		if err != nil {
			return nil, Persistence("scan item", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, Persistence("list items", err)
	}
	return items, nil
}

func (r *repo) UpdateItem(ctx context.Context, w *WorkItem) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE items SET
			title=?, description=?, status=?, priority=?, category=?, assignee=?, requester=?,
			due_date=?, sprint_id=?, external_ref=?, updated_at=?, resolved_at=?,
			version=version+1
		WHERE id=? AND version=?`,
		w.Title, w.Description, string(w.Status), string(w.Priority), string(w.Category),
		w.Assignee, w.Requester,
		nullTime(w.DueDate), nullInt(w.SprintID), w.ExternalRef,
		w.UpdatedAt.UTC(), nullTime(w.ResolvedAt),
		w.ID, w.Version,
	)
	if err != nil {
		return Persistence("update item", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return Persistence("update item", err)
	}
	if rows == 0 {
		exists, err := r.ItemExists(ctx, w.ID)
		if err != nil {
			return err
		}
		if !exists {
			return NotFoundf("update item", "work item %d not found", w.ID)
		}
		return Conflictf("update item", "work item %d was modified concurrently (version %d is stale)", w.ID, w.Version)
	}
	w.Version++
	return nil
}

func (r *repo) DeleteItem(ctx context.Context, id int64) error {
	exists, err := r.ItemExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return NotFoundf("delete item", "work item %d not found", id)
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM comments WHERE item_id = ?`, id); err != nil {
		return Persistence("delete item comments", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM history WHERE item_id = ?`, id); err != nil {
		return Persistence("delete item history", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return Persistence("delete item", err)
	}
	return nil
}

func (r *repo) ItemExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "items", id)
}

func (r *repo) CountItems(ctx context.Context, f Filter) (int, error) {
	where, args := itemWhere(f)
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&n); err != nil {
		return 0, Persistence("count items", err)
	}
	return n, nil
}

func (r *repo) CountItemsBy(ctx context.Context, by GroupBy, f Filter) (map[string]int, error) {
	switch by {
	case GroupByStatus, GroupByPriority, GroupByCategory:
	default:
		return nil, Invalid("count items", "group_by", "unsupported column "+string(by))
	}
	where, args := itemWhere(f)
	col := string(by)
	rows, err := r.q.QueryContext(ctx, `SELECT `+col+`, COUNT(*) FROM items`+where+` GROUP BY `+col, args...)
	if err != nil {
		return nil, Persistence("count items", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, Persistence("scan item count", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, Persistence("count items", err)
	}
	return counts, nil
}

func (r *repo) TouchItem(ctx context.Context, id int64, at time.Time) error {
	return r.touch(ctx, "items", id, at)
}

// itemWhere renders f as a WHERE clause (with leading space) and its args.
func itemWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if f.Status != nil {
		add("status = ?", string(*f.Status))
	}
	if f.Priority != nil {
		add("priority = ?", string(*f.Priority))
	}
	if f.Category != nil {
		add("category = ?", string(*f.Category))
	}
	if f.Assignee != "" {
		add("assignee = ?", f.Assignee)
	}
	if f.Requester != "" {
		add("requester = ?", f.Requester)
	}
	if f.SprintID != nil {
		add("sprint_id = ?", *f.SprintID)
	}
	if f.NoSprint {
		add("sprint_id IS NULL")
	}
	if f.HasDueDate {
		add("due_date IS NOT NULL")
	}
	if f.DueBefore != nil {
		add("due_date < ?", f.DueBefore.UTC())
	}
	if f.DueAfter != nil {
		add("due_date >= ?", f.DueAfter.UTC())
	}
	if f.CreatedAfter != nil {
		add("created_at >= ?", f.CreatedAfter.UTC())
	}
	if f.CreatedBefore != nil {
		add("created_at < ?", f.CreatedBefore.UTC())
	}
	if f.ExternalRef != "" {
		add("external_ref = ?", f.ExternalRef)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		add(`(LOWER(number) LIKE ? ESCAPE '\' OR LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// --- sprints ---

const sprintColumns = `id, name, goal, status, start_date, end_date, created_at, updated_at`

func (r *repo) CreateSprint(ctx context.Context, s *Sprint) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO sprints (name, goal, status, start_date, end_date, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		s.Name, s.Goal, string(s.Status),
		nullTime(s.StartDate), nullTime(s.EndDate),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return Persistence("insert sprint", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Persistence("insert sprint", err)
	}
	s.ID = id
	return nil
}

func (r *repo) GetSprint(ctx context.Context, id int64) (*Sprint, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id)
	s, err := scanSprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundf("get sprint", "sprint %d not found", id)
	}
	if err != nil {
		return nil, Persistence("get sprint", err)
	}
	return s, nil
}

func (r *repo) ListSprints(ctx context.Context, f SprintFilter) ([]*Sprint, error) {
	q := `SELECT ` + sprintColumns + ` FROM sprints`
	var args []any
	if f.Status != nil {
		q += ` WHERE status = ?`
		args = append(args, string(*f.Status))
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, Persistence("list sprints", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, Persistence("scan sprint", err)
		}
		sprints = append(sprints, s)
	}
	if err := rows.Err(); err != nil {
		return nil, Persistence("list sprints", err)
	}
	return sprints, nil
}

func (r *repo) UpdateSprint(ctx context.Context, s *Sprint) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sprints SET name=?, goal=?, status=?, start_date=?, end_date=?, updated_at=?
		WHERE id=?`,
		s.Name, s.Goal, string(s.Status),
		nullTime(s.StartDate), nullTime(s.EndDate), s.UpdatedAt.UTC(),
		s.ID,
	)
	if err != nil {
		return Persistence("update sprint", err)
	}
	return rowsOrNotFound(res, "update sprint", "sprint %d not found", s.ID)
}

func (r *repo) DeleteSprint(ctx context.Context, id int64) error {
	exists, err := r.SprintExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return NotFoundf("delete sprint", "sprint %d not found", id)
	}

	if _, err := r.q.ExecContext(ctx, `UPDATE items SET sprint_id = NULL WHERE sprint_id = ?`, id); err != nil {
		return Persistence("detach sprint items", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM comments WHERE sprint_id = ?`, id); err != nil {
		return Persistence("delete sprint comments", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sprints WHERE id = ?`, id); err != nil {
		return Persistence("delete sprint", err)
	}
	return nil
}

func (r *repo) SprintExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "sprints", id)
}

func (r *repo) TouchSprint(ctx context.Context, id int64, at time.Time) error {
	return r.touch(ctx, "sprints", id, at)
}

// --- comments ---

func (r *repo) CreateComment(ctx context.Context, c *Comment) error {
	if (c.ItemID == nil) == (c.SprintID == nil) {
		return Invalid("create comment", "owner", "exactly one of item and sprint must be set")
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO comments (item_id, sprint_id, author, content, created_at)
		VALUES (?,?,?,?,?)`,
		nullInt(c.ItemID), nullInt(c.SprintID), c.Author, c.Content, c.CreatedAt.UTC(),
	)
	if err != nil {
		return Persistence("insert comment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Persistence("insert comment", err)
	}
	c.ID = id
	return nil
}

func (r *repo) ListComments(ctx context.Context, owner Owner) ([]*Comment, error) {
	col := "item_id"
	if owner.Kind == OwnerSprint {
		col = "sprint_id"
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, item_id, sprint_id, author, content, created_at
		FROM comments WHERE `+col+` = ?
		ORDER BY created_at DESC, id DESC`, owner.ID)
	if err != nil {
		return nil, Persistence("list comments", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*Comment
	for rows.Next() {
		var c Comment
		var itemID, sprintID sql.NullInt64
		if err := rows.Scan(&c.ID, &itemID, &sprintID, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			return nil, Persistence("scan comment", err)
		}
		c.ItemID = intPtr(itemID)
		c.SprintID = intPtr(sprintID)
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, Persistence("list comments", err)
	}
	return comments, nil
}

// --- history ---

func (r *repo) AppendHistory(ctx context.Context, entries []*HistoryEntry) error {
	for _, h := range entries {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO history (item_id, field, old_value, new_value, changed_by, reason, changed_at)
			VALUES (?,?,?,?,?,?,?)`,
			h.ItemID, h.Field, h.OldValue, h.NewValue, h.ChangedBy, h.Reason, h.ChangedAt.UTC(),
		)
		if err != nil {
			return Persistence("insert history", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Persistence("insert history", err)
		}
		h.ID = id
	}
	return nil
}

func (r *repo) ListHistory(ctx context.Context, itemID int64) ([]*HistoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, item_id, field, old_value, new_value, changed_by, reason, changed_at
		FROM history WHERE item_id = ?
		ORDER BY changed_at DESC, id DESC`, itemID)
	if err != nil {
		return nil, Persistence("list history", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.ItemID, &h.Field, &h.OldValue, &h.NewValue, &h.ChangedBy, &h.Reason, &h.ChangedAt); err != nil {
			return nil, Persistence("scan history", err)
		}
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, Persistence("list history", err)
	}
	return entries, nil
}

// --- helpers ---

// table is always a package constant, never caller input.
func (r *repo) exists(ctx context.Context, table string, id int64) (bool, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n); err != nil {
		return false, Persistence("check "+table, err)
	}
	return n > 0, nil
}

func (r *repo) touch(ctx context.Context, table string, id int64, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE `+table+` SET updated_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return Persistence("touch "+table, err)
	}
	return rowsOrNotFound(res, "touch "+table, "%s %d not found", strings.TrimSuffix(table, "s"), id)
}

func rowsOrNotFound(res sql.Result, op, format string, args ...any) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return Persistence(op, err)
	}
	if rows == 0 {
		return NotFoundf(op, format, args...)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*WorkItem, error) {
	var w WorkItem
	var number sql.NullString
	var status, priority, category string
	var dueDate, resolvedAt sql.NullTime
	var sprintID sql.NullInt64

	err := s.Scan(
		&w.ID, &number, &w.Title, &w.Description, &status, &priority, &category,
		&w.Assignee, &w.Requester,
		&dueDate, &sprintID, &w.ExternalRef, &w.Version,
		&w.CreatedAt, &w.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Number = number.String
	w.Status = Status(status)
	w.Priority = Priority(priority)
	w.Category = Category(category)
	w.DueDate = timePtr(dueDate)
	w.SprintID = intPtr(sprintID)
	w.ResolvedAt = timePtr(resolvedAt)
	return &w, nil
}

func scanSprint(s scanner) (*Sprint, error) {
	var sp Sprint
	var status string
	var start, end sql.NullTime
	if err := s.Scan(&sp.ID, &sp.Name, &sp.Goal, &status, &start, &end, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return nil, err
	}
	sp.Status = SprintStatus(status)
	sp.StartDate = timePtr(start)
	sp.EndDate = timePtr(end)
	return &sp, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
