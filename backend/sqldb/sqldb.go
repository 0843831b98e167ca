// Package sqldb is a standalone backend over a SQL database. Driver specific
// packages (sqlite, postgres) open it with their own schema.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type DB struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ backend.Backend = (*DB)(nil)
var _ backend.Authenticator = (*DB)(nil)
var _ backend.Registrar = (*DB)(nil)

// Open connects with driver and dsn and applies schema.
func Open(ctx context.Context, driver, dsn, schema string) (*DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	d := New(db)
	if err := d.Migrate(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func New(db *sqlx.DB) *DB {
	return &DB{db: db, now: time.Now}
}

// SQL exposes the underlying handle.
func (d *DB) SQL() *sqlx.DB {
	return d.db
}

// Migrate runs every statement of schema. Statements are separated by ";".
func (d *DB) Migrate(ctx context.Context, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type userRow struct {
	ID       comment.ID `db:"id"`
	Username string     `db:"username"`
	Email    string     `db:"email"`
	Points   int        `db:"points"`
	Password string     `db:"password_hash"`
}

type postRow struct {
	ID          comment.ID    `db:"id"`
	CommunityID sql.NullInt64 `db:"community_id"`
	Title       string        `db:"title"`
	Content     string        `db:"content"`
	CreatedAt   time.Time     `db:"created_at"`
	UserID      comment.ID    `db:"user_id"`
	Username    string        `db:"username"`
	UserPoints  int           `db:"user_points"`
}

func (r postRow) post() comment.Post {
	return comment.Post{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		User:      comment.User{ID: r.UserID, Username: r.Username, Points: r.UserPoints},
		CreatedAt: comment.At(r.CreatedAt),
		Comments:  []comment.Comment{},
	}
}

type commentRow struct {
	ID         comment.ID    `db:"id"`
	ParentID   sql.NullInt64 `db:"parent_id"`
	Text       string        `db:"text"`
	Points     int           `db:"points"`
	CreatedAt  time.Time     `db:"created_at"`
	UserID     comment.ID    `db:"user_id"`
	Username   string        `db:"username"`
	UserPoints int           `db:"user_points"`
}

func (r commentRow) comment() comment.Comment {
	c := comment.Comment{
		ID:        r.ID,
		Text:      r.Text,
		Points:    r.Points,
		CreatedBy: comment.User{ID: r.UserID, Username: r.Username, Points: r.UserPoints},
		CreatedAt: comment.At(r.CreatedAt),
	}
	if r.ParentID.Valid {
		c.Parent = &comment.Ref{ID: r.ParentID.Int64}
	}
	return c
}

type communityRow struct {
	ID          comment.ID `db:"id"`
	Name        string     `db:"name"`
	Description string     `db:"description"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r communityRow) community() comment.Community {
	return comment.Community{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   comment.At(r.CreatedAt),
	}
}

const postColumns = `p.id, p.community_id, p.title, p.content, p.created_at,
	u.id AS user_id, u.username, u.points AS user_points`

const commentColumns = `c.id, c.parent_id, c.text, c.points, c.created_at,
	u.id AS user_id, u.username, u.points AS user_points`

func notFound(what string, id comment.ID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, backend.ErrNotFound)
	}
	return err
}

func (d *DB) GetPost(ctx context.Context, id comment.ID) (*comment.Post, error) {
	var row postRow
	q := d.db.Rebind(`SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.user_id WHERE p.id = ?`)
	if err := d.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, notFound("post", id, err)
	}
	var rows []commentRow
	q = d.db.Rebind(`SELECT ` + commentColumns + ` FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? ORDER BY c.id`)
	if err := d.db.SelectContext(ctx, &rows, q, id); err != nil {
		return nil, err
	}
	p := row.post()
	for _, r := range rows {
		p.Comments = append(p.Comments, r.comment())
	}
	return &p, nil
}

func (d *DB) ListPosts(ctx context.Context) ([]comment.Post, error) {
	var rows []postRow
	q := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.user_id ORDER BY p.created_at DESC, p.id DESC`
	if err := d.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	result := make([]comment.Post, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.post())
	}
	return result, nil
}

func (d *DB) GetCommunity(ctx context.Context, id comment.ID) (*comment.Community, error) {
	var row communityRow
	q := d.db.Rebind(`SELECT id, name, description, created_at FROM communities WHERE id = ?`)
	if err := d.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, notFound("community", id, err)
	}
	var posts []postRow
	q = d.db.Rebind(`SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.community_id = ? ORDER BY p.id`)
	if err := d.db.SelectContext(ctx, &posts, q, id); err != nil {
		return nil, err
	}
	c := row.community()
	for _, p := range posts {
		c.Posts = append(c.Posts, p.post())
	}
	return &c, nil
}

func (d *DB) ListCommunities(ctx context.Context) ([]comment.Community, error) {
	var rows []communityRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT id, name, description, created_at FROM communities ORDER BY id`); err != nil {
		return nil, err
	}
	var posts []postRow
	q := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.community_id IS NOT NULL ORDER BY p.id`
	if err := d.db.SelectContext(ctx, &posts, q); err != nil {
		return nil, err
	}
	byCommunity := make(map[comment.ID][]comment.Post)
	for _, p := range posts {
		byCommunity[p.CommunityID.Int64] = append(byCommunity[p.CommunityID.Int64], p.post())
	}
	result := make([]comment.Community, 0, len(rows))
	for _, r := range rows {
		c := r.community()
		c.Posts = byCommunity[r.ID]
		result = append(result, c)
	}
	return result, nil
}

func (d *DB) CommunityForPost(ctx context.Context, postID comment.ID) (*comment.Community, error) {
	var communityID sql.NullInt64
	q := d.db.Rebind(`SELECT community_id FROM posts WHERE id = ?`)
	if err := d.db.GetContext(ctx, &communityID, q, postID); err != nil {
		return nil, notFound("post", postID, err)
	}
	if !communityID.Valid {
		return nil, fmt.Errorf("post %d has no community: %w", postID, backend.ErrNotFound)
	}
	return d.GetCommunity(ctx, communityID.Int64)
}

// existsCheck rejects a create with message when query counts no rows.
type existsCheck struct {
	query   string
	args    []any
	message string
}

// count runs a count(*) query inside tx.
func count(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind(query), args...)
	return n, err
}

func (d *DB) insertComment(ctx context.Context, postID, userID comment.ID, text string, parentID *comment.ID) (*comment.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, backend.Rejected(http.StatusBadRequest, "Comment text is required")
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	checks := []existsCheck{
		{`SELECT count(*) FROM posts WHERE id = ?`, []any{postID}, "Post not found"},
		{`SELECT count(*) FROM users WHERE id = ?`, []any{userID}, "User not found"},
	}
	if parentID != nil {
		checks = append(checks, existsCheck{`SELECT count(*) FROM comments WHERE id = ? AND post_id = ?`, []any{*parentID, postID}, "Parent comment not found"})
	}
	for _, c := range checks {
		n, err := count(ctx, tx, c.query, c.args...)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, backend.Rejected(http.StatusNotFound, c.message)
		}
	}

	var parent sql.NullInt64
	if parentID != nil {
		parent = sql.NullInt64{Int64: *parentID, Valid: true}
	}
	var id comment.ID
	q := tx.Rebind(`INSERT INTO comments (post_id, parent_id, user_id, text, points, created_at)
		VALUES (?, ?, ?, ?, 0, ?) RETURNING id`)
	if err := tx.GetContext(ctx, &id, q, postID, parent, userID, text, d.now().UTC()); err != nil {
		return nil, err
	}

	var row commentRow
	q = tx.Rebind(`SELECT ` + commentColumns + ` FROM comments c JOIN users u ON u.id = c.user_id WHERE c.id = ?`)
	if err := tx.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	c := row.comment()
	return &c, nil
}

func (d *DB) CreateComment(ctx context.Context, in comment.NewComment) (*comment.Comment, error) {
	return d.insertComment(ctx, in.PostID, in.UserID, in.Text, nil)
}

func (d *DB) CreateReply(ctx context.Context, in comment.NewReply) (*comment.Comment, error) {
	return d.insertComment(ctx, in.PostID, in.UserID, in.Text, &in.ParentID)
}

// Register creates a user with a bcrypt hashed password.
func (d *DB) Register(ctx context.Context, username, email, password string) (*comment.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, backend.Rejected(http.StatusBadRequest, "Username, email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	n, err := count(ctx, tx, `SELECT count(*) FROM users WHERE email = ?`, email)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, backend.Rejected(http.StatusConflict, "Email is already registered")
	}
	var id comment.ID
	q := tx.Rebind(`INSERT INTO users (username, email, password_hash, points) VALUES (?, ?, ?, 0) RETURNING id`)
	if err := tx.GetContext(ctx, &id, q, username, email, string(hash)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &comment.User{ID: id, Username: username, Email: email}, nil
}

func (d *DB) Login(ctx context.Context, email, password string) (*backend.Session, error) {
	var u userRow
	q := d.db.Rebind(`SELECT id, username, email, points, password_hash FROM users WHERE email = ?`)
	err := d.db.GetContext(ctx, &u, q, strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.Rejected(http.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, backend.Rejected(http.StatusUnauthorized, "Invalid email or password")
	}
	return &backend.Session{
		Token: uuid.New().String(),
		User:  comment.User{ID: u.ID, Username: u.Username, Email: u.Email, Points: u.Points},
	}, nil
}

func (d *DB) CreateCommunity(ctx context.Context, name, description string) (comment.ID, error) {
	var id comment.ID
	q := d.db.Rebind(`INSERT INTO communities (name, description, created_at) VALUES (?, ?, ?) RETURNING id`)
	err := d.db.GetContext(ctx, &id, q, name, description, d.now().UTC())
	return id, err
}

func (d *DB) CreatePost(ctx context.Context, communityID, userID comment.ID, title, content string) (comment.ID, error) {
	if strings.TrimSpace(title) == "" {
		return 0, backend.Rejected(http.StatusBadRequest, "Title is required")
	}
	var community sql.NullInt64
	if communityID != 0 {
		community = sql.NullInt64{Int64: communityID, Valid: true}
	}
	var id comment.ID
	q := d.db.Rebind(`INSERT INTO posts (community_id, user_id, title, content, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := d.db.GetContext(ctx, &id, q, community, userID, title, content, d.now().UTC())
	return id, err
}

func (d *DB) Close() error {
	return d.db.Close()
}
