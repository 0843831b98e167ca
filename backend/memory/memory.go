// Package memory is a backend kept entirely in process memory. It serves
// tests and the demo mode and can be seeded from a YAML fixture.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type user struct {
	comment.User
	password string
}

type post struct {
	id        comment.ID
	title     string
	content   string
	userID    comment.ID
	community comment.ID
	createdAt time.Time
}

type community struct {
	id          comment.ID
	name        string
	description string
	createdAt   time.Time
}

type record struct {
	id        comment.ID
	postID    comment.ID
	parentID  comment.ID
	hasParent bool
	userID    comment.ID
	text      string
	points    int
	createdAt time.Time
}

type Memory struct {
	mu          sync.RWMutex
	users       []user
	posts       []post
	communities []community
	comments    []record
	lastID      map[string]comment.ID
	now         func() time.Time
}

var _ backend.Backend = (*Memory)(nil)
var _ backend.Authenticator = (*Memory)(nil)
var _ backend.Registrar = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		lastID: make(map[string]comment.ID),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for new records.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// nextID keeps fixture ids as given and hands out sequential ids per table
// for everything else.
func (m *Memory) nextID(table string, seen comment.ID) comment.ID {
	if seen > 0 {
		if seen > m.lastID[table] {
			m.lastID[table] = seen
		}
		return seen
	}
	m.lastID[table]++
	return m.lastID[table]
}

func stamp(t time.Time) comment.Timestamp {
	if t.IsZero() {
		return comment.Timestamp{}
	}
	return comment.At(t)
}

func find[T any](list []T, match func(T) bool) (int, bool) {
	for i := range list {
		if match(list[i]) {
			return i, true
		}
	}
	return -1, false
}

func (m *Memory) userByID(id comment.ID) comment.User {
	if i, ok := find(m.users, func(u user) bool { return u.ID == id }); ok {
		u := m.users[i].User
		u.Email = ""
		return u
	}
	return comment.User{ID: id}
}

func (m *Memory) toComment(r record) comment.Comment {
	c := comment.Comment{
		ID:        r.id,
		Text:      r.text,
		Points:    r.points,
		CreatedBy: m.userByID(r.userID),
		CreatedAt: stamp(r.createdAt),
	}
	if r.hasParent {
		c.Parent = &comment.Ref{ID: r.parentID}
	}
	return c
}

func (m *Memory) toPost(p post, withComments bool) comment.Post {
	out := comment.Post{
		ID:        p.id,
		Title:     p.title,
		Content:   p.content,
		User:      m.userByID(p.userID),
		CreatedAt: stamp(p.createdAt),
		Comments:  []comment.Comment{},
	}
	if withComments {
		for _, r := range m.comments {
			if r.postID == p.id {
				out.Comments = append(out.Comments, m.toComment(r))
			}
		}
	}
	return out
}

func (m *Memory) toCommunity(c community) comment.Community {
	out := comment.Community{
		ID:          c.id,
		Name:        c.name,
		Description: c.description,
		CreatedAt:   stamp(c.createdAt),
	}
	for _, p := range m.posts {
		if p.community == c.id {
			out.Posts = append(out.Posts, m.toPost(p, false))
		}
	}
	return out
}

func (m *Memory) GetPost(_ context.Context, id comment.ID) (*comment.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := find(m.posts, func(p post) bool { return p.id == id })
	if !ok {
		return nil, fmt.Errorf("post %d: %w", id, backend.ErrNotFound)
	}
	p := m.toPost(m.posts[i], true)
	return &p, nil
}

func (m *Memory) ListPosts(_ context.Context) ([]comment.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]comment.Post, 0, len(m.posts))
	for _, p := range m.posts {
		result = append(result, m.toPost(p, false))
	}
	return result, nil
}

func (m *Memory) GetCommunity(_ context.Context, id comment.ID) (*comment.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := find(m.communities, func(c community) bool { return c.id == id })
	if !ok {
		return nil, fmt.Errorf("community %d: %w", id, backend.ErrNotFound)
	}
	c := m.toCommunity(m.communities[i])
	return &c, nil
}

func (m *Memory) ListCommunities(_ context.Context) ([]comment.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]comment.Community, 0, len(m.communities))
	for _, c := range m.communities {
		list = append(list, m.toCommunity(c))
	}
	return list, nil
}

func (m *Memory) CommunityForPost(ctx context.Context, postID comment.ID) (*comment.Community, error) {
	list, _ := m.ListCommunities(ctx)
	return backend.FindCommunity(list, postID)
}

func (m *Memory) insert(postID, userID comment.ID, text string, parent *comment.ID) (*comment.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, backend.Rejected(http.StatusBadRequest, "Comment text is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := find(m.posts, func(p post) bool { return p.id == postID }); !ok {
		return nil, backend.Rejected(http.StatusNotFound, "Post not found")
	}
	if _, ok := find(m.users, func(u user) bool { return u.ID == userID }); !ok {
		return nil, backend.Rejected(http.StatusNotFound, "User not found")
	}
	r := record{
		postID:    postID,
		userID:    userID,
		text:      text,
		createdAt: m.now(),
	}
	if parent != nil {
		_, ok := find(m.comments, func(c record) bool { return c.id == *parent && c.postID == postID })
		if !ok {
			return nil, backend.Rejected(http.StatusNotFound, "Parent comment not found")
		}
		r.parentID, r.hasParent = *parent, true
	}
	r.id = m.nextID("comments", 0)
	m.comments = append(m.comments, r)
	c := m.toComment(r)
	return &c, nil
}

func (m *Memory) CreateComment(_ context.Context, in comment.NewComment) (*comment.Comment, error) {
	return m.insert(in.PostID, in.UserID, in.Text, nil)
}

func (m *Memory) CreateReply(_ context.Context, in comment.NewReply) (*comment.Comment, error) {
	return m.insert(in.PostID, in.UserID, in.Text, &in.ParentID)
}

func (m *Memory) Login(_ context.Context, email, password string) (*backend.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := find(m.users, func(u user) bool { return strings.EqualFold(u.Email, email) })
	if !ok || m.users[i].password != password {
		return nil, backend.Rejected(http.StatusUnauthorized, "Invalid email or password")
	}
	return &backend.Session{Token: uuid.New().String(), User: m.users[i].User}, nil
}

func (m *Memory) Register(_ context.Context, username, email, password string) (*comment.User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, backend.Rejected(http.StatusBadRequest, "Username, email and password are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := find(m.users, func(u user) bool { return strings.EqualFold(u.Email, email) }); ok {
		return nil, backend.Rejected(http.StatusConflict, "Email is already registered")
	}
	u := user{
		User:     comment.User{ID: m.nextID("users", 0), Username: username, Email: email},
		password: password,
	}
	m.users = append(m.users, u)
	result := u.User
	return &result, nil
}

func (m *Memory) Close() error {
	return nil
}

// Fixture is the YAML layout accepted by Seed and LoadFixture.
type Fixture struct {
	Users       []FixtureUser      `yaml:"users"`
	Communities []FixtureCommunity `yaml:"communities"`
	Posts       []FixturePost      `yaml:"posts"`
	Comments    []FixtureComment   `yaml:"comments"`
}

type FixtureUser struct {
	ID       comment.ID `yaml:"id"`
	Username string     `yaml:"username"`
	Email    string     `yaml:"email"`
	Password string     `yaml:"password"`
	Points   int        `yaml:"points"`
}

type FixtureCommunity struct {
	ID          comment.ID `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	CreatedAt   time.Time  `yaml:"createdAt"`
}

type FixturePost struct {
	ID        comment.ID `yaml:"id"`
	Title     string     `yaml:"title"`
	Content   string     `yaml:"content"`
	User      comment.ID `yaml:"user"`
	Community comment.ID `yaml:"community"`
	CreatedAt time.Time  `yaml:"createdAt"`
}

type FixtureComment struct {
	ID        comment.ID  `yaml:"id"`
	Post      comment.ID  `yaml:"post"`
	Parent    *comment.ID `yaml:"parent"`
	User      comment.ID  `yaml:"user"`
	Text      string      `yaml:"text"`
	Points    int         `yaml:"points"`
	CreatedAt time.Time   `yaml:"createdAt"`
}

// Seed adds the fixture records as they are. Parent references are not
// checked, so a fixture can describe orphans.
func (m *Memory) Seed(f Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range f.Users {
		m.users = append(m.users, user{
			User:     comment.User{ID: m.nextID("users", u.ID), Username: u.Username, Email: u.Email, Points: u.Points},
			password: u.Password,
		})
	}
	for _, c := range f.Communities {
		m.communities = append(m.communities, community{
			id: m.nextID("communities", c.ID), name: c.Name, description: c.Description, createdAt: c.CreatedAt,
		})
	}
	for _, p := range f.Posts {
		m.posts = append(m.posts, post{
			id: m.nextID("posts", p.ID), title: p.Title, content: p.Content,
			userID: p.User, community: p.Community, createdAt: p.CreatedAt,
		})
	}
	for _, c := range f.Comments {
		r := record{
			id: m.nextID("comments", c.ID), postID: c.Post, userID: c.User,
			text: c.Text, points: c.Points, createdAt: c.CreatedAt,
		}
		if c.Parent != nil {
			r.parentID, r.hasParent = *c.Parent, true
		}
		m.comments = append(m.comments, r)
	}
}

// LoadFixture reads a YAML fixture from path and seeds it.
func (m *Memory) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("fixture %s: %w", path, err)
	}
	m.Seed(f)
	return nil
}
