// Package cached wraps a backend with a read-through cache. Every successful
// write clears the cache so a refetch after a reply sees the new comment.
package cached

import (
	"context"
	"sync"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
)

type Cached struct {
	db backend.Backend

	mu             sync.Mutex
	postCache      map[comment.ID]*comment.Post
	communityCache map[comment.ID]*comment.Community
	byPostCache    map[comment.ID]*comment.Community
	listCache      []comment.Post
	listed         bool
	communities    []comment.Community
	communitiesOK  bool
	gen            uint64
}

var _ backend.Backend = (*Cached)(nil)
var _ backend.Unwrapper = (*Cached)(nil)

func New(db backend.Backend) *Cached {
	c := &Cached{db: db}
	c.clear()
	return c
}

func (m *Cached) clear() {
	m.mu.Lock()
	m.postCache = make(map[comment.ID]*comment.Post)
	m.communityCache = make(map[comment.ID]*comment.Community)
	m.byPostCache = make(map[comment.ID]*comment.Community)
	m.listCache = nil
	m.listed = false
	m.communities = nil
	m.communitiesOK = false
	m.gen++
	m.mu.Unlock()
}

// lookup serves id from the cache chosen by pick, loading it on a miss. pick
// is called with the lock held since clear swaps the maps.
func lookup[T any](m *Cached, pick func() map[comment.ID]*T, id comment.ID, load func() (*T, error)) (*T, error) {
	m.mu.Lock()
	if result, found := pick()[id]; found {
		m.mu.Unlock()
		return result, nil
	}
	gen := m.gen
	m.mu.Unlock()

	result, err := load()
	if err == nil {
		m.mu.Lock()
		if gen == m.gen {
			pick()[id] = result
		}
		m.mu.Unlock()
	}
	return result, err
}

func (m *Cached) GetPost(ctx context.Context, id comment.ID) (*comment.Post, error) {
	return lookup(m, func() map[comment.ID]*comment.Post { return m.postCache }, id, func() (*comment.Post, error) {
		return m.db.GetPost(ctx, id)
	})
}

func (m *Cached) GetCommunity(ctx context.Context, id comment.ID) (*comment.Community, error) {
	return lookup(m, func() map[comment.ID]*comment.Community { return m.communityCache }, id, func() (*comment.Community, error) {
		return m.db.GetCommunity(ctx, id)
	})
}

func (m *Cached) CommunityForPost(ctx context.Context, postID comment.ID) (*comment.Community, error) {
	return lookup(m, func() map[comment.ID]*comment.Community { return m.byPostCache }, postID, func() (*comment.Community, error) {
		return m.db.CommunityForPost(ctx, postID)
	})
}

// list serves a whole-collection read from the slot chosen by pick.
func list[T any](m *Cached, pick func() (*[]T, *bool), load func() ([]T, error)) ([]T, error) {
	m.mu.Lock()
	if slot, ok := pick(); *ok {
		result := *slot
		m.mu.Unlock()
		return result, nil
	}
	gen := m.gen
	m.mu.Unlock()

	result, err := load()
	if err == nil {
		m.mu.Lock()
		if gen == m.gen {
			slot, ok := pick()
			*slot, *ok = result, true
		}
		m.mu.Unlock()
	}
	return result, err
}

func (m *Cached) ListPosts(ctx context.Context) ([]comment.Post, error) {
	return list(m, func() (*[]comment.Post, *bool) { return &m.listCache, &m.listed }, func() ([]comment.Post, error) {
		return m.db.ListPosts(ctx)
	})
}

func (m *Cached) ListCommunities(ctx context.Context) ([]comment.Community, error) {
	return list(m, func() (*[]comment.Community, *bool) { return &m.communities, &m.communitiesOK }, func() ([]comment.Community, error) {
		return m.db.ListCommunities(ctx)
	})
}

func (m *Cached) CreateComment(ctx context.Context, in comment.NewComment) (*comment.Comment, error) {
	result, err := m.db.CreateComment(ctx, in)
	if err == nil {
		m.clear()
	}
	return result, err
}

func (m *Cached) CreateReply(ctx context.Context, in comment.NewReply) (*comment.Comment, error) {
	result, err := m.db.CreateReply(ctx, in)
	if err == nil {
		m.clear()
	}
	return result, err
}

// Unwrap exposes the wrapped backend so callers can reach its optional
// interfaces, like login and sign-up, which are never cached.
func (m *Cached) Unwrap() backend.Backend {
	return m.db
}

func (m *Cached) Close() error {
	return m.db.Close()
}
