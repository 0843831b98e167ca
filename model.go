package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/thread"
)

type Model struct {
	db      backend.Backend
	metrics *Metrics
	log     *slog.Logger
}

// Thread is a post together with its comment forest.
type Thread struct {
	Post      *comment.Post
	Community *comment.Community
	Forest    []*thread.Node
	Orphans   []comment.ID
	Broken    []comment.ID
}

func NewModel(db backend.Backend, metrics *Metrics, log *slog.Logger) *Model {
	return &Model{db: db, metrics: metrics, log: log}
}

func (m *Model) getPost(ctx context.Context, postID comment.ID) (*comment.Post, error) {
	defer m.metrics.timeFetch("post")()
	return m.db.GetPost(ctx, postID)
}

func (m *Model) loadThread(ctx context.Context, postID comment.ID) (*Thread, error) {
	post, err := m.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	t := &Thread{Post: post}

	done := m.metrics.timeFetch("community")
	t.Community, err = m.db.CommunityForPost(ctx, postID)
	done()
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		m.log.Warn("loading community", "post", postID, "err", err)
	}

	report := thread.BuildReport(post.Comments)
	t.Forest, t.Orphans, t.Broken = report.Roots, report.Orphans, report.Broken
	m.metrics.observeBuild(len(report.Orphans) + len(report.Broken))
	if len(report.Orphans) > 0 {
		m.log.Debug("orphan comments promoted to roots", "post", postID, "ids", report.Orphans)
	}
	if len(report.Broken) > 0 {
		m.log.Warn("comment parent cycle broken", "post", postID, "ids", report.Broken)
	}
	return t, nil
}

// reloader fetches a post once after a write and keeps it for the response.
type reloader struct {
	m    *Model
	post *comment.Post
}

func (rl *reloader) reload(ctx context.Context, postID comment.ID) error {
	p, err := rl.m.getPost(ctx, postID)
	if err != nil {
		return err
	}
	rl.post = p
	return nil
}

func (m *Model) listPosts(ctx context.Context) ([]comment.Post, error) {
	defer m.metrics.timeFetch("posts")()
	return m.db.ListPosts(ctx)
}

func (m *Model) listCommunities(ctx context.Context) ([]comment.Community, error) {
	defer m.metrics.timeFetch("communities")()
	return m.db.ListCommunities(ctx)
}

func (m *Model) getCommunity(ctx context.Context, id comment.ID) (*comment.Community, error) {
	defer m.metrics.timeFetch("community")()
	return m.db.GetCommunity(ctx, id)
}

func (m *Model) login(ctx context.Context, email, password string) (*backend.Session, error) {
	auth, ok := backend.As[backend.Authenticator](m.db)
	if !ok {
		return nil, &HTTPError{Message: "Login is not supported", Code: http.StatusNotImplemented}
	}
	return auth.Login(ctx, email, password)
}

func (m *Model) register(ctx context.Context, username, email, password string) (*comment.User, error) {
	reg, ok := backend.As[backend.Registrar](m.db)
	if !ok {
		return nil, &HTTPError{Message: "Registration is not supported", Code: http.StatusNotImplemented}
	}
	return reg.Register(ctx, username, email, password)
}
