package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aquilax/threadboard/comment"
)

// ErrNotFound is returned when a post, community or user does not exist.
var ErrNotFound = errors.New("not found")

// CommentCreator is the part of the backend the reply orchestrator needs.
type CommentCreator interface {
	CreateComment(ctx context.Context, in comment.NewComment) (*comment.Comment, error)
	CreateReply(ctx context.Context, in comment.NewReply) (*comment.Comment, error)
}

type Backend interface {
	CommentCreator
	GetPost(ctx context.Context, id comment.ID) (*comment.Post, error)
	ListPosts(ctx context.Context) ([]comment.Post, error)
	GetCommunity(ctx context.Context, id comment.ID) (*comment.Community, error)
	ListCommunities(ctx context.Context) ([]comment.Community, error)
	CommunityForPost(ctx context.Context, postID comment.ID) (*comment.Community, error)
	Close() error
}

// Session is what a successful login hands back.
type Session struct {
	Token string       `json:"token"`
	User  comment.User `json:"user"`
}

// Authenticator is implemented by backends that can log users in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*Session, error)
}

// Registrar is implemented by backends that can create accounts.
type Registrar interface {
	Register(ctx context.Context, username, email, password string) (*comment.User, error)
}

// Unwrapper is implemented by backends that decorate another backend.
type Unwrapper interface {
	Unwrap() Backend
}

// As finds the first backend in the decoration chain of b that implements T.
func As[T any](b Backend) (T, bool) {
	for b != nil {
		if t, ok := b.(T); ok {
			return t, true
		}
		u, ok := b.(Unwrapper)
		if !ok {
			break
		}
		b = u.Unwrap()
	}
	var zero T
	return zero, false
}

// APIError means the backend answered but refused the request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Rejected builds an APIError for a request the backend refused.
func Rejected(status int, msg string) error {
	return &APIError{Status: status, Message: msg}
}

type tokenKey struct{}

// WithToken attaches the acting user's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// FindCommunity scans communities for the one listing postID.
func FindCommunity(list []comment.Community, postID comment.ID) (*comment.Community, error) {
	for i := range list {
		if list[i].HasPost(postID) {
			return &list[i], nil
		}
	}
	return nil, ErrNotFound
}
