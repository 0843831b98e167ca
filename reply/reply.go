// Package reply submits new comments and replies to the backend and keeps
// the interaction state of the view consistent on every exit path.
package reply

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/interaction"
)

const (
	replyFallback   = "Failed to create reply"
	commentFallback = "Failed to create comment"
)

// ReloadFunc refetches a post after a successful submission.
type ReloadFunc func(ctx context.Context, postID comment.ID) error

type Option func(*Orchestrator)

func WithReload(fn ReloadFunc) Option {
	return func(o *Orchestrator) { o.reload = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithObserver is called once per submission with its outcome kind, 0 on
// success.
func WithObserver(fn func(Kind)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

type Orchestrator struct {
	backend backend.CommentCreator
	state   *interaction.Store
	reload  ReloadFunc
	observe func(Kind)
	log     *slog.Logger
}

func New(b backend.CommentCreator, st *interaction.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{backend: b, state: st}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

// SubmitReply creates a reply to parentID. On success the draft is cleared
// and the form closed; on failure both are left untouched.
func (o *Orchestrator) SubmitReply(ctx context.Context, parentID, postID comment.ID, text string, actor *comment.User) (*comment.Comment, error) {
	if actor == nil {
		return nil, o.fail(&Error{Kind: NotAuthenticated, Message: "Please log in to reply", Err: ErrNotAuthenticated})
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, o.fail(&Error{Kind: ValidationFailed, Message: "Reply cannot be empty", Err: ErrValidationFailed})
	}

	o.state.BeginSubmit(parentID)
	defer o.state.EndSubmit(parentID)
	o.state.SetError("")

	created, err := o.backend.CreateReply(ctx, comment.NewReply{
		Text:     text,
		PostID:   postID,
		ParentID: parentID,
		UserID:   actor.ID,
	})
	if err != nil {
		rerr := classify(err, replyFallback)
		o.state.SetError(rerr.Message)
		o.log.Warn("reply failed", "post", postID, "parent", parentID, "kind", rerr.Kind.String(), "err", err)
		return nil, o.fail(rerr)
	}

	o.state.ClearDraft(parentID)
	o.state.CloseReplyForm(parentID)
	o.state.EndSubmit(parentID)
	o.succeed(ctx, postID)
	return created, nil
}

// SubmitComment creates a top-level comment on postID.
func (o *Orchestrator) SubmitComment(ctx context.Context, postID comment.ID, text string, actor *comment.User) (*comment.Comment, error) {
	if actor == nil {
		return nil, o.fail(&Error{Kind: NotAuthenticated, Message: "Please log in to comment", Err: ErrNotAuthenticated})
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, o.fail(&Error{Kind: ValidationFailed, Message: "Comment cannot be empty", Err: ErrValidationFailed})
	}

	o.state.BeginCommentSubmit()
	defer o.state.EndCommentSubmit()
	o.state.SetError("")

	created, err := o.backend.CreateComment(ctx, comment.NewComment{
		Text:   text,
		PostID: postID,
		UserID: actor.ID,
	})
	if err != nil {
		rerr := classify(err, commentFallback)
		o.state.SetError(rerr.Message)
		o.log.Warn("comment failed", "post", postID, "kind", rerr.Kind.String(), "err", err)
		return nil, o.fail(rerr)
	}

	o.state.SetCommentDraft("")
	o.state.EndCommentSubmit()
	o.succeed(ctx, postID)
	return created, nil
}

func (o *Orchestrator) succeed(ctx context.Context, postID comment.ID) {
	if o.observe != nil {
		o.observe(0)
	}
	if o.reload == nil {
		return
	}
	if err := o.reload(ctx, postID); err != nil {
		o.log.Warn("reload after submit failed", "post", postID, "err", err)
	}
}

func (o *Orchestrator) fail(e *Error) *Error {
	if o.observe != nil {
		o.observe(e.Kind)
	}
	return e
}

func classify(err error, fallback string) *Error {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = fallback
		}
		return &Error{Kind: BackendRejected, Message: msg, Err: err}
	}
	return &Error{Kind: NetworkError, Message: fallback, Err: err}
}
