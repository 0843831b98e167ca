package reply

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/interaction"
	. "github.com/smartystreets/goconvey/convey"
)

type stubBackend struct {
	replies  []comment.NewReply
	comments []comment.NewComment
	err      error
}

func (s *stubBackend) CreateReply(_ context.Context, in comment.NewReply) (*comment.Comment, error) {
	s.replies = append(s.replies, in)
	if s.err != nil {
		return nil, s.err
	}
	return &comment.Comment{ID: 100, Text: in.Text, Parent: &comment.Ref{ID: in.ParentID}}, nil
}

func (s *stubBackend) CreateComment(_ context.Context, in comment.NewComment) (*comment.Comment, error) {
	s.comments = append(s.comments, in)
	if s.err != nil {
		return nil, s.err
	}
	return &comment.Comment{ID: 200, Text: in.Text}, nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var alice = &comment.User{ID: 7, Username: "alice"}

func newOrchestrator(b *stubBackend, st *interaction.Store, opts ...Option) *Orchestrator {
	return New(b, st, append([]Option{WithLogger(quiet)}, opts...)...)
}

func TestSubmitReply_Validation(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		b := &stubBackend{}
		st := interaction.New()
		st.ToggleReplyForm(1)
		st.SetDraftText(1, text)

		_, err := newOrchestrator(b, st).SubmitReply(context.Background(), 1, 5, text, alice)
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("text %q: got %v, want validation failure", text, err)
		}
		if len(b.replies) != 0 {
			t.Errorf("text %q: backend called %d times", text, len(b.replies))
		}
		if _, ok := st.SubmittingReplyTo(); ok {
			t.Errorf("text %q: submitting marker left set", text)
		}
		if !st.ReplyFormOpen(1) {
			t.Errorf("text %q: form closed on validation failure", text)
		}
	}
}

func TestSubmitReply_NotAuthenticated(t *testing.T) {
	b := &stubBackend{}
	st := interaction.New()
	_, err := newOrchestrator(b, st).SubmitReply(context.Background(), 1, 5, "hello", nil)
	if KindOf(err) != NotAuthenticated {
		t.Fatalf("got %v, want NotAuthenticated", err)
	}
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("errors.Is should match ErrNotAuthenticated")
	}
	if len(b.replies) != 0 {
		t.Errorf("backend must not be called without a user")
	}
}

func TestSubmitReply(t *testing.T) {
	Convey("Given an open reply form with a draft", t, func() {
		b := &stubBackend{}
		st := interaction.New()
		st.ToggleReplyForm(1)
		st.SetDraftText(1, "  nice post  ")
		var reloaded []comment.ID
		var kinds []Kind
		o := newOrchestrator(b, st,
			WithReload(func(_ context.Context, postID comment.ID) error {
				reloaded = append(reloaded, postID)
				return nil
			}),
			WithObserver(func(k Kind) { kinds = append(kinds, k) }),
		)

		Convey("A successful submit sends the trimmed text and resets the form", func() {
			c, err := o.SubmitReply(context.Background(), 1, 5, st.DraftText(1), alice)
			So(err, ShouldBeNil)
			So(c.ID, ShouldEqual, comment.ID(100))
			So(b.replies, ShouldResemble, []comment.NewReply{{Text: "nice post", PostID: 5, ParentID: 1, UserID: 7}})
			So(st.DraftText(1), ShouldEqual, "")
			So(st.ReplyFormOpen(1), ShouldBeFalse)
			So(st.Error(), ShouldEqual, "")
			So(reloaded, ShouldResemble, []comment.ID{5})
			So(kinds, ShouldResemble, []Kind{0})
			_, ok := st.SubmittingReplyTo()
			So(ok, ShouldBeFalse)
		})

		Convey("A rejection keeps the draft and surfaces the backend message", func() {
			b.err = backend.Rejected(400, "Comment text is too long")
			_, err := o.SubmitReply(context.Background(), 1, 5, st.DraftText(1), alice)
			So(errors.Is(err, ErrBackendRejected), ShouldBeTrue)
			So(st.Error(), ShouldEqual, "Comment text is too long")
			So(st.DraftText(1), ShouldEqual, "  nice post  ")
			So(st.ReplyFormOpen(1), ShouldBeTrue)
			So(reloaded, ShouldBeEmpty)
			So(kinds, ShouldResemble, []Kind{BackendRejected})
			_, ok := st.SubmittingReplyTo()
			So(ok, ShouldBeFalse)
		})

		Convey("A rejection without a message falls back to the default", func() {
			b.err = backend.Rejected(500, "")
			_, err := o.SubmitReply(context.Background(), 1, 5, "text", alice)
			So(KindOf(err), ShouldEqual, BackendRejected)
			So(st.Error(), ShouldEqual, "Failed to create reply")
		})

		Convey("A transport failure is reported as a network error", func() {
			b.err = io.ErrUnexpectedEOF
			_, err := o.SubmitReply(context.Background(), 1, 5, "text", alice)
			So(KindOf(err), ShouldEqual, NetworkError)
			So(errors.Is(err, io.ErrUnexpectedEOF), ShouldBeTrue)
			So(st.Error(), ShouldEqual, "Failed to create reply")
			So(st.DraftText(1), ShouldEqual, "  nice post  ")
			_, ok := st.SubmittingReplyTo()
			So(ok, ShouldBeFalse)
		})

		Convey("A later success clears an earlier error", func() {
			b.err = io.ErrUnexpectedEOF
			_, _ = o.SubmitReply(context.Background(), 1, 5, "text", alice)
			b.err = nil
			_, err := o.SubmitReply(context.Background(), 1, 5, "text", alice)
			So(err, ShouldBeNil)
			So(st.Error(), ShouldEqual, "")
		})

		Convey("A failed reload does not fail the submission", func() {
			o.reload = func(context.Context, comment.ID) error { return errors.New("boom") }
			_, err := o.SubmitReply(context.Background(), 1, 5, "text", alice)
			So(err, ShouldBeNil)
		})
	})
}

func TestSubmitComment(t *testing.T) {
	Convey("Given a top-level comment draft", t, func() {
		b := &stubBackend{}
		st := interaction.New()
		st.SetCommentDraft("first!")
		o := newOrchestrator(b, st)

		Convey("Empty text is rejected before reaching the backend", func() {
			_, err := o.SubmitComment(context.Background(), 5, "  ", alice)
			So(KindOf(err), ShouldEqual, ValidationFailed)
			So(b.comments, ShouldBeEmpty)
		})

		Convey("Success clears the draft", func() {
			c, err := o.SubmitComment(context.Background(), 5, st.CommentDraft(), alice)
			So(err, ShouldBeNil)
			So(c.ID, ShouldEqual, comment.ID(200))
			So(b.comments, ShouldResemble, []comment.NewComment{{Text: "first!", PostID: 5, UserID: 7}})
			So(st.CommentDraft(), ShouldEqual, "")
			So(st.SubmittingComment(), ShouldBeFalse)
		})

		Convey("Failure keeps the draft and uses the comment fallback", func() {
			b.err = backend.Rejected(502, "")
			_, err := o.SubmitComment(context.Background(), 5, st.CommentDraft(), alice)
			So(KindOf(err), ShouldEqual, BackendRejected)
			So(st.Error(), ShouldEqual, "Failed to create comment")
			So(st.CommentDraft(), ShouldEqual, "first!")
			So(st.SubmittingComment(), ShouldBeFalse)
		})
	})
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != 0 {
		t.Errorf("plain errors have no kind")
	}
	if KindOf(nil) != 0 {
		t.Errorf("nil has no kind")
	}
	if s := Kind(99).String(); s != "unknown" {
		t.Errorf("got %q", s)
	}
}
