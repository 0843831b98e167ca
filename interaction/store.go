// Package interaction holds the per-comment UI state of a single view
// session: which reply forms are open, what has been typed into them and
// which reply is being submitted.
package interaction

import (
	"strings"
	"sync"

	"github.com/aquilax/threadboard/comment"
)

type entry struct {
	formOpen bool
	draft    string
}

// Store is safe for concurrent use. Every comment id gets its own entry on
// first write; reads of untouched ids return the zero state.
type Store struct {
	mu      sync.Mutex
	entries map[comment.ID]*entry

	submitting    comment.ID
	hasSubmitting bool

	commentDraft      string
	submittingComment bool

	errMsg string
}

func New() *Store {
	return &Store{entries: make(map[comment.ID]*entry)}
}

func (s *Store) entry(id comment.ID) *entry {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// ToggleReplyForm flips the reply form of id, dismisses the current error
// and returns the new state.
func (s *Store) ToggleReplyForm(id comment.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(id)
	e.formOpen = !e.formOpen
	s.errMsg = ""
	return e.formOpen
}

func (s *Store) CloseReplyForm(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.formOpen = false
	}
}

func (s *Store) ReplyFormOpen(id comment.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.formOpen
	}
	return false
}

func (s *Store) SetDraftText(id comment.ID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(id).draft = text
}

func (s *Store) DraftText(id comment.ID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.draft
	}
	return ""
}

func (s *Store) ClearDraft(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.draft = ""
	}
}

// BeginSubmit marks id as the reply in flight, replacing any previous mark.
func (s *Store) BeginSubmit(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = id
	s.hasSubmitting = true
}

// EndSubmit clears the in-flight mark if it still belongs to id, so a
// finishing submission never clears a newer one.
func (s *Store) EndSubmit(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSubmitting && s.submitting == id {
		s.submitting = 0
		s.hasSubmitting = false
	}
}

func (s *Store) SubmittingReplyTo() (comment.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting, s.hasSubmitting
}

func (s *Store) IsSubmitting(id comment.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSubmitting && s.submitting == id
}

// CanSubmit reports whether the reply control for id should be enabled.
func (s *Store) CanSubmit(id comment.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.formOpen {
		return false
	}
	if s.hasSubmitting && s.submitting == id {
		return false
	}
	return strings.TrimSpace(e.draft) != ""
}

func (s *Store) SetCommentDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commentDraft = text
}

func (s *Store) CommentDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commentDraft
}

func (s *Store) BeginCommentSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submittingComment = true
}

func (s *Store) EndCommentSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submittingComment = false
}

func (s *Store) SubmittingComment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submittingComment
}

// Error is the message of the last failed submission, empty when none.
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

// Reset drops all state, as when the user navigates to another post.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[comment.ID]*entry)
	s.submitting = 0
	s.hasSubmitting = false
	s.commentDraft = ""
	s.submittingComment = false
	s.errMsg = ""
}
