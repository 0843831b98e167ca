package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/interaction"
	"github.com/google/uuid"
)

// Session is the state of one browser: who is logged in and the
// interaction state of the post being viewed.
type Session struct {
	ID    string
	Token string
	User  *comment.User
	State *interaction.Store

	mu     sync.Mutex
	postID comment.ID
	seen   time.Time
}

// Visit records that postID is being viewed. Moving to another post drops
// the open forms and drafts of the previous one.
func (s *Session) Visit(postID comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postID != postID {
		s.State.Reset()
		s.postID = postID
	}
}

func (s *Session) Login(token string, u comment.User) {
	s.mu.Lock()
	s.Token = token
	s.User = &u
	s.mu.Unlock()
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.Token = ""
	s.User = nil
	s.mu.Unlock()
	s.State.Reset()
}

// Actor returns the logged in user and token, nil when anonymous.
func (s *Session) Actor() (*comment.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.User == nil {
		return nil, ""
	}
	u := *s.User
	return &u, s.Token
}

type SessionPool struct {
	cookie   string
	ttl      time.Duration
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessionPool(cookie string, ttl time.Duration) *SessionPool {
	return &SessionPool{
		cookie:   cookie,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session named by the request cookie, starting a new one
// and setting the cookie when there is none.
func (sp *SessionPool) Get(w http.ResponseWriter, r *http.Request) *Session {
	now := sp.now()
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.clean(now)
	if c, err := r.Cookie(sp.cookie); err == nil {
		if s, ok := sp.sessions[c.Value]; ok {
			s.seen = now
			return s
		}
	}
	s := &Session{
		ID:    uuid.New().String(),
		State: interaction.New(),
		seen:  now,
	}
	sp.sessions[s.ID] = s
	http.SetCookie(w, &http.Cookie{
		Name:     sp.cookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

func (sp *SessionPool) Len() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.sessions)
}

func (sp *SessionPool) clean(now time.Time) {
	if sp.ttl <= 0 {
		return
	}
	for id, s := range sp.sessions {
		if now.Sub(s.seen) > sp.ttl {
			delete(sp.sessions, id)
		}
	}
}
