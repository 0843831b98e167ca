package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aquilax/threadboard/comment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionPool(t *testing.T) {
	Convey("Given a session pool", t, func() {
		sp := NewSessionPool("sid", time.Hour)

		Convey("A request without cookie starts a session and sets the cookie", func() {
			w := httptest.NewRecorder()
			s := sp.Get(w, httptest.NewRequest(http.MethodGet, "/", nil))
			So(s.ID, ShouldNotBeEmpty)
			cookies := w.Result().Cookies()
			So(cookies, ShouldHaveLength, 1)
			So(cookies[0].Value, ShouldEqual, s.ID)

			Convey("and the cookie finds it again", func() {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.AddCookie(cookies[0])
				w := httptest.NewRecorder()
				So(sp.Get(w, r), ShouldEqual, s)
				So(w.Result().Cookies(), ShouldBeEmpty)
			})
		})

		Convey("An unknown cookie gets a fresh session", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: "sid", Value: "stale"})
			s := sp.Get(httptest.NewRecorder(), r)
			So(s.ID, ShouldNotEqual, "stale")
		})

		Convey("Idle sessions expire", func() {
			now := time.Now()
			sp.now = func() time.Time { return now }
			sp.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			now = now.Add(2 * time.Hour)
			sp.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			So(sp.Len(), ShouldEqual, 1)
		})
	})
}

func TestSession_Visit(t *testing.T) {
	s := NewSessionPool("sid", 0).Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	s.Visit(1)
	s.State.ToggleReplyForm(10)
	s.State.SetDraftText(10, "draft")

	s.Visit(1)
	if !s.State.ReplyFormOpen(10) {
		t.Fatal("revisiting the same post must keep the form")
	}
	s.Visit(2)
	if s.State.ReplyFormOpen(10) || s.State.DraftText(10) != "" {
		t.Fatal("visiting another post must reset the state")
	}
}

func TestSession_Actor(t *testing.T) {
	s := NewSessionPool("sid", 0).Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if u, _ := s.Actor(); u != nil {
		t.Fatal("new sessions are anonymous")
	}
	s.Login("tok", comment.User{ID: 3, Username: "carol"})
	u, tok := s.Actor()
	if u == nil || u.ID != 3 || tok != "tok" {
		t.Fatalf("got %v %q", u, tok)
	}
	s.Logout()
	if u, tok := s.Actor(); u != nil || tok != "" {
		t.Fatal("logout must clear the user")
	}
}
