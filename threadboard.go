package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/reply"
	"github.com/aquilax/threadboard/thread"
	"github.com/aquilax/threadboard/timeago"
	"github.com/gorilla/feeds"
	"github.com/gorilla/mux"
	"github.com/sourcegraph/sitemap"
)

const (
	loginPath     = "/login"
	postPath      = "/posts/{postID:[0-9]+}"
	commentPath   = postPath + "/comments/{commentID:[0-9]+}"
	communityPath = "/communities/{communityID:[0-9]+}"
	sessionTTL    = 24 * time.Hour
)

type ThreadBoard struct {
	config   *Config
	m        *Model
	tp       *TransPool
	sg       *SpamGuard
	sessions *SessionPool
	metrics  *Metrics
	tf       timeago.Formatter
	log      *slog.Logger
}

type HTTPError struct {
	Err     error
	Message string
	Code    int
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

type appHandler func(http.ResponseWriter, *http.Request) error

func NewThreadBoard(config *Config, db backend.Backend, log *slog.Logger) *ThreadBoard {
	metrics := NewMetrics()
	return &ThreadBoard{
		config:   config,
		m:        NewModel(db, metrics, log),
		tp:       NewTransPool(config.Translations, log),
		sg:       NewSpamGuard(config.PostInterval),
		sessions: NewSessionPool(config.SessionCookie, sessionTTL),
		metrics:  metrics,
		tf:       timeago.Formatter{DateLayout: config.DateLayout},
		log:      log,
	}
}

func (l *ThreadBoard) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", l.handle(l.indexHandler)).Methods(http.MethodGet)
	r.Handle("/sitemap.xml", l.handle(l.sitemapHandler)).Methods(http.MethodGet)
	r.Handle("/metrics", l.metrics.Handler()).Methods(http.MethodGet)
	r.Handle(loginPath, l.handle(l.loginHandler)).Methods(http.MethodPost)
	r.Handle("/logout", l.handle(l.logoutHandler)).Methods(http.MethodPost)
	r.Handle("/register", l.handle(l.registerHandler)).Methods(http.MethodPost)

	r.Handle("/communities", l.handle(l.communitiesHandler)).Methods(http.MethodGet)
	r.Handle(communityPath, l.handle(l.communityHandler)).Methods(http.MethodGet)
	r.Handle(communityPath+"/{slug}", l.handle(l.communityHandler)).Methods(http.MethodGet)

	r.Handle(postPath+"/feed.xml", l.handle(l.feedHandler)).Methods(http.MethodGet)
	r.Handle(postPath+"/comments", l.handle(l.commentHandler)).Methods(http.MethodPost)
	r.Handle(commentPath+"/toggle", l.handle(l.toggleHandler)).Methods(http.MethodPost)
	r.Handle(commentPath+"/draft", l.handle(l.draftHandler)).Methods(http.MethodPost)
	r.Handle(commentPath+"/reply", l.handle(l.replyHandler)).Methods(http.MethodPost)
	r.Handle(postPath, l.handle(l.postHandler)).Methods(http.MethodGet)
	r.Handle(postPath+"/{slug}", l.handle(l.postHandler)).Methods(http.MethodGet)
	return r
}

func (l *ThreadBoard) handle(fn appHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			code, msg := l.status(err)
			if code >= http.StatusInternalServerError {
				l.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
			}
			if code == http.StatusUnauthorized {
				w.Header().Set("Location", loginPath)
			}
			http.Error(w, msg, code)
		}
	})
}

func (l *ThreadBoard) status(err error) (int, string) {
	var httpError *HTTPError
	if errors.As(err, &httpError) {
		msg := httpError.Message
		if msg == "" {
			msg = http.StatusText(httpError.Code)
		}
		return httpError.Code, msg
	}
	var replyError *reply.Error
	if errors.As(err, &replyError) {
		switch replyError.Kind {
		case reply.NotAuthenticated:
			return http.StatusUnauthorized, replyError.Message
		case reply.ValidationFailed:
			return http.StatusBadRequest, replyError.Message
		case reply.BackendRejected:
			return http.StatusBadGateway, replyError.Message
		default:
			return http.StatusServiceUnavailable, replyError.Message
		}
	}
	if errors.Is(err, backend.ErrNotFound) {
		return http.StatusNotFound, "Not found"
	}
	// Default to 500 Internal Server Error
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func pathID(r *http.Request, name string) (comment.ID, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, &HTTPError{Err: err, Message: "Not found", Code: http.StatusNotFound}
	}
	return id, nil
}

func (l *ThreadBoard) language() *Language {
	return l.tp.Get(l.config.Site.Language)
}

func (l *ThreadBoard) views(s *Session) viewBuilder {
	vb := viewBuilder{baseURL: l.config.Site.BaseURL, tf: l.tf, ln: l.language()}
	if s != nil {
		vb.state = s.State
	}
	return vb
}

func (l *ThreadBoard) indexHandler(w http.ResponseWriter, r *http.Request) error {
	posts, err := l.m.listPosts(r.Context())
	if err != nil {
		return err
	}
	vb := l.views(nil)
	list := make([]postView, 0, len(posts))
	for _, p := range posts {
		list = append(list, vb.post(p, false))
	}
	page := NewPage(&l.config.Site, vb.ln)
	page.Set("Posts", list)
	return page.render(w, http.StatusOK)
}

func (l *ThreadBoard) communitiesHandler(w http.ResponseWriter, r *http.Request) error {
	communities, err := l.m.listCommunities(r.Context())
	if err != nil {
		return err
	}
	vb := l.views(nil)
	list := make([]communityView, 0, len(communities))
	for _, c := range communities {
		list = append(list, vb.community(c, false))
	}
	page := NewPage(&l.config.Site, vb.ln)
	page.Set("Subtitle", page.Lang("Communities"))
	page.Set("Communities", list)
	return page.render(w, http.StatusOK)
}

func (l *ThreadBoard) communityHandler(w http.ResponseWriter, r *http.Request) error {
	communityID, err := pathID(r, "communityID")
	if err != nil {
		return err
	}
	c, err := l.m.getCommunity(r.Context(), communityID)
	if err != nil {
		return err
	}
	vb := l.views(nil)
	page := NewPage(&l.config.Site, vb.ln)
	page.Set("Subtitle", c.Name)
	page.Set("Community", vb.community(*c, true))
	return page.render(w, http.StatusOK)
}

func (l *ThreadBoard) postHandler(w http.ResponseWriter, r *http.Request) error {
	postID, err := pathID(r, "postID")
	if err != nil {
		return err
	}
	s := l.sessions.Get(w, r)
	s.Visit(postID)

	t, err := l.m.loadThread(r.Context(), postID)
	if err != nil {
		return err
	}
	vb := l.views(s)
	page := NewPage(&l.config.Site, vb.ln)
	pv := vb.post(*t.Post, true)
	if t.Community != nil {
		pv.Community = t.Community.Name
	}
	user, _ := s.Actor()
	page.Set("Subtitle", t.Post.Title)
	page.Set("Post", pv)
	page.Set("Comments", vb.forest(t.Forest, 0))
	page.Set("CommentDraft", s.State.CommentDraft())
	page.Set("SubmittingComment", s.State.SubmittingComment())
	page.Set("Error", s.State.Error())
	page.Set("User", user)
	page.Set("ReplyLabel", page.Lang("Reply"))
	return page.render(w, http.StatusOK)
}

// submitted redirects to the new comment. The post comes from the reload
// after the write; without it the slug is left out.
func (l *ThreadBoard) submitted(w http.ResponseWriter, r *http.Request, postID comment.ID, fresh *comment.Post, c *comment.Comment) {
	target := "/posts/" + strconv.FormatInt(postID, 10) + "#C" + strconv.FormatInt(c.ID, 10)
	if fresh != nil {
		target = commentURL("", *fresh, c.ID)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (l *ThreadBoard) orchestrator(s *Session, rl *reloader) *reply.Orchestrator {
	return reply.New(l.m.db, s.State,
		reply.WithReload(rl.reload),
		reply.WithLogger(l.log),
		reply.WithObserver(l.metrics.observeReply),
	)
}

// guard applies the per user post interval. Anonymous requests pass so the
// orchestrator can answer them with a login prompt.
func (l *ThreadBoard) guard(user *comment.User) (string, error) {
	if user == nil {
		return "", nil
	}
	key := "user:" + strconv.FormatInt(user.ID, 10)
	if !l.sg.CanPost(key) {
		return key, &HTTPError{Message: l.language().Lang("Please wait before posting again"), Code: http.StatusTooManyRequests}
	}
	return key, nil
}

func (l *ThreadBoard) commentHandler(w http.ResponseWriter, r *http.Request) error {
	postID, err := pathID(r, "postID")
	if err != nil {
		return err
	}
	s := l.sessions.Get(w, r)
	s.Visit(postID)
	if inHoneypot(r.FormValue("name")) {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	text := r.FormValue("text")
	s.State.SetCommentDraft(text)

	user, token := s.Actor()
	key, err := l.guard(user)
	if err != nil {
		return err
	}
	ctx := backend.WithToken(r.Context(), token)
	rl := &reloader{m: l.m}
	c, err := l.orchestrator(s, rl).SubmitComment(ctx, postID, text, user)
	if err != nil {
		l.sg.Forget(key)
		return err
	}
	l.submitted(w, r, postID, rl.post, c)
	return nil
}

func (l *ThreadBoard) commentIDs(w http.ResponseWriter, r *http.Request) (*Session, comment.ID, comment.ID, error) {
	postID, err := pathID(r, "postID")
	if err != nil {
		return nil, 0, 0, err
	}
	commentID, err := pathID(r, "commentID")
	if err != nil {
		return nil, 0, 0, err
	}
	s := l.sessions.Get(w, r)
	s.Visit(postID)
	return s, postID, commentID, nil
}

func (l *ThreadBoard) formState(w http.ResponseWriter, s *Session, commentID comment.ID) error {
	page := NewPage(&l.config.Site, l.language())
	page.Set("ID", commentID)
	page.Set("ReplyFormOpen", s.State.ReplyFormOpen(commentID))
	page.Set("Draft", s.State.DraftText(commentID))
	page.Set("CanSubmit", s.State.CanSubmit(commentID))
	page.Set("Error", s.State.Error())
	return page.render(w, http.StatusOK)
}

func (l *ThreadBoard) toggleHandler(w http.ResponseWriter, r *http.Request) error {
	s, _, commentID, err := l.commentIDs(w, r)
	if err != nil {
		return err
	}
	s.State.ToggleReplyForm(commentID)
	return l.formState(w, s, commentID)
}

func (l *ThreadBoard) draftHandler(w http.ResponseWriter, r *http.Request) error {
	s, _, commentID, err := l.commentIDs(w, r)
	if err != nil {
		return err
	}
	s.State.SetDraftText(commentID, r.FormValue("text"))
	return l.formState(w, s, commentID)
}

func (l *ThreadBoard) replyHandler(w http.ResponseWriter, r *http.Request) error {
	s, postID, commentID, err := l.commentIDs(w, r)
	if err != nil {
		return err
	}
	if inHoneypot(r.FormValue("name")) {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return &HTTPError{Err: err, Message: "Bad request", Code: http.StatusBadRequest}
	}
	if _, ok := r.Form["text"]; ok {
		s.State.SetDraftText(commentID, r.Form.Get("text"))
	}

	user, token := s.Actor()
	key, err := l.guard(user)
	if err != nil {
		return err
	}
	ctx := backend.WithToken(r.Context(), token)
	rl := &reloader{m: l.m}
	c, err := l.orchestrator(s, rl).SubmitReply(ctx, commentID, postID, s.State.DraftText(commentID), user)
	if err != nil {
		l.sg.Forget(key)
		return err
	}
	l.submitted(w, r, postID, rl.post, c)
	return nil
}

func (l *ThreadBoard) loginHandler(w http.ResponseWriter, r *http.Request) error {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		return &HTTPError{Message: l.language().Lang("Email and password are required"), Code: http.StatusBadRequest}
	}
	s := l.sessions.Get(w, r)
	session, err := l.m.login(r.Context(), email, password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return &HTTPError{Err: err, Message: l.language().Lang("Invalid email or password"), Code: http.StatusUnauthorized}
		}
		return err
	}
	s.Login(session.Token, session.User)
	l.log.Info("user logged in", "user", session.User.ID)

	page := NewPage(&l.config.Site, l.language())
	page.Set("User", session.User)
	return page.render(w, http.StatusOK)
}

func (l *ThreadBoard) registerHandler(w http.ResponseWriter, r *http.Request) error {
	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if username == "" || email == "" || password == "" {
		return &HTTPError{Message: l.language().Lang("Username, email and password are required"), Code: http.StatusBadRequest}
	}
	user, err := l.m.register(r.Context(), username, email, password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return &HTTPError{Err: err, Message: l.language().Lang(apiErr.Message), Code: apiErr.Status}
		}
		return err
	}
	l.log.Info("user registered", "user", user.ID)

	page := NewPage(&l.config.Site, l.language())
	page.Set("User", user)
	page.Set("Login", loginPath)
	return page.render(w, http.StatusCreated)
}

func (l *ThreadBoard) logoutHandler(w http.ResponseWriter, r *http.Request) error {
	l.sessions.Get(w, r).Logout()
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func (l *ThreadBoard) feedHandler(w http.ResponseWriter, r *http.Request) error {
	postID, err := pathID(r, "postID")
	if err != nil {
		return err
	}
	t, err := l.m.loadThread(r.Context(), postID)
	if err != nil {
		return err
	}
	sc := l.config.Site
	feed := &feeds.Feed{
		Title:       t.Post.Title + " - " + sc.Title,
		Link:        &feeds.Link{Href: postURL(sc.BaseURL, *t.Post)},
		Description: excerpt(t.Post.Content, 200),
		Author:      &feeds.Author{Name: sc.AuthorName, Email: sc.AuthorEmail},
		Created:     t.Post.CreatedAt.Time,
	}
	for _, e := range thread.Flatten(t.Forest) {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          fmt.Sprintf("%d", e.Node.ID),
			Title:       e.Node.CreatedBy.Username + ": " + excerpt(e.Node.Text, 60),
			Link:        &feeds.Link{Href: commentURL(sc.BaseURL, *t.Post, e.Node.ID)},
			Author:      &feeds.Author{Name: e.Node.CreatedBy.Username},
			Description: renderText(e.Node.Text),
			Created:     e.Node.CreatedAt.Time,
		})
	}
	w.Header().Set("Content-Type", "application/rss+xml")
	return feed.WriteRss(w)
}

func (l *ThreadBoard) sitemapHandler(w http.ResponseWriter, r *http.Request) error {
	posts, err := l.m.listPosts(r.Context())
	if err != nil {
		return err
	}
	var urlSet sitemap.URLSet
	for _, p := range posts {
		u := sitemap.URL{
			Loc:        postURL(l.config.Site.BaseURL, p),
			ChangeFreq: sitemap.Daily,
			Priority:   0.7,
		}
		if p.CreatedAt.Valid {
			created := p.CreatedAt.Time
			u.LastMod = &created
		}
		urlSet.URLs = append(urlSet.URLs, u)
	}
	xml, err := sitemap.Marshal(&urlSet)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/xml")
	_, err = w.Write(xml)
	return err
}
