package main

import (
	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/interaction"
	"github.com/aquilax/threadboard/thread"
	"github.com/aquilax/threadboard/timeago"
)

type authorView struct {
	ID       comment.ID `json:"id"`
	Username string     `json:"username"`
	Points   int        `json:"points"`
	Avatar   string     `json:"avatar"`
}

type commentView struct {
	ID            comment.ID     `json:"id"`
	Text          string         `json:"text"`
	HTML          string         `json:"html"`
	Points        int            `json:"points"`
	Author        authorView     `json:"author"`
	TimeAgo       string         `json:"timeAgo"`
	Depth         int            `json:"depth"`
	Indent        int            `json:"indent"`
	ReplyFormOpen bool           `json:"replyFormOpen"`
	Draft         string         `json:"draft,omitempty"`
	Submitting    bool           `json:"submitting"`
	CanSubmit     bool           `json:"canSubmit"`
	Replies       []*commentView `json:"replies"`
}

type postView struct {
	ID        comment.ID `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	HTML      string     `json:"html,omitempty"`
	URL       string     `json:"url"`
	Author    authorView `json:"author"`
	TimeAgo   string     `json:"timeAgo"`
	Community string     `json:"community,omitempty"`
	Comments  int        `json:"comments"`
}

type communityView struct {
	ID          comment.ID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	TimeAgo     string     `json:"timeAgo"`
	PostCount   int        `json:"postCount"`
	Posts       []postView `json:"posts,omitempty"`
}

// viewBuilder turns domain records into the values sent to the browser.
type viewBuilder struct {
	baseURL string
	tf      timeago.Formatter
	ln      *Language
	state   *interaction.Store
}

func (vb viewBuilder) author(u comment.User) authorView {
	return authorView{ID: u.ID, Username: u.Username, Points: u.Points, Avatar: hfGravatar(u.Email)}
}

func (vb viewBuilder) timeAgo(ts comment.Timestamp) string {
	return vb.ln.Lang(vb.tf.Format(ts))
}

func (vb viewBuilder) post(p comment.Post, withBody bool) postView {
	v := postView{
		ID:       p.ID,
		Title:    p.Title,
		URL:      postURL(vb.baseURL, p),
		Author:   vb.author(p.User),
		TimeAgo:  vb.timeAgo(p.CreatedAt),
		Comments: len(p.Comments),
	}
	if withBody {
		v.Content = p.Content
		v.HTML = renderText(p.Content)
	}
	if p.Community != nil {
		v.Community = p.Community.Name
	}
	return v
}

// community lists the posts newest first when withPosts is set.
func (vb viewBuilder) community(c comment.Community, withPosts bool) communityView {
	v := communityView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		URL:         communityURL(vb.baseURL, c),
		TimeAgo:     vb.timeAgo(c.CreatedAt),
		PostCount:   len(c.Posts),
	}
	if withPosts {
		posts := append([]comment.Post(nil), c.Posts...)
		comment.SortPostsNewestFirst(posts)
		v.Posts = make([]postView, 0, len(posts))
		for _, p := range posts {
			pv := vb.post(p, false)
			pv.Community = c.Name
			v.Posts = append(v.Posts, pv)
		}
	}
	return v
}

func (vb viewBuilder) forest(nodes []*thread.Node, depth int) []*commentView {
	result := make([]*commentView, 0, len(nodes))
	for _, n := range nodes {
		v := &commentView{
			ID:      n.ID,
			Text:    n.Text,
			HTML:    renderText(n.Text),
			Points:  n.Points,
			Author:  vb.author(n.CreatedBy),
			TimeAgo: vb.timeAgo(n.CreatedAt),
			Depth:   depth,
			Indent:  thread.Indent(depth),
			Replies: vb.forest(n.Replies, depth+1),
		}
		if vb.state != nil {
			v.ReplyFormOpen = vb.state.ReplyFormOpen(n.ID)
			v.Draft = vb.state.DraftText(n.ID)
			v.Submitting = vb.state.IsSubmitting(n.ID)
			v.CanSubmit = vb.state.CanSubmit(n.ID)
		}
		result = append(result, v)
	}
	return result
}
