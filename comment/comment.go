package comment

import (
	"sort"
)

type ID = int64

// User is the summary of an account as the backend embeds it in comments
// and posts.
type User struct {
	ID       ID     `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email,omitempty" db:"email"`
	Points   int    `json:"points" db:"points"`
}

// Ref points at another comment by id. The comment itself is never owned.
type Ref struct {
	ID ID `json:"id"`
}

type Comment struct {
	ID        ID        `json:"id"`
	Text      string    `json:"text"`
	Points    int       `json:"points"`
	CreatedBy User      `json:"createdBy"`
	CreatedAt Timestamp `json:"createdAt"`
	// Parent is nil for root comments.
	Parent *Ref `json:"parent,omitempty"`
}

// IsReply reports whether the comment declares a parent.
func (c Comment) IsReply() bool {
	return c.Parent != nil
}

// ParentID returns the declared parent id, if any.
func (c Comment) ParentID() (ID, bool) {
	if c.Parent == nil {
		return 0, false
	}
	return c.Parent.ID, true
}

type Post struct {
	ID        ID         `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	User      User       `json:"user"`
	Comments  []Comment  `json:"comments"`
	CreatedAt Timestamp  `json:"createdAt"`
	Community *Community `json:"community,omitempty"`
}

type Community struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Posts       []Post    `json:"posts,omitempty"`
	Users       []User    `json:"users,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// HasPost reports whether the community lists a post with the given id.
func (c Community) HasPost(postID ID) bool {
	for _, p := range c.Posts {
		if p.ID == postID {
			return true
		}
	}
	return false
}

// NewComment is the payload for a top-level comment.
type NewComment struct {
	Text   string `json:"text"`
	PostID ID     `json:"postId"`
	UserID ID     `json:"userId"`
}

// NewReply is the payload for a reply to an existing comment.
type NewReply struct {
	Text     string `json:"text"`
	PostID   ID     `json:"postId"`
	ParentID ID     `json:"parentId"`
	UserID   ID     `json:"userId"`
}

// SortNewestFirst orders comments by creation time, newest first. Comments
// without a valid timestamp keep their relative order at the end.
func SortNewestFirst(list []Comment) {
	newestFirst(list, func(c Comment) Timestamp { return c.CreatedAt })
}

// SortPostsNewestFirst orders posts the same way.
func SortPostsNewestFirst(list []Post) {
	newestFirst(list, func(p Post) Timestamp { return p.CreatedAt })
}

func newestFirst[T any](list []T, at func(T) Timestamp) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := at(list[i]), at(list[j])
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Time.After(b.Time)
	})
}
