package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/backend/sqldb"
	"github.com/aquilax/threadboard/comment"
	"github.com/aquilax/threadboard/thread"
	. "github.com/smartystreets/goconvey/convey"
)

func openTest(t *testing.T) *sqldb.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteBackend(t *testing.T) {
	Convey("Given a fresh sqlite database with one post", t, func() {
		db := openTest(t)
		ctx := context.Background()

		alice, err := db.Register(ctx, "alice", "Alice@Example.com", "secret")
		So(err, ShouldBeNil)
		communityID, err := db.CreateCommunity(ctx, "golang", "All things Go")
		So(err, ShouldBeNil)
		postID, err := db.CreatePost(ctx, communityID, alice.ID, "Hello", "First post")
		So(err, ShouldBeNil)

		Convey("A new post has no comments", func() {
			p, err := db.GetPost(ctx, postID)
			So(err, ShouldBeNil)
			So(p.Title, ShouldEqual, "Hello")
			So(p.User.Username, ShouldEqual, "alice")
			So(p.Comments, ShouldBeEmpty)
		})

		Convey("Comments and replies come back as a flat list that builds into a tree", func() {
			root, err := db.CreateComment(ctx, comment.NewComment{Text: " root ", PostID: postID, UserID: alice.ID})
			So(err, ShouldBeNil)
			So(root.Text, ShouldEqual, "root")
			So(root.IsReply(), ShouldBeFalse)

			child, err := db.CreateReply(ctx, comment.NewReply{Text: "child", PostID: postID, ParentID: root.ID, UserID: alice.ID})
			So(err, ShouldBeNil)
			So(child.Parent, ShouldResemble, &comment.Ref{ID: root.ID})
			So(child.CreatedAt.Valid, ShouldBeTrue)

			p, err := db.GetPost(ctx, postID)
			So(err, ShouldBeNil)
			forest := thread.Build(p.Comments)
			So(forest, ShouldHaveLength, 1)
			So(forest[0].Replies, ShouldHaveLength, 1)
			So(forest[0].Replies[0].ID, ShouldEqual, child.ID)
		})

		Convey("Blank text is rejected", func() {
			_, err := db.CreateComment(ctx, comment.NewComment{Text: "  ", PostID: postID, UserID: alice.ID})
			var apiErr *backend.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Status, ShouldEqual, 400)
		})

		Convey("Replying to an unknown parent is rejected as not found", func() {
			_, err := db.CreateReply(ctx, comment.NewReply{Text: "x", PostID: postID, ParentID: 999, UserID: alice.ID})
			So(errors.Is(err, backend.ErrNotFound), ShouldBeTrue)
		})

		Convey("An unknown author is rejected and nothing is stored", func() {
			_, err := db.CreateComment(ctx, comment.NewComment{Text: "ghost", PostID: postID, UserID: 999})
			var apiErr *backend.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Message, ShouldEqual, "User not found")

			var stored int
			So(db.SQL().GetContext(ctx, &stored, `SELECT count(*) FROM comments`), ShouldBeNil)
			So(stored, ShouldEqual, 0)
		})

		Convey("Foreign keys are enforced", func() {
			_, err := db.SQL().ExecContext(ctx, `INSERT INTO comments (post_id, user_id, text, created_at) VALUES (?, ?, 'x', CURRENT_TIMESTAMP)`, postID, 999)
			So(err, ShouldNotBeNil)
		})

		Convey("Registering the same email twice is rejected", func() {
			_, err := db.Register(ctx, "alice2", "alice@example.com", "other")
			var apiErr *backend.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Status, ShouldEqual, 409)
		})

		Convey("Missing records map to ErrNotFound", func() {
			_, err := db.GetPost(ctx, 999)
			So(errors.Is(err, backend.ErrNotFound), ShouldBeTrue)
			_, err = db.GetCommunity(ctx, 999)
			So(errors.Is(err, backend.ErrNotFound), ShouldBeTrue)
		})

		Convey("The community of a post lists it", func() {
			c, err := db.CommunityForPost(ctx, postID)
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, "golang")
			So(c.HasPost(postID), ShouldBeTrue)

			posts, err := db.ListPosts(ctx)
			So(err, ShouldBeNil)
			So(posts, ShouldHaveLength, 1)

			list, err := db.ListCommunities(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].HasPost(postID), ShouldBeTrue)
		})

		Convey("Login checks the bcrypt hash", func() {
			s, err := db.Login(ctx, "alice@example.com", "secret")
			So(err, ShouldBeNil)
			So(s.User.ID, ShouldEqual, alice.ID)
			So(s.Token, ShouldNotBeEmpty)

			_, err = db.Login(ctx, "alice@example.com", "wrong")
			So(err, ShouldNotBeNil)
			_, err = db.Login(ctx, "nobody@example.com", "secret")
			So(err, ShouldNotBeNil)
		})
	})
}
