package thread

import (
	"math/rand"
	"testing"

	"github.com/aquilax/threadboard/comment"
	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"
)

func c(id comment.ID) comment.Comment {
	return comment.Comment{ID: id, Text: "comment"}
}

func reply(id, parent comment.ID) comment.Comment {
	cm := c(id)
	cm.Parent = &comment.Ref{ID: parent}
	return cm
}

func ids(nodes []*Node) []comment.ID {
	out := make([]comment.ID, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestBuild_ParentChildLinkage(t *testing.T) {
	forest := Build([]comment.Comment{c(1), reply(2, 1), reply(3, 2)})
	if len(forest) != 1 || forest[0].ID != 1 {
		t.Fatalf("expected single root 1, got %v", ids(forest))
	}
	if got := ids(forest[0].Replies); !cmp.Equal(got, []comment.ID{2}) {
		t.Fatalf("root replies = %v", got)
	}
	if got := ids(forest[0].Replies[0].Replies); !cmp.Equal(got, []comment.ID{3}) {
		t.Fatalf("second level replies = %v", got)
	}
	if len(forest[0].Replies[0].Replies[0].Replies) != 0 {
		t.Fatalf("leaf must have no replies")
	}
}

func TestBuild_OrphanPromotion(t *testing.T) {
	rep := BuildReport([]comment.Comment{reply(1, 99)})
	if len(rep.Roots) != 1 || rep.Roots[0].ID != 1 {
		t.Fatalf("expected orphan promoted to root, got %v", ids(rep.Roots))
	}
	if len(rep.Roots[0].Replies) != 0 {
		t.Fatalf("orphan must keep empty replies")
	}
	if !cmp.Equal(rep.Orphans, []comment.ID{1}) {
		t.Fatalf("orphans = %v", rep.Orphans)
	}
}

func TestBuild_ForwardReference(t *testing.T) {
	// replies listed before their parents still attach
	forest := Build([]comment.Comment{reply(3, 2), reply(2, 1), c(1)})
	if !cmp.Equal(ids(forest), []comment.ID{1}) {
		t.Fatalf("roots = %v", ids(forest))
	}
	if Count(forest) != 3 {
		t.Fatalf("expected 3 nodes, got %d", Count(forest))
	}
}

func TestBuild_PreservesInputOrder(t *testing.T) {
	forest := Build([]comment.Comment{c(5), reply(9, 5), c(2), reply(4, 5), reply(1, 5), c(7)})
	if got := ids(forest); !cmp.Equal(got, []comment.ID{5, 2, 7}) {
		t.Fatalf("roots = %v", got)
	}
	if got := ids(forest[0].Replies); !cmp.Equal(got, []comment.ID{9, 4, 1}) {
		t.Fatalf("replies = %v", got)
	}
}

func TestBuild_Empty(t *testing.T) {
	for _, in := range [][]comment.Comment{nil, {}} {
		forest := Build(in)
		if forest == nil || len(forest) != 0 {
			t.Fatalf("expected empty non-nil forest, got %#v", forest)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	in := []comment.Comment{c(1), reply(2, 1), reply(3, 1), reply(4, 3), reply(5, 42), c(6)}
	a, b := Build(in), Build(in)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("builds differ (-a +b):\n%s", diff)
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	in := []comment.Comment{c(1), reply(2, 1)}
	before := append([]comment.Comment(nil), in...)
	Build(in)
	if diff := cmp.Diff(before, in); diff != "" {
		t.Fatalf("input changed:\n%s", diff)
	}
}

func TestBuild_MalformedParents(t *testing.T) {
	Convey("Given comments with malformed parent chains", t, func() {
		Convey("A self referencing comment becomes a root", func() {
			rep := BuildReport([]comment.Comment{reply(1, 1)})
			So(ids(rep.Roots), ShouldResemble, []comment.ID{1})
			So(rep.Roots[0].Replies, ShouldBeEmpty)
			So(rep.Orphans, ShouldResemble, []comment.ID{1})
		})
		Convey("A parent loop is broken at its first member", func() {
			rep := BuildReport([]comment.Comment{c(10), reply(1, 2), reply(2, 1), reply(3, 2)})
			So(Count(rep.Roots), ShouldEqual, 4)
			So(ids(rep.Roots), ShouldResemble, []comment.ID{10, 1})
			So(rep.Broken, ShouldResemble, []comment.ID{1})
			So(ids(rep.Roots[1].Replies), ShouldResemble, []comment.ID{2})
			So(ids(rep.Roots[1].Replies[0].Replies), ShouldResemble, []comment.ID{3})
		})
		Convey("Duplicate ids are all kept", func() {
			forest := Build([]comment.Comment{c(1), c(1), reply(2, 1)})
			So(Count(forest), ShouldEqual, 3)
			So(ids(forest[0].Replies), ShouldResemble, []comment.ID{2})
			So(forest[1].Replies, ShouldBeEmpty)
		})
	})
}

func TestBuild_Conservation(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := rnd.Intn(40)
		in := make([]comment.Comment, 0, n)
		for i := 0; i < n; i++ {
			id := comment.ID(rnd.Intn(n + 1))
			switch rnd.Intn(3) {
			case 0:
				in = append(in, c(id))
			default:
				in = append(in, reply(id, comment.ID(rnd.Intn(n+5))))
			}
		}
		forest := Build(in)
		if got := Count(forest); got != len(in) {
			t.Fatalf("round %d: %d nodes for %d comments", round, got, len(in))
		}
		seen := make(map[*Node]bool)
		Walk(forest, func(node *Node, _ int) bool {
			if seen[node] {
				t.Fatalf("round %d: node %d visited twice", round, node.ID)
			}
			seen[node] = true
			return true
		})
		want := make(map[comment.ID]int)
		for _, cm := range in {
			want[cm.ID]++
		}
		got := make(map[comment.ID]int)
		for node := range seen {
			got[node.ID]++
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round %d: id multiset differs:\n%s", round, diff)
		}
	}
}

func TestFlattenAndFind(t *testing.T) {
	forest := Build([]comment.Comment{c(1), reply(2, 1), reply(3, 2), c(4), reply(5, 1)})
	entries := Flatten(forest)
	var got [][2]int64
	for _, e := range entries {
		got = append(got, [2]int64{e.Node.ID, int64(e.Depth)})
	}
	want := [][2]int64{{1, 0}, {2, 1}, {3, 2}, {5, 1}, {4, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("flatten order (-want +got):\n%s", diff)
	}
	if n := Find(forest, 3); n == nil || n.ID != 3 {
		t.Fatalf("expected to find 3")
	}
	if Find(forest, 77) != nil {
		t.Fatalf("unexpected node for missing id")
	}
}

func TestWalk_SkipReplies(t *testing.T) {
	forest := Build([]comment.Comment{c(1), reply(2, 1), c(3)})
	var visited []comment.ID
	Walk(forest, func(n *Node, _ int) bool {
		visited = append(visited, n.ID)
		return n.ID != 1
	})
	if !cmp.Equal(visited, []comment.ID{1, 3}) {
		t.Fatalf("visited = %v", visited)
	}
}

func TestIndent(t *testing.T) {
	tests := []struct{ depth, want int }{{0, 0}, {1, 20}, {4, 80}, {5, 100}, {9, 100}, {-1, 0}}
	for _, tt := range tests {
		if got := Indent(tt.depth); got != tt.want {
			t.Errorf("Indent(%d) = %d, want %d", tt.depth, got, tt.want)
		}
	}
}
