package main

import (
	"strings"
	"testing"

	"github.com/aquilax/threadboard/comment"
)

func TestPostURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		post    comment.Post
		want    string
	}{
		{"absolute", "http://www.example.com/", comment.Post{ID: 1, Title: "Test Node"}, "http://www.example.com/posts/1/test-node.html"},
		{"relative", "", comment.Post{ID: 7, Title: "Hello, World!"}, "/posts/7/hello-world.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postURL(tt.baseURL, tt.post); got != tt.want {
				t.Errorf("postURL() = %v, want %v", got, tt.want)
			}
		})
	}
	if got := commentURL("", comment.Post{ID: 7, Title: "x"}, 3); got != "/posts/7/x.html#C3" {
		t.Errorf("commentURL() = %v", got)
	}
	if got := communityURL("http://www.example.com/", comment.Community{ID: 2, Name: "Go Lang"}); got != "http://www.example.com/communities/2/go-lang.html" {
		t.Errorf("communityURL() = %v", got)
	}
}

func TestRenderText(t *testing.T) {
	tests := []struct {
		in       string
		contains string
		excludes string
	}{
		{"*hi*", "<em>hi</em>", ""},
		{"<script>alert(1)</script>ok", "ok", "<script>"},
		{"[x](javascript:alert(1))", "x", "javascript:"},
	}
	for _, tt := range tests {
		got := renderText(tt.in)
		if !strings.Contains(got, tt.contains) {
			t.Errorf("renderText(%q) = %q, want it to contain %q", tt.in, got, tt.contains)
		}
		if tt.excludes != "" && strings.Contains(got, tt.excludes) {
			t.Errorf("renderText(%q) = %q, must not contain %q", tt.in, got, tt.excludes)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("  a\n b  ", 10); got != "a b" {
		t.Errorf("got %q", got)
	}
	if got := excerpt("abcdef", 3); got != "abc…" {
		t.Errorf("got %q", got)
	}
}

func TestHoneypotAndGravatar(t *testing.T) {
	if inHoneypot("") || !inHoneypot("bot") {
		t.Error("honeypot")
	}
	if hfGravatar("A@b.c ") != hfGravatar("a@b.c") {
		t.Error("gravatar must normalize the email")
	}
}
