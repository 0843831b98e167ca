package main

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/aquilax/threadboard/comment"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var ugcPolicy = bluemonday.UGCPolicy()

func hfSlug(s string) string {
	return slug.Make(s) + ".html"
}

func postURL(baseURL string, p comment.Post) string {
	return strings.TrimRight(baseURL, "/") + "/posts/" + strconv.FormatInt(p.ID, 10) + "/" + hfSlug(p.Title)
}

func communityURL(baseURL string, c comment.Community) string {
	return strings.TrimRight(baseURL, "/") + "/communities/" + strconv.FormatInt(c.ID, 10) + "/" + hfSlug(c.Name)
}

func commentURL(baseURL string, p comment.Post, id comment.ID) string {
	return postURL(baseURL, p) + "#C" + strconv.FormatInt(id, 10)
}

func inHoneypot(t string) bool {
	return len(t) > 0
}

func renderText(t string) string {
	extensions := blackfriday.CommonExtensions |
		blackfriday.Autolink |
		blackfriday.HardLineBreak |
		blackfriday.NoIntraEmphasis |
		blackfriday.Strikethrough

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.UseXHTML | blackfriday.Smartypants | blackfriday.SmartypantsFractions,
	})
	unsafe := blackfriday.Run([]byte(t), blackfriday.WithExtensions(extensions), blackfriday.WithRenderer(renderer))
	return string(ugcPolicy.SanitizeBytes(unsafe))
}

func hfGravatar(email string) string {
	if email == "" {
		return "http://www.gravatar.com/avatar/00000000000000000000000000000000?d=retro"
	}
	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "http://www.gravatar.com/avatar/" + hex.EncodeToString(hash[:]) + "?d=retro"
}
