// Package rest talks to the external comment backend over its JSON HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/comment"
)

const DefaultTimeout = 10 * time.Second

// Client is a thin HTTP wrapper for the backend API. It builds URLs from the
// base URL and injects the bearer token found in the request context.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

var _ backend.Backend = (*Client)(nil)
var _ backend.Authenticator = (*Client)(nil)
var _ backend.Registrar = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := backend.TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.log.Debug("backend call", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return backend.Rejected(resp.StatusCode, eb.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) GetPost(ctx context.Context, id comment.ID) (*comment.Post, error) {
	var p comment.Post
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d", id), nil, &p); err != nil {
		return nil, err
	}
	if p.Comments == nil {
		p.Comments = []comment.Comment{}
	}
	return &p, nil
}

func (c *Client) ListPosts(ctx context.Context) ([]comment.Post, error) {
	var list []comment.Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetCommunity(ctx context.Context, id comment.ID) (*comment.Community, error) {
	var cm comment.Community
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/communities/%d", id), nil, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (c *Client) ListCommunities(ctx context.Context) ([]comment.Community, error) {
	var list []comment.Community
	if err := c.do(ctx, http.MethodGet, "/communities", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CommunityForPost lists every community and picks the one that holds the
// post; the API has no reverse lookup.
func (c *Client) CommunityForPost(ctx context.Context, postID comment.ID) (*comment.Community, error) {
	list, err := c.ListCommunities(ctx)
	if err != nil {
		return nil, err
	}
	return backend.FindCommunity(list, postID)
}

func (c *Client) CreateComment(ctx context.Context, in comment.NewComment) (*comment.Comment, error) {
	var out comment.Comment
	if err := c.do(ctx, http.MethodPost, "/comments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateReply(ctx context.Context, in comment.NewReply) (*comment.Comment, error) {
	var out comment.Comment
	if err := c.do(ctx, http.MethodPost, "/comments/reply", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string     `json:"token"`
	Email    string     `json:"email"`
	ID       comment.ID `json:"id"`
	Username string     `json:"username"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*backend.Session, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, backend.Rejected(http.StatusUnauthorized, "Login failed")
	}
	name := out.Username
	if name == "" {
		name, _, _ = strings.Cut(out.Email, "@")
	}
	return &backend.Session{
		Token: out.Token,
		User:  comment.User{ID: out.ID, Email: out.Email, Username: name},
	}, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register signs a user up. The API answers like login; the token is
// dropped and the user logs in separately.
func (c *Client) Register(ctx context.Context, username, email, password string) (*comment.User, error) {
	var out loginResponse
	in := registerRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/users/register", in, &out); err != nil {
		return nil, err
	}
	if out.Username == "" {
		out.Username = username
	}
	if out.Email == "" {
		out.Email = email
	}
	return &comment.User{ID: out.ID, Username: out.Username, Email: out.Email}, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
