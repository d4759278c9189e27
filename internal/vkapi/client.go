// Package vkapi is a small client for the REST methods the chat client needs.
package vkapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/lenormf/vk-chat/internal"
)

const (
	DefaultBaseURL = "https://api.vk.com/method"
	DefaultVersion = "5.21"
	defaultTimeout = 15 * time.Second
)

// ErrNoToken is returned by calls made before a token was set
var ErrNoToken = errors.New("no access token set")

// APIError is an {"error": {...}} answer of the API
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: error %d: %s", e.Method, e.Code, e.Message)
}

// Client calls API methods over fasthttp
type Client struct {
	http    *fasthttp.Client
	baseURL string
	version string
	timeout time.Duration

	mu    sync.RWMutex
	token string
}

var _ internal.RemoteAPI = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithDial replaces the dialer, mostly for tests
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// WithTimeout bounds calls made with a context that has no deadline
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client. Empty baseURL and version use the defaults.
func NewClient(baseURL, version, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	c := &Client{
		http: &fasthttp.Client{
			Name:                "vkchat",
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		timeout: defaultTimeout,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the access token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// call posts params to method and returns the raw "response" member
func (c *Client) call(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	token := c.currentToken()
	if token == "" {
		return nil, &APIError{Method: method, Code: 5, Message: ErrNoToken.Error()}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/" + method)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")

	args := req.PostArgs()
	for k, v := range params {
		args.Set(k, v)
	}
	args.Set("access_token", token)
	args.Set("v", c.version)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	internal.LogDebug("calling %s", method)
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("%s: unexpected HTTP status %d", method, code)
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: malformed JSON answer", method)
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return nil, &APIError{
			Method:  method,
			Code:    int(e.Get("error_code").Int()),
			Message: e.Get("error_msg").String(),
		}
	}
	r := gjson.GetBytes(body, "response")
	if !r.Exists() {
		return nil, fmt.Errorf("%s: answer has no response", method)
	}

	// body is owned by resp, which goes back to the pool
	return []byte(r.Raw), nil
}

// Authenticate checks the token by fetching the owner's profile
func (c *Client) Authenticate(ctx context.Context) (*internal.Contact, error) {
	raw, err := c.call(ctx, "users.get", map[string]string{"fields": "nickname"})
	if err != nil {
		return nil, err
	}
	var users []internal.Contact
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("users.get: %w", err)
	}
	if len(users) == 0 {
		return nil, errors.New("users.get: empty answer")
	}
	return &users[0], nil
}

// GetLongPollServer fetches a long-poll server descriptor
func (c *Client) GetLongPollServer(ctx context.Context) (*internal.ServerDescriptor, error) {
	raw, err := c.call(ctx, "messages.getLongPollServer", map[string]string{
		"use_ssl":  "0",
		"need_pts": "0",
	})
	if err != nil {
		return nil, err
	}
	r := gjson.ParseBytes(raw)
	d := &internal.ServerDescriptor{
		Server: r.Get("server").String(),
		Key:    r.Get("key").String(),
		Cursor: r.Get("ts").String(),
	}
	if d.Server == "" || d.Key == "" {
		return nil, errors.New("messages.getLongPollServer: incomplete descriptor")
	}
	return d, nil
}

// GetFriends fetches the friend list, most contacted first
func (c *Client) GetFriends(ctx context.Context) ([]internal.Contact, error) {
	raw, err := c.call(ctx, "friends.get", map[string]string{
		"order":     "hints",
		"count":     "0",
		"offset":    "0",
		"fields":    "first_name,last_name,nickname",
		"name_case": "nom",
	})
	if err != nil {
		return nil, err
	}
	var page struct {
		Count int                `json:"count"`
		Items []internal.Contact `json:"items"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("friends.get: %w", err)
	}
	return page.Items, nil
}

// GetDialogs fetches the last message of each dialog
func (c *Client) GetDialogs(ctx context.Context, unreadOnly bool) ([]internal.ChatMessage, error) {
	params := map[string]string{
		"count":          "200",
		"preview_length": "0",
	}
	if unreadOnly {
		params["unread"] = "1"
	}
	raw, err := c.call(ctx, "messages.getDialogs", params)
	if err != nil {
		return nil, err
	}

	var messages []internal.ChatMessage
	gjson.GetBytes(raw, "items").ForEach(func(_, item gjson.Result) bool {
		m := item.Get("message")
		if !m.Exists() {
			m = item
		}
		messages = append(messages, internal.ChatMessage{
			ID:            m.Get("id").Int(),
			UserID:        m.Get("user_id").Int(),
			TimestampSec:  m.Get("date").Int(),
			Body:          m.Get("body").String(),
			HasAttachment: len(m.Get("attachments").Array()) > 0,
			Outgoing:      m.Get("out").Int() == 1,
		})
		return true
	})
	return messages, nil
}

// MarkAsRead acknowledges messages
func (c *Client) MarkAsRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	_, err := c.call(ctx, "messages.markAsRead", map[string]string{
		"message_ids": strings.Join(parts, ","),
	})
	return err
}

// SendMessage sends text to a user and returns the new message id
func (c *Client) SendMessage(ctx context.Context, userID int64, text string) (int64, error) {
	raw, err := c.call(ctx, "messages.send", map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"message": text,
	})
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("messages.send: unexpected answer %s", raw)
	}
	return id, nil
}
