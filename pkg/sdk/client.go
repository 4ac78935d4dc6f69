// Package sdk provides the check-in API surface shared by the in-process service and
// the remote HTTP client, plus the storage contracts the stores persist through.
package sdk

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

// DefaultTimeout bounds a single remote request.
const DefaultTimeout = 15 * time.Second

// apiError is the error body of the HTTP API.
type apiError struct {
	Error string `json:"error"`
}

// known maps error messages of the HTTP API back to sentinels.
var known = []error{
	ErrMissingCredentials, ErrInvalidCredentials, ErrDemoUnavailable, ErrMissingCode,
	ErrInvalidCode, ErrAlreadyCompleted, ErrInvalidDate, ErrInvalidMonth, ErrInvalidRole,
}

// Client is the remote implementation of CheckinAPI over the HTTP API.
// Every failure wraps ErrRequestFailed; requests are never retried.
type Client struct {
	http    *resty.Client
	session Storage

	mu      sync.Mutex
	current *schema.AuthSession
}

var _ CheckinAPI = (*Client)(nil)

// NewClient creates a client for the API at baseURL. The session is kept in session
// when it is not nil so it survives restarts of the caller.
func NewClient(baseURL string, session Storage, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{session: session}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0).
		SetError(&apiError{})
	return c
}

// --- Session ---

func (c *Client) GetSession() (*schema.AuthSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Client) Login(email, password string) (schema.AuthSession, error) {
	var sess schema.AuthSession
	err := c.do(http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &sess)
	if err != nil {
		return schema.AuthSession{}, err
	}
	if err := c.store(&sess); err != nil {
		return schema.AuthSession{}, err
	}
	return sess, nil
}

func (c *Client) DemoLogin(role schema.Role) (schema.AuthSession, error) {
	var sess schema.AuthSession
	err := c.do(http.MethodPost, "/api/auth/demo", nil, map[string]string{"role": string(role)}, &sess)
	if err != nil {
		return schema.AuthSession{}, err
	}
	if err := c.store(&sess); err != nil {
		return schema.AuthSession{}, err
	}
	return sess, nil
}

// Logout clears the local session and revokes its token on the server. The local
// session is cleared even when the server cannot be reached.
func (c *Client) Logout() error {
	c.mu.Lock()
	sess, _ := c.loadLocked()
	c.mu.Unlock()

	if err := c.store(nil); err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	return c.doWithToken(sess.Token, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

// --- Attendance ---

func (c *Client) RecordScan(userID, code string) (schema.AttendanceDay, error) {
	var day schema.AttendanceDay
	err := c.do(http.MethodPost, "/api/attendance/scan", nil, map[string]string{
		"userId": userID,
		"code":   code,
	}, &day)
	return day, err
}

func (c *Client) GetDay(userID, dateKey string) (schema.AttendanceDay, error) {
	var day schema.AttendanceDay
	err := c.do(http.MethodGet, "/api/attendance/day", map[string]string{
		"userId": userID,
		"date":   dateKey,
	}, nil, &day)
	return day, err
}

func (c *Client) GetWeek(userID string) ([]schema.AttendanceDay, error) {
	var days []schema.AttendanceDay
	err := c.do(http.MethodGet, "/api/attendance/week", map[string]string{"userId": userID}, nil, &days)
	return days, err
}

func (c *Client) GetHistory(userID, monthKey string) ([]schema.AttendanceDay, error) {
	var days []schema.AttendanceDay
	err := c.do(http.MethodGet, "/api/attendance/history", map[string]string{
		"userId": userID,
		"month":  monthKey,
	}, nil, &days)
	return days, err
}

// --- Admin ---

func (c *Client) GetAdminRows(dateKey string) ([]schema.AdminRow, error) {
	var rows []schema.AdminRow
	err := c.do(http.MethodGet, "/api/admin/attendance", map[string]string{"date": dateKey}, nil, &rows)
	return rows, err
}

func (c *Client) ListUsers() ([]schema.User, error) {
	var users []schema.User
	err := c.do(http.MethodGet, "/api/admin/users", nil, nil, &users)
	return users, err
}

func (c *Client) UpsertUser(user schema.User) (schema.User, error) {
	var out schema.User
	err := c.do(http.MethodPost, "/api/admin/users", nil, user, &out)
	return out, err
}

// ToggleUser returns nil when the server does not know userID.
func (c *Client) ToggleUser(userID string) (*schema.User, error) {
	var out *schema.User
	err := c.do(http.MethodPost, "/api/admin/users/"+url.PathEscape(userID)+"/toggle", nil, nil, &out)
	return out, err
}

// ExportDay downloads the admin spreadsheet for dateKey.
func (c *Client) ExportDay(dateKey string) ([]byte, error) {
	req := c.http.R().SetQueryParam("date", dateKey)
	if tok := c.token(); tok != "" {
		req.SetAuthToken(tok)
	}
	resp, err := req.Get("/api/admin/attendance/export")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return resp.Body(), nil
}

// --- Internals ---

func (c *Client) do(method, path string, query map[string]string, body, result any) error {
	return c.doWithToken(c.token(), method, path, query, body, result)
}

func (c *Client) doWithToken(token, method, path string, query map[string]string, body, result any) error {
	req := c.http.R()
	if token != "" {
		req.SetAuthToken(token)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

func responseError(resp *resty.Response) error {
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		msg = e.Error
	}
	for _, sentinel := range known {
		if msg == sentinel.Error() {
			return fmt.Errorf("%w: %w", ErrRequestFailed, sentinel)
		}
	}
	return fmt.Errorf("%w: %s", ErrRequestFailed, msg)
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, _ := c.loadLocked()
	if sess == nil {
		return ""
	}
	return sess.Token
}

func (c *Client) loadLocked() (*schema.AuthSession, error) {
	if c.session == nil {
		return c.current, nil
	}
	sess, err := Get[*schema.AuthSession](c.session, KeyAuth, nil)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Token == "" {
		return nil, nil
	}
	return sess, nil
}

func (c *Client) store(sess *schema.AuthSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = sess
	if c.session == nil {
		return nil
	}
	if sess == nil {
		if err := c.session.Remove(KeyAuth); err != nil && !errors.Is(err, ErrKeyNotFound) {
			return err
		}
		return nil
	}
	return Set(c.session, KeyAuth, sess)
}
