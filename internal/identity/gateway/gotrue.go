package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"driver-provisioning/backend/internal/identity/domain"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultPageSize      = 1000
	defaultMaxPages      = 10
	defaultRetryInterval = 200 * time.Millisecond
)

// Client talks to a GoTrue-compatible admin API (e.g. Supabase Auth) with a
// service-role key. The service has no lookup-by-email, so FindByEmail scans
// the user list page by page up to MaxPages.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// PageSize and MaxPages bound FindByEmail.
	PageSize int
	MaxPages int
	// MaxAttempts is the number of tries for transiently failing calls; 1 disables retry.
	MaxAttempts          int
	RetryInitialInterval time.Duration
	// RedirectURL is passed as redirect_to when generating credential links; optional.
	RedirectURL string
	Logger      *slog.Logger
}

// NewClient returns a client for the admin API rooted at baseURL (e.g.
// https://project.supabase.co/auth/v1) using apiKey for both the apikey and
// bearer headers.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:              strings.TrimSuffix(baseURL, "/"),
		APIKey:               apiKey,
		HTTPClient:           &http.Client{Timeout: defaultTimeout},
		PageSize:             defaultPageSize,
		MaxPages:             defaultMaxPages,
		MaxAttempts:          1,
		RetryInitialInterval: defaultRetryInterval,
	}
}

type userResponse struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	UserMetadata json.RawMessage `json:"user_metadata"`
	AppMetadata  json.RawMessage `json:"app_metadata"`
	CreatedAt    string          `json:"created_at"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

type createUserRequest struct {
	Email        string             `json:"email"`
	Password     string             `json:"password"`
	EmailConfirm bool               `json:"email_confirm"`
	UserMetadata domain.Metadata    `json:"user_metadata"`
	AppMetadata  domain.AppMetadata `json:"app_metadata"`
}

type updateUserRequest struct {
	Password     string             `json:"password,omitempty"`
	UserMetadata domain.Metadata    `json:"user_metadata"`
	AppMetadata  domain.AppMetadata `json:"app_metadata"`
}

type generateLinkRequest struct {
	Type       string `json:"type"`
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type generateLinkResponse struct {
	ActionLink string `json:"action_link"`
	Properties struct {
		ActionLink string `json:"action_link"`
	} `json:"properties"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r errorResponse) text() string {
	for _, s := range []string{r.Msg, r.Message, r.ErrorDescription, r.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Create creates a confirmed identity. An already registered email yields an
// *Error of KindConflict.
func (c *Client) Create(ctx context.Context, p CreateParams) (*domain.Identity, error) {
	var out userResponse
	err := c.do(ctx, "create", http.MethodPost, "/admin/users", nil, createUserRequest{
		Email:        p.Email,
		Password:     p.Password,
		EmailConfirm: true,
		UserMetadata: p.Metadata,
		AppMetadata:  p.AppMetadata,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Op: "create", Kind: KindUnknown, Message: "service returned no user id"}
	}
	return out.toDomain(), nil
}

// FindByEmail scans pages 1..MaxPages of PageSize users for a case-insensitive
// email match. It stops early on a short page. Returns nil, nil if no match.
func (c *Client) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	want := strings.ToLower(strings.TrimSpace(email))
	pageSize, maxPages := c.pageSize(), c.maxPages()
	for page := 1; page <= maxPages; page++ {
		users, err := c.listUsers(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		for i := range users {
			if strings.ToLower(users[i].Email) == want {
				return users[i].toDomain(), nil
			}
		}
		if len(users) < pageSize {
			return nil, nil
		}
	}
	c.logger().Warn("identity search exhausted page limit", "email", email, "max_pages", maxPages, "page_size", pageSize)
	return nil, nil
}

// Update overwrites the identity's credential and metadata.
func (c *Client) Update(ctx context.Context, id string, p UpdateParams) error {
	return c.do(ctx, "update", http.MethodPut, "/admin/users/"+url.PathEscape(id), nil, updateUserRequest{
		Password:     p.Password,
		UserMetadata: p.Metadata,
		AppMetadata:  p.AppMetadata,
	}, nil)
}

// Delete removes the identity. A missing identity yields an *Error of KindNotFound.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil, nil)
}

// GenerateCredentialLink asks the service for a recovery link for email.
func (c *Client) GenerateCredentialLink(ctx context.Context, email string) (string, error) {
	var out generateLinkResponse
	err := c.do(ctx, "generate_link", http.MethodPost, "/admin/generate_link", nil, generateLinkRequest{
		Type:       "recovery",
		Email:      email,
		RedirectTo: c.RedirectURL,
	}, &out)
	if err != nil {
		return "", err
	}
	link := out.ActionLink
	if link == "" {
		link = out.Properties.ActionLink
	}
	if link == "" {
		return "", &Error{Op: "generate_link", Kind: KindUnknown, Message: "service returned no action link"}
	}
	return link, nil
}

// CheckAccess lists a single user to confirm the admin API accepts the key.
func (c *Client) CheckAccess(ctx context.Context) error {
	_, err := c.listUsers(ctx, 1, 1)
	return err
}

func (c *Client) listUsers(ctx context.Context, page, perPage int) ([]userResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	var out listUsersResponse
	if err := c.do(ctx, "list", http.MethodGet, "/admin/users", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// do sends one admin API call, retrying only failures classified as
// KindUnavailable, up to MaxAttempts tries.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindUnknown, Message: "encode request", Err: err}
		}
		raw = b
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	if c.RetryInitialInterval > 0 {
		bo.InitialInterval = c.RetryInitialInterval
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.doOnce(ctx, op, method, path, query, raw, out)
		if err != nil && KindOf(err) != KindUnavailable {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			c.logger().Warn("identity service call failed, may retry", "op", op, "error", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(attempts)))
	return err
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, query url.Values, raw []byte, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reqBody io.Reader
	if raw != nil {
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return &Error{Op: op, Kind: KindUnknown, Message: "new request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindUnavailable, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var er errorResponse
		_ = json.Unmarshal(b, &er)
		msg := er.text()
		if msg == "" {
			msg = strings.TrimSpace(string(b))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{
			Op:      op,
			Kind:    classify(resp.StatusCode, er.ErrorCode, msg),
			Status:  resp.StatusCode,
			Code:    er.ErrorCode,
			Message: msg,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

func (c *Client) pageSize() int {
	if c.PageSize <= 0 {
		return defaultPageSize
	}
	return c.PageSize
}

func (c *Client) maxPages() int {
	if c.MaxPages <= 0 {
		return defaultMaxPages
	}
	return c.MaxPages
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (u *userResponse) toDomain() *domain.Identity {
	ident := &domain.Identity{ID: u.ID, Email: u.Email}
	if len(u.UserMetadata) > 0 {
		// Legacy records may carry differently typed fields; keep what decodes.
		_ = json.Unmarshal(u.UserMetadata, &ident.Metadata)
	}
	if len(u.AppMetadata) > 0 {
		_ = json.Unmarshal(u.AppMetadata, &ident.AppMetadata)
	}
	if t, err := time.Parse(time.RFC3339Nano, u.CreatedAt); err == nil {
		ident.CreatedAt = t
	}
	return ident
}
