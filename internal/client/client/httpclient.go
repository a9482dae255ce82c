package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

// Relay API routes.
const (
	RegisterPath = "/auth/register"
	LoginPath    = "/auth/login"
	RefreshPath  = "/auth/refresh"
	MessagesPath = "/chat/messages"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type pageResponse struct {
	Messages    []json.RawMessage `json:"messages"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPClient implements Client over the relay's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	creds Credentials
	// refreshMu serializes refreshes so concurrent 401s rotate the pair once.
	refreshMu sync.Mutex

	// OnCredentials, if set, is called after login, register and refresh.
	OnCredentials func(Credentials)
}

// NewHTTPClient builds a client for the relay at baseURL (e.g.
// "http://127.0.0.1:8080"). Every request is bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid server url %q", ErrValidation, baseURL)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

func (c *HTTPClient) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *HTTPClient) storeCredentials(creds Credentials) {
	c.SetCredentials(creds)
	if c.OnCredentials != nil {
		c.OnCredentials(creds)
	}
}

func (c *HTTPClient) Token(_ context.Context) (string, error) {
	creds := c.Credentials()
	if creds.AccessToken == "" {
		return "", ErrUnauthorized
	}
	return creds.AccessToken, nil
}

func (c *HTTPClient) Register(ctx context.Context, username string, password []byte) (Credentials, error) {
	return c.authenticate(ctx, RegisterPath, username, password)
}

func (c *HTTPClient) Login(ctx context.Context, username string, password []byte) (Credentials, error) {
	return c.authenticate(ctx, LoginPath, username, password)
}

func (c *HTTPClient) authenticate(ctx context.Context, path, username string, password []byte) (Credentials, error) {
	if strings.TrimSpace(username) == "" || len(password) == 0 {
		return Credentials{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	var resp tokenResponse
	req := credentialsRequest{Username: username, Password: string(password)}
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp, ""); err != nil {
		return Credentials{}, err
	}

	creds := Credentials{Username: resp.Username, AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if creds.Username == "" {
		creds.Username = username
	}
	c.storeCredentials(creds)
	return creds, nil
}

// Refresh rotates the token pair and returns the new access token.
func (c *HTTPClient) Refresh(ctx context.Context) (string, error) {
	return c.refreshFrom(ctx, c.Credentials().AccessToken)
}

// refreshFrom rotates the pair unless another goroutine already replaced
// the rejected token while this one waited for the lock.
func (c *HTTPClient) refreshFrom(ctx context.Context, rejected string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current := c.Credentials()
	if current.AccessToken != "" && current.AccessToken != rejected {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		return "", ErrUnauthorized
	}

	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, RefreshPath, refreshRequest{RefreshToken: current.RefreshToken}, &resp, ""); err != nil {
		return "", err
	}

	current.AccessToken = resp.AccessToken
	current.RefreshToken = resp.RefreshToken
	c.storeCredentials(current)
	return current.AccessToken, nil
}

// FetchPage reads one page of history. Pages start at 1 (newest).
func (c *HTTPClient) FetchPage(ctx context.Context, page, size int) (Page, error) {
	if page < 1 || size < 1 {
		return Page{}, fmt.Errorf("%w: page %d size %d", ErrValidation, page, size)
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(size))

	var resp pageResponse
	if err := c.doAuthorized(ctx, http.MethodGet, MessagesPath+"?"+q.Encode(), nil, &resp); err != nil {
		return Page{}, err
	}

	msgs, dropped := chat.DecodeRecords(resp.Messages, chat.OriginHistory)
	return Page{Messages: msgs, TotalPages: resp.TotalPages, Dropped: dropped}, nil
}

func (c *HTTPClient) ClearHistory(ctx context.Context) error {
	return c.doAuthorized(ctx, http.MethodDelete, MessagesPath, nil, nil)
}

// doAuthorized sends the request with the access token; on 401 it refreshes
// once and retries.
func (c *HTTPClient) doAuthorized(ctx context.Context, method, path string, in, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	err = c.doJSON(ctx, method, path, in, out, token)
	if !errors.Is(err, ErrUnauthorized) || c.Credentials().RefreshToken == "" {
		return err
	}

	token, rerr := c.refreshFrom(ctx, token)
	if rerr != nil {
		if errors.Is(rerr, ErrNetwork) {
			return rerr
		}
		return fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	return c.doJSON(ctx, method, path, in, out, token)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any, token string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrServer, err)
	}
	return nil
}

// mapStatus converts non-2xx responses into sentinel errors, keeping the
// server's error text when it sent one.
func mapStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er)
	detail := er.Error
	if detail == "" {
		detail = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, detail)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, detail)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrValidation, detail)
	default:
		return fmt.Errorf("%w: %s", ErrServer, detail)
	}
}
