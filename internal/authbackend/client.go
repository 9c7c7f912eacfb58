// Package authbackend talks to the identity endpoints over HTTP and caches
// the resulting session in the key-value store, the way a browser client
// keeps its token envelope in local storage.
package authbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soggo/bounty/internal/kvstore"
	"github.com/soggo/bounty/internal/session"
)

const (
	SessionKey      = "sb-bounty-auth-token"
	RefreshTokenKey = "sb-bounty-refresh-token"
)

// storedSession is the JSON envelope persisted under SessionKey.
type storedSession struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *session.User `json:"user"`
}

var _ session.Backend = (*Client)(nil)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Store   kvstore.Store

	mu          sync.Mutex
	subscribers map[int]func(session.Event, *session.Session)
	nextSubID   int
}

func New(baseURL string, store kvstore.Store) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
		Store:       store,
		subscribers: make(map[int]func(session.Event, *session.Session)),
	}
}

type authResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	resp, err := c.postAuth(ctx, "/api/auth/login", email, password)
	if err != nil {
		return nil, err
	}
	sess := c.persist(resp)
	c.emit(session.EventSignedIn, sess)
	return sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*session.Session, error) {
	resp, err := c.postAuth(ctx, "/api/auth/register", email, password)
	if err != nil {
		return nil, err
	}
	sess := c.persist(resp)
	c.emit(session.EventSignedIn, sess)
	return sess, nil
}

// GetSession reads the locally cached envelope without touching the network.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	stored, ok := c.load()
	if !ok {
		return nil, nil
	}
	return &session.Session{User: stored.User, ExpiresAt: stored.ExpiresAt}, nil
}

// GetUser asks the backend who the access token belongs to, refreshing once
// on an expired token before giving up.
func (c *Client) GetUser(ctx context.Context) (*session.User, error) {
	stored, ok := c.load()
	if !ok {
		return nil, nil
	}

	user, err := c.fetchUser(ctx, stored.AccessToken)
	if err == nil {
		return user, nil
	}

	if !isExpired(err) {
		return nil, err
	}

	if refreshErr := c.RefreshSession(ctx); refreshErr != nil {
		return nil, refreshErr
	}
	stored, ok = c.load()
	if !ok {
		return nil, nil
	}
	return c.fetchUser(ctx, stored.AccessToken)
}

func (c *Client) RoleForUser(ctx context.Context, id uuid.UUID) (string, error) {
	stored, ok := c.load()
	if !ok {
		return "", &session.AuthError{Kind: session.KindInvalidToken, Message: "no session"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/auth/role", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+stored.AccessToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &session.AuthError{Kind: session.KindNetworkFailure, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}
	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Role, nil
}

// RefreshSession exchanges the stored refresh token for a fresh pair.
func (c *Client) RefreshSession(ctx context.Context) error {
	stored, ok := c.load()
	if !ok || stored.RefreshToken == "" {
		return &session.AuthError{Kind: session.KindInvalidToken, Message: "no refresh token"}
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": stored.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &session.AuthError{Kind: session.KindNetworkFailure, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var payload authResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &session.AuthError{Kind: session.KindMalformed, Message: err.Error()}
	}
	sess := c.persist(&payload)
	c.emit(session.EventTokenRefreshed, sess)
	return nil
}

func (c *Client) SignOut(ctx context.Context) error {
	stored, _ := c.load()

	c.Store.Delete(SessionKey)
	c.Store.Delete(RefreshTokenKey)
	c.emit(session.EventSignedOut, nil)

	if stored == nil || stored.RefreshToken == "" {
		return nil
	}
	body, _ := json.Marshal(map[string]string{"refresh_token": stored.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/auth/logout", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Subscribe(fn func(session.Event, *session.Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ev session.Event, sess *session.Session) {
	c.mu.Lock()
	subs := make([]func(session.Event, *session.Session), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev, sess)
	}
}

func (c *Client) postAuth(ctx context.Context, path, email, password string) (*authResponse, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &session.AuthError{Kind: session.KindNetworkFailure, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, responseError(resp)
	}

	var payload authResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &session.AuthError{Kind: session.KindMalformed, Message: err.Error()}
	}
	return &payload, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*session.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &session.AuthError{Kind: session.KindNetworkFailure, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var user session.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, &session.AuthError{Kind: session.KindMalformed, Message: err.Error()}
	}
	return &user, nil
}

func (c *Client) persist(resp *authResponse) *session.Session {
	user := &session.User{ID: resp.User.ID, Email: resp.User.Email}
	stored := storedSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
		User:         user,
	}
	raw, _ := json.Marshal(stored)
	_ = c.Store.Set(SessionKey, string(raw))
	_ = c.Store.Set(RefreshTokenKey, resp.RefreshToken)
	return &session.Session{User: user, ExpiresAt: resp.ExpiresAt}
}

func (c *Client) load() (*storedSession, bool) {
	raw, ok := c.Store.Get(SessionKey)
	if !ok || raw == "" {
		return nil, false
	}
	var stored storedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false
	}
	if stored.AccessToken == "" {
		return nil, false
	}
	return &stored, true
}

func isExpired(err error) bool {
	var ae *session.AuthError
	if ok := asAuthError(err, &ae); ok {
		return ae.Kind == session.KindExpired || ae.Kind == session.KindInvalidToken
	}
	return false
}

func asAuthError(err error, target **session.AuthError) bool {
	ae, ok := err.(*session.AuthError)
	if !ok {
		return false
	}
	*target = ae
	return true
}

// responseError maps HTTP status plus the backend's message into a typed
// auth error.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorResponse
	_ = json.Unmarshal(raw, &payload)
	msg := payload.Message
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	kind := session.KindUnknown
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = session.KindExpired
		if payload.Message != "" && payload.Message != "token expired" {
			kind = session.KindInvalidToken
		}
	case http.StatusBadRequest:
		kind = session.KindMalformed
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		kind = session.KindNetworkFailure
	}
	return &session.AuthError{Kind: kind, Message: msg}
}
