package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotifyctl/internal/shared"
	"golang.org/x/oauth2"
)

const grantedScope = "user-read-playback-state user-modify-playback-state"

// tokenServer is a fake Spotify accounts service.
type tokenServer struct {
	*httptest.Server
	mu           sync.Mutex
	exchanges    int
	refreshes    int
	scope        string
	failRefresh  bool
	failExchange bool
	rotate       bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{scope: grantedScope}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	body := map[string]any{"token_type": "Bearer", "expires_in": 3600}
	if ts.scope != "" {
		body["scope"] = ts.scope
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		ts.exchanges++
		if ts.failExchange || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		body["access_token"] = "new-access"
		body["refresh_token"] = "new-refresh"
	case "refresh_token":
		ts.refreshes++
		if ts.failRefresh {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		body["access_token"] = "refreshed-access"
		if ts.rotate {
			body["refresh_token"] = "rotated-refresh"
		}
	default:
		http.Error(w, "unsupported grant", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (ts *tokenServer) counts() (int, int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.exchanges, ts.refreshes
}

// fakePrompt records authorization URLs and answers with a fixed code.
type fakePrompt struct {
	calls   int
	authURL string
	code    string
	err     error
}

func (p *fakePrompt) prompt(ctx context.Context, authURL, state string) (string, error) {
	p.calls++
	p.authURL = authURL
	if p.err != nil {
		return "", p.err
	}
	u, err := url.Parse(authURL)
	if err != nil {
		return "", err
	}
	if got := u.Query().Get("state"); got != state {
		return "", errors.New("state not embedded in authorization URL")
	}
	return p.code, nil
}

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, ts *tokenServer, store Store, prompt *fakePrompt) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOpts{
		Credentials: Credentials{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "http://127.0.0.1:8888/callback",
		},
		Store:         store,
		Prompt:        prompt.prompt,
		Endpoint:      oauth2.Endpoint{AuthURL: ts.URL + "/authorize", TokenURL: ts.URL + "/api/token"},
		RefreshMargin: time.Minute,
		HTTPClient:    ts.Client(),
		Logger:        log.New(os.Stderr),
		Now:           func() time.Time { return testNow },
		State:         func() string { return "fixed-state" },
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestManagerSession(t *testing.T) {
	t.Run("uses a valid cached token without any network call", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(time.Hour)
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		sess, err := newTestManager(t, ts, store, prompt).Session(context.Background())
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}

		if prompt.calls != 0 {
			t.Errorf("expected no interactive authorization, got %d prompts", prompt.calls)
		}
		if ex, rf := ts.counts(); ex != 0 || rf != 0 {
			t.Errorf("expected no token endpoint calls, got %d exchanges and %d refreshes", ex, rf)
		}
		if got := sess.Token(); got.AccessToken != "access-123" {
			t.Errorf("expected cached access token, got %s", got.AccessToken)
		}
	})

	t.Run("authorizes and persists when no cache exists", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		prompt := &fakePrompt{code: "good-code"}

		sess, err := newTestManager(t, ts, store, prompt).Session(context.Background())
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}

		if prompt.calls != 1 {
			t.Errorf("expected one prompt, got %d", prompt.calls)
		}
		if !strings.Contains(prompt.authURL, "client_id=client-id") {
			t.Errorf("authorization URL missing client id: %s", prompt.authURL)
		}
		if !strings.Contains(prompt.authURL, "user-modify-playback-state") {
			t.Errorf("authorization URL missing scopes: %s", prompt.authURL)
		}

		saved, ok := store.Load()
		if !ok {
			t.Fatal("expected token to be persisted")
		}
		if saved.AccessToken != "new-access" || saved.RefreshToken != "new-refresh" {
			t.Errorf("unexpected persisted token %+v", saved)
		}
		if !saved.HasScopes(Scopes) {
			t.Errorf("expected persisted scopes, got %v", saved.Scopes)
		}
		if sess.Token().AccessToken != "new-access" {
			t.Errorf("expected session to hold new token, got %s", sess.Token().AccessToken)
		}
	})

	t.Run("re-authorizes when cached scopes are insufficient", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(time.Hour)
		cached.Scopes = []string{"user-read-playback-state"}
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		if _, err := newTestManager(t, ts, store, prompt).Session(context.Background()); err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if prompt.calls != 1 {
			t.Errorf("expected interactive authorization, got %d prompts", prompt.calls)
		}
	})

	t.Run("refreshes an expired token instead of re-authorizing", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(-time.Hour)
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		sess, err := newTestManager(t, ts, store, prompt).Session(context.Background())
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}

		if prompt.calls != 0 {
			t.Errorf("expected no prompt, got %d", prompt.calls)
		}
		if _, rf := ts.counts(); rf != 1 {
			t.Errorf("expected one refresh, got %d", rf)
		}

		saved, ok := store.Load()
		if !ok {
			t.Fatal("expected refreshed token to be persisted")
		}
		if saved.AccessToken != "refreshed-access" {
			t.Errorf("expected refreshed access token, got %s", saved.AccessToken)
		}
		if saved.RefreshToken != "refresh-456" {
			t.Errorf("expected prior refresh token to be kept, got %s", saved.RefreshToken)
		}
		if sess.Token().AccessToken != "refreshed-access" {
			t.Errorf("expected session to hold refreshed token, got %s", sess.Token().AccessToken)
		}
	})

	t.Run("refreshes inside the safety margin and keeps rotated refresh tokens", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.rotate = true
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(30 * time.Second)
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if _, err := newTestManager(t, ts, store, &fakePrompt{code: "good-code"}).Session(context.Background()); err != nil {
			t.Fatalf("Session() error = %v", err)
		}

		saved, _ := store.Load()
		if saved.RefreshToken != "rotated-refresh" {
			t.Errorf("expected rotated refresh token, got %s", saved.RefreshToken)
		}
	})

	t.Run("authorizes when an expired token has no refresh token", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(-time.Hour)
		cached.RefreshToken = ""
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		if _, err := newTestManager(t, ts, store, prompt).Session(context.Background()); err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if prompt.calls != 1 {
			t.Errorf("expected interactive authorization, got %d prompts", prompt.calls)
		}
		if _, rf := ts.counts(); rf != 0 {
			t.Errorf("expected no refresh attempt, got %d", rf)
		}
	})

	t.Run("refresh failure is fatal and not retried", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.failRefresh = true
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(-time.Hour)
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		_, err := newTestManager(t, ts, store, prompt).Session(context.Background())
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}
		if prompt.calls != 0 {
			t.Errorf("expected no fallback to interactive flow, got %d prompts", prompt.calls)
		}
		if _, rf := ts.counts(); rf != 1 {
			t.Errorf("expected exactly one refresh attempt, got %d", rf)
		}
		saved, _ := store.Load()
		if saved.AccessToken != "access-123" {
			t.Errorf("expected cache untouched, got %s", saved.AccessToken)
		}
	})

	t.Run("treats a malformed cache as absent", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		if err := os.MkdirAll(filepath.Dir(store.Path()), 0700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(store.Path(), []byte("not = [valid"), 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		if _, err := newTestManager(t, ts, store, prompt).Session(context.Background()); err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if prompt.calls != 1 {
			t.Errorf("expected re-authorization, got %d prompts", prompt.calls)
		}
	})
}

func TestManagerAuthorize(t *testing.T) {
	t.Run("prompt failure", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		prompt := &fakePrompt{err: shared.ErrTimeout}

		_, err := newTestManager(t, ts, store, prompt).Authorize(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected the prompt error to be preserved, got %v", err)
		}
		if _, ok := store.Load(); ok {
			t.Error("expected nothing to be persisted")
		}
	})

	t.Run("empty code", func(t *testing.T) {
		ts := newTokenServer(t)
		_, err := newTestManager(t, ts, newTestStore(t), &fakePrompt{code: "  "}).Authorize(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if ex, _ := ts.counts(); ex != 0 {
			t.Errorf("expected no exchange for empty code, got %d", ex)
		}
	})

	t.Run("exchange rejected", func(t *testing.T) {
		ts := newTokenServer(t)
		_, err := newTestManager(t, ts, newTestStore(t), &fakePrompt{code: "bad-code"}).Authorize(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("granted scopes do not cover requirements", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.scope = "user-read-playback-state"
		store := newTestStore(t)

		_, err := newTestManager(t, ts, store, &fakePrompt{code: "good-code"}).Authorize(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if _, ok := store.Load(); ok {
			t.Error("expected nothing to be persisted")
		}
	})

	t.Run("overrides a valid cache", func(t *testing.T) {
		ts := newTokenServer(t)
		store := newTestStore(t)
		cached := sampleToken()
		cached.Expiry = testNow.Add(time.Hour)
		if err := store.Save(cached); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		prompt := &fakePrompt{code: "good-code"}

		if _, err := newTestManager(t, ts, store, prompt).Authorize(context.Background()); err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		saved, _ := store.Load()
		if saved.AccessToken != "new-access" {
			t.Errorf("expected new token, got %s", saved.AccessToken)
		}
	})
}

func TestSessionClient(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	ts := newTokenServer(t)
	store := newTestStore(t)
	cached := sampleToken()
	cached.Expiry = time.Now().Add(time.Hour)
	if err := store.Save(cached); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	m := newTestManager(t, ts, store, &fakePrompt{code: "good-code"})
	m.now = time.Now

	sess, err := m.Session(context.Background())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}

	resp, err := sess.Client().Get(api.URL + "/me/player")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer access-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestNewManager(t *testing.T) {
	store := NewTokenStore("/tmp/unused", nil)
	prompt := func(context.Context, string, string) (string, error) { return "", nil }

	tc := []struct {
		name    string
		opts    ManagerOpts
		wantErr error
	}{
		{
			name:    "missing credentials",
			opts:    ManagerOpts{Store: store, Prompt: prompt},
			wantErr: shared.ErrMissingCredentials,
		},
		{
			name:    "missing store",
			opts:    ManagerOpts{Credentials: Credentials{ClientID: "a", ClientSecret: "b"}, Prompt: prompt},
			wantErr: shared.ErrInvalidConfig,
		},
		{
			name:    "missing prompt",
			opts:    ManagerOpts{Credentials: Credentials{ClientID: "a", ClientSecret: "b"}, Store: store},
			wantErr: shared.ErrInvalidConfig,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("defaults to the Spotify accounts service", func(t *testing.T) {
		m, err := NewManager(ManagerOpts{
			Credentials: Credentials{ClientID: "a", ClientSecret: "b"},
			Store:       store,
			Prompt:      prompt,
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if !strings.HasPrefix(m.config.Endpoint.TokenURL, "https://accounts.spotify.com/") {
			t.Errorf("unexpected token URL %s", m.config.Endpoint.TokenURL)
		}
	})
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback when token changes", func(t *testing.T) {
		var captured []*oauth2.Token
		mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}

		source := &refreshableTokenSource{
			source: mockSource,
			last:   "token1",
			callback: func(token *oauth2.Token) {
				captured = append(captured, token)
			},
		}

		if _, err := source.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(captured) != 0 {
			t.Errorf("expected no callback for the seeded token, got %d", len(captured))
		}

		mockSource.token = &oauth2.Token{AccessToken: "token2"}
		token2, _ := source.Token()
		source.Token()

		if len(captured) != 1 {
			t.Fatalf("expected one callback, got %d", len(captured))
		}
		if token2.AccessToken != "token2" || captured[0].AccessToken != "token2" {
			t.Errorf("expected token2, got %s", captured[0].AccessToken)
		}
	})

	t.Run("handles nil callback", func(t *testing.T) {
		source := &refreshableTokenSource{source: &mockTokenSource{token: &oauth2.Token{AccessToken: "t"}}}

		token, err := source.Token()
		if err != nil {
			t.Fatalf("expected no error with nil callback, got %v", err)
		}
		if token.AccessToken != "t" {
			t.Error("expected token to be returned despite nil callback")
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		source := &refreshableTokenSource{
			source: &mockTokenSource{err: errors.New("token source error")},
			callback: func(token *oauth2.Token) {
				t.Error("callback should not be called on error")
			},
		}

		token, err := source.Token()
		if err == nil || !strings.Contains(err.Error(), "token source error") {
			t.Errorf("expected source error, got %v", err)
		}
		if token != nil {
			t.Error("expected nil token on error")
		}
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
