package client

import (
	"context"
	"sync"

	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	log "github.com/sirupsen/logrus"
)

// Session tracks who is signed in. CurrentUser is nil when logged out.
type Session struct {
	api   *Client
	store Store

	mu      sync.RWMutex
	user    *schema.User
	loading bool
}

// NewSession binds a client to a store. Call Restore to pick up a previous sign-in.
func NewSession(api *Client, store Store) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Session{api: api, store: store, loading: true}
}

// Client returns the API client carrying the session token.
func (s *Session) Client() *Client { return s.api }

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *schema.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Loading reports whether Restore has not finished yet.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Guard evaluates the route guard for the current state.
func (s *Session) Guard(required ...string) authz.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return authz.Guard(nil, s.loading, required...)
	}
	return authz.Guard(s.user, s.loading, required...)
}

// Can reports whether the signed-in user holds any of required.
func (s *Session) Can(required ...string) bool {
	user := s.CurrentUser()
	if user == nil {
		return false
	}
	return authz.HasPermission(user, required...)
}

// Restore re-validates a stored token against /users/me. Any failure clears the
// store and leaves the session logged out.
func (s *Session) Restore(ctx context.Context) error {
	defer s.setLoading(false)

	stored, errLoad := s.store.Load()
	if errLoad != nil || stored == nil {
		s.reset()
		return errLoad
	}
	s.api.SetToken(stored.AccessToken)
	user, errMe := s.api.Me(ctx)
	if errMe != nil {
		log.WithError(errMe).Debug("stored session rejected")
		s.reset()
		if errClear := s.store.Clear(); errClear != nil {
			return errClear
		}
		return nil
	}
	if errSave := s.store.Save(&StoredSession{AccessToken: stored.AccessToken, User: user}); errSave != nil {
		log.WithError(errSave).Warn("refresh stored session failed")
	}
	s.setUser(user)
	return nil
}

// Login signs in and persists the session. On failure the state is unchanged and
// the error carries the server's message.
func (s *Session) Login(ctx context.Context, username, password string) (*schema.User, error) {
	previous := s.api.Token()
	token, errLogin := s.api.Login(ctx, username, password)
	if errLogin != nil {
		return nil, errLogin
	}
	s.api.SetToken(token.AccessToken)
	user, errMe := s.api.Me(ctx)
	if errMe != nil {
		s.api.SetToken(previous)
		return nil, errMe
	}
	if errSave := s.store.Save(&StoredSession{AccessToken: token.AccessToken, User: user}); errSave != nil {
		s.api.SetToken(previous)
		return nil, errSave
	}
	s.setUser(user)
	s.setLoading(false)
	return user, nil
}

// Logout tells the server (best effort) and forgets the session locally.
func (s *Session) Logout(ctx context.Context) error {
	if s.api.Token() != "" {
		if errLogout := s.api.Logout(ctx); errLogout != nil {
			log.WithError(errLogout).Debug("server logout failed")
		}
	}
	s.reset()
	return s.store.Clear()
}

// Expire forgets the session without calling the server, e.g. after a force logout.
func (s *Session) Expire() error {
	s.reset()
	return s.store.Clear()
}

func (s *Session) reset() {
	s.api.SetToken("")
	s.setUser(nil)
}

func (s *Session) setUser(user *schema.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

func (s *Session) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}
