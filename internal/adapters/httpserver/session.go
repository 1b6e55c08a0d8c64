package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/modularstore/internal/usecase"
)

const (
	sessionCookie = "sid"
	sessionMaxAge = 60 * 60 * 24 * 30
)

func (s *Server) sign(id string) string {
	h := hmac.New(sha256.New, s.sessionKey)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// readSessionID returns the verified session id from the sid cookie.
func (s *Server) readSessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	parts := strings.SplitN(c.Value, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	want, _ := base64.RawURLEncoding.DecodeString(s.sign(parts[1]))
	if !hmac.Equal(sig, want) {
		return "", false
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", false
	}
	return parts[1], true
}

func (s *Server) writeSessionID(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.sign(id) + "." + id,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionID returns the caller's session id, issuing a new cookie when the
// current one is missing or forged.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := s.readSessionID(r); ok {
		return id
	}
	id := uuid.NewString()
	s.writeSessionID(w, id)
	return id
}

// flow is the per-session checkout view. Its mutex also serializes requests
// of one session so each load-mutate-save cycle sees the previous one.
type flow struct {
	mu       sync.Mutex
	checkout *usecase.Checkout
	lastUsed time.Time
}

type flows struct {
	mu sync.Mutex
	m  map[string]*flow
}

func (f *flows) get(id string) *flow {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.m == nil {
		f.m = map[string]*flow{}
	}
	fl, ok := f.m[id]
	if !ok {
		fl = &flow{checkout: usecase.NewCheckout()}
		f.m[id] = fl
	}
	fl.lastUsed = time.Now()
	return fl
}

// evict removes flows last used before cutoff and returns their session ids.
// Flows held by a request in progress are kept.
func (f *flows) evict(cutoff time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, fl := range f.m {
		if !fl.lastUsed.Before(cutoff) || !fl.mu.TryLock() {
			continue
		}
		delete(f.m, id)
		fl.mu.Unlock()
		ids = append(ids, id)
	}
	return ids
}

func (f *flows) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.m)
}
