package security

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"phatsurf/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	CookieName = "phatsurf_session"

	keySessionID = "_id"
	keyUserID    = "user_id"
	keyFresh     = "_fresh"
)

func init() {
	gob.Register(models.Flash{})
}

// SessionOptions controls the session cookie.
type SessionOptions struct {
	MaxAge time.Duration
	Secure bool
}

// SessionStore binds clients to an authenticated user through a signed
// cookie. All state lives in the cookie, so the store itself is safe for
// concurrent use.
type SessionStore struct {
	store *sessions.CookieStore
}

func NewSessionStore(secret []byte, opts SessionOptions) *SessionStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(store.Options.MaxAge)
	return &SessionStore{store: store}
}

// session never fails: an undecodable or expired cookie yields a fresh,
// anonymous session, cached for the rest of the request.
func (s *SessionStore) session(r *http.Request) *sessions.Session {
	sess, _ := s.store.Get(r, CookieName)
	return sess
}

// Login binds the client's session to userID and marks it fresh.
func (s *SessionStore) Login(w http.ResponseWriter, r *http.Request, userID string) (models.Session, error) {
	sess := s.session(r)
	id := uuid.NewString()
	sess.Values[keySessionID] = id
	sess.Values[keyUserID] = userID
	sess.Values[keyFresh] = true

	if err := sess.Save(r, w); err != nil {
		return models.Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return models.Session{ID: id, UserID: userID, Fresh: true}, nil
}

// Current returns the authenticated session of the request, if any.
func (s *SessionStore) Current(r *http.Request) (models.Session, bool) {
	sess := s.session(r)
	userID, _ := sess.Values[keyUserID].(string)
	if userID == "" {
		return models.Session{}, false
	}
	id, _ := sess.Values[keySessionID].(string)
	fresh, _ := sess.Values[keyFresh].(bool)
	return models.Session{ID: id, UserID: userID, Fresh: fresh}, true
}

// Logout removes the user binding and expires the cookie, unless flashes are
// still pending for the next page. Calling it without a login is harmless.
//
// The cookie is the whole session, so a copy captured before logout stays
// valid until its signed timestamp exceeds MaxAge.
func (s *SessionStore) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := s.session(r)
	delete(sess.Values, keySessionID)
	delete(sess.Values, keyUserID)
	delete(sess.Values, keyFresh)

	if len(sess.Values) == 0 {
		opts := *sess.Options
		opts.MaxAge = -1
		sess.Options = &opts
	}

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// AddFlash queues a message for the next rendered page.
func (s *SessionStore) AddFlash(w http.ResponseWriter, r *http.Request, f models.Flash) error {
	sess := s.session(r)
	sess.AddFlash(f)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// Flashes pops every queued message. They are not returned again.
func (s *SessionStore) Flashes(w http.ResponseWriter, r *http.Request) ([]models.Flash, error) {
	sess := s.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}

	flashes := make([]models.Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(models.Flash); ok {
			flashes = append(flashes, f)
		}
	}

	if err := sess.Save(r, w); err != nil {
		return flashes, fmt.Errorf("failed to save session: %w", err)
	}
	return flashes, nil
}
