package middleware

import (
	"context"
	"errors"
	"net/http"

	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"
	"phatsurf/internal/models"
	"phatsurf/internal/users"
)

const (
	MsgLoginRequired = "Authentication required"
	MsgPleaseLogIn   = "Please log in to access this page."
	LoginURL         = "/login"
	HomeURL          = "/"
)

// unexported, collision-proof context key
type userContextKeyType struct{}

var userKey = userContextKeyType{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user placed by RequireAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

// FlashAdder queues a one-shot message for the next rendered page.
type FlashAdder interface {
	AddFlash(w http.ResponseWriter, r *http.Request, f models.Flash) error
}

// SessionReader exposes the session operations the gate needs.
type SessionReader interface {
	FlashAdder
	Current(r *http.Request) (models.Session, bool)
}

// UserFinder resolves a session's user id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type Auth struct {
	sessions SessionReader
	users    UserFinder
	log      logging.Logger
}

func NewAuth(sessions SessionReader, users UserFinder, log logging.Logger) *Auth {
	return &Auth{sessions: sessions, users: users, log: log}
}

// CurrentUser resolves the request's session to a user. Anonymous sessions
// and sessions whose user no longer exists yield (nil, nil); only storage
// failures are errors.
func (a *Auth) CurrentUser(r *http.Request) (*models.User, error) {
	sess, ok := a.sessions.Current(r)
	if !ok {
		return nil, nil
	}

	u, err := a.users.FindByID(r.Context(), sess.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// RequireAuth rejects anonymous requests: JSON clients get 401, browsers are
// sent to the login page with a flash.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.CurrentUser(r)
		if err != nil {
			a.log.Error(r.Context(), "failed to resolve current user", "path", r.URL.Path, "error", err)
			internalError(w, r, a.log, a.sessions)
			return
		}

		if u == nil {
			if respond.WantsJSON(r) {
				respond.Error(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			}
			if err := a.sessions.AddFlash(w, r, models.Flash{Message: MsgPleaseLogIn, Category: respond.CategoryInfo}); err != nil {
				a.log.Warn(r.Context(), "failed to store flash", "error", err)
			}
			respond.Redirect(w, r, LoginURL)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// internalError answers an unexpected failure: JSON clients get a generic
// 500, browsers a danger flash and a redirect home. A failure on the home
// page itself is a plain 500 so browsers never loop.
func internalError(w http.ResponseWriter, r *http.Request, log logging.Logger, flashes FlashAdder) {
	if respond.WantsJSON(r) || flashes == nil || r.URL.Path == HomeURL {
		respond.Error(w, http.StatusInternalServerError, respond.MsgUnexpected)
		return
	}
	if err := flashes.AddFlash(w, r, models.Flash{Message: respond.MsgTryAgain, Category: respond.CategoryDanger}); err != nil {
		log.Warn(r.Context(), "failed to store flash", "error", err)
	}
	respond.Redirect(w, r, HomeURL)
}
