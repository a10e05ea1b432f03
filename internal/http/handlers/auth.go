package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"
	"phatsurf/internal/models"
	"phatsurf/internal/security"
	"phatsurf/internal/users"
	"phatsurf/internal/web"
)

const (
	MsgUserRegistered     = "User registered"
	MsgLoginSuccessful    = "Login successful"
	MsgLogoutSuccessful   = "Logout successful"
	MsgEmailTaken         = "Email is already registered."
	MsgUsernameTaken      = "Username is already taken."
	MsgInvalidCredentials = "Invalid email or password."
	MsgWeightNotNumber    = "Weight must be a number"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"

	flashRegistered      = "Registration successful!"
	flashLoggedIn        = "Login successful!"
	flashRegisterInvalid = "All fields are required."
	flashLoginInvalid    = "Email and password are required."
)

// UserStore is the user repository as seen by the handlers.
type UserStore interface {
	Create(ctx context.Context, u models.NewUser) (string, error)
	CreateProfile(ctx context.Context, p models.Profile) (string, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Sessions is the session manager as seen by the handlers.
type Sessions interface {
	FlashWriter
	Login(w http.ResponseWriter, r *http.Request, userID string) (models.Session, error)
	Logout(w http.ResponseWriter, r *http.Request) error
	Flashes(w http.ResponseWriter, r *http.Request) ([]models.Flash, error)
}

// PasswordVerifier checks a candidate password against a stored hash.
type PasswordVerifier interface {
	Verify(hash, candidate string) bool
}

// Renderer renders HTML pages.
type Renderer interface {
	Render(w http.ResponseWriter, page string, data web.PageData) error
}

type AuthHandler struct {
	users    UserStore
	sessions Sessions
	verifier PasswordVerifier
	pages    Renderer
	log      logging.Logger
	present  presenter
}

func NewAuthHandler(users UserStore, sessions Sessions, verifier PasswordVerifier, pages Renderer, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		verifier: verifier,
		pages:    pages,
		log:      log,
		present:  presenter{log: log, flashes: sessions, internalMsg: respond.MsgTryAgain},
	}
}

var (
	registerFlow = formFlow{
		formURL:        "/register",
		successURL:     "/login",
		successMessage: flashRegistered,
		invalidMessage: flashRegisterInvalid,
	}
	loginFlow = formFlow{
		formURL:        "/login",
		successURL:     "/dashboard",
		successMessage: flashLoggedIn,
		invalidMessage: flashLoginInvalid,
	}
)

type registerInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Location string `json:"location"`
	Weight   string `json:"weight"`
	Fitness  string `json:"fitness"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ShowRegister renders the registration form.
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.pages, h.sessions, h.log, web.PageRegister, web.PageData{Title: "Register"})
}

// ShowLogin renders the login form.
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.pages, h.sessions, h.log, web.PageLogin, web.PageData{Title: "Log in"})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var o Outcome
	f, err := readFields(w, r)
	if err != nil {
		o = bodyError(err)
	} else {
		o = h.register(r.Context(), registerInput{
			Username: strings.TrimSpace(f.get("username")),
			Email:    strings.TrimSpace(f.get("email")),
			Password: f.get("password"),
			Location: strings.TrimSpace(f.get("location")),
			Weight:   f.get("weight"),
			Fitness:  strings.TrimSpace(f.get("fitness")),
		})
	}

	if respond.WantsJSON(r) {
		h.present.writeJSON(w, r, "register", o)
		return
	}
	h.present.writeRedirect(w, r, "register", o, registerFlow)
}

func (h *AuthHandler) register(ctx context.Context, in registerInput) Outcome {
	missing, err := check(in)
	if err != nil {
		return internal(err)
	}
	if len(missing) > 0 {
		return missingFields(missing)
	}

	nu := models.NewUser{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Location: in.Location,
		Fitness:  in.Fitness,
	}
	if strings.TrimSpace(in.Weight) != "" {
		w, err := parseWeight(in.Weight)
		if err != nil {
			return invalid(MsgWeightNotNumber, "weight")
		}
		nu.Weight = &w
	}

	// Friendly pre-checks; the unique indexes remain the authority.
	if o, taken := h.taken(ctx, h.users.FindByEmail, in.Email, MsgEmailTaken); taken {
		return o
	}
	if o, taken := h.taken(ctx, h.users.FindByUsername, in.Username, MsgUsernameTaken); taken {
		return o
	}

	id, err := h.users.Create(ctx, nu)
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		return conflictOutcome(MsgEmailTaken)
	case errors.Is(err, users.ErrUsernameTaken):
		return conflictOutcome(MsgUsernameTaken)
	case errors.Is(err, security.ErrPasswordTooLong):
		return invalid(MsgPasswordTooLong, "password")
	case err != nil:
		return internal(err)
	}

	h.log.Info(ctx, "user registered", "user_id", id)
	return success(http.StatusCreated, map[string]string{"message": MsgUserRegistered, "user_id": id})
}

// taken reports whether find locates a user by key. Any lookup failure other
// than a miss ends the request as an internal error.
func (h *AuthHandler) taken(ctx context.Context, find func(context.Context, string) (*models.User, error), key, msg string) (Outcome, bool) {
	_, err := find(ctx, key)
	switch {
	case err == nil:
		return conflictOutcome(msg), true
	case errors.Is(err, users.ErrUserNotFound):
		return Outcome{}, false
	default:
		return internal(err), true
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var (
		o      Outcome
		userID string
	)
	f, err := readFields(w, r)
	if err != nil {
		o = bodyError(err)
	} else {
		userID, o = h.login(r.Context(), loginInput{
			Email:    strings.TrimSpace(f.get("email")),
			Password: f.get("password"),
		})
	}

	if o.Kind == KindSuccess {
		if _, err := h.sessions.Login(w, r, userID); err != nil {
			o = internal(err)
		} else {
			h.log.Info(r.Context(), "user logged in", "user_id", userID)
		}
	}

	if respond.WantsJSON(r) {
		h.present.writeJSON(w, r, "login", o)
		return
	}
	h.present.writeRedirect(w, r, "login", o, loginFlow)
}

// login checks the credentials and returns the id to bind the session to.
func (h *AuthHandler) login(ctx context.Context, in loginInput) (string, Outcome) {
	missing, err := check(in)
	if err != nil {
		return "", internal(err)
	}
	if len(missing) > 0 {
		return "", missingFields(missing)
	}

	u, err := h.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, users.ErrUserNotFound) {
		return "", unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return "", internal(err)
	}

	if !h.verifier.Verify(u.PasswordHash, in.Password) {
		return "", unauthorized(MsgInvalidCredentials)
	}

	return u.ID, success(http.StatusOK, map[string]string{"message": MsgLoginSuccessful, "user_id": u.ID})
}

// Logout clears the session. It always answers JSON.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		presenter{log: h.log}.writeJSON(w, r, "logout", internal(err))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": MsgLogoutSuccessful})
}

// bodyError maps a body decoding failure to a validation outcome.
func bodyError(err error) Outcome {
	if errors.Is(err, errEmptyBody) {
		return invalid("Request body is empty")
	}
	return invalid("Invalid request body")
}
