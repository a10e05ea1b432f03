package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"phatsurf/internal/models"
	"phatsurf/internal/security"
	"phatsurf/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validRegistration = map[string]any{
	"username": "testuser",
	"email":    "test@example.com",
	"password": "password123",
}

func TestRegister_JSONSuccess(t *testing.T) {
	f := newFixture()

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", validRegistration))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "User registered", body["message"])
	assert.Equal(t, "id-testuser", body["user_id"])
	require.Len(t, f.users.created, 1)
	assert.Equal(t, "password123", f.users.created[0].Password)
}

func TestRegister_JSONWithProfile(t *testing.T) {
	f := newFixture()
	payload := map[string]any{
		"username": "surfer", "email": "s@example.com", "password": "pw123456",
		"location": "Bondi", "weight": 81.5, "fitness": "Advanced",
	}

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", payload))

	require.Equal(t, http.StatusCreated, rec.Code)
	nu := f.users.created[0]
	assert.Equal(t, "Bondi", nu.Location)
	require.NotNil(t, nu.Weight)
	assert.InDelta(t, 81.5, *nu.Weight, 1e-9)
}

func TestRegister_JSONMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		missing []any
	}{
		{"no password", map[string]any{"username": "u", "email": "e@x.io"}, []any{"password"}},
		{"empty username", map[string]any{"username": "  ", "email": "e@x.io", "password": "p"}, []any{"username"}},
		{"only email", map[string]any{"email": "e@x.io"}, []any{"username", "password"}},
		{"unrelated keys", map[string]any{"foo": "bar"}, []any{"username", "email", "password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			rec := httptest.NewRecorder()
			f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", tc.payload))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.missing, body["fields"])
			assert.Contains(t, body["error"], "Missing or empty fields")
			assert.Empty(t, f.users.created)
		})
	}
}

func TestRegister_JSONBadWeight(t *testing.T) {
	f := newFixture()
	payload := map[string]any{"username": "u", "email": "e@x.io", "password": "p", "weight": "heavy"}

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", payload))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgWeightNotNumber, decode(t, rec)["error"])
	assert.Empty(t, f.users.created)
}

func TestRegister_JSONMalformedBody(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"username":`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.auth.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode(t, rec)["error"])
}

func TestRegister_JSONDuplicateEmail(t *testing.T) {
	f := newFixture()
	f.users.add(&models.User{ID: "existing", Username: "other", Email: "test@example.com"})

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", validRegistration))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgEmailTaken, decode(t, rec)["error"])
	assert.Empty(t, f.users.created)
}

func TestRegister_JSONDuplicateUsername(t *testing.T) {
	f := newFixture()
	f.users.add(&models.User{ID: "existing", Username: "testuser", Email: "other@example.com"})

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", validRegistration))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgUsernameTaken, decode(t, rec)["error"])
}

func TestRegister_JSONStoreDetectsRace(t *testing.T) {
	f := newFixture()
	f.users.createErr = fmt.Errorf("%w: duplicate key", users.ErrEmailTaken)

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", validRegistration))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgEmailTaken, decode(t, rec)["error"])
}

func TestRegister_JSONPasswordTooLong(t *testing.T) {
	f := newFixture()
	f.users.createErr = fmt.Errorf("failed to hash password: %w", security.ErrPasswordTooLong)

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", validRegistration))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgPasswordTooLong, decode(t, rec)["error"])
}

func TestRegister_JSONInternalError(t *testing.T) {
	f := newFixture()
	f.users.createErr = errors.New("disk I/O error")

	rec := httptest.NewRecorder()
	f.auth.Register(rec, jsonRequest(t, http.MethodPost, "/register", validRegistration))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An error occurred. Please try again.", decode(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}

func TestRegister_FormFlows(t *testing.T) {
	valid := url.Values{"username": {"testuser"}, "email": {"test@example.com"}, "password": {"password123"}}

	cases := []struct {
		name     string
		values   url.Values
		setup    func(*fixture)
		flash    models.Flash
		location string
	}{
		{
			name:     "success",
			values:   valid,
			flash:    models.Flash{Message: "Registration successful!", Category: "success"},
			location: "/login",
		},
		{
			name:     "missing fields",
			values:   url.Values{"username": {"testuser"}},
			flash:    models.Flash{Message: "All fields are required.", Category: "danger"},
			location: "/register",
		},
		{
			name:     "existing email",
			values:   valid,
			setup:    func(f *fixture) { f.users.add(&models.User{ID: "x", Email: "test@example.com"}) },
			flash:    models.Flash{Message: "Email is already registered.", Category: "danger"},
			location: "/register",
		},
		{
			name:     "internal error",
			values:   valid,
			setup:    func(f *fixture) { f.users.createErr = errors.New("boom") },
			flash:    models.Flash{Message: "An error occurred. Please try again.", Category: "danger"},
			location: "/register",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			if tc.setup != nil {
				tc.setup(f)
			}

			rec := httptest.NewRecorder()
			f.auth.Register(rec, formRequest("/register", tc.values))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
			assert.Equal(t, []models.Flash{tc.flash}, f.sessions.flashes)
		})
	}
}

func seededFixture() *fixture {
	f := newFixture()
	f.users.add(&models.User{ID: "dummyid", Username: "testuser", Email: "test@example.com", PasswordHash: "hash:password123"})
	return f
}

func TestLogin_JSONSuccess(t *testing.T) {
	f := seededFixture()

	rec := httptest.NewRecorder()
	f.auth.Login(rec, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "test@example.com", "password": "password123",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.Equal(t, "dummyid", body["user_id"])
	assert.Equal(t, "dummyid", f.sessions.userID)
}

func TestLogin_JSONFailures(t *testing.T) {
	cases := map[string]map[string]string{
		"wrong password": {"email": "test@example.com", "password": "wrongpassword"},
		"unknown email":  {"email": "nobody@example.com", "password": "password123"},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			f := seededFixture()
			rec := httptest.NewRecorder()
			f.auth.Login(rec, jsonRequest(t, http.MethodPost, "/login", payload))

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, MsgInvalidCredentials, decode(t, rec)["error"])
			assert.Empty(t, f.sessions.userID)
		})
	}
}

func TestLogin_JSONMissingFields(t *testing.T) {
	f := seededFixture()

	rec := httptest.NewRecorder()
	f.auth.Login(rec, jsonRequest(t, http.MethodPost, "/login", map[string]string{"email": "test@example.com"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"password"}, decode(t, rec)["fields"])
}

func TestLogin_JSONInternalErrors(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		f := seededFixture()
		f.users.err = errors.New("division by zero")

		rec := httptest.NewRecorder()
		f.auth.Login(rec, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"email": "test@example.com", "password": "password123",
		}))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "An error occurred. Please try again.", decode(t, rec)["error"])
	})

	t.Run("session", func(t *testing.T) {
		f := seededFixture()
		f.sessions.err = errors.New("cookie jar full")

		rec := httptest.NewRecorder()
		f.auth.Login(rec, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"email": "test@example.com", "password": "password123",
		}))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "cookie jar")
	})
}

func TestLogin_FormFlows(t *testing.T) {
	cases := []struct {
		name     string
		values   url.Values
		broken   bool
		flash    models.Flash
		location string
	}{
		{"success", url.Values{"email": {"test@example.com"}, "password": {"password123"}}, false,
			models.Flash{Message: "Login successful!", Category: "success"}, "/dashboard"},
		{"bad password", url.Values{"email": {"test@example.com"}, "password": {"nope"}}, false,
			models.Flash{Message: "Invalid email or password.", Category: "danger"}, "/login"},
		{"missing password", url.Values{"email": {"test@example.com"}}, false,
			models.Flash{Message: "Email and password are required.", Category: "danger"}, "/login"},
		{"internal error", url.Values{"email": {"test@example.com"}, "password": {"password123"}}, true,
			models.Flash{Message: "An error occurred. Please try again.", Category: "danger"}, "/login"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := seededFixture()
			if tc.broken {
				f.users.err = errors.New("boom")
			}

			rec := httptest.NewRecorder()
			f.auth.Login(rec, formRequest("/login", tc.values))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
			assert.Equal(t, []models.Flash{tc.flash}, f.sessions.flashes)
		})
	}
}

func TestLogout(t *testing.T) {
	f := seededFixture()
	f.sessions.userID = "dummyid"

	rec := httptest.NewRecorder()
	f.auth.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", decode(t, rec)["message"])
	assert.True(t, f.sessions.loggedOut)
	assert.Empty(t, f.sessions.userID)
}

func TestLogout_SessionFailure(t *testing.T) {
	f := seededFixture()
	f.sessions.err = errors.New("codec failure")

	rec := httptest.NewRecorder()
	f.auth.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected error occurred", decode(t, rec)["error"])
}

func TestShowForms(t *testing.T) {
	f := newFixture()
	f.sessions.pending = []models.Flash{{Message: "All fields are required.", Category: "danger"}}

	rec := httptest.NewRecorder()
	f.auth.ShowRegister(rec, httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "register", f.pages.page)
	assert.Equal(t, "All fields are required.", f.pages.data.Flashes[0].Message)

	rec = httptest.NewRecorder()
	f.auth.ShowLogin(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, "Rendered login", rec.Body.String())
	assert.Empty(t, f.pages.data.Flashes)
}
