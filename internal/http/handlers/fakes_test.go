package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"phatsurf/internal/logging"
	"phatsurf/internal/models"
	"phatsurf/internal/users"
	"phatsurf/internal/web"

	"github.com/stretchr/testify/require"
)

// fakeUsers is an in-memory UserStore. Passwords are "hashed" by prefixing.
// Setting err makes every call fail with it.
type fakeUsers struct {
	byID    map[string]*models.User
	order   []string
	created []models.NewUser
	err     error
	// createErr fails only Create, after the pre-checks passed.
	createErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}}
}

func (f *fakeUsers) add(u *models.User) {
	f.byID[u.ID] = u
	f.order = append(f.order, u.ID)
}

func (f *fakeUsers) Create(_ context.Context, nu models.NewUser) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, nu)
	id := "id-" + nu.Username
	f.add(&models.User{ID: id, Username: nu.Username, Email: nu.Email, PasswordHash: "hash:" + nu.Password,
		Location: nu.Location, Weight: nu.Weight, Fitness: nu.Fitness})
	return id, nil
}

func (f *fakeUsers) CreateProfile(_ context.Context, p models.Profile) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id := "profile-" + p.Location
	w := p.Weight
	f.add(&models.User{ID: id, Location: p.Location, Weight: &w, Fitness: p.Fitness})
	return id, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, id := range f.order {
		if u := f.byID[id]; match(u) {
			return u, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	list := []models.User{}
	for _, id := range f.order {
		u := *f.byID[id]
		u.PasswordHash = ""
		list = append(list, u)
	}
	return list, nil
}

type prefixVerifier struct{}

func (prefixVerifier) Verify(hash, candidate string) bool { return hash == "hash:"+candidate }

// fakeSessions records session operations instead of setting cookies.
type fakeSessions struct {
	userID    string
	loggedOut bool
	flashes   []models.Flash
	pending   []models.Flash
	err       error
}

func (f *fakeSessions) Login(_ http.ResponseWriter, _ *http.Request, userID string) (models.Session, error) {
	if f.err != nil {
		return models.Session{}, f.err
	}
	f.userID = userID
	return models.Session{ID: "s-1", UserID: userID, Fresh: true}, nil
}

func (f *fakeSessions) Logout(http.ResponseWriter, *http.Request) error {
	if f.err != nil {
		return f.err
	}
	f.userID = ""
	f.loggedOut = true
	return nil
}

func (f *fakeSessions) AddFlash(_ http.ResponseWriter, _ *http.Request, fl models.Flash) error {
	f.flashes = append(f.flashes, fl)
	return nil
}

func (f *fakeSessions) Flashes(http.ResponseWriter, *http.Request) ([]models.Flash, error) {
	out := f.pending
	f.pending = nil
	return out, nil
}

// fakeRenderer records the last page rendered.
type fakeRenderer struct {
	page string
	data web.PageData
	err  error
}

func (f *fakeRenderer) Render(w http.ResponseWriter, page string, data web.PageData) error {
	if f.err != nil {
		return f.err
	}
	f.page, f.data = page, data
	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte("Rendered " + page))
	return err
}

type fixture struct {
	users    *fakeUsers
	sessions *fakeSessions
	pages    *fakeRenderer
	auth     *AuthHandler
	user     *UserHandler
	page     *PageHandler
}

func newFixture() *fixture {
	f := &fixture{users: newFakeUsers(), sessions: &fakeSessions{}, pages: &fakeRenderer{}}
	log := logging.Discard()
	f.auth = NewAuthHandler(f.users, f.sessions, prefixVerifier{}, f.pages, log)
	f.user = NewUserHandler(f.users, log)
	f.page = NewPageHandler(f.sessions, f.pages, log)
	return f
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
