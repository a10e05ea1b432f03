package handlers

import (
	"errors"
	"net/http"
	"strings"

	"phatsurf/internal/http/middleware"
	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"
	"phatsurf/internal/models"
	"phatsurf/internal/users"

	"github.com/gorilla/mux"
)

const (
	MsgUserNotFound = "User not found"
	MsgUserCreated  = "User created"
)

// UserHandler serves the JSON user API.
type UserHandler struct {
	users   UserStore
	log     logging.Logger
	present presenter
}

func NewUserHandler(users UserStore, log logging.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		log:     log,
		present: presenter{log: log, internalMsg: respond.MsgUnexpected},
	}
}

type profileInput struct {
	Location string `json:"location" validate:"required"`
	Weight   string `json:"weight" validate:"required"`
	Fitness  string `json:"fitness" validate:"required"`
}

// Profile returns the signed-in user's record, read afresh from the store.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.present.writeJSON(w, r, "profile", internal(errors.New("profile served without an authenticated user")))
		return
	}
	h.present.writeJSON(w, r, "profile", h.lookup(r, current.ID))
}

// GetUser returns the user named by the {id} path variable.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.present.writeJSON(w, r, "get user", h.lookup(r, mux.Vars(r)["id"]))
}

func (h *UserHandler) lookup(r *http.Request, id string) Outcome {
	u, err := h.users.FindByID(r.Context(), id)
	if errors.Is(err, users.ErrUserNotFound) {
		return notFound(MsgUserNotFound)
	}
	if err != nil {
		return internal(err)
	}
	return success(http.StatusOK, u)
}

// ListUsers returns every user without password hashes.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(r.Context())
	if err != nil {
		h.present.writeJSON(w, r, "list users", internal(err))
		return
	}
	h.present.writeJSON(w, r, "list users", success(http.StatusOK, list))
}

// CreateUser stores a bare profile record. It needs no authentication and
// always answers JSON.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var o Outcome
	f, err := readFields(w, r)
	if err != nil {
		o = bodyError(err)
	} else {
		o = h.createProfile(r, profileInput{
			Location: strings.TrimSpace(f.get("location")),
			Weight:   strings.TrimSpace(f.get("weight")),
			Fitness:  strings.TrimSpace(f.get("fitness")),
		})
	}
	h.present.writeJSON(w, r, "create user", o)
}

func (h *UserHandler) createProfile(r *http.Request, in profileInput) Outcome {
	missing, err := check(in)
	if err != nil {
		return internal(err)
	}
	if len(missing) > 0 {
		return missingFields(missing)
	}

	weight, err := parseWeight(in.Weight)
	if err != nil {
		return invalid(MsgWeightNotNumber, "weight")
	}

	id, err := h.users.CreateProfile(r.Context(), models.Profile{
		Location: in.Location,
		Weight:   weight,
		Fitness:  in.Fitness,
	})
	if err != nil {
		return internal(err)
	}
	return success(http.StatusCreated, map[string]string{"message": MsgUserCreated, "user_id": id})
}
