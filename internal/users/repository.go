// Package users persists user records in the "users" document collection.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"phatsurf/internal/db"
	"phatsurf/internal/models"
)

const CollectionName = "users"

var (
	// ErrUserNotFound covers both a missing user and an id that could never
	// name one.
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email is already registered")
	ErrUsernameTaken = errors.New("username is already taken")
)

// document field names
const (
	fieldUsername = "username"
	fieldEmail    = "email"
	fieldPassword = "password"
	fieldLocation = "location"
	fieldWeight   = "weight"
	fieldFitness  = "fitness"
)

// PasswordHasher is the part of the credential store the repository needs.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Collection is the document store surface used by the repository.
type Collection interface {
	InsertOne(ctx context.Context, doc db.Document) (string, error)
	FindOne(ctx context.Context, filter db.Filter) (db.Document, error)
	Find(ctx context.Context, filter db.Filter) ([]db.Document, error)
}

type Repository struct {
	users  Collection
	hasher PasswordHasher
}

func NewRepository(users Collection, hasher PasswordHasher) *Repository {
	return &Repository{users: users, hasher: hasher}
}

// Create hashes the password and stores the user. Uniqueness of email and
// username is enforced by the store; a violation surfaces as ErrEmailTaken
// or ErrUsernameTaken.
func (r *Repository) Create(ctx context.Context, u models.NewUser) (string, error) {
	hash, err := r.hasher.Hash(u.Password)
	if err != nil {
		return "", err
	}

	doc := db.Document{
		fieldUsername: strings.TrimSpace(u.Username),
		fieldEmail:    NormalizeEmail(u.Email),
		fieldPassword: hash,
	}
	if u.Location != "" {
		doc[fieldLocation] = u.Location
	}
	if u.Weight != nil {
		doc[fieldWeight] = *u.Weight
	}
	if u.Fitness != "" {
		doc[fieldFitness] = u.Fitness
	}

	id, err := r.users.InsertOne(ctx, doc)
	if err != nil {
		return "", conflict(err)
	}
	return id, nil
}

// CreateProfile stores a bare profile record without credentials.
func (r *Repository) CreateProfile(ctx context.Context, p models.Profile) (string, error) {
	id, err := r.users.InsertOne(ctx, db.Document{
		fieldLocation: p.Location,
		fieldWeight:   p.Weight,
		fieldFitness:  p.Fitness,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}
	return id, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !ValidID(id) {
		return nil, ErrUserNotFound
	}
	return r.findOne(ctx, db.Filter{db.IDField: id})
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}
	return r.findOne(ctx, db.Filter{fieldEmail: email})
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUserNotFound
	}
	return r.findOne(ctx, db.Filter{fieldUsername: username})
}

// List returns every user. Password hashes are not populated.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	docs, err := r.users.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	list := make([]models.User, 0, len(docs))
	for _, d := range docs {
		u := fromDocument(d)
		u.PasswordHash = ""
		list = append(list, *u)
	}
	return list, nil
}

func (r *Repository) findOne(ctx context.Context, filter db.Filter) (*models.User, error) {
	doc, err := r.users.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return fromDocument(doc), nil
}

func conflict(err error) error {
	var dup *db.DuplicateKeyError
	if !errors.As(err, &dup) {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if strings.Contains(dup.Index, fieldUsername) {
		return fmt.Errorf("%w: %w", ErrUsernameTaken, err)
	}
	return fmt.Errorf("%w: %w", ErrEmailTaken, err)
}
