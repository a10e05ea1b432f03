package models

type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username,omitempty"`
	PasswordHash string   `json:"-"` // Don't expose in JSON
	Email        string   `json:"email,omitempty"`
	Location     string   `json:"location,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	Fitness      string   `json:"fitness,omitempty"`
}

// NewUser is the registration input. Password is plaintext and never leaves
// the users package unhashed.
type NewUser struct {
	Username string
	Email    string
	Password string
	Location string
	Weight   *float64
	Fitness  string
}

// Profile is the bare record accepted by the legacy create endpoint.
type Profile struct {
	Location string
	Weight   float64
	Fitness  string
}

type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Fresh  bool   `json:"fresh"`
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Message  string
	Category string
}
