// Package user manages marketplace accounts: sellers and buyers keyed by an
// external identity string.
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/search"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidUser  = errors.New("invalid user")
	ErrEmptyPatch   = errors.New("no updatable fields provided")
)

// User is a marketplace account.
type User struct {
	ID           string   `json:"user_id"`
	Username     string   `json:"username"`
	Email        string   `json:"email,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	City         string   `json:"city,omitempty"`
	Background   string   `json:"background,omitempty"`
	Profile      string   `json:"profile,omitempty"`
	Facebook     string   `json:"facebook,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	PhoneNumber1 string   `json:"phone_number1,omitempty"`
	PhoneNumber2 string   `json:"phone_number2,omitempty"`
	PhoneNumber3 string   `json:"phone_number3,omitempty"`
	Address      string   `json:"address,omitempty"`
	Whatsapp     string   `json:"whatsapp,omitempty"`
	X            string   `json:"x,omitempty"`
	Seller       bool     `json:"seller"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a user.
func (u *User) Validate() error {
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.TrimSpace(u.Username)
	if u.ID == "" {
		return errors.Join(ErrInvalidUser, errors.New("user_id is required"))
	}
	if u.Username == "" {
		return errors.Join(ErrInvalidUser, errors.New("username is required"))
	}
	return nil
}

// Owner is the public face of a user shown next to their listings.
type Owner struct {
	Username string `json:"username"`
	Profile  string `json:"profile,omitempty"`
	City     string `json:"city,omitempty"`
}

// Patch holds the profile fields a user may change. Nil fields are left
// untouched.
type Patch struct {
	Username     *string  `json:"username,omitempty"`
	Email        *string  `json:"email,omitempty"`
	Bio          *string  `json:"bio,omitempty"`
	City         *string  `json:"city,omitempty"`
	Background   *string  `json:"background,omitempty"`
	Profile      *string  `json:"profile,omitempty"`
	Facebook     *string  `json:"facebook,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	PhoneNumber1 *string  `json:"phone_number1,omitempty"`
	PhoneNumber2 *string  `json:"phone_number2,omitempty"`
	PhoneNumber3 *string  `json:"phone_number3,omitempty"`
	Address      *string  `json:"address,omitempty"`
	Whatsapp     *string  `json:"whatsapp,omitempty"`
	X            *string  `json:"x,omitempty"`
}

// assignments lists the set fields in column order.
func (p Patch) assignments() []db.Assignment {
	var out []db.Assignment
	add := func(col string, v any, set bool) {
		if set {
			out = append(out, db.Assignment{Column: col, Value: v})
		}
	}
	add("username", deref(p.Username), p.Username != nil)
	add("email", deref(p.Email), p.Email != nil)
	add("bio", deref(p.Bio), p.Bio != nil)
	add("city", deref(p.City), p.City != nil)
	add("background", deref(p.Background), p.Background != nil)
	add("profile", deref(p.Profile), p.Profile != nil)
	add("facebook", deref(p.Facebook), p.Facebook != nil)
	add("lat", p.Lat, p.Lat != nil)
	add("lng", p.Lng, p.Lng != nil)
	add("phone_number1", deref(p.PhoneNumber1), p.PhoneNumber1 != nil)
	add("phone_number2", deref(p.PhoneNumber2), p.PhoneNumber2 != nil)
	add("phone_number3", deref(p.PhoneNumber3), p.PhoneNumber3 != nil)
	add("address", deref(p.Address), p.Address != nil)
	add("whatsapp", deref(p.Whatsapp), p.Whatsapp != nil)
	add("x", deref(p.X), p.X != nil)
	return out
}

// IsEmpty reports whether the patch sets no field.
func (p Patch) IsEmpty() bool {
	return len(p.assignments()) == 0
}

func (p Patch) apply(u *User) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Username, p.Username)
	set(&u.Email, p.Email)
	set(&u.Bio, p.Bio)
	set(&u.City, p.City)
	set(&u.Background, p.Background)
	set(&u.Profile, p.Profile)
	set(&u.Facebook, p.Facebook)
	if p.Lat != nil {
		u.Lat = p.Lat
	}
	if p.Lng != nil {
		u.Lng = p.Lng
	}
	set(&u.PhoneNumber1, p.PhoneNumber1)
	set(&u.PhoneNumber2, p.PhoneNumber2)
	set(&u.PhoneNumber3, p.PhoneNumber3)
	set(&u.Address, p.Address)
	set(&u.Whatsapp, p.Whatsapp)
	set(&u.X, p.X)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Repository stores users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)

	// List returns users newest first.
	List(ctx context.Context, limit, offset int) ([]*User, error)

	// Update applies p and returns the updated user. An empty patch
	// returns ErrEmptyPatch.
	Update(ctx context.Context, id string, p Patch) (*User, error)
	Delete(ctx context.Context, id string) error

	// ToggleSeller flips the seller flag and returns the new value.
	ToggleSeller(ctx context.Context, id string) (bool, error)

	// GetMany returns the users for ids in the order given, skipping ids
	// that do not exist.
	GetMany(ctx context.Context, ids []string) ([]*User, error)

	LookupOwner(ctx context.Context, id string) (Owner, error)
}

func searchCandidate(u *User) search.Candidate {
	return search.Candidate{
		ID:        u.ID,
		Text:      u.Username,
		Facet:     u.City,
		CreatedAt: u.CreatedAt,
	}
}
