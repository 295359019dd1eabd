// Package carrequest stores buyers' "wanted" requests. Requests start
// pending and become public once the dashboard approves them.
package carrequest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onnwee/carmarket/internal/db"
)

var (
	ErrRequestNotFound = errors.New("car request not found")
	ErrInvalidRequest  = errors.New("invalid car request")
	ErrInvalidStatus   = errors.New("invalid car request status")
	ErrUnknownOwner    = errors.New("car request owner does not exist")
	ErrEmptyPatch      = errors.New("no updatable fields provided")
)

// Status is the moderation state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// StatusAll selects every status in ListByUser.
const StatusAll = "all"

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// CarRequest is a request for a car someone wants to buy.
type CarRequest struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CarName      string    `json:"car_name"`
	Model        string    `json:"model,omitempty"`
	Conditions   string    `json:"conditions,omitempty"`
	FuelType     string    `json:"fuel_type,omitempty"`
	Engine       string    `json:"engine,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	Color        string    `json:"color,omitempty"`
	Side         string    `json:"side,omitempty"`
	City         string    `json:"city"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Whatsapp     string    `json:"whatsapp,omitempty"`
	Information  string    `json:"information,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View is a request with its owner's public details.
type View struct {
	CarRequest
	Username string `json:"username"`
	Profile  string `json:"profile,omitempty"`
}

func (r *CarRequest) validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.CarName = strings.TrimSpace(r.CarName)
	r.City = strings.TrimSpace(r.City)
	switch {
	case r.UserID == "":
		return errors.Join(ErrInvalidRequest, errors.New("user_id is required"))
	case r.CarName == "":
		return errors.Join(ErrInvalidRequest, errors.New("car_name is required"))
	case r.City == "":
		return errors.Join(ErrInvalidRequest, errors.New("city is required"))
	}
	return nil
}

// Patch holds the fields an owner or the dashboard may change. Status is
// only changed through SetStatus.
type Patch struct {
	CarName      *string `json:"car_name,omitempty"`
	Model        *string `json:"model,omitempty"`
	Conditions   *string `json:"conditions,omitempty"`
	FuelType     *string `json:"fuel_type,omitempty"`
	Engine       *string `json:"engine,omitempty"`
	Transmission *string `json:"transmission,omitempty"`
	Color        *string `json:"color,omitempty"`
	Side         *string `json:"side,omitempty"`
	City         *string `json:"city,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	Whatsapp     *string `json:"whatsapp,omitempty"`
	Information  *string `json:"information,omitempty"`
}

// fields pairs each column with its patch value and the request field it updates.
func (p Patch) fields(r *CarRequest) []struct {
	column string
	value  *string
	dst    *string
} {
	return []struct {
		column string
		value  *string
		dst    *string
	}{
		{"car_name", p.CarName, &r.CarName},
		{"model", p.Model, &r.Model},
		{"conditions", p.Conditions, &r.Conditions},
		{"fuel_type", p.FuelType, &r.FuelType},
		{"engine", p.Engine, &r.Engine},
		{"transmission", p.Transmission, &r.Transmission},
		{"color", p.Color, &r.Color},
		{"side", p.Side, &r.Side},
		{"city", p.City, &r.City},
		{"phone_number", p.PhoneNumber, &r.PhoneNumber},
		{"whatsapp", p.Whatsapp, &r.Whatsapp},
		{"information", p.Information, &r.Information},
	}
}

func (p Patch) assignments() []db.Assignment {
	var out []db.Assignment
	for _, f := range p.fields(&CarRequest{}) {
		if f.value != nil {
			out = append(out, db.Assignment{Column: f.column, Value: *f.value})
		}
	}
	return out
}

func (p Patch) apply(r *CarRequest) {
	for _, f := range p.fields(r) {
		if f.value != nil {
			*f.dst = *f.value
		}
	}
}

// Validate rejects empty patches and blanking required fields.
func (p Patch) Validate() error {
	if len(p.assignments()) == 0 {
		return ErrEmptyPatch
	}
	if p.CarName != nil && strings.TrimSpace(*p.CarName) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("car_name must not be empty"))
	}
	if p.City != nil && strings.TrimSpace(*p.City) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("city must not be empty"))
	}
	return nil
}

// Repository stores car requests. Methods taking a userID scope the call
// to that owner's requests; an empty userID means unscoped dashboard access.
type Repository interface {
	// ListApproved returns approved requests, optionally in one city.
	ListApproved(ctx context.Context, city string) ([]*View, error)
	ListAll(ctx context.Context) ([]*View, error)

	// ListByUser returns userID's requests in the given status, or all of
	// them when status is StatusAll or empty.
	ListByUser(ctx context.Context, userID, status string) ([]*View, error)
	Get(ctx context.Context, id, userID string) (*View, error)

	// Create inserts r as pending.
	Create(ctx context.Context, r *CarRequest) error
	Update(ctx context.Context, id, userID string, p Patch) (*CarRequest, error)
	Delete(ctx context.Context, id, userID string) error
	SetStatus(ctx context.Context, id string, status Status) (*CarRequest, error)
}

// statusFilter turns a ListByUser status argument into a Status, or "" for all.
func statusFilter(status string) (Status, error) {
	if status == "" || strings.EqualFold(status, StatusAll) {
		return "", nil
	}
	return ParseStatus(status)
}
