// Package post provides the car listing model and its repositories: the
// feed, per-owner and saved listings, filtering, likes and saves.
package post

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/user"
)

// Common errors for post operations.
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrInvalidPost   = errors.New("invalid post")
	ErrUnknownOwner  = errors.New("post owner does not exist")
	ErrUnknownViewer = errors.New("viewer does not exist")
	ErrEmptyPatch    = errors.New("no updatable fields provided")
)

// Post is a car listing.
type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CarName      string    `json:"car_name"`
	Price        int64     `json:"price"`
	Model        string    `json:"model,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	FuelType     string    `json:"fuel_type,omitempty"`
	Color        string    `json:"color,omitempty"`
	Information  string    `json:"information,omitempty"`
	Conditions   string    `json:"conditions,omitempty"`
	Engine       string    `json:"engine,omitempty"`
	Side         string    `json:"side,omitempty"`
	Popular      bool      `json:"popular"`
	Images       []string  `json:"images"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a post.
func (p *Post) Validate() error {
	p.UserID = strings.TrimSpace(p.UserID)
	p.CarName = strings.TrimSpace(p.CarName)
	switch {
	case p.UserID == "":
		return errors.Join(ErrInvalidPost, errors.New("user_id is required"))
	case p.CarName == "":
		return errors.Join(ErrInvalidPost, errors.New("car_name is required"))
	case p.Price < 0:
		return errors.Join(ErrInvalidPost, errors.New("price must not be negative"))
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

// FeedItem is a post as seen by a viewer: owner details, like count, and
// whether the viewer liked or saved it.
type FeedItem struct {
	Post
	Username   string `json:"username"`
	Profile    string `json:"profile,omitempty"`
	City       string `json:"city,omitempty"`
	LikesCount int    `json:"likes_count"`
	Liked      bool   `json:"like_status"`
	Saved      bool   `json:"save_status"`
}

// Patch holds the listing fields an owner may change.
type Patch struct {
	CarName      *string   `json:"car_name,omitempty"`
	Price        *int64    `json:"price,omitempty"`
	Model        *string   `json:"model,omitempty"`
	Transmission *string   `json:"transmission,omitempty"`
	FuelType     *string   `json:"fuel_type,omitempty"`
	Color        *string   `json:"color,omitempty"`
	Information  *string   `json:"information,omitempty"`
	Conditions   *string   `json:"conditions,omitempty"`
	Engine       *string   `json:"engine,omitempty"`
	Side         *string   `json:"side,omitempty"`
	Images       *[]string `json:"images,omitempty"`
}

func (p Patch) assignments() []db.Assignment {
	var out []db.Assignment
	str := func(col string, v *string) {
		if v != nil {
			out = append(out, db.Assignment{Column: col, Value: *v})
		}
	}
	str("car_name", p.CarName)
	if p.Price != nil {
		out = append(out, db.Assignment{Column: "price", Value: *p.Price})
	}
	str("model", p.Model)
	str("transmission", p.Transmission)
	str("fuel_type", p.FuelType)
	str("color", p.Color)
	str("information", p.Information)
	str("conditions", p.Conditions)
	str("engine", p.Engine)
	str("side", p.Side)
	if p.Images != nil {
		out = append(out, db.Assignment{Column: "images", Value: imagesArg(*p.Images)})
	}
	return out
}

// Validate rejects patches that set no field or would break a Post invariant.
func (p Patch) Validate() error {
	if len(p.assignments()) == 0 {
		return ErrEmptyPatch
	}
	if p.CarName != nil && strings.TrimSpace(*p.CarName) == "" {
		return errors.Join(ErrInvalidPost, errors.New("car_name must not be empty"))
	}
	if p.Price != nil && *p.Price < 0 {
		return errors.Join(ErrInvalidPost, errors.New("price must not be negative"))
	}
	return nil
}

func (p Patch) normalized() Patch {
	if p.CarName != nil {
		name := strings.TrimSpace(*p.CarName)
		p.CarName = &name
	}
	return p
}

func (p Patch) apply(dst *Post) {
	set := func(d *string, v *string) {
		if v != nil {
			*d = *v
		}
	}
	set(&dst.CarName, p.CarName)
	if p.Price != nil {
		dst.Price = *p.Price
	}
	set(&dst.Model, p.Model)
	set(&dst.Transmission, p.Transmission)
	set(&dst.FuelType, p.FuelType)
	set(&dst.Color, p.Color)
	set(&dst.Information, p.Information)
	set(&dst.Conditions, p.Conditions)
	set(&dst.Engine, p.Engine)
	set(&dst.Side, p.Side)
	if p.Images != nil {
		dst.Images = append([]string{}, (*p.Images)...)
	}
}

// Filter is the closed set of listing predicates. Empty fields are ignored;
// MaxPrice of zero means no price bound.
type Filter struct {
	CarName      string
	Conditions   string
	Engine       string
	FuelType     string
	Model        string
	Side         string
	Transmission string
	MaxPrice     int64
}

// IsEmpty reports whether no predicate is set.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// OwnerLookup resolves the owner details shown on a feed item.
type OwnerLookup interface {
	LookupOwner(ctx context.Context, userID string) (user.Owner, error)
}

// Repository stores posts and the like and save relations.
type Repository interface {
	// Create inserts p with a generated id. Returns ErrUnknownOwner when
	// p.UserID does not exist.
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, id, viewer string) (*FeedItem, error)
	Update(ctx context.Context, id string, p Patch) (*Post, error)
	Delete(ctx context.Context, id string) error

	// ListFeed returns every post newest first.
	ListFeed(ctx context.Context, viewer string, limit, offset int) ([]*FeedItem, error)

	// ListPopular returns posts flagged popular, newest first.
	ListPopular(ctx context.Context, viewer string) ([]*FeedItem, error)

	ListByUser(ctx context.Context, owner, viewer string, limit, offset int) ([]*FeedItem, error)

	// ListSaved returns the posts userID saved, most recently saved first.
	ListSaved(ctx context.Context, userID string, limit, offset int) ([]*FeedItem, error)

	// GetMany returns posts for ids in the given order, skipping missing ids.
	GetMany(ctx context.Context, ids []string, viewer string) ([]*FeedItem, error)

	// Filter returns posts matching every set predicate, ordered by car
	// name then newest first. An empty filter matches nothing.
	Filter(ctx context.Context, f Filter, viewer string) ([]*FeedItem, error)

	// ToggleLike flips userID's like on postID and reports whether it is
	// now liked.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)

	// ToggleSave flips userID's save on postID and reports whether it is
	// now saved.
	ToggleSave(ctx context.Context, postID, userID string) (bool, error)

	// TogglePopular flips the popular flag and returns its new value.
	TogglePopular(ctx context.Context, postID string) (bool, error)
}
