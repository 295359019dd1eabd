// Package paging holds the offset pagination rules shared by feeds and search.
package paging

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxLimit is the largest page size any listing accepts.
const MaxLimit = 100

// MaxPage is the highest page any listing accepts. It keeps
// (MaxPage-1)*MaxLimit well inside a 32-bit offset.
const MaxPage = 100_000

// Validation errors.
var (
	ErrInvalidPage   = errors.New("page must be an integer from 1 to 100000")
	ErrInvalidLimit  = errors.New("limit out of range")
	ErrInvalidOffset = errors.New("offset must not be negative")
)

// Validate checks 1 <= page <= MaxPage and 1 <= limit <= MaxLimit.
func Validate(page, limit int) error {
	if page < 1 || page > MaxPage {
		return fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	if limit < 1 || limit > MaxLimit {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrInvalidLimit, limit, MaxLimit)
	}
	return nil
}

// Offset converts a 1-based page into a row offset. Pages outside
// 1..MaxPage and negative limits yield offset 0; callers validate first.
func Offset(page, limit int) int {
	if page < 1 || page > MaxPage || limit < 0 {
		return 0
	}
	return (page - 1) * limit
}

// Next returns page+1 when count filled the page and nil otherwise.
//
// A full page is taken to mean more rows may follow, so a final page that
// holds exactly limit rows still advertises a successor, which then comes
// back empty.
func Next(page, limit, count int) *int {
	if count < limit {
		return nil
	}
	next := page + 1
	return &next
}

// ParsePage reads a page query parameter. Empty means page 1; anything
// outside 1..MaxPage, including values that overflow int, is rejected.
func ParsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 || page > MaxPage {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPage, raw)
	}
	return page, nil
}
