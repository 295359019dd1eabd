package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/onnwee/carmarket/internal/middleware"
	"github.com/onnwee/carmarket/internal/paging"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// viewerParam is the query parameter naming the acting user.
const viewerParam = middleware.ViewerParam

// requireQuery returns the trimmed query parameter name or writes a 400.
func requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, name+" is required")
		return "", false
	}
	return v, true
}

// requirePath returns the trimmed path wildcard name or writes a 400.
func requirePath(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.PathValue(name))
	if v == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, name+" is required")
		return "", false
	}
	return v, true
}

// pageParam parses the page query parameter, defaulting to 1.
func pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	page, err := paging.ParsePage(strings.TrimSpace(r.URL.Query().Get("page")))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return 0, false
	}
	return page, true
}

// decodeJSON decodes the request body into dst, rejecting unknown fields,
// trailing data and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("request body must contain a single JSON object")
	}
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body: "+err.Error())
		return false
	}
	return true
}

// postsPage and usersPage are the paginated envelopes the web client
// consumes. NextPage is null on the last page.
type postsPage struct {
	Posts    any  `json:"posts"`
	NextPage *int `json:"nextPage"`
}

type usersPage struct {
	Users    any  `json:"users"`
	NextPage *int `json:"nextPage"`
}
