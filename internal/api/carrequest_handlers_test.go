package api

import (
	"net/http"
	"testing"

	"github.com/onnwee/carmarket/internal/carrequest"
)

func (a *testAPI) createRequest(t *testing.T, owner, carName, city string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/car-requests", map[string]any{
		"user_id":  owner,
		"car_name": carName,
		"city":     city,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	return decodeBody[carrequest.CarRequest](t, w).ID
}

func TestCarRequest_ModerationFlow(t *testing.T) {
	api := newTestAPI(t)
	api.createUser(t, "buyer", "sara", "Erbil")
	id := api.createRequest(t, "buyer", "Nissan Patrol", "Erbil")

	public := decodeBody[[]carrequest.View](t, api.do(t, http.MethodGet, "/car-requests", nil))
	if len(public) != 0 {
		t.Fatalf("pending requests must not be public, got %d", len(public))
	}

	w := api.do(t, http.MethodPatch, "/dashboard/car-requests/status/"+id, map[string]string{"status": "Approved"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[carrequest.CarRequest](t, w); got.Status != carrequest.StatusApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}

	inCity := decodeBody[[]carrequest.View](t, api.do(t, http.MethodGet, "/car-requests?city=Erbil", nil))
	if len(inCity) != 1 || inCity[0].Username != "sara" {
		t.Errorf("expected the approved request with owner details, got %+v", inCity)
	}
	elsewhere := decodeBody[[]carrequest.View](t, api.do(t, http.MethodGet, "/car-requests?city=Basra", nil))
	if len(elsewhere) != 0 {
		t.Errorf("expected no requests in Basra, got %d", len(elsewhere))
	}

	assertError(t, api.do(t, http.MethodPatch, "/dashboard/car-requests/status/"+id, map[string]string{"status": "sold"}), http.StatusBadRequest, ErrCodeValidation)
}

func TestCarRequest_OwnerScope(t *testing.T) {
	api := newTestAPI(t)
	api.createUser(t, "buyer", "sara", "Erbil")
	api.createUser(t, "other", "omar", "Erbil")
	id := api.createRequest(t, "buyer", "Nissan Patrol", "Erbil")

	if w := api.do(t, http.MethodGet, "/car-requests/"+id+"?userId=buyer", nil); w.Code != http.StatusOK {
		t.Fatalf("owner should read own request, got %d", w.Code)
	}
	assertError(t, api.do(t, http.MethodGet, "/car-requests/"+id+"?userId=other", nil), http.StatusNotFound, ErrCodeNotFound)
	assertError(t, api.do(t, http.MethodPatch, "/car-requests/"+id+"?userId=other", map[string]string{"model": "2020"}), http.StatusNotFound, ErrCodeNotFound)
	assertError(t, api.do(t, http.MethodDelete, "/car-requests/"+id+"?userId=other", nil), http.StatusNotFound, ErrCodeNotFound)
	assertError(t, api.do(t, http.MethodGet, "/car-requests/"+id, nil), http.StatusBadRequest, ErrCodeValidation)

	w := api.do(t, http.MethodPatch, "/car-requests/"+id+"?userId=buyer", map[string]string{"model": "2020"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[carrequest.CarRequest](t, w); got.Model != "2020" || got.Status != carrequest.StatusPending {
		t.Errorf("unexpected request after update: %+v", got)
	}

	own := decodeBody[[]carrequest.View](t, api.do(t, http.MethodGet, "/car-requests/user_requests?userId=buyer&status=pending", nil))
	if len(own) != 1 {
		t.Errorf("expected 1 pending request, got %d", len(own))
	}
	assertError(t, api.do(t, http.MethodGet, "/car-requests/user_requests?userId=buyer&status=lost", nil), http.StatusBadRequest, ErrCodeValidation)

	if w := api.do(t, http.MethodDelete, "/car-requests/"+id+"?userId=buyer", nil); w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
}

func TestCarRequest_CreateValidation(t *testing.T) {
	api := newTestAPI(t)
	api.createUser(t, "buyer", "sara", "Erbil")

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing city", map[string]any{"user_id": "buyer", "car_name": "Kia"}, http.StatusBadRequest, ErrCodeValidation},
		{"unknown owner", map[string]any{"user_id": "ghost", "car_name": "Kia", "city": "Erbil"}, http.StatusNotFound, ErrCodeNotFound},
		{"unknown field", map[string]any{"user_id": "buyer", "car_name": "Kia", "city": "Erbil", "budget": 1}, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, api.do(t, http.MethodPost, "/car-requests", tt.body), tt.status, tt.code)
		})
	}
}

func TestDashboard_CarRequestAdmin(t *testing.T) {
	api := newTestAPI(t)
	api.createUser(t, "buyer", "sara", "Erbil")
	id := api.createRequest(t, "buyer", "Nissan Patrol", "Erbil")
	api.createRequest(t, "buyer", "Lexus LX", "Erbil")

	all := decodeBody[[]carrequest.View](t, api.do(t, http.MethodGet, "/dashboard/car-requests", nil))
	if len(all) != 2 {
		t.Errorf("expected 2 requests, got %d", len(all))
	}
	byUser := decodeBody[[]carrequest.View](t, api.do(t, http.MethodGet, "/dashboard/user-requests?userId=buyer&status=all", nil))
	if len(byUser) != 2 {
		t.Errorf("expected 2 requests for buyer, got %d", len(byUser))
	}

	if w := api.do(t, http.MethodGet, "/dashboard/car-requests/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	w := api.do(t, http.MethodPatch, "/dashboard/car-requests/"+id, map[string]string{"color": "white"})
	if got := decodeBody[carrequest.CarRequest](t, w); got.Color != "white" {
		t.Errorf("expected color white, got %+v", got)
	}
	if w := api.do(t, http.MethodDelete, "/dashboard/car-requests/"+id, nil); w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	assertError(t, api.do(t, http.MethodGet, "/dashboard/car-requests/"+id, nil), http.StatusNotFound, ErrCodeNotFound)
}
