package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledger-platform/internal/apperror"

	"github.com/gin-gonic/gin"
)

func failWith(t *testing.T, err error) (*httptest.ResponseRecorder, errorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(c, err)

	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", w.Body.String(), err)
	}
	return w, env
}

func TestFailMapsOperationalFaults(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.Validation("bad input", nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{apperror.NotFound("wallet"), http.StatusNotFound, "NOT_FOUND"},
		{apperror.Conflict("idempotency key reused"), http.StatusConflict, "CONFLICT"},
		{apperror.InsufficientFunds("10", "25"), http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{apperror.RateLimited(), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{apperror.ConstraintViolation("balance went negative", nil), http.StatusUnprocessableEntity, "CONSTRAINT_VIOLATION"},
	}

	for _, tc := range cases {
		w, env := failWith(t, tc.err)
		if w.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.code, w.Code, tc.status)
		}
		if env.Success {
			t.Fatalf("%s: success must be false", tc.code)
		}
		if env.Error.Code != tc.code {
			t.Fatalf("code = %q, want %q", env.Error.Code, tc.code)
		}
	}
}

func TestFailInsufficientFundsDetails(t *testing.T) {
	_, env := failWith(t, apperror.InsufficientFunds("10.5", "25"))

	details, ok := env.Error.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %T", env.Error.Details)
	}
	if details["available"] != "10.5" || details["required"] != "25" {
		t.Fatalf("details = %v", details)
	}
}

func TestFailHidesUnclassifiedErrors(t *testing.T) {
	old := ExposeInternal
	ExposeInternal = false
	defer func() { ExposeInternal = old }()

	w, env := failWith(t, errors.New("pq: connection reset"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if env.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("code = %q", env.Error.Code)
	}
	if env.Error.Message != "internal error" {
		t.Fatalf("internal cause leaked: %q", env.Error.Message)
	}
}

func TestFailExposesInternalWhenEnabled(t *testing.T) {
	old := ExposeInternal
	ExposeInternal = true
	defer func() { ExposeInternal = old }()

	_, env := failWith(t, errors.New("pq: connection reset"))
	if env.Error.Message != "pq: connection reset" {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	if p.TotalPages != 3 {
		t.Fatalf("totalPages = %d, want 3", p.TotalPages)
	}
	if p := NewPagination(1, 20, 0); p.TotalPages != 0 {
		t.Fatalf("empty result should have 0 pages, got %d", p.TotalPages)
	}
	if p := NewPagination(1, 0, 10); p.TotalPages != 0 {
		t.Fatalf("zero limit must not divide, got %d", p.TotalPages)
	}
}
