package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func record(t *testing.T, fn func(echo.Context) error) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := fn(c); err != nil {
		t.Fatalf("write response: %v", err)
	}
	var env APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return rec, env
}

func TestEnvelopeAlwaysTransports200(t *testing.T) {
	rec, env := record(t, func(c echo.Context) error {
		return DataResponse(c, http.StatusConflict, "busy")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transport status = %d want 200", rec.Code)
	}
	if env.Status != http.StatusConflict {
		t.Fatalf("envelope status = %d want %d", env.Status, http.StatusConflict)
	}
	if env.Message != http.StatusText(http.StatusConflict) {
		t.Fatalf("envelope message = %q", env.Message)
	}
}

func TestAppErrorResponseCarriesStatus(t *testing.T) {
	appErr := NewAppError("ERR_TEAPOT", "", "short and stout", http.StatusTeapot)
	_, env := record(t, func(c echo.Context) error {
		return AppErrorResponse(c, appErr)
	})
	if env.Status != http.StatusTeapot {
		t.Fatalf("envelope status = %d want %d", env.Status, http.StatusTeapot)
	}
}

func TestAppErrorResponseMasksUnknownErrors(t *testing.T) {
	_, env := record(t, func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("sql: connection refused"))
	})
	if env.Status != http.StatusInternalServerError {
		t.Fatalf("envelope status = %d want 500", env.Status)
	}
	if s, ok := env.Data.(string); !ok || s == "" || s != "something went wrong" {
		t.Fatalf("internal detail leaked: %v", env.Data)
	}
}

func TestListResponseWrapsRowsAndTotal(t *testing.T) {
	_, env := record(t, func(c echo.Context) error {
		return ListResponse(c, []int{1, 2, 3}, 3)
	})
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("list payload shape: %T", env.Data)
	}
	if data["total"] != float64(3) {
		t.Fatalf("total = %v", data["total"])
	}
}
