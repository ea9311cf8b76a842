package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type limitQuery struct {
	Limit int `query:"limit" default:"10" validate:"gte=1,lte=100"`
}

func bindContext(target string) echo.Context {
	e := echo.New()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	req := &limitQuery{}
	if verr := ReadAndValidateRequest(bindContext("/?x=1"), req); verr != nil {
		t.Fatalf("unexpected validation error: %v", verr)
	}
	if req.Limit != 10 {
		t.Fatalf("limit = %d want default 10", req.Limit)
	}
}

func TestReadAndValidateRejectsOutOfRange(t *testing.T) {
	req := &limitQuery{}
	verr := ReadAndValidateRequest(bindContext("/?limit=9999"), req)
	if verr == nil {
		t.Fatalf("expected validation error for limit=9999")
	}
	errs, ok := verr.([]ValidationError)
	if !ok || len(errs) != 1 {
		t.Fatalf("validation payload = %#v", verr)
	}
	if errs[0].Code != "ERR_LTE" || errs[0].Field != "Limit" {
		t.Fatalf("validation error = %+v", errs[0])
	}
}
