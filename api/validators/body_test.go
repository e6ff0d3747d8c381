package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

type statusBody struct {
	Status string `json:"status" validate:"required"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"completed","extra":1}`))
	var dst statusBody
	err := DecodeJSONBody(req, &dst)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldNamesFromTags(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	var dst statusBody
	err := DecodeJSONBody(req, &dst)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["statusBody.status"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestPathID(t *testing.T) {
	for _, tt := range []struct {
		raw  string
		want int64
		ok   bool
	}{
		{raw: "42", want: 42, ok: true},
		{raw: "0"},
		{raw: "-3"},
		{raw: "abc"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", tt.raw)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

		got, err := PathID(req, "orderId")
		if tt.ok && (err != nil || got != tt.want) {
			t.Fatalf("%q: expected %d got %d (%v)", tt.raw, tt.want, got, err)
		}
		if !tt.ok && !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("%q: expected validation error, got %v", tt.raw, err)
		}
	}
}

func TestQueryParamTrimsAndBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=%20abcdef%20", nil)
	if got := QueryParam(req, "code", 3); got != "abc" {
		t.Fatalf("unexpected value %q", got)
	}
	if got := QueryParam(req, "missing", 0); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}
