package httputil

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intexuraos/agents/internal/errors"
)

func TestWriteDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"id": "a-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !env.Success || env.Error != nil {
		t.Fatalf("envelope = %+v", env)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok || data["id"] != "a-1" {
		t.Fatalf("data = %v", env.Data)
	}
}

func TestWriteErrorUsesServiceTaxonomy(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.NotFound("code task"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Success || env.Error == nil {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Error.Code != "NOT_FOUND" {
		t.Fatalf("code = %q", env.Error.Code)
	}
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, stderrors.New("pq: relation actions does not exist"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Fatalf("internal error text leaked: %s", rec.Body.String())
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error == nil || env.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestReadBodyLimit(t *testing.T) {
	small := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ok":true}`))
	body, err := ReadBody(small)
	if err != nil {
		t.Fatalf("read small body: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("body = %q", body)
	}

	big := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, maxRequestBody+1)))
	if _, err := ReadBody(big); err == nil {
		t.Fatal("expected oversized body to be rejected")
	}
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !truncated || string(body) != "abcd" {
		t.Fatalf("body = %q truncated = %v", body, truncated)
	}

	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 4); err == nil {
		t.Fatal("strict read should fail on overflow")
	}
	body, err = ReadAllStrict(strings.NewReader("abc"), 4)
	if err != nil || string(body) != "abc" {
		t.Fatalf("strict read = %q, %v", body, err)
	}
}
