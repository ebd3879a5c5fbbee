package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClientPostEnvelope(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exercise/save" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":42}}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithToken("secret"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	envelope, err := c.Post(context.Background(), "exercise/save", map[string]any{"name": "Squat"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope")
	}
	var data struct {
		ID int `json:"id"`
	}
	if err := envelope.Decode(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.ID != 42 {
		t.Fatalf("expected id 42, got %d", data.ID)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if diff := cmp.Diff(map[string]any{"name": "Squat"}, gotBody); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestClientGetQueryAndFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "ENABLED" {
			t.Errorf("expected status query, got %q", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"success":false,"errMessage":"name already exists"}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	envelope, err := c.Get(context.Background(), "/exercise/page", url.Values{"status": {"ENABLED"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if envelope.Success {
		t.Fatalf("expected failed envelope")
	}
	if got := envelope.FailureMessage(); got != "name already exists" {
		t.Fatalf("unexpected failure message %q", got)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.Get(context.Background(), "/anything", nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("expected status error 502, got %v", err)
	}
}

func TestClientUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "binary" || header.Filename != "squat.png" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"url":"https://cdn.example.com/squat.png"}}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	got, err := c.Upload(context.Background(), File{Name: "squat.png", Body: strings.NewReader("binary")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got != "https://cdn.example.com/squat.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
