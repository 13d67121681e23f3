package contentservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halvard/raido/internal/apperr"
)

func TestUploadFile(t *testing.T) {
	var gotAuth, gotInfo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotInfo = r.FormValue("fileInfo")
		files := r.MultipartForm.File["files"]
		if len(files) != 1 || files[0].Filename != "cat.png" {
			t.Errorf("files = %v", files)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Asset{{ID: 5, URL: "/uploads/cat_abc.png"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 0)
	asset, err := c.UploadFile(context.Background(), []byte("bytes"), "cat.png", &FileInfo{AlternativeText: "a cat"})
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if asset.ID != 5 {
		t.Errorf("asset.ID = %d", asset.ID)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth = %q", gotAuth)
	}
	var info FileInfo
	if err := json.Unmarshal([]byte(gotInfo), &info); err != nil || info.AlternativeText != "a cat" {
		t.Errorf("fileInfo = %q", gotInfo)
	}
}

func TestFindAssetByURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filters[url][$eq]"); got != "https://x/pic.png" {
			t.Errorf("filter = %q", got)
		}
		json.NewEncoder(w).Encode([]Asset{{ID: 7, URL: "https://x/pic.png"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	asset, err := c.FindAssetByURL(context.Background(), "https://x/pic.png")
	if err != nil {
		t.Fatalf("FindAssetByURL: %v", err)
	}
	if asset == nil || asset.ID != 7 {
		t.Errorf("asset = %+v", asset)
	}
}

func TestFindAssetByURL_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Asset{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	asset, err := c.FindAssetByURL(context.Background(), "https://x/none.png")
	if err != nil {
		t.Fatalf("FindAssetByURL: %v", err)
	}
	if asset != nil {
		t.Errorf("asset = %+v, want nil", asset)
	}
}

func TestCreateEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/articles" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var wrapped struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&wrapped); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if wrapped.Data["title"] != "Hello" {
			t.Errorf("payload = %v", wrapped.Data)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 33}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	entry, err := c.CreateEntry(context.Background(), "api/articles", map[string]any{"title": "Hello"})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.ID != 33 {
		t.Errorf("entry.ID = %d", entry.ID)
	}
}

func TestCreateEntry_BareResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 12})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	entry, err := c.CreateEntry(context.Background(), "api/articles", nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.ID != 12 {
		t.Errorf("entry.ID = %d", entry.ID)
	}
}

func TestServiceErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad field"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	_, err := c.CreateEntry(context.Background(), "api/articles", map[string]any{})
	var se *apperr.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	if se.Status != http.StatusBadRequest || se.Message != "bad field" {
		t.Errorf("ServiceError = %+v", se)
	}
}

func TestNetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 0)
	_, err := c.FindAssetByURL(context.Background(), "https://x/pic.png")
	var ne *apperr.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}
