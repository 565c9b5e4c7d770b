package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLessonTranslations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/courses/C1/translations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]translationDTO{
			{LessonID: "L1", Language: "en", Text: "intro"},
			{LessonID: "L1", Language: "es", Text: "introducción"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	got, err := c.LessonTranslations(context.Background(), "C1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].LessonID != "L1" || got[1].Language != "es" {
		t.Fatalf("translations = %+v", got)
	}
}

func TestLessonText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lessons/L1/translations/en" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(translationDTO{LessonID: "L1", Language: "en", Text: "intro"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	text, err := c.LessonText(context.Background(), "L1", "en")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "intro" {
		t.Fatalf("text = %q", text)
	}
}

func TestCatalogErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "course not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.LessonTranslations(context.Background(), "missing"); err == nil {
		t.Fatal("expected error on 404")
	}
}
