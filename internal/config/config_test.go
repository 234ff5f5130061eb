package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/BTreeMap/Tranquil/internal/breathing"
	"github.com/BTreeMap/Tranquil/internal/models"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalog_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if diff := cmp.Diff(DefaultCatalog(), cfg); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCatalog_Overlay(t *testing.T) {
	path := writeCatalog(t, `
countdown_seconds = 5

[box]
inhale = 5
repetitions = 6

[[professionals]]
id = "p1"
name = "Dr. Ada Lee"
title = "Clinical Psychologist"
approaches = ["Gentle", "Cognitive Behavioral (CBT)"]
contact = "+15550001234"
`)
	cfg, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	wantBox := breathing.DefaultBoxConfig()
	wantBox.Inhale = 5
	wantBox.Repetitions = 6
	want := Catalog{
		Box:              wantBox,
		CountdownSeconds: 5,
		TrendWindow:      7,
		Professionals: []models.Professional{{
			ID:         "p1",
			Name:       "Dr. Ada Lee",
			Title:      "Clinical Psychologist",
			Approaches: []string{"Gentle", "Cognitive Behavioral (CBT)"},
			Contact:    "+15550001234",
		}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}

	programs, err := cfg.Programs()
	if err != nil {
		t.Fatalf("Programs: %v", err)
	}
	box, ok := programs.Get(breathing.ProgramBox)
	if !ok || box.Repetitions != 6 || box.Phases[0].Duration != 5 {
		t.Errorf("box program not configured from catalog: %+v", box)
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad toml", "countdown_seconds = [", "parse catalog"},
		{"zero duration", "[box]\nexhale = 0", "box"},
		{"negative countdown", "countdown_seconds = -1", "countdown_seconds"},
		{"zero trend window", "trend_window = 0", "trend_window"},
		{"missing name", "[[professionals]]\nid = \"p1\"", "id and name"},
		{"duplicate id", "[[professionals]]\nid = \"p1\"\nname = \"A\"\n[[professionals]]\nid = \"p1\"\nname = \"B\"", "duplicate"},
		{"unknown approach", "[[professionals]]\nid = \"p1\"\nname = \"A\"\napproaches = [\"Shouting\"]", "unknown approach"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
