package ui

import (
	"strings"
	"testing"
)

func TestPalette(t *testing.T) {
	p := NewPalette("#000000", "#111111", "#222222", "#333333", "#444444")

	tc := []struct {
		name   string
		render func(string) string
	}{
		{"Title", p.Title},
		{"OK", p.OK},
		{"Err", p.Err},
		{"Warn", p.Warn},
		{"Help", p.Help},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.render("hello"); !strings.Contains(got, "hello") {
				t.Errorf("expected rendered text to contain input, got %q", got)
			}
		})
	}

	t.Run("default palette", func(t *testing.T) {
		if Styles == nil {
			t.Fatal("expected default palette")
		}
	})
}
