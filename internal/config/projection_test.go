package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prism-data/prism/internal/projection"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projection.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := EmptyProjectionConfig()

	if got := cfg.GetNProjSamples(); got != 15 {
		t.Errorf("GetNProjSamples = %d, want 15", got)
	}
	if got := cfg.GetNHiddenSamples(); got != 150 {
		t.Errorf("GetNHiddenSamples = %d, want 150", got)
	}
	cut := cfg.GetImplCut()
	want := []float64{0, 4.0, 3.8, 3.5}
	if len(cut) != len(want) {
		t.Fatalf("GetImplCut = %v, want %v", cut, want)
	}
	for i := range want {
		if cut[i] != want[i] {
			t.Fatalf("GetImplCut = %v, want %v", cut, want)
		}
	}
	if got := cfg.GetAlign(); got != projection.AlignColumn {
		t.Errorf("GetAlign = %q, want col", got)
	}
	if got := cfg.GetListenAddr(); got != ":8080" {
		t.Errorf("GetListenAddr = %q, want :8080", got)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{"n_proj_samples": 25, "align": "row", "smooth": true}`)
	cfg, err := LoadProjectionConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	opts := cfg.Options()
	if opts.Resolution != 25 {
		t.Errorf("Resolution = %d, want 25", opts.Resolution)
	}
	if opts.BaseDepth != 150 {
		t.Errorf("BaseDepth = %d, want default 150", opts.BaseDepth)
	}
	if opts.Align != projection.AlignRow {
		t.Errorf("Align = %q, want row", opts.Align)
	}
	if !opts.Smooth {
		t.Error("Smooth not applied")
	}
	if !opts.Figure {
		t.Error("Figure should default to true")
	}
}

func TestOverlay(t *testing.T) {
	res := 5
	smooth := true
	base := &ProjectionConfig{NProjSamples: &res, Smooth: &smooth}

	// Fields the overlay leaves unset keep the base values.
	depth := 9
	merged := base.Overlay(&ProjectionConfig{NHiddenSamples: &depth})
	if got := merged.GetNProjSamples(); got != 5 {
		t.Errorf("GetNProjSamples = %d, want base value 5", got)
	}
	if got := merged.GetNHiddenSamples(); got != 9 {
		t.Errorf("GetNHiddenSamples = %d, want overlay value 9", got)
	}
	if merged.Smooth == nil || !*merged.Smooth {
		t.Error("Smooth lost from base")
	}

	// A set overlay field replaces the base value.
	noSmooth := false
	merged = base.Overlay(&ProjectionConfig{Smooth: &noSmooth})
	if merged.Smooth == nil || *merged.Smooth {
		t.Error("overlay Smooth=false did not replace base")
	}

	// Nil overlay is a plain copy.
	if got := base.Overlay(nil).GetNProjSamples(); got != 5 {
		t.Errorf("Overlay(nil).GetNProjSamples = %d, want 5", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad align":        `{"align": "diagonal"}`,
		"tiny resolution":  `{"n_proj_samples": 1}`,
		"zero depth":       `{"n_hidden_samples": 0}`,
		"negative cut":     `{"impl_cut": [0, -1.0]}`,
		"all-wildcard cut": `{"impl_cut": [0, 0, 0]}`,
		"negative workers": `{"workers": -2}`,
	}
	for name, body := range cases {
		if _, err := LoadProjectionConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%s: invalid config accepted", name)
		}
	}
}

func TestLoadRejectsNonJSONPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projection.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProjectionConfig(path); err == nil {
		t.Error("non-JSON extension accepted")
	}
}
