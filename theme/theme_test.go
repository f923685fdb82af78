package theme

import (
	"path/filepath"
	"testing"

	"go-lightsynth/light"
)

func TestDefault(t *testing.T) {
	th := Default()
	if th.Palette.Name != "plasma" || len(th.Palette.Colors) != 10 {
		t.Fatalf("palette = %s (%d colours)", th.Palette.Name, len(th.Palette.Colors))
	}
	if got := string(th.BG()); got != "#0d0887" {
		t.Errorf("BG = %s", got)
	}
	if got := string(th.Success()); got != "#f0f921" {
		t.Errorf("Success = %s", got)
	}
}

func TestHex(t *testing.T) {
	if got := Hex(light.RGB{R: 2, G: -1, B: 0.5}); got != "#ff0080" {
		t.Errorf("Hex = %s", got)
	}
}

func TestLoad(t *testing.T) {
	th, err := Load("")
	if err != nil || th.Palette.Name != "plasma" {
		t.Errorf("empty path should give the default theme")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.gpl")); err == nil {
		t.Error("missing palette should fail")
	}
}
