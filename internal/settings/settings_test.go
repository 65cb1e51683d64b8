package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParentFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.yaml")
	s := New(path)

	name, err := s.ParentFolder()
	if err != nil {
		t.Fatalf("Expected no error for a missing file, got %v", err)
	}
	if name != "" {
		t.Errorf("Expected empty default, got %q", name)
	}

	if err := s.SetParentFolder("  Root "); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	name, err = New(path).ParentFolder()
	if err != nil || name != "Root" {
		t.Errorf("Expected Root, got %q (%v)", name, err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "parentfolder: Root") {
		t.Errorf("Expected YAML settings, got:\n%s", data)
	}
}

func TestCorruptSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("parentfolder: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).ParentFolder(); err == nil {
		t.Error("Expected an error for corrupt settings")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("SCANFOLDERS_SETTINGS", "/tmp/custom.yaml")
	if got := DefaultPath(); got != "/tmp/custom.yaml" {
		t.Errorf("Expected env override, got %s", got)
	}
}
