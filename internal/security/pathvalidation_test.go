package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "exports")
	otherDir := filepath.Join(tmpDir, "elsewhere")
	for _, d := range []string{safeDir, otherDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	link := filepath.Join(safeDir, "escape")
	if err := os.Symlink(otherDir, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "run.csv"), false},
		{"nested new file", filepath.Join(safeDir, "plots", "window.png"), false},
		{"dot dot escape", filepath.Join(safeDir, "..", "run.csv"), true},
		{"absolute elsewhere", filepath.Join(otherDir, "run.csv"), true},
		{"through symlinked dir", filepath.Join(link, "run.csv"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.filePath, err, tt.wantError)
			}
		})
	}

	if err := ValidatePathWithinDirectory("x", filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("expected error for a safe directory that does not exist")
	}
}

func TestValidateExportPath(t *testing.T) {
	if err := ValidateExportPath(filepath.Join(os.TempDir(), "sensor-data.json")); err != nil {
		t.Errorf("temp dir path rejected: %v", err)
	}
	if err := ValidateExportPath("sensor-data.json"); err != nil {
		t.Errorf("relative path in cwd rejected: %v", err)
	}
	if err := ValidateExportPath("/etc/passwd"); err == nil {
		t.Error("expected /etc/passwd to be rejected")
	}
}
