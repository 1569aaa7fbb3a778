package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Vault is a temporary vault directory for tests.
type Vault struct {
	t    testing.TB
	Root string
}

// NewVault creates an empty vault in a temp directory.
func NewVault(t testing.TB) *Vault {
	t.Helper()
	return &Vault{t: t, Root: t.TempDir()}
}

// OpenVault wraps an existing directory.
func OpenVault(t testing.TB, root string) *Vault {
	return &Vault{t: t, Root: root}
}

// Path returns the absolute path of a vault-relative file.
func (v *Vault) Path(rel string) string {
	return filepath.Join(v.Root, filepath.FromSlash(rel))
}

// Write creates rel with content, making parent directories as needed.
func (v *Vault) Write(rel, content string) string {
	v.t.Helper()
	path := v.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		v.t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		v.t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// Attachment writes a small placeholder media file.
func (v *Vault) Attachment(rel string) string {
	v.t.Helper()
	return v.Write(rel, "RIFF0000WAVE")
}

// Read returns the content of rel.
func (v *Vault) Read(rel string) string {
	v.t.Helper()
	raw, err := os.ReadFile(v.Path(rel))
	if err != nil {
		v.t.Fatalf("read %s: %v", rel, err)
	}
	return string(raw)
}
