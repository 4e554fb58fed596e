package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/MrCodeEU/facelock/pkg/recognition"
)

func testDescriptor(seed float32) recognition.Descriptor {
	var d recognition.Descriptor
	for i := range d {
		d[i] = seed + float32(i)*0.001
	}
	return d
}

func newTestStore(t *testing.T, encrypted bool) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), encrypted)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func TestSaveAndLoadIdentity(t *testing.T) {
	for _, encrypted := range []bool{false, true} {
		name := "plaintext"
		if encrypted {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			fs := newTestStore(t, encrypted)

			want := testDescriptor(0.5)
			if err := fs.CreateIdentity("alice", []recognition.Descriptor{want}, nil); err != nil {
				t.Fatalf("CreateIdentity failed: %v", err)
			}

			id, err := fs.LoadIdentity("alice")
			if err != nil {
				t.Fatalf("LoadIdentity failed: %v", err)
			}
			if id.Name != "alice" {
				t.Errorf("expected name alice, got %s", id.Name)
			}
			if len(id.Descriptors) != 1 {
				t.Fatalf("expected 1 descriptor, got %d", len(id.Descriptors))
			}
			if id.Descriptors[0] != want {
				t.Error("descriptor did not round-trip")
			}
			if id.EnrolledAt.IsZero() {
				t.Error("EnrolledAt not set")
			}
		})
	}
}

func TestEncryptedFileIsOpaque(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, true)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := fs.CreateIdentity("alice", []recognition.Descriptor{testDescriptor(1)}, nil); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "identities", "alice.enc"))
	if err != nil {
		t.Fatalf("failed to read encrypted file: %v", err)
	}
	if strings.Contains(string(data), "alice") {
		t.Error("encrypted file leaks plaintext identity name")
	}
}

func TestCreateIdentity_Duplicate(t *testing.T) {
	fs := newTestStore(t, false)

	if err := fs.CreateIdentity("alice", nil, nil); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := fs.CreateIdentity("alice", nil, nil); !errors.Is(err, ErrIdentityExists) {
		t.Errorf("expected ErrIdentityExists, got %v", err)
	}
}

func TestLoadIdentity_NotFound(t *testing.T) {
	fs := newTestStore(t, false)

	if _, err := fs.LoadIdentity("ghost"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestDeleteIdentity(t *testing.T) {
	fs := newTestStore(t, false)

	if err := fs.CreateIdentity("alice", nil, nil); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := fs.DeleteIdentity("alice"); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	if fs.IdentityExists("alice") {
		t.Error("identity should be gone")
	}
	if err := fs.DeleteIdentity("alice"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestListIdentities(t *testing.T) {
	fs := newTestStore(t, false)

	for _, name := range []string{"alice", "bob", "carol"} {
		if err := fs.CreateIdentity(name, nil, nil); err != nil {
			t.Fatalf("CreateIdentity(%s) failed: %v", name, err)
		}
	}

	names, err := fs.ListIdentities()
	if err != nil {
		t.Fatalf("ListIdentities failed: %v", err)
	}
	sort.Strings(names)
	if len(names) != 3 || names[0] != "alice" || names[1] != "bob" || names[2] != "carol" {
		t.Errorf("unexpected identity list: %v", names)
	}
}

func TestAddDescriptor(t *testing.T) {
	fs := newTestStore(t, false)

	if err := fs.CreateIdentity("alice", []recognition.Descriptor{testDescriptor(1)}, nil); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := fs.AddDescriptor("alice", testDescriptor(2)); err != nil {
		t.Fatalf("AddDescriptor failed: %v", err)
	}

	id, err := fs.LoadIdentity("alice")
	if err != nil {
		t.Fatalf("LoadIdentity failed: %v", err)
	}
	if len(id.Descriptors) != 2 {
		t.Errorf("expected 2 descriptors, got %d", len(id.Descriptors))
	}
}

func TestGallery(t *testing.T) {
	fs := newTestStore(t, true)

	if err := fs.CreateIdentity("alice", []recognition.Descriptor{testDescriptor(1), testDescriptor(2)}, nil); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := fs.CreateIdentity("bob", []recognition.Descriptor{testDescriptor(3)}, nil); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}

	gallery, err := fs.Gallery()
	if err != nil {
		t.Fatalf("Gallery failed: %v", err)
	}
	if len(gallery) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(gallery))
	}
	if len(gallery["alice"]) != 2 {
		t.Errorf("expected 2 descriptors for alice, got %d", len(gallery["alice"]))
	}
	if len(gallery["bob"]) != 1 {
		t.Errorf("expected 1 descriptor for bob, got %d", len(gallery["bob"]))
	}
}
