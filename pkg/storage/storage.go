// Package storage persists the enrolled identity database the matcher
// is loaded from. Identities are stored one JSON file each and
// encrypted at rest using NaCl secretbox with a machine-derived key.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MrCodeEU/facelock/pkg/logging"
	"github.com/MrCodeEU/facelock/pkg/recognition"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// Identity contains the enrolled face data for one person.
type Identity struct {
	Name        string                    `json:"name"`
	Descriptors []recognition.Descriptor  `json:"descriptors"`
	EnrolledAt  time.Time                 `json:"enrolled_at"`
	LastSeen    time.Time                 `json:"last_seen"`
	Metadata    map[string]string         `json:"metadata"`
}

// ErrIdentityNotFound is returned when the identity is not enrolled.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrIdentityExists is returned when enrolling an existing identity.
var ErrIdentityExists = errors.New("identity already enrolled")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// FileStore keeps one file per enrolled identity under
// <dataDir>/identities.
type FileStore struct {
	dataDir           string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
}

// NewFileStore creates a new FileStore instance.
func NewFileStore(dataDir string, encryptionEnabled bool) (*FileStore, error) {
	fs := &FileStore{
		dataDir:           dataDir,
		encryptionEnabled: encryptionEnabled,
	}

	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		fs.encryptionKey = key
	}

	identitiesDir := filepath.Join(dataDir, "identities")
	if err := os.MkdirAll(identitiesDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create identities directory: %w", err)
	}

	return fs, nil
}

// deriveKey derives an encryption key from machine-specific
// information, tying the stored embeddings to this machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte

	var identity strings.Builder

	// Machine ID (Linux specific)
	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}

	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facelock-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

// identityPath returns the file path for an identity's data.
func (fs *FileStore) identityPath(name string) string {
	filename := name + ".json"
	if fs.encryptionEnabled {
		filename = name + ".enc"
	}
	return filepath.Join(fs.dataDir, "identities", filename)
}

// SaveIdentity writes an identity's data to storage.
func (fs *FileStore) SaveIdentity(id Identity) error {
	path := fs.identityPath(id.Name)

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity data: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt identity data: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity data: %w", err)
	}

	logging.Debugf("Saved identity data for: %s", id.Name)
	return nil
}

// LoadIdentity reads an identity's data from storage.
func (fs *FileStore) LoadIdentity(name string) (*Identity, error) {
	path := fs.identityPath(name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to read identity data: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt identity data: %w", err)
		}
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity data: %w", err)
	}

	return &id, nil
}

// DeleteIdentity removes an identity from storage.
func (fs *FileStore) DeleteIdentity(name string) error {
	if err := os.Remove(fs.identityPath(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("failed to delete identity data: %w", err)
	}

	logging.Infof("Deleted identity data for: %s", name)
	return nil
}

// ListIdentities returns all enrolled identity names.
func (fs *FileStore) ListIdentities() ([]string, error) {
	identitiesDir := filepath.Join(fs.dataDir, "identities")

	entries, err := os.ReadDir(identitiesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			names = append(names, strings.TrimSuffix(name, ".json"))
		} else if strings.HasSuffix(name, ".enc") {
			names = append(names, strings.TrimSuffix(name, ".enc"))
		}
	}

	return names, nil
}

// IdentityExists checks if an identity is enrolled.
func (fs *FileStore) IdentityExists(name string) bool {
	_, err := os.Stat(fs.identityPath(name))
	return err == nil
}

// CreateIdentity enrolls a new identity with its initial descriptors.
func (fs *FileStore) CreateIdentity(name string, descriptors []recognition.Descriptor, metadata map[string]string) error {
	if fs.IdentityExists(name) {
		return ErrIdentityExists
	}

	if metadata == nil {
		metadata = make(map[string]string)
	}

	return fs.SaveIdentity(Identity{
		Name:        name,
		Descriptors: descriptors,
		EnrolledAt:  time.Now(),
		LastSeen:    time.Now(),
		Metadata:    metadata,
	})
}

// AddDescriptor appends a descriptor to an existing identity.
func (fs *FileStore) AddDescriptor(name string, d recognition.Descriptor) error {
	id, err := fs.LoadIdentity(name)
	if err != nil {
		return err
	}

	id.Descriptors = append(id.Descriptors, d)
	id.LastSeen = time.Now()

	return fs.SaveIdentity(*id)
}

// Gallery loads every enrolled identity's descriptors, in the shape
// the matcher consumes. This is what a database reload re-reads.
func (fs *FileStore) Gallery() (map[string][]recognition.Descriptor, error) {
	names, err := fs.ListIdentities()
	if err != nil {
		return nil, err
	}

	gallery := make(map[string][]recognition.Descriptor, len(names))
	for _, name := range names {
		id, err := fs.LoadIdentity(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		gallery[name] = id.Descriptors
	}

	return gallery, nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStore) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
