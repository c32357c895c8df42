// Package security stores the relational loader password outside the
// configuration file.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"projectdw/internal/common"
	"projectdw/pkg/errors"
)

const (
	keyringService   = "projectdw"
	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32

	// PasswordEnv is consulted when no password is configured or stored.
	PasswordEnv = "PROJECTDW_LOADER_PASSWORD"
	// KeyringEnv set to "false" forces the encrypted file store.
	KeyringEnv = "PROJECTDW_USE_KEYRING"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

// ErrNotFound is returned when no credential is stored under a name.
var ErrNotFound = errors.New(errors.ErrCodeConfigInvalid, "Credential not found")

// CredentialStore keeps secrets in the OS keyring, or in AES-GCM encrypted
// files under dir when no keyring is available.
type CredentialStore struct {
	useKeyring bool
	dir        string
	masterKey  []byte
}

type storedCredential struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Encrypted bool   `json:"encrypted"`
}

// NewCredentialStore picks the keyring when the platform has one.
func NewCredentialStore() (*CredentialStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return NewCredentialStoreAt(filepath.Join(home, ".projectdw", "credentials"), isKeyringAvailable())
}

// NewCredentialStoreAt creates a store with an explicit fallback directory.
func NewCredentialStoreAt(dir string, useKeyring bool) (*CredentialStore, error) {
	s := &CredentialStore{useKeyring: useKeyring, dir: dir}
	if !useKeyring {
		key, err := s.loadMasterKey()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to initialize credential store").
				WithContext("dir", dir)
		}
		s.masterKey = key
	}
	return s, nil
}

// UsesKeyring reports which backend is active.
func (s *CredentialStore) UsesKeyring() bool {
	return s.useKeyring
}

// Set stores value under name.
func (s *CredentialStore) Set(name, value string) error {
	if !validName.MatchString(name) {
		return errors.ValidationError("name", name, "only letters, digits and ._@- are allowed")
	}
	if s.useKeyring {
		if err := keyring.Set(keyringService, name, value); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to store credential in keyring")
		}
		return nil
	}

	encrypted, err := s.encrypt(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encrypt credential")
	}
	data, err := json.MarshalIndent(storedCredential{Name: name, Value: encrypted, Encrypted: true}, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode credential")
	}
	if err := common.WriteFileAtomic(s.path(name), data, common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to write credential file")
	}
	return nil
}

// Get returns the value stored under name, or ErrNotFound.
func (s *CredentialStore) Get(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", ErrNotFound
	}
	if s.useKeyring {
		v, err := keyring.Get(keyringService, name)
		if err == keyring.ErrNotFound {
			return "", ErrNotFound
		}
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInternal, "Failed to read credential from keyring")
		}
		return v, nil
	}

	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "Failed to read credential file")
	}
	var cred storedCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "Credential file is corrupt")
	}
	if !cred.Encrypted {
		return cred.Value, nil
	}
	v, err := s.decrypt(cred.Value)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "Failed to decrypt credential")
	}
	return v, nil
}

// Delete removes name. Deleting a missing credential is not an error.
func (s *CredentialStore) Delete(name string) error {
	if !validName.MatchString(name) {
		return nil
	}
	if s.useKeyring {
		if err := keyring.Delete(keyringService, name); err != nil && err != keyring.ErrNotFound {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to delete credential from keyring")
		}
		return nil
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to delete credential file")
	}
	return nil
}

// ResolvePassword returns the loader password for user: the configured value
// when set, then the stored credential, then PROJECTDW_LOADER_PASSWORD.
func ResolvePassword(store *CredentialStore, user, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if store != nil && user != "" {
		v, err := store.Get(user)
		if err == nil {
			return v, nil
		}
		if err != ErrNotFound {
			return "", err
		}
	}
	if v := os.Getenv(PasswordEnv); v != "" {
		return v, nil
	}
	return "", errors.New(errors.ErrCodeConfigInvalid, "No password for the loader user").
		WithContext("user", user).
		WithSuggestions(
			"Run 'projectdw credentials set' to store it",
			fmt.Sprintf("Or export %s", PasswordEnv),
		)
}

func (s *CredentialStore) path(name string) string {
	return filepath.Join(s.dir, name+".cred")
}

func (s *CredentialStore) encrypt(plaintext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *CredentialStore) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *CredentialStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// loadMasterKey reads salt+key from dir/.master, deriving and writing a new
// one from machine data on first use.
func (s *CredentialStore) loadMasterKey() ([]byte, error) {
	keyPath := filepath.Join(s.dir, ".master")
	data, err := os.ReadFile(keyPath)
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}
	if err := common.WriteFileAtomic(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}
	return key, nil
}

func isKeyringAvailable() bool {
	if os.Getenv(KeyringEnv) == "false" {
		return false
	}
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" ||
			os.Getenv("DBUS_SESSION_BUS_ADDRESS") != ""
	}
	return false
}

func machineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)))
	return base64.StdEncoding.EncodeToString(sum[:])
}
