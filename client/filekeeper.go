package client

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/password"
)

const (
	keeperSaltSize = 16
	keeperFileMode = 0o600
)

var keeperMagic = []byte("ECK1")

var (
	ErrEmptyPassphrase = errors.New("credential file passphrase is empty")
	// ErrCredentialsCorrupt is returned when the stored file cannot be
	// decrypted, either because it was altered or the passphrase changed.
	ErrCredentialsCorrupt = errors.New("credential file corrupt or passphrase mismatch")
)

// FileKeeper stores the refresh token in a single file encrypted with
// XChaCha20-Poly1305 under a key derived from a passphrase with argon2id.
//
// File layout: magic(4) | salt(16) | nonce(24) | ciphertext.
// Writes go to a temporary file in the same directory which is then renamed
// over the target.
type FileKeeper struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  []byte
}

func NewFileKeeper(path, passphrase string) (*FileKeeper, error) {
	if path == "" {
		return nil, errors.New("credential file path is empty")
	}
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &FileKeeper{path: path, passphrase: []byte(passphrase)}, nil
}

func (k *FileKeeper) Path() string { return k.path }

func (k *FileKeeper) Load(context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	raw, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}

	header := len(keeperMagic) + keeperSaltSize + chacha20poly1305.NonceSizeX
	if len(raw) < header+chacha20poly1305.Overhead || !bytes.Equal(raw[:len(keeperMagic)], keeperMagic) {
		return "", ErrCredentialsCorrupt
	}
	salt := raw[len(keeperMagic) : len(keeperMagic)+keeperSaltSize]
	nonce := raw[len(keeperMagic)+keeperSaltSize : header]

	aead, err := k.aeadFor(salt)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, nonce, raw[header:], keeperMagic)
	if err != nil {
		return "", ErrCredentialsCorrupt
	}
	return string(plain), nil
}

func (k *FileKeeper) Save(_ context.Context, refreshToken string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.salt == nil {
		salt := make([]byte, keeperSaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return err
		}
		k.salt = salt
		k.key = nil
	}
	aead, err := k.aeadFor(k.salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}

	out := make([]byte, 0, len(keeperMagic)+keeperSaltSize+len(nonce)+len(refreshToken)+chacha20poly1305.Overhead)
	out = append(out, keeperMagic...)
	out = append(out, k.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(refreshToken), keeperMagic)

	return writeFileAtomic(k.path, out)
}

func (k *FileKeeper) Clear(context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// aeadFor derives the key for salt, reusing the cached key when the salt
// matches. Callers hold k.mu.
func (k *FileKeeper) aeadFor(salt []byte) (cipher.AEAD, error) {
	if k.key == nil || !bytes.Equal(k.salt, salt) {
		k.salt = append([]byte(nil), salt...)
		k.key = password.DeriveKey(k.passphrase, k.salt, chacha20poly1305.KeySize)
	}
	return chacha20poly1305.NewX(k.key)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if err := tmp.Chmod(keeperFileMode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}
