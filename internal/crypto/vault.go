// Package crypto provides the password-protected credential vault, Safe
// transaction signing, and HMAC authentication for the Polymarket builder
// relayer.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 32
	ivLen            = 16
	tagLen           = 16
	aesKeyLen        = 32
	vaultFileMode    = 0o600
)

// EncryptedBlob is the on-disk format of the credential file. Every field is
// hex encoded.
type EncryptedBlob struct {
	Salt       string `json:"salt"`
	IV         string `json:"iv"`
	Ciphertext string `json:"encrypted"`
	Tag        string `json:"tag"`
}

// Vault stores one CredentialBundle encrypted under a password in a single
// file. It keeps no plaintext between calls.
type Vault struct {
	path       string
	iterations int
	logger     *slog.Logger
}

// NewVault returns a vault backed by the file at path.
func NewVault(path string, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		path:       path,
		iterations: pbkdf2Iterations,
		logger:     logger.With(slog.String("component", "vault")),
	}
}

// Path returns the credential file location.
func (v *Vault) Path() string { return v.path }

// IsInitialized reports whether a credential file exists.
func (v *Vault) IsInitialized() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Setup encrypts bundle under password and writes it, replacing any
// existing file.
func (v *Vault) Setup(bundle domain.CredentialBundle, password string) error {
	if password == "" {
		return errors.New("crypto/vault: password must not be empty")
	}
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("crypto/vault: %w", err)
	}

	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("crypto/vault: encoding bundle: %w", err)
	}
	defer memguard.WipeBytes(plaintext)

	blob, err := v.seal(plaintext, password)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("crypto/vault: encoding blob: %w", err)
	}

	if err := writeFileAtomic(v.path, data); err != nil {
		return fmt.Errorf("crypto/vault: writing %s: %w", v.path, err)
	}
	if err := os.Chmod(v.path, vaultFileMode); err != nil {
		v.logger.Warn("could not restrict credential file permissions",
			slog.String("path", v.path), slog.String("error", err.Error()))
	}

	v.logger.Info("credentials stored", slog.String("path", v.path))
	return nil
}

// Unlock decrypts the stored bundle. A missing file yields
// domain.ErrVaultNotInitialized; any other failure, from a wrong password to
// a truncated file, yields domain.ErrInvalidPasswordOrCorrupt.
func (v *Vault) Unlock(password string) (domain.CredentialBundle, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CredentialBundle{}, domain.ErrVaultNotInitialized
		}
		return domain.CredentialBundle{}, fmt.Errorf("crypto/vault: reading %s: %w", v.path, err)
	}

	var blob EncryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return domain.CredentialBundle{}, domain.ErrInvalidPasswordOrCorrupt
	}

	plaintext, err := v.open(blob, password)
	if err != nil {
		return domain.CredentialBundle{}, domain.ErrInvalidPasswordOrCorrupt
	}
	defer memguard.WipeBytes(plaintext)

	var bundle domain.CredentialBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return domain.CredentialBundle{}, domain.ErrInvalidPasswordOrCorrupt
	}
	return bundle, nil
}

// Reset deletes the credential file. It returns false when there was
// nothing to delete.
func (v *Vault) Reset() (bool, error) {
	err := os.Remove(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("crypto/vault: removing %s: %w", v.path, err)
	}
	v.logger.Info("credentials removed", slog.String("path", v.path))
	return true, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// seal derives a key from a fresh salt and encrypts plaintext with
// AES-256-GCM, binding the salt as additional authenticated data.
func (v *Vault) seal(plaintext []byte, password string) (EncryptedBlob, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return EncryptedBlob{}, fmt.Errorf("crypto/vault: generating salt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedBlob{}, fmt.Errorf("crypto/vault: generating iv: %w", err)
	}

	gcm, err := v.cipherFor(password, salt)
	if err != nil {
		return EncryptedBlob{}, err
	}

	sealed := gcm.Seal(nil, iv, plaintext, salt)
	split := len(sealed) - tagLen

	return EncryptedBlob{
		Salt:       hex.EncodeToString(salt),
		IV:         hex.EncodeToString(iv),
		Ciphertext: hex.EncodeToString(sealed[:split]),
		Tag:        hex.EncodeToString(sealed[split:]),
	}, nil
}

// open reverses seal. Errors are deliberately uninformative.
func (v *Vault) open(blob EncryptedBlob, password string) ([]byte, error) {
	salt, err := hex.DecodeString(blob.Salt)
	if err != nil || len(salt) != saltLen {
		return nil, errors.New("bad salt")
	}
	iv, err := hex.DecodeString(blob.IV)
	if err != nil || len(iv) != ivLen {
		return nil, errors.New("bad iv")
	}
	ciphertext, err := hex.DecodeString(blob.Ciphertext)
	if err != nil {
		return nil, errors.New("bad ciphertext")
	}
	tag, err := hex.DecodeString(blob.Tag)
	if err != nil || len(tag) != tagLen {
		return nil, errors.New("bad tag")
	}

	gcm, err := v.cipherFor(password, salt)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, append(ciphertext, tag...), salt)
}

// cipherFor derives the AES key for password and salt and wipes it once the
// AEAD has expanded its key schedule.
func (v *Vault) cipherFor(password string, salt []byte) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key([]byte(password), salt, v.iterations, aesKeyLen, sha256.New)
	defer memguard.WipeBytes(derivedKey)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: creating GCM: %w", err)
	}
	return gcm, nil
}

// writeFileAtomic writes data to a sibling temp file and renames it over
// path. os.CreateTemp already creates the file with mode 0600.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
