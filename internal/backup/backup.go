// Package backup copies and encrypts the sqlite database file.
// Snapshots are plain copies used as restore points; backups are
// passphrase-encrypted archives safe to move off the machine.
package backup

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/health"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 200_000
)

// ErrNotSQLite is returned when the configured database is not a
// file-backed sqlite database.
var ErrNotSQLite = errors.New("backup: database is not a local sqlite file")

// ErrBadPassphrase is returned when a restore passphrase does not
// decrypt the archive.
var ErrBadPassphrase = errors.New("backup: wrong passphrase or corrupt archive")

// Manager copies the live database file into snapshot and backup
// directories beside it.
type Manager struct {
	dbPath string
	db     *gorm.DB
}

// NewManager builds a Manager for a file-backed sqlite database.
// dbPath must be the resolved path of the live database file.
func NewManager(conn *gorm.DB, dbPath string) (*Manager, error) {
	if dbPath == "" {
		return nil, ErrNotSQLite
	}
	return &Manager{dbPath: dbPath, db: conn}, nil
}

func stamp(now time.Time) string {
	return now.UTC().Format("20060102-150405")
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	label = strings.ReplaceAll(label, " ", "-")
	if label == "" {
		label = "manual"
	}
	return label
}

func copyFile(src, dst string) error {
	in, errOpen := os.Open(src)
	if errOpen != nil {
		return errOpen
	}
	defer in.Close()

	if errDir := os.MkdirAll(filepath.Dir(dst), 0o755); errDir != nil {
		return errDir
	}
	out, errCreate := os.Create(dst)
	if errCreate != nil {
		return errCreate
	}
	defer out.Close()

	if _, errCopy := io.Copy(out, in); errCopy != nil {
		return errCopy
	}
	return out.Sync()
}

// Snapshot writes a plain copy of the database file into snapshots/
// next to it and returns the snapshot path.
func (m *Manager) Snapshot(ctx context.Context, reason string) (string, error) {
	name := fmt.Sprintf("snapshot-%s-%s.sqlite3", stamp(time.Now()), sanitizeLabel(reason))
	dst := filepath.Join(filepath.Dir(m.dbPath), "snapshots", name)
	if errCopy := copyFile(m.dbPath, dst); errCopy != nil {
		return "", fmt.Errorf("backup: snapshot: %w", errCopy)
	}
	log.WithField("path", dst).Info("Database snapshot written")
	return dst, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

// Create encrypts the database file with the passphrase and writes the
// archive into backups/ next to it. The archive layout is
// salt || nonce || ciphertext.
func (m *Manager) Create(ctx context.Context, passphrase, label string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("backup: passphrase is required")
	}
	plain, errRead := os.ReadFile(m.dbPath)
	if errRead != nil {
		return "", fmt.Errorf("backup: read database: %w", errRead)
	}

	salt := make([]byte, saltSize)
	if _, errRand := rand.Read(salt); errRand != nil {
		return "", fmt.Errorf("backup: salt: %w", errRand)
	}
	block, errCipher := aes.NewCipher(deriveKey(passphrase, salt))
	if errCipher != nil {
		return "", fmt.Errorf("backup: cipher: %w", errCipher)
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("backup: gcm: %w", errGCM)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, errRand := rand.Read(nonce); errRand != nil {
		return "", fmt.Errorf("backup: nonce: %w", errRand)
	}

	sealed := gcm.Seal(nil, nonce, plain, nil)
	payload := append(append(salt, nonce...), sealed...)

	name := fmt.Sprintf("flowledger-backup-%s-%s.enc", stamp(time.Now()), sanitizeLabel(label))
	dst := filepath.Join(filepath.Dir(m.dbPath), "backups", name)
	if errDir := os.MkdirAll(filepath.Dir(dst), 0o755); errDir != nil {
		return "", fmt.Errorf("backup: create dir: %w", errDir)
	}
	if errWrite := os.WriteFile(dst, payload, 0o600); errWrite != nil {
		return "", fmt.Errorf("backup: write archive: %w", errWrite)
	}

	if errHealth := health.Upsert(ctx, m.db, health.ComponentBackup, map[string]any{
		"last_backup_at": time.Now().UTC().Format(time.RFC3339),
		"path":           dst,
	}); errHealth != nil {
		log.WithError(errHealth).Warn("Failed to record backup heartbeat")
	}
	log.WithField("path", dst).Info("Encrypted backup written")
	return dst, nil
}

// Restore decrypts the archive and replaces the database file with its
// contents, snapshotting the current file first. The caller must hold
// the database closed or quiesced.
func (m *Manager) Restore(ctx context.Context, archivePath, passphrase string) error {
	payload, errRead := os.ReadFile(archivePath)
	if errRead != nil {
		return fmt.Errorf("backup: read archive: %w", errRead)
	}
	if len(payload) < saltSize+12 {
		return ErrBadPassphrase
	}

	salt := payload[:saltSize]
	block, errCipher := aes.NewCipher(deriveKey(passphrase, salt))
	if errCipher != nil {
		return fmt.Errorf("backup: cipher: %w", errCipher)
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return fmt.Errorf("backup: gcm: %w", errGCM)
	}
	if len(payload) < saltSize+gcm.NonceSize() {
		return ErrBadPassphrase
	}
	nonce := payload[saltSize : saltSize+gcm.NonceSize()]
	plain, errOpen := gcm.Open(nil, nonce, payload[saltSize+gcm.NonceSize():], nil)
	if errOpen != nil {
		return ErrBadPassphrase
	}

	if _, errSnap := m.Snapshot(ctx, "pre-restore"); errSnap != nil {
		return errSnap
	}
	if errWrite := os.WriteFile(m.dbPath, plain, 0o600); errWrite != nil {
		return fmt.Errorf("backup: write database: %w", errWrite)
	}
	log.WithField("path", m.dbPath).Info("Database restored from backup")
	return nil
}
