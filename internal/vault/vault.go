package vault

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stewardhq/steward/internal/config"
	stewardErrors "github.com/stewardhq/steward/internal/errors"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/zalando/go-keyring"
)

// CredentialRecord is an opaque credential payload owned by the vault.
type CredentialRecord struct {
	ToolID    string            `json:"tool_id"`
	UserID    string            `json:"user_id"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ConsentGrant is a time-bounded authorization for (user, tool, capability).
type ConsentGrant struct {
	UserID     string     `json:"user_id"`
	ToolID     string     `json:"tool_id"`
	Capability string     `json:"capability"`
	GrantedAt  time.Time  `json:"granted_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the grant is past its expiry at the given instant.
func (g ConsentGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

type blob struct {
	Credentials map[string]CredentialRecord `json:"credentials"`
	Consents    map[string]ConsentGrant     `json:"consents"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// Vault stores credentials and consent grants in a single blob on disk,
// encrypted with AES-256-GCM whenever a key is configured. Every mutation is
// written atomically under a cross-process file lock.
type Vault struct {
	path           string
	key            []byte
	keyringService string
	lockTimeout    time.Duration
	fileLock       *flock.Flock

	mu          sync.RWMutex
	credentials map[string]CredentialRecord
	consents    map[string]ConsentGrant

	now func() time.Time
}

// Open loads (or creates) the vault at cfg.Path. A decryption failure is
// fatal for the vault contents only: the vault starts empty and the process
// keeps running.
func Open(cfg config.VaultConfig) (*Vault, error) {
	lockTimeout, err := config.DurationOrDefault(cfg.LockTimeout, config.DefaultVaultLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse vault lock timeout: %w", err)
	}

	var key []byte
	if cfg.Key != "" {
		key, err = hex.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("vault key must be hex-encoded: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("vault key must be 32 bytes for AES-256, got %d", len(key))
		}
	} else {
		slog.Warn("Vault running without an encryption key; contents stored in plaintext")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}

	v := &Vault{
		path:           cfg.Path,
		key:            key,
		keyringService: cfg.KeyringService,
		lockTimeout:    lockTimeout,
		fileLock:       flock.New(cfg.Path + ".lock"),
		credentials:    make(map[string]CredentialRecord),
		consents:       make(map[string]ConsentGrant),
		now:            time.Now,
	}

	if err := v.load(); err != nil {
		if errors.Is(err, stewardErrors.ErrVaultSealed) {
			slog.Error("Vault decryption failed, starting with no stored credentials", "path", cfg.Path, "error", err)
			v.credentials = make(map[string]CredentialRecord)
			v.consents = make(map[string]ConsentGrant)
		} else {
			return nil, err
		}
	}
	return v, nil
}

func (v *Vault) load() error {
	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vault: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if v.key != nil {
		data, err = decrypt(v.key, data)
		if err != nil {
			return fmt.Errorf("%w: %v", stewardErrors.ErrVaultSealed, err)
		}
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: %v", stewardErrors.ErrVaultSealed, err)
	}
	if b.Credentials != nil {
		v.credentials = b.Credentials
	}
	if b.Consents != nil {
		v.consents = b.Consents
	}
	return nil
}

// save persists the blob atomically. Callers must hold v.mu.
func (v *Vault) save() error {
	b := blob{
		Credentials: v.credentials,
		Consents:    v.consents,
		UpdatedAt:   v.now(),
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}

	if v.key != nil {
		data, err = encrypt(v.key, data)
		if err != nil {
			return err
		}
	}

	lockCtx, cancel := context.WithTimeout(context.Background(), v.lockTimeout)
	defer cancel()
	locked, err := v.fileLock.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil || !locked {
		return fmt.Errorf("vault lock not acquired within %s: %w", v.lockTimeout, err)
	}
	defer v.fileLock.Unlock()

	return atomic.WriteFile(v.path, bytes.NewReader(data))
}

func credentialKey(userID, toolID string) string {
	return userID + ":" + toolID
}

func consentKey(userID, toolID, capability string) string {
	return userID + ":" + toolID + ":" + capability
}

// StoreCredentials persists an encrypted record keyed by (user, tool),
// overwriting any prior value. The write is durable before return.
func (v *Vault) StoreCredentials(toolID string, payload map[string]string, userID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := credentialKey(userID, toolID)
	now := v.now()
	rec, exists := v.credentials[key]
	if !exists {
		rec = CredentialRecord{ToolID: toolID, UserID: userID, CreatedAt: now}
	}
	rec.Payload = payload
	rec.UpdatedAt = now
	v.credentials[key] = rec

	if err := v.save(); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	slog.Info("Credentials stored", "tool", toolID, "user", userID)
	return nil
}

// GetCredentials returns the decrypted payload for (tool, user), falling back
// to the OS secret store when the vault has no local entry.
func (v *Vault) GetCredentials(toolID, userID string) (map[string]string, bool) {
	v.mu.RLock()
	rec, ok := v.credentials[credentialKey(userID, toolID)]
	v.mu.RUnlock()
	if ok {
		return rec.Payload, true
	}
	return v.keyringLookup(toolID, userID)
}

func (v *Vault) keyringLookup(toolID, userID string) (map[string]string, bool) {
	if v.keyringService == "" {
		return nil, false
	}
	secret, err := keyring.Get(v.keyringService, credentialKey(userID, toolID))
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("OS secret store lookup failed", "tool", toolID, "error", err)
		}
		return nil, false
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(secret), &payload); err != nil {
		slog.Warn("OS secret store entry is not valid JSON", "tool", toolID, "error", err)
		return nil, false
	}
	return payload, true
}

// DeleteCredentials removes the record for (tool, user).
func (v *Vault) DeleteCredentials(toolID, userID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := credentialKey(userID, toolID)
	if _, ok := v.credentials[key]; !ok {
		return nil
	}
	delete(v.credentials, key)
	return v.save()
}

// ListCredentialTools returns the tool IDs with stored credentials for user.
func (v *Vault) ListCredentialTools(userID string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []string
	for _, rec := range v.credentials {
		if rec.UserID == userID {
			out = append(out, rec.ToolID)
		}
	}
	return out
}

// GrantConsent creates or overwrites a grant. A nil ttl means permanent.
func (v *Vault) GrantConsent(toolID, capability, userID string, ttl *time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	grant := ConsentGrant{
		UserID:     userID,
		ToolID:     toolID,
		Capability: capability,
		GrantedAt:  v.now(),
	}
	if ttl != nil {
		expires := grant.GrantedAt.Add(*ttl)
		grant.ExpiresAt = &expires
	}
	v.consents[consentKey(userID, toolID, capability)] = grant

	if err := v.save(); err != nil {
		return fmt.Errorf("persist consent: %w", err)
	}
	slog.Info("Consent granted", "tool", toolID, "capability", capability, "user", userID, "permanent", ttl == nil)
	return nil
}

// CheckConsent reports whether a valid grant exists. Expired grants are
// purged lazily and reported absent; repeated calls are idempotent.
func (v *Vault) CheckConsent(toolID, capability, userID string) bool {
	key := consentKey(userID, toolID, capability)

	v.mu.RLock()
	grant, ok := v.consents[key]
	v.mu.RUnlock()
	if !ok {
		return false
	}
	if !grant.Expired(v.now()) {
		return true
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if current, ok := v.consents[key]; ok && current.Expired(v.now()) {
		delete(v.consents, key)
		if err := v.save(); err != nil {
			slog.Warn("Failed to persist consent purge", "error", err)
		}
		slog.Debug("Consent expired", "tool", toolID, "capability", capability, "user", userID)
	}
	return false
}

// RevokeConsent deletes a grant immediately.
func (v *Vault) RevokeConsent(toolID, capability, userID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := consentKey(userID, toolID, capability)
	if _, ok := v.consents[key]; !ok {
		return nil
	}
	delete(v.consents, key)

	if err := v.save(); err != nil {
		return fmt.Errorf("persist consent revocation: %w", err)
	}
	slog.Info("Consent revoked", "tool", toolID, "capability", capability, "user", userID)
	return nil
}

// ListConsents returns the active (non-expired) grants for a user.
func (v *Vault) ListConsents(userID string) []ConsentGrant {
	v.mu.RLock()
	defer v.mu.RUnlock()

	now := v.now()
	var out []ConsentGrant
	for _, grant := range v.consents {
		if grant.UserID == userID && !grant.Expired(now) {
			out = append(out, grant)
		}
	}
	return out
}

// SetClock overrides the vault's time source. Tests only.
func (v *Vault) SetClock(now func() time.Time) {
	v.now = now
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
