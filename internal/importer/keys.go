// internal/importer/keys.go
package importer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyManager issues idempotency keys for upload attempts. Every new
// file selection gets a fresh key; an operator-supplied key always
// takes precedence over a generated one.
type KeyManager struct {
	newUUID func() (uuid.UUID, error)
	now     func() time.Time
	logger  *slog.Logger
}

// NewKeyManager creates a key manager backed by crypto/rand UUIDs
func NewKeyManager(logger *slog.Logger) *KeyManager {
	return &KeyManager{
		newUUID: uuid.NewRandom,
		now:     time.Now,
		logger:  logger,
	}
}

// NewKey generates a fresh idempotency key. When the secure random
// source fails it falls back to a timestamp-prefixed key, which is not
// collision-safe under concurrent use.
func (m *KeyManager) NewKey() string {
	id, err := m.newUUID()
	if err != nil {
		key := fmt.Sprintf("csv-%d", m.now().UnixMilli())
		m.logger.Warn("secure random source unavailable, using timestamp key",
			slog.String("key", key))
		return key
	}
	return id.String()
}

// Resolve returns the operator-supplied key when non-empty, otherwise
// a freshly generated one. The caller must reuse the returned key
// unchanged on every retry of the same logical submission.
func (m *KeyManager) Resolve(override string) string {
	if key := strings.TrimSpace(override); key != "" {
		return key
	}
	return m.NewKey()
}
