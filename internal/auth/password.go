package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Default Argon2id parameters (OWASP 2025 recommendation).
const (
	DefaultArgonTime    = 3
	DefaultArgonMemory  = 64 * 1024 // KiB
	DefaultArgonThreads = 1

	argonKeyLen  = 32
	argonSaltLen = 16
)

// HasherParams controls Argon2id cost.
type HasherParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultHasherParams returns the production cost settings.
func DefaultHasherParams() HasherParams {
	return HasherParams{
		Time:      DefaultArgonTime,
		MemoryKiB: DefaultArgonMemory,
		Threads:   DefaultArgonThreads,
	}
}

// Hasher derives and checks password digests.
//
// Digests use the PHC string format
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>, so Verify always uses the
// parameters recorded in the digest. Raising the configured cost does not
// invalidate existing digests.
//
// Thread Safety:
//   - Hasher holds no mutable state and is safe for concurrent use.
type Hasher struct {
	params HasherParams
}

// NewHasher creates a Hasher. Zero fields fall back to the defaults.
func NewHasher(params HasherParams) *Hasher {
	def := DefaultHasherParams()
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = def.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	return &Hasher{params: params}
}

// Hash derives a salted digest for plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches digest. A digest that cannot be
// parsed never matches.
func (h *Hasher) Verify(plaintext, digest string) bool {
	salt, key, params, err := decodePHC(digest)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(key, candidate) == 1
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, key []byte, params HasherParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Time, &params.Threads); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}
	if params.MemoryKiB == 0 || params.Time == 0 || params.Threads == 0 {
		return nil, nil, params, fmt.Errorf("zero cost parameter")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}
	if len(key) == 0 {
		return nil, nil, params, fmt.Errorf("empty hash")
	}

	return salt, key, params, nil
}
