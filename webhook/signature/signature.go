package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

/* Standard Webhooks signing for outgoing deliveries
 * A webhook with a signing secret gets webhook-id, webhook-timestamp and
 * webhook-signature headers so receivers can authenticate chat traffic
 */

const (
	// SecretPrefix is the prefix for Standard Webhooks symmetric secrets
	SecretPrefix = "whsec_"

	// Version is the version identifier for symmetric signatures
	Version = "v1"

	// MinSecretBytes is the minimum secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum secret size (512 bits)
	MaxSecretBytes = 64

	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// Secret represents a Standard Webhooks signing secret
type Secret struct {
	raw     []byte
	encoded string
}

// GenerateSecret creates a new random signing secret of size bytes
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:     raw,
		encoded: SecretPrefix + base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, SecretPrefix))
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}
	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{raw: raw, encoded: encoded}, nil
}

// String returns the encoded secret with prefix
func (s Secret) String() string {
	return s.encoded
}

// Sign returns the "v1,<base64>" signature over {msgID}.{timestamp}.{payload}
func Sign(secret Secret, msgID string, timestamp time.Time, payload []byte) (string, error) {
	if strings.Contains(msgID, ".") {
		return "", fmt.Errorf("message ID must not contain '.'")
	}

	mac := hmac.New(sha256.New, secret.raw)
	fmt.Fprintf(mac, "%s.%d.", msgID, timestamp.Unix())
	mac.Write(payload)

	return Version + "," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Apply signs payload and sets the three Standard Webhooks headers on h
func Apply(h http.Header, secret Secret, msgID string, timestamp time.Time, payload []byte) error {
	sig, err := Sign(secret, msgID, timestamp, payload)
	if err != nil {
		return fmt.Errorf("signing payload: %w", err)
	}
	h.Set(HeaderID, msgID)
	h.Set(HeaderTimestamp, strconv.FormatInt(timestamp.Unix(), 10))
	h.Set(HeaderSignature, sig)
	return nil
}

// Verify checks the signature headers of a received delivery
// The header may hold several space-delimited signatures; any match is accepted
func Verify(secret Secret, h http.Header, payload []byte) (bool, error) {
	msgID := h.Get(HeaderID)
	unix, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", HeaderTimestamp, err)
	}
	header := strings.TrimSpace(h.Get(HeaderSignature))
	if header == "" {
		return false, fmt.Errorf("%s header is empty", HeaderSignature)
	}

	expected, err := Sign(secret, msgID, time.Unix(unix, 0), payload)
	if err != nil {
		return false, fmt.Errorf("calculating signature: %w", err)
	}

	for _, candidate := range strings.Fields(header) {
		if !strings.HasPrefix(candidate, Version+",") {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
