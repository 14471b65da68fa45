package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Header names attached to every signed request.
const (
	HeaderAppID     = "X-App-Id"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

// Signer derives per-request authentication headers from credentials.
// It performs no I/O and is safe for concurrent use.
type Signer struct {
	creds Credentials
}

// NewSigner creates a Signer for the given credentials.
func NewSigner(creds Credentials) *Signer {
	return &Signer{creds: creds}
}

// Sign computes the HMAC-SHA256 authentication headers for one request.
// The canonical string covers the method, path, timestamp, nonce and a
// digest of the body, so tampering with any of them (or replaying outside
// the server's validity window) invalidates the signature.
func (s *Signer) Sign(method, path string, timestamp int64, nonce string, body []byte) map[string]string {
	bodyDigest := sha256.Sum256(body)

	canonical := fmt.Sprintf(
		"%s\n%s\n%d\n%s\n%s",
		method,
		path,
		timestamp,
		nonce,
		hex.EncodeToString(bodyDigest[:]),
	)

	mac := hmac.New(sha256.New, []byte(s.creds.SecretKey))
	mac.Write([]byte(canonical))

	return map[string]string{
		HeaderAppID:     s.creds.AppID,
		HeaderTimestamp: strconv.FormatInt(timestamp, 10),
		HeaderNonce:     nonce,
		HeaderSignature: hex.EncodeToString(mac.Sum(nil)),
	}
}

// SignNow signs a request with the current time and a fresh nonce.
func (s *Signer) SignNow(method, path string, body []byte) map[string]string {
	return s.Sign(method, path, time.Now().Unix(), uuid.NewString(), body)
}
