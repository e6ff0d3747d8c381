package blingwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

const (
	SignatureHeader = "X-Bling-Signature-256"
	signaturePrefix = "sha256="
)

// Verifier checks the HMAC-SHA256 signature of deliveries.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret))}
}

// Enabled is false when no secret is configured and every delivery is accepted.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

func (v *Verifier) Verify(body []byte, header string) error {
	if !v.Enabled() {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeSignature, "missing webhook signature")
	}
	expected := Sign(v.secret, body)
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return pkgerrors.New(pkgerrors.CodeSignature, "webhook signature mismatch")
	}
	return nil
}

// Sign returns the header value Bling sends for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
