// Package security signs outgoing webhook deliveries.
//
// The daemon holds one Ed25519 keypair. Every push envelope is signed over
// "<unix timestamp>.<body>" so a relay gateway holding the public key can
// reject forged or replayed deliveries.
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sigPrefix names the scheme inside the signature header.
const sigPrefix = "ed25519="

var (
	ErrBadSignature = errors.New("invalid webhook signature")
	ErrStale        = errors.New("webhook timestamp outside tolerance")
)

// Signer holds the daemon's Ed25519 identity.
type Signer struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
	now     func() time.Time
}

// NewSigner creates a signer with a fresh keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &Signer{public: pub, private: priv, now: time.Now}, nil
}

// LoadOrCreateSigner loads the keypair from dir/keys, generating and
// saving one on first run.
func LoadOrCreateSigner(dir string) (*Signer, error) {
	keyDir := filepath.Join(dir, "keys")
	pubPath := filepath.Join(keyDir, "webhook.pub")
	privPath := filepath.Join(keyDir, "webhook.key")

	pubHex, pubErr := os.ReadFile(pubPath)
	privHex, privErr := os.ReadFile(privPath)
	if pubErr == nil && privErr == nil {
		pub, err := hex.DecodeString(strings.TrimSpace(string(pubHex)))
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("decode public key %s: invalid key", pubPath)
		}
		priv, err := hex.DecodeString(strings.TrimSpace(string(privHex)))
		if err != nil || len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("decode private key %s: invalid key", privPath)
		}
		return &Signer{public: pub, private: priv, now: time.Now}, nil
	}

	s, err := NewSigner()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(s.PublicKeyHex()), 0644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(s.private)), 0600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	return s, nil
}

// PublicKey returns the verification key.
func (s *Signer) PublicKey() ed25519.PublicKey { return s.public }

// PublicKeyHex returns the verification key hex-encoded, as published to
// relay gateways.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.public)
}

// Sign returns the timestamp and signature header values for body.
func (s *Signer) Sign(body []byte) (timestamp, signature string) {
	timestamp = strconv.FormatInt(s.now().Unix(), 10)
	sig := ed25519.Sign(s.private, signedPayload(timestamp, body))
	return timestamp, sigPrefix + hex.EncodeToString(sig)
}

// Verify checks header values produced by Sign. A zero tolerance skips the
// freshness check.
func Verify(pub ed25519.PublicKey, body []byte, timestamp, signature string, tolerance time.Duration, now time.Time) error {
	raw, ok := strings.CutPrefix(signature, sigPrefix)
	if !ok {
		return ErrBadSignature
	}
	sig, err := hex.DecodeString(raw)
	if err != nil {
		return ErrBadSignature
	}
	if !ed25519.Verify(pub, signedPayload(timestamp, body), sig) {
		return ErrBadSignature
	}
	if tolerance > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrBadSignature
		}
		if d := now.Sub(time.Unix(ts, 0)); d > tolerance || d < -tolerance {
			return ErrStale
		}
	}
	return nil
}

func signedPayload(timestamp string, body []byte) []byte {
	out := make([]byte, 0, len(timestamp)+1+len(body))
	out = append(out, timestamp...)
	out = append(out, '.')
	return append(out, body...)
}
