package audit

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poutila/doxstrux/internal/errors"
)

// Baseline is a signed record of corpus performance metrics.
type Baseline struct {
	Metrics   map[string]float64 `json:"metrics"`
	CreatedAt time.Time          `json:"created_at"`
	Signer    string             `json:"signer"`
	Signature string             `json:"signature,omitempty"`
}

// signedPayload is the exact byte sequence covered by the signature.
// encoding/json sorts map keys, so the encoding is canonical.
type signedPayload struct {
	Metrics   map[string]float64 `json:"metrics"`
	CreatedAt string             `json:"created_at"`
	Signer    string             `json:"signer"`
}

func (b *Baseline) payload() ([]byte, error) {
	return json.Marshal(signedPayload{
		Metrics:   b.Metrics,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339Nano),
		Signer:    b.Signer,
	})
}

// NewBaseline creates an unsigned baseline.
func NewBaseline(metrics map[string]float64, signer string, now time.Time) *Baseline {
	return &Baseline{Metrics: metrics, CreatedAt: now.UTC(), Signer: signer}
}

// Sign signs the baseline with key.
func (b *Baseline) Sign(key ed25519.PrivateKey) error {
	if b.Signer == "" {
		return fmt.Errorf("baseline signer is required")
	}
	data, err := b.payload()
	if err != nil {
		return err
	}
	b.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(key, data))
	return nil
}

// Verify checks the signature against the signer's trusted key. Every
// failure is ErrBaselineUnsigned: an unsigned record, an unknown signer
// and a bad signature are the same condition to the gate.
func (b *Baseline) Verify(trusted map[string]ed25519.PublicKey) error {
	if b.Signature == "" {
		return unsigned("baseline has no signature")
	}
	key, ok := trusted[b.Signer]
	if !ok {
		return unsigned(fmt.Sprintf("signer %q is not trusted", b.Signer))
	}
	sig, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return unsigned("signature is not valid base64")
	}
	data, err := b.payload()
	if err != nil {
		return err
	}
	if !ed25519.Verify(key, data, sig) {
		return unsigned("signature does not match")
	}
	return nil
}

func unsigned(reason string) *errors.Error {
	return errors.NewAuditError(errors.ErrCodeBaselineUnsigned, reason, errors.ExitBaselineUnsigned)
}

// LoadBaseline reads the baseline at path. A missing file is
// ErrBaselineMissing; an unreadable record is ErrBaselineUnsigned.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewAuditError(errors.ErrCodeBaselineMissing, "no baseline at "+path, errors.ExitBaselineMissing)
	}
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "reading baseline")
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, unsigned("baseline is not valid JSON").WithCause(err)
	}
	if len(b.Metrics) == 0 {
		return nil, unsigned("baseline has no metrics")
	}
	return &b, nil
}

// Save writes the baseline as indented JSON.
func (b *Baseline) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// GenerateKeyPair writes a new ed25519 key pair as base64 text. The
// private key file is created with owner-only permissions.
func GenerateKeyPair(privatePath, publicPath string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(privatePath, []byte(base64.StdEncoding.EncodeToString(priv)+"\n"), 0600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(publicPath, []byte(base64.StdEncoding.EncodeToString(pub)+"\n"), 0644); err != nil {
		return nil, err
	}
	return pub, nil
}

// LoadPrivateKey reads a base64 ed25519 private key file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// ParsePublicKey decodes a base64 ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// TrustedKey names a signer whose baselines are accepted.
type TrustedKey struct {
	Signer string `mapstructure:"signer" yaml:"signer" validate:"required"`
	Key    string `mapstructure:"key" yaml:"key" validate:"required,base64"`
}

// ParseTrustedKeys decodes the configured keys by signer.
func ParseTrustedKeys(keys []TrustedKey) (map[string]ed25519.PublicKey, error) {
	out := make(map[string]ed25519.PublicKey, len(keys))
	for _, k := range keys {
		pub, err := ParsePublicKey(k.Key)
		if err != nil {
			return nil, errors.ConfigInvalid("trusted key for "+k.Signer, err)
		}
		out[k.Signer] = pub
	}
	return out, nil
}
