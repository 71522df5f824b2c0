// Package signer computes the HMAC request signatures that authenticate the
// widget against the backend.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/symplistic/contentiq-widget/internal/clock"
	"github.com/symplistic/contentiq-widget/internal/domain"
)

var (
	// ErrBadSignature is returned by Verify when the MAC does not match.
	ErrBadSignature = errors.New("signature mismatch")
	// ErrStaleTimestamp is returned by Verify when ts is outside the skew window.
	ErrStaleTimestamp = errors.New("timestamp outside accepted window")
	errEmptySecret    = errors.New("secret is empty")
)

// EncodingError reports a secret that is not valid hex.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("decode secret: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ValidateSecret checks that secretHex decodes to a non-empty key.
func ValidateSecret(secretHex string) error {
	_, err := decodeSecret(secretHex)
	return err
}

func decodeSecret(secretHex string) ([]byte, error) {
	if secretHex == "" {
		return nil, &EncodingError{Err: errEmptySecret}
	}
	key, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return key, nil
}

// Sign returns the lowercase hex HMAC-SHA256 of "<ts>|<agentID>" keyed by
// the hex-decoded secret.
func Sign(secretHex, ts, agentID string) (string, error) {
	key, err := decodeSecret(secretHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac(key, ts, agentID)), nil
}

func mac(key []byte, ts, agentID string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(ts + "|" + agentID))
	return h.Sum(nil)
}

// Verify checks sig against the expected MAC and rejects timestamps further
// than maxSkew from now in either direction.
func Verify(secretHex, agentID, ts, sig string, now time.Time, maxSkew time.Duration) error {
	key, err := decodeSecret(secretHex)
	if err != nil {
		return err
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a unix timestamp", ErrStaleTimestamp, ts)
	}
	skew := now.Sub(time.Unix(sec, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrStaleTimestamp
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, mac(key, ts, agentID)) {
		return ErrBadSignature
	}
	return nil
}

// Signer builds auth payloads for one agent.
type Signer struct {
	agentID string
	secret  string
	clock   clock.Clock
}

// New creates a Signer. A nil clock means the system clock.
func New(agentID, secretHex string, clk clock.Clock) (*Signer, error) {
	if err := ValidateSecret(secretHex); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Signer{agentID: agentID, secret: secretHex, clock: clk}, nil
}

// AgentID returns the agent the signer authenticates.
func (s *Signer) AgentID() string { return s.agentID }

// BuildAuth returns a freshly signed payload for the current second.
func (s *Signer) BuildAuth() (domain.AuthPayload, error) {
	ts := strconv.FormatInt(s.clock.Now().Unix(), 10)
	sig, err := Sign(s.secret, ts, s.agentID)
	if err != nil {
		return domain.AuthPayload{}, err
	}
	return domain.AuthPayload{
		AgentID: s.agentID,
		Token:   s.secret,
		TS:      ts,
		Sig:     sig,
	}, nil
}

// BuildAuth signs for agentID at the current system time.
func BuildAuth(secretHex, agentID string) (domain.AuthPayload, error) {
	s := &Signer{agentID: agentID, secret: secretHex, clock: clock.Real{}}
	return s.BuildAuth()
}
