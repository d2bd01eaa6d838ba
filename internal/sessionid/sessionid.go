// Package sessionid implements C1: an immutable public identity (32
// bytes) whose signatures over arbitrary payload byte slices can be
// verified. SessionId doubles as an ed25519 public key, the natural Go
// stdlib fit for a 32-byte verifiable identity — no repo in the retrieval
// pack brings a separate detached-signature library, and ed25519.Verify's
// (publicKey, message, sig) shape matches the spec's verify contract
// exactly.
package sessionid

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Len is the byte length of a SessionId.
const Len = ed25519.PublicKeySize // 32

// SessionId is an immutable public identity. Compared by byte equality.
type SessionId [Len]byte

// ErrInvalidSessionId is returned when decoding a malformed textual id.
var ErrInvalidSessionId = errors.New("sessionid: invalid session id")

// ErrInvalidSignature is returned by Verify on any mismatch.
var ErrInvalidSignature = errors.New("sessionid: invalid signature")

// String encodes the SessionId as lowercase hex for transport.
func (s SessionId) String() string {
	return hex.EncodeToString(s[:])
}

// Bytes returns the raw 32 bytes.
func (s SessionId) Bytes() []byte {
	b := make([]byte, Len)
	copy(b, s[:])
	return b
}

// Equal reports whether two session ids are byte-identical.
func (s SessionId) Equal(o SessionId) bool {
	return s == o
}

// Parse decodes a textual SessionId (hex) back into its 32 bytes.
func Parse(s string) (SessionId, error) {
	var out SessionId
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != Len {
		return out, fmt.Errorf("%w: %q", ErrInvalidSessionId, s)
	}
	copy(out[:], b)
	return out, nil
}

// FromBytes validates and wraps a raw byte slice as a SessionId.
func FromBytes(b []byte) (SessionId, error) {
	var out SessionId
	if len(b) != Len {
		return out, ErrInvalidSessionId
	}
	copy(out[:], b)
	return out, nil
}

// SignatureSet is the opaque (signature, salt) pair bound to a SessionId.
type SignatureSet struct {
	Signature []byte `json:"signature"`
	Salt      []byte `json:"salt"`
}

// KeyPair is a SessionId plus the private key that can sign on its
// behalf. Used by the issuer of a session id (the client), not by the
// hub — the hub only ever calls Verify.
type KeyPair struct {
	ID      SessionId
	Private ed25519.PrivateKey
}

// NewKeyPair generates a fresh random session identity.
func NewKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sessionid: generate key: %w", err)
	}
	id, err := FromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{ID: id, Private: priv}, nil
}

// Sign produces a SignatureSet covering the concatenation of payloads,
// salted with a fresh random value to match the transport's
// (signature, salt) pair shape.
func (kp *KeyPair) Sign(payloads ...[]byte) (SignatureSet, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return SignatureSet{}, fmt.Errorf("sessionid: salt: %w", err)
	}
	msg := concat(salt, payloads...)
	sig := ed25519.Sign(kp.Private, msg)
	return SignatureSet{Signature: sig, Salt: salt}, nil
}

// Verify checks that session_id's signature over payloads (concatenated
// in order, salted) matches sig. Any single-byte mutation of any payload,
// session_id, or salt must cause failure — guaranteed here because the
// salt and every payload byte feed the signed message.
func Verify(id SessionId, payloads [][]byte, sig SignatureSet) error {
	if len(sig.Signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	msg := concat(sig.Salt, payloads...)
	if !ed25519.Verify(ed25519.PublicKey(id[:]), msg, sig.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

func concat(salt []byte, payloads ...[]byte) []byte {
	n := len(salt)
	for _, p := range payloads {
		n += len(p)
	}
	out := make([]byte, 0, n)
	out = append(out, salt...)
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out
}
