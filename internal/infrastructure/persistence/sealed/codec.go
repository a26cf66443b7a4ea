// Package sealed encrypts session checkpoints at rest. A checkpoint holds the
// password typed during registration, so shared stores get sealed bytes only.
package sealed

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
)

const (
	nonceSize = 24
	keySize   = 32

	// version prefixes every sealed blob so the format can change later.
	version byte = 1
)

var (
	// ErrEmptySecret is returned by NewCodec for an empty secret.
	ErrEmptySecret = errors.New("sealed: secret is empty")

	// ErrOpen means the blob was tampered with or sealed under another secret.
	ErrOpen = errors.New("sealed: cannot open checkpoint")
)

// Codec wraps another session.Codec with XSalsa20-Poly1305.
type Codec struct {
	inner session.Codec
	key   [keySize]byte
	rand  io.Reader
}

// NewCodec derives the box key from secret. inner defaults to session.JSONCodec.
func NewCodec(secret string, inner session.Codec) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if inner == nil {
		inner = session.JSONCodec{}
	}

	c := &Codec{inner: inner, rand: rand.Reader}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("vuntgram session checkpoint"))
	if _, err := io.ReadFull(kdf, c.key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return c, nil
}

// Marshal implements session.Codec.
func (c *Codec) Marshal(st session.State) ([]byte, error) {
	plain, err := c.inner.Marshal(st)
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(c.rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	out := make([]byte, 0, 1+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, version)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, &c.key), nil
}

// Unmarshal implements session.Codec.
func (c *Codec) Unmarshal(data []byte) (session.State, error) {
	if len(data) < 1+nonceSize+secretbox.Overhead || data[0] != version {
		return session.State{}, ErrOpen
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[1:1+nonceSize])

	plain, ok := secretbox.Open(nil, data[1+nonceSize:], &nonce, &c.key)
	if !ok {
		return session.State{}, ErrOpen
	}
	return c.inner.Unmarshal(plain)
}
