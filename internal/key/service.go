package key

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"hlsfetch/internal/fetch"
	"hlsfetch/internal/hls"
	"hlsfetch/internal/logger"
)

// ErrUnsupportedMethod is returned for encryption methods other than AES-128.
var ErrUnsupportedMethod = errors.New("unsupported encryption method")

// Service decrypts segment payloads for a single run.
// It is initialized once before any segment is fetched and is safe for concurrent reads.
type Service struct {
	Method string
	URI    string
	Key    []byte
	// IV is the static IV declared by the playlist, nil when each segment derives its own.
	IV []byte

	block     cipher.Block
	decrypter BlockDecrypter
}

// NewService creates the decryption context for a playlist.
// A nil or non-encrypting directive yields a pass-through service. Otherwise the key is
// fetched from the directive's URI; a failure there is fatal since no segment could be decrypted.
func NewService(ctx context.Context, f fetch.Fetcher, directive *hls.KeyDirective, dec BlockDecrypter, log logger.Logger) (*Service, error) {
	if !directive.Encrypted() {
		return &Service{}, nil
	}
	if directive.Method != hls.MethodAES128 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, directive.Method)
	}

	log.Infof("Fetching decryption key from %s", directive.URI)
	keyBytes, err := f.Fetch(ctx, directive.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key from %s: %w", directive.URI, err)
	}

	block, err := dec.Expand(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to expand key from %s: %w", directive.URI, err)
	}

	s := &Service{
		Method:    directive.Method,
		URI:       directive.URI,
		Key:       keyBytes,
		block:     block,
		decrypter: dec,
	}
	if directive.IV != nil {
		s.IV = fitIV(directive.IV)
	}
	return s, nil
}

// Encrypted reports whether Decrypt transforms its input.
func (s *Service) Encrypted() bool {
	return s.block != nil
}

// Decrypt returns the plaintext of the segment at index.
// Without encryption the data is returned unchanged.
func (s *Service) Decrypt(index int, data []byte) ([]byte, error) {
	if !s.Encrypted() {
		return data, nil
	}

	iv := s.IV
	if iv == nil {
		iv = SequenceIV(index)
	}

	plain, err := s.decrypter.DecryptCBC(s.block, iv, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt segment %d: %w", index, err)
	}
	return stripPadding(plain), nil
}

// SequenceIV derives the IV used when the playlist declares none: fifteen zero bytes followed
// by the low byte of the segment index. Indices above 255 wrap.
func SequenceIV(index int) []byte {
	iv := make([]byte, BlockSize)
	iv[BlockSize-1] = byte(index)
	return iv
}

// fitIV sizes a declared IV to one block: longer values are truncated, shorter ones zero-padded.
func fitIV(raw []byte) []byte {
	iv := make([]byte, BlockSize)
	copy(iv, raw)
	return iv
}

// stripPadding removes PKCS#7 padding when the trailing byte is a plausible pad length.
func stripPadding(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	n := int(b[len(b)-1])
	if n < 1 || n > BlockSize || n > len(b) {
		return b
	}
	return b[:len(b)-n]
}
