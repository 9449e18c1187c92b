package key

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// BlockSize is the AES block size in bytes.
const BlockSize = aes.BlockSize

// ErrCiphertextSize is returned when a ciphertext is not a whole number of blocks.
var ErrCiphertextSize = errors.New("ciphertext is not a multiple of the block size")

// BlockDecrypter is the block-cipher capability the decryption context depends on.
type BlockDecrypter interface {
	// Expand derives the key schedule from raw key bytes.
	Expand(key []byte) (cipher.Block, error)
	// DecryptCBC decrypts ciphertext in CBC mode without touching padding.
	DecryptCBC(block cipher.Block, iv, ciphertext []byte) ([]byte, error)
}

// AESDecrypter implements BlockDecrypter with crypto/aes.
type AESDecrypter struct{}

func (AESDecrypter) Expand(key []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key: %w", err)
	}
	return block, nil
}

func (AESDecrypter) DecryptCBC(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextSize, len(ciphertext))
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return plain, nil
}
