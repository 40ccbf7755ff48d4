package encoding

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Encrypted envelope layout, all integers big endian:
//
//	magic "CHFE" | version u8 | flags u8 | iterations u32 | salt[16] | nonce[12] | ciphertext+tag
//
// The header is authenticated as associated data. With flagLZ4 the
// plaintext is u32 original length followed by an LZ4 block.
const (
	envelopeMagic   = "CHFE"
	envelopeVersion = 1
	saltSize        = 16
	headerSize      = len(envelopeMagic) + 1 + 1 + 4 + saltSize + chacha20poly1305.NonceSize

	flagLZ4 byte = 1 << 0
)

func deriveKey(secret string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterations, chacha20poly1305.KeySize, sha256.New)
}

func seal(raw []byte, secret string, opts Options) ([]byte, error) {
	var flags byte
	plaintext := raw
	if opts.Compress {
		if packed, ok := compress(raw); ok {
			plaintext = packed
			flags |= flagLZ4
		}
	}

	header := make([]byte, headerSize)
	copy(header, envelopeMagic)
	header[4] = envelopeVersion
	header[5] = flags
	binary.BigEndian.PutUint32(header[6:10], uint32(opts.KDFIterations))
	salt := header[10 : 10+saltSize]
	nonce := header[10+saltSize:]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	aead, err := chacha20poly1305.New(deriveKey(secret, salt, opts.KDFIterations))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	copy(out, header)
	return aead.Seal(out, nonce, plaintext, header), nil
}

func open(data []byte, secret string) ([]byte, error) {
	if len(data) < headerSize+chacha20poly1305.Overhead || !bytes.Equal(data[:4], []byte(envelopeMagic)) {
		return nil, fmt.Errorf("%w: not an encrypted envelope", ErrCorrupt)
	}
	if data[4] != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope version %d", ErrCorrupt, data[4])
	}

	header := data[:headerSize]
	flags := header[5]
	iterations := int(binary.BigEndian.Uint32(header[6:10]))
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iteration count %d", ErrCorrupt, iterations)
	}
	salt := header[10 : 10+saltSize]
	nonce := header[10+saltSize:]

	aead, err := chacha20poly1305.New(deriveKey(secret, salt, iterations))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, data[headerSize:], header)
	if err != nil {
		// Authentication can not tell a wrong key from tampering; the
		// wrong key is by far the likelier cause.
		return nil, ErrWrongSecret
	}

	if flags&flagLZ4 == 0 {
		return plaintext, nil
	}
	return decompress(plaintext)
}

// compress returns an LZ4 block prefixed with the original length, or false
// when that would not be smaller.
func compress(raw []byte) ([]byte, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	buf := make([]byte, 4+lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, buf[4:], nil)
	if err != nil || n == 0 || 4+n >= len(raw) {
		return nil, false
	}
	binary.BigEndian.PutUint32(buf[:4], uint32(len(raw)))
	return buf[:4+n], true
}

func decompress(packed []byte) ([]byte, error) {
	if len(packed) < 4 {
		return nil, fmt.Errorf("%w: short compressed payload", ErrCorrupt)
	}
	size := int(binary.BigEndian.Uint32(packed[:4]))
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(packed[4:], out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if n != size {
		return nil, fmt.Errorf("%w: decompressed %d of %d bytes", ErrCorrupt, n, size)
	}
	return out, nil
}
