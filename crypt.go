package firebird

import (
	"crypto/cipher"
	"crypto/rc4"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
)

// newWireCipher builds the keystream for the wire-encryption plugin the
// server selected. Arc4 is keyed with the session key directly; the ChaCha
// plugins key with SHA-256 of the session key and the server-supplied nonce.
func newWireCipher(plugin string, sessionKey, nonce []byte) (cipher.Stream, error) {
	switch plugin {
	case "Arc4":
		return rc4.NewCipher(sessionKey)
	case "ChaCha", "ChaCha64":
		key := sha256.Sum256(sessionKey)

		iv := make([]byte, chacha20.NonceSize)
		copy(iv[chacha20.NonceSize-min(len(nonce), chacha20.NonceSize):], nonce)

		return chacha20.NewUnauthenticatedCipher(key[:], iv)
	default:
		return nil, &ConnectError{Message: fmt.Sprintf("unsupported wire crypt plugin %q", plugin)}
	}
}

// cipherReader decrypts bytes as they come off the stream. Decryption sits
// beneath decompression on the read path.
type cipherReader struct {
	src    io.Reader
	stream cipher.Stream
}

func (r *cipherReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)

	if n > 0 {
		r.stream.XORKeyStream(p[:n], p[:n])
	}

	return n, err
}

// cipherWriter encrypts bytes on their way to the stream. Encryption sits
// beneath compression on the write path, so compressed output is what gets
// encrypted.
type cipherWriter struct {
	dst    io.Writer
	stream cipher.Stream
}

func (w *cipherWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	w.stream.XORKeyStream(buf, p)

	return w.dst.Write(buf)
}
