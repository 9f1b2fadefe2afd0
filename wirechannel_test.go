package firebird

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func channelPair() (*wireChannel, *wireChannel) {
	a, b := net.Pipe()

	return newWireChannelConn(a), newWireChannelConn(b)
}

func TestChannelRoundTrip(t *testing.T) {
	client, server := channelPair()

	payload := []byte("the quick brown fox jumps over the lazy dog")

	go func() {
		client.write(payload)
		client.flush()
	}()

	got, err := server.read(len(payload))

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, payload) {
		t.Fatalf("Expected %q, got %q", payload, got)
	}
}

func TestChannelPartialReads(t *testing.T) {
	client, server := channelPair()

	go func() {
		client.write([]byte{0, 0, 0, 42, 0xDE, 0xAD, 0xBE, 0xEF})
		client.flush()
	}()

	// Two messages arrive in one flush; the prefix is consumed without
	// disturbing the rest.
	head, err := server.read(4)

	if err != nil {
		t.Fatal(err)
	}

	if head[3] != 42 {
		t.Fatalf("Expected 42 in the first frame, got %v", head)
	}

	tail, err := server.read(4)

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(tail, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("Unexpected second frame %x", tail)
	}
}

func TestChannelCompressedRoundTrip(t *testing.T) {
	client, server := channelPair()

	client.enableCompression()
	server.enableCompression()

	if !server.isCompressed() {
		t.Fatal("Expected the channel to report compression")
	}

	payload := bytes.Repeat([]byte("abcd1234"), 512)

	go func() {
		client.write(payload)
		client.flush()
	}()

	got, err := server.read(len(payload))

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, payload) {
		t.Fatal("Compressed round trip corrupted the payload")
	}

	// The stream is shared across messages: a second message must inflate
	// against the same dictionary state.
	go func() {
		client.write([]byte("second message"))
		client.flush()
	}()

	got, err = server.read(len("second message"))

	if err != nil {
		t.Fatal(err)
	}

	if string(got) != "second message" {
		t.Fatalf("Expected second message, got %q", got)
	}
}

func TestChannelEncryptedCompressedRoundTrip(t *testing.T) {
	client, server := channelPair()

	client.enableCompression()
	server.enableCompression()

	key := []byte("0123456789abcdef0123")

	if err := client.setCipher("Arc4", key, nil); err != nil {
		t.Fatal(err)
	}

	if err := server.setCipher("Arc4", key, nil); err != nil {
		t.Fatal(err)
	}

	payload := []byte("encrypted and compressed")

	go func() {
		client.write(payload)
		client.flush()
	}()

	got, err := server.read(len(payload))

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, payload) {
		t.Fatal("Cipher round trip corrupted the payload")
	}
}

func TestChannelPeerClose(t *testing.T) {
	client, server := channelPair()

	client.close()

	server.setReadDeadline(time.Now().Add(time.Second))

	if _, err := server.read(4); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestChaChaCipher(t *testing.T) {
	key := []byte("0123456789abcdef0123")
	nonce := []byte("12345678")

	enc, err := newWireCipher("ChaCha", key, nonce)

	if err != nil {
		t.Fatal(err)
	}

	dec, err := newWireCipher("ChaCha", key, nonce)

	if err != nil {
		t.Fatal(err)
	}

	plain := []byte("stream cipher self test")
	scrambled := make([]byte, len(plain))

	enc.XORKeyStream(scrambled, plain)

	if bytes.Equal(scrambled, plain) {
		t.Fatal("Expected the keystream to change the bytes")
	}

	back := make([]byte, len(scrambled))

	dec.XORKeyStream(back, scrambled)

	if !bytes.Equal(back, plain) {
		t.Fatal("Round trip through the cipher failed")
	}

	if _, err := newWireCipher("Blowfish", key, nonce); err == nil {
		t.Fatal("Expected error for unknown cipher plugin but got nil")
	}
}
