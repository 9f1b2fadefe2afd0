package firebird

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math/big"
	"testing"
)

// serverExchange plays the server side of the negotiation against an
// srpAuth and returns the wire-format challenge plus the session key the
// server would derive.
func serverExchange(t *testing.T, auth *srpAuth, salt []byte) (data, serverSession []byte) {
	t.Helper()

	x := auth.userHash(salt)
	verifier := new(big.Int).Exp(srpGenerator, x, srpPrime)

	b := big.NewInt(0x1234567)

	serverPublic := new(big.Int).Mul(srpK, verifier)
	serverPublic.Add(serverPublic, new(big.Int).Exp(srpGenerator, b, srpPrime))
	serverPublic.Mod(serverPublic, srpPrime)

	hexB := []byte(fmt.Sprintf("%x", serverPublic))

	data = binary.LittleEndian.AppendUint16(nil, uint16(len(salt)))
	data = append(data, salt...)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(hexB)))
	data = append(data, hexB...)

	u := bigFromSHA1(auth.publicKey.Bytes(), serverPublic.Bytes())

	secret := new(big.Int).Exp(verifier, u, srpPrime)
	secret.Mul(secret, auth.publicKey)
	secret.Mod(secret, srpPrime)
	secret.Exp(secret, b, srpPrime)

	sum := sha1.Sum(secret.Bytes())

	return data, sum[:]
}

func TestSRPKeyAgreement(t *testing.T) {
	for _, plugin := range supportedAuthPlugins {
		auth, err := newSRPAuth(plugin, "sysdba", "masterkey")

		if err != nil {
			t.Fatal(err)
		}

		salt := []byte("0123456789abcdef0123456789abcdef")

		data, serverSession := serverExchange(t, auth, salt)

		proof, err := auth.serverData(data)

		if err != nil {
			t.Fatal(err)
		}

		if len(proof) == 0 {
			t.Fatal("Expected a client proof")
		}

		if !bytes.Equal(auth.session(), serverSession) {
			t.Fatalf("%s: client and server derived different session keys", plugin)
		}

		if len(auth.session()) != sha1.Size {
			t.Fatalf("Expected a %d-byte session key, got %d", sha1.Size, len(auth.session()))
		}
	}
}

func TestSRPUserNameCaseFolding(t *testing.T) {
	auth, err := newSRPAuth("Srp256", "sysdba", "masterkey")

	if err != nil {
		t.Fatal(err)
	}

	if auth.user != "SYSDBA" {
		t.Fatalf("Expected the login to be upper-cased, got %q", auth.user)
	}
}

func TestSRPRejectsUnknownPlugin(t *testing.T) {
	if _, err := newSRPAuth("Legacy_Auth", "sysdba", "masterkey"); err == nil {
		t.Fatal("Expected error for unknown plugin but got nil")
	}
}

func TestSRPMalformedServerData(t *testing.T) {
	auth, err := newSRPAuth("Srp256", "sysdba", "masterkey")

	if err != nil {
		t.Fatal(err)
	}

	cases := [][]byte{
		nil,
		{0x01},
		{0x10, 0x00, 0x01},
		binary.LittleEndian.AppendUint16(nil, 0), // salt only, no key
	}

	for _, data := range cases {
		if _, err := auth.serverData(data); err == nil {
			t.Fatalf("Expected error for %x but got nil", data)
		}
	}

	// A zero server key would collapse the shared secret.
	data := binary.LittleEndian.AppendUint16(nil, 4)
	data = append(data, "salt"...)
	data = binary.LittleEndian.AppendUint16(data, 2)
	data = append(data, "00"...)

	if _, err := auth.serverData(data); err == nil {
		t.Fatal("Expected error for zero server key but got nil")
	}
}
