package firebird

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
)

// Secure remote password negotiation as the server implements it. The
// client offers Srp256 and Srp; the server picks one and the difference is
// only the hash used for the client proof. The derived 20-byte session key
// keys the optional wire-encryption layer.

var (
	srpPrime, _ = new(big.Int).SetString(
		"E67D2E994B2F900C3F41F08F5BB2627ED0D49EE1FE767A52EFCD565CD6E76881"+
			"2C3E1E9CE8F0A8BEA6CB13CD29DDEBF7A96D4A93B55D488DF099A15C89DCB064"+
			"0738EB2CDBFBD37A091AAB665F6A77262CC3C12762DFA01273E3668D8C3C2F0F"+
			"2EB33DE0C4264AA4E6A864C692F6EEB8C0E1F0D45B5A19CDA8D8B0F0720E8750"+
			"3", 16)

	srpGenerator = big.NewInt(2)

	// k = H(N, g), fixed by the server implementation.
	srpK, _ = new(big.Int).SetString("1277432915985975349439481660349303019122249719989", 10)
)

const srpKeySize = 128

type srpAuth struct {
	plugin   string
	user     string
	password string

	privateKey *big.Int // a
	publicKey  *big.Int // A = g^a mod N

	sessionKey []byte // K, set after the server round
}

// supportedAuthPlugins is the ordered list offered during the handshake,
// strongest first.
var supportedAuthPlugins = []string{"Srp256", "Srp"}

func newSRPAuth(plugin, user, password string) (*srpAuth, error) {
	switch plugin {
	case "Srp", "Srp256":
	default:
		return nil, &ConnectError{Message: fmt.Sprintf("unsupported auth plugin %q", plugin)}
	}

	private, err := randomScalar()

	if err != nil {
		return nil, &ConnectError{Message: "generating client key", Err: err}
	}

	auth := &srpAuth{
		plugin:     plugin,
		user:       strings.ToUpper(user),
		password:   password,
		privateKey: private,
	}

	auth.publicKey = new(big.Int).Exp(srpGenerator, auth.privateKey, srpPrime)

	return auth, nil
}

func randomScalar() (*big.Int, error) {
	buf := make([]byte, srpKeySize/8)

	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(buf), nil
}

// clientPublic returns hex(A) as sent in the connect identification block.
func (s *srpAuth) clientPublic() []byte {
	return []byte(fmt.Sprintf("%x", s.publicKey))
}

// serverData consumes the plugin data from op_accept_data / op_cont_auth:
// a length-prefixed salt followed by a length-prefixed hex server public
// key, both little-endian 16-bit lengths. It derives the session key and
// returns the hex client proof to send back. A malformed block or a server
// key of zero fails closed.
func (s *srpAuth) serverData(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, &ConnectError{Message: "auth data truncated"}
	}

	saltLen := int(binary.LittleEndian.Uint16(data[:2]))

	if len(data) < 2+saltLen+2 {
		return nil, &ConnectError{Message: "auth data truncated"}
	}

	salt := data[2 : 2+saltLen]

	rest := data[2+saltLen:]
	keyLen := int(binary.LittleEndian.Uint16(rest[:2]))

	if len(rest) < 2+keyLen {
		return nil, &ConnectError{Message: "auth data truncated"}
	}

	serverPublic, ok := new(big.Int).SetString(string(rest[2:2+keyLen]), 16)

	if !ok || serverPublic.Sign() == 0 {
		return nil, &ConnectError{Message: "invalid server public key"}
	}

	proof, session := s.clientProof(salt, serverPublic)
	s.sessionKey = session

	return []byte(fmt.Sprintf("%x", proof)), nil
}

func (s *srpAuth) session() []byte {
	return s.sessionKey
}

// clientSession derives the shared session key K from the server round.
func (s *srpAuth) clientSession(salt []byte, serverPublic *big.Int) []byte {
	u := bigFromSHA1(s.publicKey.Bytes(), serverPublic.Bytes())
	x := s.userHash(salt)

	gx := new(big.Int).Exp(srpGenerator, x, srpPrime)

	kgx := new(big.Int).Mul(srpK, gx)
	kgx.Mod(kgx, srpPrime)

	diff := new(big.Int).Sub(serverPublic, kgx)
	diff.Mod(diff, srpPrime)

	aux := new(big.Int).Mul(u, x)
	aux.Add(aux, s.privateKey)

	secret := new(big.Int).Exp(diff, aux, srpPrime)

	sum := sha1.Sum(secret.Bytes())

	return sum[:]
}

// userHash computes x = H(salt, H(user ':' password)).
func (s *srpAuth) userHash(salt []byte) *big.Int {
	inner := sha1.Sum([]byte(s.user + ":" + s.password))

	return bigFromSHA1(salt, inner[:])
}

// clientProof computes M = H(H(N)^H(g), H(user), salt, A, B, K). Srp hashes
// the proof with SHA-1, Srp256 with SHA-256; K is SHA-1 in both.
func (s *srpAuth) clientProof(salt []byte, serverPublic *big.Int) (proof, session []byte) {
	session = s.clientSession(salt, serverPublic)

	n1 := bigFromSHA1(srpPrime.Bytes())
	n2 := bigFromSHA1(srpGenerator.Bytes())
	n1.Exp(n1, n2, srpPrime)

	userDigest := sha1.Sum([]byte(s.user))
	n2.SetBytes(userDigest[:])

	if s.plugin == "Srp256" {
		h := sha256.New()
		h.Write(n1.Bytes())
		h.Write(n2.Bytes())
		h.Write(salt)
		h.Write(s.publicKey.Bytes())
		h.Write(serverPublic.Bytes())
		h.Write(session)

		return h.Sum(nil), session
	}

	h := sha1.New()
	h.Write(n1.Bytes())
	h.Write(n2.Bytes())
	h.Write(salt)
	h.Write(s.publicKey.Bytes())
	h.Write(serverPublic.Bytes())
	h.Write(session)

	return h.Sum(nil), session
}

func bigFromSHA1(chunks ...[]byte) *big.Int {
	h := sha1.New()

	for _, chunk := range chunks {
		h.Write(chunk)
	}

	return new(big.Int).SetBytes(h.Sum(nil))
}
