package dnssec

import (
	"crypto/ed25519"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

func base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func mustParseIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		panic("invalid test IP: " + s)
	}
	return ip
}

func TestKeyTagMatchesKnownVector(t *testing.T) {
	// RFC 4034 Appendix B.1's example key, tag 9465, algorithm RSA/SHA-1.
	key := dnsmsg.DNSKEY{
		Flags:     256,
		Protocol:  3,
		Algorithm: 5,
		PublicKey: mustDecodeB64(t, "AQPSKmynfzW4kyBv015MUG2DeIQ3Cbl+BBZH4b/0PY1kxkmvHjcZc8nokfzj31GajIQKY+5CptLr3buXA10hWqTkF7jRQp2+nYkSk6skxprlN0sLKIkRhvfN3dg0V6NrJvPw+JplEuPeYzQkWbBgK4/8IlnBOmAVLaFAASqcr8vU2AzCeddJxHR3qbDSdQTRDnDKXVW6k41ykARtKXcmzpj3/PqHKWbeDqOfcIuARFAj6xvHsaAm7p8L8d+oKSeCxR/TOBbLgCEFgqq3+5VMzotsdQ=="),
	}
	assert.Equal(t, uint16(9465), KeyTag(key))
}

func TestVerifyRRSIGEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	key := dnsmsg.DNSKEY{Flags: 257, Protocol: 3, Algorithm: AlgEd25519, PublicKey: pub}

	name := dnsmsg.Name("example.com.")
	rrs := []dnsmsg.RR{
		{Name: name, Type: dnsmsg.TypeA, Class: dnsmsg.ClassIN, TTL: 300, Data: dnsmsg.A{Addr: mustParseIP("198.51.100.1")}},
	}

	sig := dnsmsg.RRSIG{
		TypeCovered: dnsmsg.TypeA,
		Algorithm:   AlgEd25519,
		Labels:      2,
		OrigTTL:     300,
		Expiration:  uint32(time.Now().Add(time.Hour).Unix()),
		Inception:   uint32(time.Now().Add(-time.Hour).Unix()),
		KeyTag:      KeyTag(key),
		SignerName:  name,
	}

	signedData, err := canonicalSigningInput(sig, rrs)
	require.NoError(t, err)
	sig.Signature = ed25519.Sign(priv, signedData)

	err = VerifyRRSIG(sig, key, name, rrs, time.Now())
	assert.NoError(t, err)
}

func TestVerifyRRSIGRejectsExpired(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key := dnsmsg.DNSKEY{Algorithm: AlgEd25519, PublicKey: pub}

	name := dnsmsg.Name("example.com.")
	rrs := []dnsmsg.RR{{Name: name, Type: dnsmsg.TypeA, TTL: 300, Data: dnsmsg.A{Addr: mustParseIP("198.51.100.1")}}}

	sig := dnsmsg.RRSIG{
		Algorithm:  AlgEd25519,
		OrigTTL:    300,
		Expiration: uint32(time.Now().Add(-time.Hour).Unix()),
		Inception:  uint32(time.Now().Add(-2 * time.Hour).Unix()),
		KeyTag:     KeyTag(key),
		SignerName: name,
	}
	signedData, _ := canonicalSigningInput(sig, rrs)
	sig.Signature = ed25519.Sign(priv, signedData)

	err = VerifyRRSIG(sig, key, name, rrs, time.Now())
	assert.ErrorIs(t, err, ErrSignatureExpired)
}

func TestDigestMatches(t *testing.T) {
	key := dnsmsg.DNSKEY{Flags: 257, Protocol: 3, Algorithm: AlgEd25519, PublicKey: []byte("0123456789012345678901234567890")}
	owner := dnsmsg.Name("example.com.")

	var rdata []byte
	rdata = appendUint16(rdata, key.Flags)
	rdata = append(rdata, key.Protocol, key.Algorithm)
	rdata = append(rdata, key.PublicKey...)
	input := append(canonicalNameBytes(owner), rdata...)
	digest := sha256Sum(input)

	ds := dnsmsg.DS{DigestType: DigestSHA256, Digest: digest}
	assert.True(t, DigestMatches(ds, owner, key))

	ds.Digest[0] ^= 0xFF
	assert.False(t, DigestMatches(ds, owner, key))
}

func TestProveNameError(t *testing.T) {
	nsecs := []dnsmsg.RR{
		{Name: "a.example.com.", Data: dnsmsg.NSEC{NextDomain: "c.example.com."}},
	}
	assert.True(t, ProveNameError(nsecs, "b.example.com."))
	assert.False(t, ProveNameError(nsecs, "z.example.com."))
}

func mustDecodeB64(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64Decode(s)
	require.NoError(t, err)
	return b
}
