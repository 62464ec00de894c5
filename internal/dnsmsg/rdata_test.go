package dnsmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNSECTypeBitmapRoundTrip(t *testing.T) {
	types := []Type{TypeA, TypeMX, TypeRRSIG, TypeNSEC, Type(1234)}
	encoded := encodeTypeBitmap(nil, types)
	decoded, err := decodeTypeBitmap(encoded)
	require.NoError(t, err)
	assert.ElementsMatch(t, types, decoded)
}

func TestSOARoundTrip(t *testing.T) {
	soa := SOA{
		MName: "ns1.example.com.", RName: "hostmaster.example.com.",
		Serial: 2026073001, Refresh: 7200, Retry: 3600, Expire: 1209600, Minimum: 300,
	}
	buf, err := soa.Encode(nil, 0)
	require.NoError(t, err)

	decoded, err := decodeSOA(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, soa, decoded)
}

func TestTXTRoundTrip(t *testing.T) {
	txt := TXT{Strings: [][]byte{[]byte("v=spf1 -all"), []byte("second")}}
	buf, err := txt.Encode(nil, 0)
	require.NoError(t, err)

	decoded, err := decodeTXT(buf)
	require.NoError(t, err)
	assert.Equal(t, txt, decoded)
}

func TestDSRoundTrip(t *testing.T) {
	ds := DS{KeyTag: 12345, Algorithm: 13, DigestType: 2, Digest: []byte{0xde, 0xad, 0xbe, 0xef}}
	buf, err := ds.Encode(nil, 0)
	require.NoError(t, err)
	decoded, err := decodeDS(buf)
	require.NoError(t, err)
	assert.Equal(t, ds, decoded)
}

func TestNSEC3OptOutFlag(t *testing.T) {
	n := NSEC3{Flags: 0x01}
	assert.True(t, n.OptOut())
	n.Flags = 0
	assert.False(t, n.OptOut())
}

func TestCAARoundTrip(t *testing.T) {
	caa := CAA{Flag: 0, Tag: "issue", Value: []byte("letsencrypt.org")}
	buf, err := caa.Encode(nil, 0)
	require.NoError(t, err)
	decoded, err := decodeCAA(buf)
	require.NoError(t, err)
	assert.Equal(t, caa, decoded)
}
