package dnsmsg

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSimpleQuery(t *testing.T) {
	msg := []byte{
		0x12, 0x34, // ID
		0x01, 0x00, // flags: RD=1
		0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		0x03, 'c', 'o', 'm',
		0x00,
		0x00, 0x01, // Type A
		0x00, 0x01, // Class IN
	}

	m, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), m.Header.ID)
	assert.True(t, m.Header.RD)
	require.Len(t, m.Question, 1)
	assert.Equal(t, Name("example.com."), m.Question[0].Name)
	assert.Equal(t, TypeA, m.Question[0].Type)
}

func TestDecodeCompressionPointer(t *testing.T) {
	msg := []byte{
		0x12, 0x34,
		0x81, 0x80,
		0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		0x03, 'c', 'o', 'm',
		0x00,
		0x00, 0x01,
		0x00, 0x01,

		0xC0, 0x0C, // pointer to offset 12
		0x00, 0x01,
		0x00, 0x01,
		0x00, 0x00, 0x00, 0x3C,
		0x00, 0x04,
		0x01, 0x02, 0x03, 0x04,
	}

	m, err := Decode(msg)
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
	assert.Equal(t, Name("example.com."), m.Answer[0].Name)
	a, ok := m.Answer[0].Data.(A)
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", a.Addr.String())
}

func TestCompressionLoopDetected(t *testing.T) {
	msg := []byte{
		0x00, 0x01, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xC0, 0x0C, // pointer at offset 12 pointing to itself
		0x00, 0x01,
		0x00, 0x01,
	}
	_, err := Decode(msg)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := &Message{
		Header: Header{ID: 0xABCD, QR: true, RD: true, RA: true, Rcode: RcodeSuccess},
		Question: []Question{
			{Name: "www.example.com.", Type: TypeA, Class: ClassIN},
		},
		Answer: []RR{
			{Name: "www.example.com.", Type: TypeA, Class: ClassIN, TTL: 300, Data: A{Addr: net.ParseIP("93.184.216.34")}},
			{Name: "example.com.", Type: TypeNS, Class: ClassIN, TTL: 3600, Data: NameRDATA{T: TypeNS, Target: "ns1.example.com."}},
		},
	}

	wire, err := m.Encode()
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)

	assert.Equal(t, m.Header.ID, decoded.Header.ID)
	require.Len(t, decoded.Answer, 2)
	assert.True(t, decoded.Answer[0].Name.Equal("www.example.com."))
	a := decoded.Answer[0].Data.(A)
	assert.Equal(t, "93.184.216.34", a.Addr.String())
}

func TestPatchAD(t *testing.T) {
	m := &Message{Header: Header{ID: 1, QR: true}}
	wire, err := m.Encode()
	require.NoError(t, err)

	require.NoError(t, PatchAD(wire, true))
	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.True(t, decoded.Header.AD)

	require.NoError(t, PatchAD(wire, false))
	decoded, err = Decode(wire)
	require.NoError(t, err)
	assert.False(t, decoded.Header.AD)
}
