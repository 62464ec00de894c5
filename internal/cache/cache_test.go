package cache

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

func encodedAnswer(t *testing.T, name string, ttl uint32) []byte {
	t.Helper()
	m := &dnsmsg.Message{
		Header:   dnsmsg.Header{ID: 1, QR: true, RD: true, RA: true},
		Question: []dnsmsg.Question{{Name: dnsmsg.Name(name), Type: dnsmsg.TypeA, Class: dnsmsg.ClassIN}},
		Answer: []dnsmsg.RR{
			{Name: dnsmsg.Name(name), Type: dnsmsg.TypeA, Class: dnsmsg.ClassIN, TTL: ttl, Data: dnsmsg.A{Addr: net.ParseIP("93.184.216.34")}},
		},
	}
	wire, err := m.Encode()
	require.NoError(t, err)
	return wire
}

func TestCacheSetGet(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	key := Key{Name: "example.com.", Type: dnsmsg.TypeA, Zone: "com."}
	wire := encodedAnswer(t, "example.com.", 300)

	c.Set(key, wire, 300, false, false, false)

	got, entry, ok := c.Get(key, false)
	require.True(t, ok)
	require.NotNil(t, entry)
	assert.LessOrEqual(t, len(got), len(wire)+8)
	assert.Equal(t, uint64(1), c.GetStats().Hits)
}

func TestCacheMiss(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	_, _, ok := c.Get(Key{Name: "nowhere.test.", Type: dnsmsg.TypeA}, false)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.GetStats().Misses)
}

func TestCacheTTLDecay(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	key := Key{Name: "example.com.", Type: dnsmsg.TypeA}
	wire := encodedAnswer(t, "example.com.", 2)
	c.Set(key, wire, 2, false, false, false)

	time.Sleep(1100 * time.Millisecond)

	got, _, ok := c.Get(key, false)
	require.True(t, ok)

	decoded, err := dnsmsg.Decode(got)
	require.NoError(t, err)
	require.Len(t, decoded.Answer, 1)
	assert.LessOrEqual(t, decoded.Answer[0].TTL, uint32(2))
	assert.GreaterOrEqual(t, decoded.Answer[0].TTL, uint32(1))
}

func TestCacheExpiresAndIsRemoved(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	key := Key{Name: "example.com.", Type: dnsmsg.TypeA}
	wire := encodedAnswer(t, "example.com.", 1)
	c.Set(key, wire, 1, false, false, false)

	time.Sleep(1100 * time.Millisecond)

	_, _, ok := c.Get(key, false)
	assert.False(t, ok)
}

func TestCacheByteBudgetEviction(t *testing.T) {
	wire := encodedAnswer(t, "example.com.", 300)
	c := New(Config{MaxBytes: len(wire) + perEntryOverhead + 10})
	defer c.Close()

	k1 := Key{Name: "one.example.", Type: dnsmsg.TypeA}
	k2 := Key{Name: "two.example.", Type: dnsmsg.TypeA}

	c.Set(k1, wire, 300, false, false, false)
	c.Set(k2, encodedAnswer(t, "two.example.", 300), 300, false, false, false)

	_, _, ok1 := c.Get(k1, false)
	_, _, ok2 := c.Get(k2, false)
	assert.False(t, ok1, "oldest entry should have been evicted to respect the byte budget")
	assert.True(t, ok2)
	assert.Equal(t, uint64(1), c.GetStats().Evictions)
}

func TestCacheADBitReflectsValidation(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	key := Key{Name: "secure.example.", Type: dnsmsg.TypeA}
	wire := encodedAnswer(t, "secure.example.", 300)
	c.Set(key, wire, 300, false, true, false)

	got, _, ok := c.Get(key, true)
	require.True(t, ok)
	decoded, err := dnsmsg.Decode(got)
	require.NoError(t, err)
	assert.True(t, decoded.Header.AD)

	got, _, ok = c.Get(key, false)
	require.True(t, ok)
	decoded, err = dnsmsg.Decode(got)
	require.NoError(t, err)
	assert.False(t, decoded.Header.AD)
}
