package dnsmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameEqualCaseInsensitive(t *testing.T) {
	assert.True(t, Name("WWW.Example.COM.").Equal("www.example.com."))
	assert.False(t, Name("www.example.com.").Equal("www.example.org."))
}

func TestNameIsSubdomainOf(t *testing.T) {
	assert.True(t, Name("www.example.com.").IsSubdomainOf("example.com."))
	assert.True(t, Name("example.com.").IsSubdomainOf("example.com."))
	assert.False(t, Name("example.com.").IsSubdomainOf("www.example.com."))
	assert.False(t, Name("evilexample.com.").IsSubdomainOf("example.com."))
}

func TestNameLabelsWithEscape(t *testing.T) {
	n := Name(`a\.b.example.com.`)
	labels := n.Labels()
	assert.Equal(t, []string{`a\.b`, "example", "com"}, labels)
}

func TestUnescapeLabelRoundTrip(t *testing.T) {
	raw := unescapeLabel(escapeLabel([]byte{0x00, 0x01, '.', '\\', 'a'}))
	assert.Equal(t, []byte{0x00, 0x01, '.', '\\', 'a'}, raw)
}
