package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	f := Default()
	assert.Equal(t, uint32(30), f.MaxReferrals)
	assert.Equal(t, uint32(5), f.MaxRetries)
	assert.Equal(t, uint32(2000), f.TimeoutMS)
	assert.True(t, f.TCP)
	assert.True(t, f.Cookies)
	assert.True(t, f.RRL)
}

func TestLoad_FillsDefaultsForZeroFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolvd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dnssec: true\nhints:\n  - 198.41.0.4:53\n"), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.True(t, f.DNSSEC)
	assert.Equal(t, []string{"198.41.0.4:53"}, f.Hints)
	assert.Equal(t, uint32(30), f.MaxReferrals)
	assert.Equal(t, uint32(5), f.MaxRetries)
	assert.Equal(t, uint32(2000), f.TimeoutMS)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestTrustAnchors_DecodesHexDigest(t *testing.T) {
	f := Default()
	f.Anchors = []Anchor{{Zone: ".", KeyTag: 20326, Algorithm: 8, DigestType: 2, Digest: "e06d44b80b8f1d39a95c0b0d7c65d08458e880409bbc683457104237c7f8ec8d"}}

	anchors, err := f.TrustAnchors()
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	assert.Equal(t, uint16(20326), anchors[0].DS.KeyTag)
	assert.Len(t, anchors[0].DS.Digest, 32)
}

func TestTrustAnchors_RejectsBadHex(t *testing.T) {
	f := Default()
	f.Anchors = []Anchor{{Zone: ".", Digest: "not-hex"}}

	_, err := f.TrustAnchors()
	assert.Error(t, err)
}

func TestServerConfig_OverridesAddrsAndWiresResolver(t *testing.T) {
	f := Default()
	f.UDPAddr = "127.0.0.1:5300"
	f.TCPAddr = "127.0.0.1:5300"
	f.MaxReferrals = 10
	f.CacheSize = 1024

	cfg, err := f.ServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5300", cfg.UDPAddr)
	assert.Equal(t, "127.0.0.1:5300", cfg.TCPAddr)
	assert.Equal(t, 10, cfg.ResolverConfig.MaxHops)
	assert.Equal(t, 1024, cfg.ResolverConfig.CacheConfig.MaxBytes)
	assert.True(t, cfg.EnableCookies)
	assert.True(t, cfg.EnableRRL)
}
