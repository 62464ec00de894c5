// Package config loads resolvd's YAML configuration: the resolver knobs
// of spec.md §6 (inet6, tcp, edns, dnssec, minimize, max_referrals,
// max_retries, timeout_ms, cache_size, hints, anchors) plus the ambient
// listener/cookie/RRL settings the server shell needs.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnsscience/resolvd/internal/cache"
	"github.com/dnsscience/resolvd/internal/cookie"
	"github.com/dnsscience/resolvd/internal/dnsmsg"
	"github.com/dnsscience/resolvd/internal/dnssec"
	"github.com/dnsscience/resolvd/internal/resolver"
	"github.com/dnsscience/resolvd/internal/rrl"
	"github.com/dnsscience/resolvd/internal/server"
)

// Anchor is a YAML-friendly trust anchor entry: a DS record for a zone,
// digest given as a hex string.
type Anchor struct {
	Zone       string `yaml:"zone"`
	KeyTag     uint16 `yaml:"key_tag"`
	Algorithm  uint8  `yaml:"algorithm"`
	DigestType uint8  `yaml:"digest_type"`
	Digest     string `yaml:"digest"`
}

// File is the YAML configuration structure for resolvd.
type File struct {
	UDPAddr string `yaml:"udp_addr"`
	TCPAddr string `yaml:"tcp_addr"`

	Inet6     bool `yaml:"inet6"`
	TCP       bool `yaml:"tcp"`
	EDNS      bool `yaml:"edns"`
	DNSSEC    bool `yaml:"dnssec"`
	Minimize  bool `yaml:"minimize"`

	MaxReferrals uint32 `yaml:"max_referrals"`
	MaxRetries   uint32 `yaml:"max_retries"`
	TimeoutMS    uint32 `yaml:"timeout_ms"`
	CacheSize    uint64 `yaml:"cache_size"`

	Hints   []string `yaml:"hints"`
	Anchors []Anchor `yaml:"anchors"`

	Cookies bool `yaml:"cookies"`
	RRL     bool `yaml:"rrl"`

	ACL struct {
		Enabled bool     `yaml:"enabled"`
		Allow   []string `yaml:"allow"`
		Deny    []string `yaml:"deny"`
	} `yaml:"acl"`

	AdminListen string   `yaml:"admin_listen"`
	APIKeys     []string `yaml:"api_keys"`
}

// Default returns the built-in defaults from spec.md §6.
func Default() File {
	return File{
		UDPAddr:      ":53",
		TCPAddr:      ":53",
		TCP:          true,
		EDNS:         true,
		DNSSEC:       false,
		Minimize:     false,
		MaxReferrals: 30,
		MaxRetries:   5,
		TimeoutMS:    2000,
		CacheSize:    5 * 1024 * 1024,
		Cookies:      true,
		RRL:          true,
	}
}

// Load reads and parses a YAML config file, applying defaults for any
// field left unset.
func Load(path string) (File, error) {
	f := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if f.MaxReferrals == 0 {
		f.MaxReferrals = 30
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = 5
	}
	if f.TimeoutMS == 0 {
		f.TimeoutMS = 2000
	}
	if f.CacheSize == 0 {
		f.CacheSize = 5 * 1024 * 1024
	}
	return f, nil
}

// TrustAnchors decodes the configured DS anchors into dnssec.TrustAnchor
// values, rejecting malformed hex digests.
func (f File) TrustAnchors() ([]dnssec.TrustAnchor, error) {
	out := make([]dnssec.TrustAnchor, 0, len(f.Anchors))
	for _, a := range f.Anchors {
		digest, err := hex.DecodeString(a.Digest)
		if err != nil {
			return nil, fmt.Errorf("config: anchor %s: bad digest: %w", a.Zone, err)
		}
		zone := dnsmsg.Name(a.Zone)
		out = append(out, dnssec.TrustAnchor{
			Zone: zone,
			DS: dnsmsg.DS{
				KeyTag:     a.KeyTag,
				Algorithm:  a.Algorithm,
				DigestType: a.DigestType,
				Digest:     digest,
			},
		})
	}
	return out, nil
}

// ServerConfig builds a server.Config from the loaded file, layering the
// spec.md §6 resolver knobs onto server.DefaultConfig's ambient settings.
func (f File) ServerConfig() (server.Config, error) {
	cfg := server.DefaultConfig()

	if f.UDPAddr != "" {
		cfg.UDPAddr = f.UDPAddr
	}
	if f.TCPAddr != "" {
		cfg.TCPAddr = f.TCPAddr
	}

	anchors, err := f.TrustAnchors()
	if err != nil {
		return cfg, err
	}

	cfg.ResolverConfig = resolver.Config{
		CacheConfig:        cache.Config{MaxBytes: int(f.CacheSize)},
		QueryTimeout:       time.Duration(f.TimeoutMS) * time.Millisecond,
		MaxHops:            int(f.MaxReferrals),
		MaxRetries:         int(f.MaxRetries),
		EnableDNSSEC:       f.DNSSEC,
		TrustAnchors:       anchors,
		EnableMinimisation: f.Minimize,
		RootHints:          f.Hints,
	}

	cfg.EnableCookies = f.Cookies
	cfg.CookieConfig = cookie.Config{Enabled: f.Cookies}

	cfg.EnableRRL = f.RRL
	cfg.RRLConfig = rrl.DefaultConfig()

	cfg.EnableACL = f.ACL.Enabled
	cfg.AllowedNets = f.ACL.Allow
	cfg.DeniedNets = f.ACL.Deny

	return cfg, nil
}
