// Package resolver implements the iterative recursive resolution state
// machine: referral following, glue lookup, CNAME/DNAME alias chase, an
// optional query-minimisation mode, and a DNSSEC chain walk layered on top
// of internal/dnssec.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dnsscience/resolvd/internal/cache"
	"github.com/dnsscience/resolvd/internal/cookie"
	"github.com/dnsscience/resolvd/internal/dnsmsg"
	"github.com/dnsscience/resolvd/internal/dnssec"
	"github.com/dnsscience/resolvd/internal/metrics"
	"github.com/dnsscience/resolvd/internal/rrl"
	"github.com/dnsscience/resolvd/internal/transport"
)

var (
	ErrTooManyReferrals = errors.New("resolver: hop limit exceeded")
	ErrNoNameservers    = errors.New("resolver: no nameservers available")
	ErrAliasLoop        = errors.New("resolver: alias chain loop detected")
	ErrBadName          = errors.New("resolver: synthesized name is invalid")
	ErrBadSignature     = errors.New("resolver: DNSSEC validation failed (bogus)")
	ErrNoQuestion       = errors.New("resolver: no question in query")
	ErrWrongSource      = errors.New("resolver: response question does not match 0x20-encoded query")
)

// Root hints: the well-known root server addresses, used as the initial
// authority for every cold iterative lookup.
var rootServers = []string{
	"198.41.0.4:53",
	"199.9.14.201:53",
	"192.33.4.12:53",
	"199.7.91.13:53",
	"192.203.230.10:53",
	"192.5.5.241:53",
	"192.112.36.4:53",
	"198.97.190.53:53",
	"192.36.148.17:53",
	"192.58.128.30:53",
	"193.0.14.129:53",
	"199.7.83.42:53",
	"202.12.27.33:53",
}

const defaultMaxReferrals = 30

// Config holds resolver configuration.
type Config struct {
	CacheConfig cache.Config

	QueryTimeout time.Duration
	MaxHops      int

	EnableDNSSEC bool
	TrustAnchors []dnssec.TrustAnchor

	EnableMinimisation bool

	// RootHints overrides the built-in root server address list (the
	// resolver's "hints" config key). Empty uses the compiled-in rootServers.
	RootHints []string

	// MaxRetries bounds per-server UDP retry attempts (the resolver's
	// "max_retries" config key). Zero uses the transport package default.
	MaxRetries int

	EnableCookies bool
	CookieConfig  cookie.Config

	EnableRRL bool
	RRLConfig rrl.Config
}

// Resolver performs recursive resolution against the public DNS hierarchy.
type Resolver struct {
	cache     *cache.Cache
	cookies   *cookie.Manager
	limiter   *rrl.Limiter
	exchanger *transport.Exchanger

	cfg Config
}

// New constructs a Resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	if cfg.MaxHops == 0 {
		cfg.MaxHops = defaultMaxReferrals
	}

	r := &Resolver{
		cache:     cache.New(cfg.CacheConfig),
		exchanger: transport.New(transport.Config{DialTimeout: cfg.QueryTimeout, MaxRetries: cfg.MaxRetries}),
		cfg:       cfg,
	}

	if cfg.EnableCookies {
		var err error
		r.cookies, err = cookie.NewManager(cfg.CookieConfig)
		if err != nil {
			return nil, fmt.Errorf("init cookies: %w", err)
		}
	}
	if cfg.EnableRRL {
		r.limiter = rrl.NewLimiter(cfg.RRLConfig)
	}

	return r, nil
}

// Cookies returns the DNS cookie manager the server shell validates
// inbound EDNS COOKIE options against, or nil if cookies are disabled.
func (r *Resolver) Cookies() *cookie.Manager { return r.cookies }

// RateLimiter returns the response-rate limiter the server shell consults
// before writing each response, or nil if RRL is disabled.
func (r *Resolver) RateLimiter() *rrl.Limiter { return r.limiter }

// CacheStats exposes the resolver's cache hit/eviction counters for the
// admin/metrics plane.
func (r *Resolver) CacheStats() cache.Stats { return r.cache.GetStats() }

// Close releases background resources.
func (r *Resolver) Close() error {
	r.cache.Close()
	if r.limiter != nil {
		r.limiter.Close()
	}
	return nil
}

// Resolve answers q, consulting the cache first and falling back to
// iterative resolution from the root. The returned message has RA=1 and
// AD set iff the entire trust chain verified.
func (r *Resolver) Resolve(ctx context.Context, q dnsmsg.Question) (*dnsmsg.Message, error) {
	start := time.Now()
	rootDS := anchorsFor(r.cfg.TrustAnchors, ".")
	rc := newResolveContext(q, r.rootHints(), rootDS, r.cfg.EnableDNSSEC, r.cfg.EnableMinimisation)

	for {
		resp, hit, err := r.ask(ctx, rc)
		if err != nil {
			return nil, err
		}
		rc.lastResponse = resp
		rc.lastWasHit = hit

		r.trustStep(ctx, rc, resp, hit)

		outcome, final, err := r.classify(ctx, rc, resp)
		if err != nil {
			return nil, err
		}
		if final != nil {
			metrics.ReferralHops.Observe(float64(rc.hops))
			metrics.ObserveResolve(start, rc.chain)
			return r.synthesize(rc, final), nil
		}
		if outcome == outcomeContinue {
			continue
		}
	}
}

type classifyOutcome int

const (
	outcomeFinal classifyOutcome = iota
	outcomeContinue
)

// ask performs step 1: consult the cache, else query one server of the
// current authority.
func (r *Resolver) ask(ctx context.Context, rc *resolveContext) (*dnsmsg.Message, bool, error) {
	rc.hops++
	if rc.hops > r.cfg.MaxHops {
		return nil, false, ErrTooManyReferrals
	}

	key := cache.Key{Name: rc.current.Name, Type: rc.current.Type, Zone: rc.auth.zone}
	if wire, _, ok := r.cache.Get(key, rc.chain); ok {
		msg, err := dnsmsg.Decode(wire)
		if err == nil {
			return msg, true, nil
		}
	}

	if len(rc.auth.endpoints) == 0 {
		return nil, false, ErrNoNameservers
	}

	question := rc.current
	if rc.minimize {
		question = minimiseQuestion(rc)
	}
	encodedName := apply0x20(question.Name)
	question.Name = encodedName

	resp, err := r.exchanger.Exchange(ctx, question, rc.auth.endpoints, rc.chain)
	if err != nil {
		return nil, false, fmt.Errorf("query nameserver: %w", err)
	}
	if len(resp.Question) > 0 && !validate0x20Response(encodedName, resp.Question[0].Name) {
		return nil, false, ErrWrongSource
	}
	scrubResponse(resp, rc.auth.zone)
	return resp, false, nil
}

// minimiseQuestion implements §4.G's optional query-minimisation mode: ask
// for the minimum suffix under the current zone with type NS, reserving the
// real qtype for the terminal zone.
func minimiseQuestion(rc *resolveContext) dnsmsg.Question {
	minimised := minimumSuffix(rc.current.Name, rc.auth.zone)
	if minimised.Equal(rc.current.Name) {
		return rc.current
	}
	return dnsmsg.Question{Name: minimised, Type: dnsmsg.TypeNS, Class: rc.current.Class}
}

// trustStep is §4.G step 2: walk the DNSSEC chain forward one hop, or break
// it if anything along the way doesn't hold up.
func (r *Resolver) trustStep(ctx context.Context, rc *resolveContext, resp *dnsmsg.Message, hit bool) {
	if !rc.chain {
		return
	}
	if resp.Malformed {
		rc.breakChain()
		return
	}
	if hit && !resp.Header.AD {
		rc.breakChain()
		return
	}
	if resp.EDNS == nil || !resp.EDNS.DO {
		rc.breakChain()
		return
	}

	sigs := extractRRSIGs(resp.Answer)
	if len(sigs) == 0 {
		sigs = extractRRSIGs(resp.Authority)
	}
	if len(sigs) == 0 {
		rc.breakChain()
		return
	}

	keys, err := r.lookupDNSKeys(ctx, rc, rc.auth.zone)
	if err != nil || len(keys) == 0 {
		rc.breakChain()
		return
	}

	covered := stripRRSIGs(resp.Answer)
	for _, sig := range sigs {
		verdict := verifyAgainstAnchors(rc.current.Name, covered, []dnsmsg.RRSIG{sig}, keys, rc.ds, rc.auth.zone, rc.now)
		if verdict != dnssec.Secure {
			rc.breakChain()
			return
		}
	}
}

// verifyAgainstAnchors tries each DS in ds (rc.ds can hold several DS
// records of the "best" digest type from dnssec.SelectDS) and accepts the
// RRset as Secure if any of them anchors a valid signature, since a single
// signing key only ever matches one of them.
func verifyAgainstAnchors(name dnsmsg.Name, rrs []dnsmsg.RR, sigs []dnsmsg.RRSIG, keys []dnsmsg.DNSKEY, ds []dnsmsg.DS, zone dnsmsg.Name, now time.Time) dnssec.Verdict {
	if len(ds) == 0 {
		return dnssec.VerifyRRset(name, rrs, sigs, keys, nil, zone, now)
	}
	verdict := dnssec.Bogus
	for i := range ds {
		verdict = dnssec.VerifyRRset(name, rrs, sigs, keys, &ds[i], zone, now)
		if verdict == dnssec.Secure {
			return dnssec.Secure
		}
	}
	return verdict
}

// lookupDNSKeys resolves the DNSKEY RRset for zone via the same cache the
// rest of resolution uses, issuing a fresh sub-lookup on a cache miss.
func (r *Resolver) lookupDNSKeys(ctx context.Context, rc *resolveContext, zone dnsmsg.Name) ([]dnsmsg.DNSKEY, error) {
	key := cache.Key{Name: zone, Type: dnsmsg.TypeDNSKEY, Zone: zone}
	if wire, _, ok := r.cache.Get(key, false); ok {
		if msg, err := dnsmsg.Decode(wire); err == nil {
			return extractDNSKEYs(msg.Answer), nil
		}
	}

	resp, err := r.exchanger.Exchange(ctx, dnsmsg.Question{Name: zone, Type: dnsmsg.TypeDNSKEY, Class: dnsmsg.ClassIN}, rc.auth.endpoints, true)
	if err != nil {
		return nil, err
	}
	return extractDNSKEYs(resp.Answer), nil
}

func extractDNSKEYs(rrs []dnsmsg.RR) []dnsmsg.DNSKEY {
	var out []dnsmsg.DNSKEY
	for _, rr := range rrs {
		if k, ok := rr.Data.(dnsmsg.DNSKEY); ok {
			out = append(out, k)
		}
	}
	return out
}

func extractRRSIGs(rrs []dnsmsg.RR) []dnsmsg.RRSIG {
	var out []dnsmsg.RRSIG
	for _, rr := range rrs {
		if s, ok := rr.Data.(dnsmsg.RRSIG); ok {
			out = append(out, s)
		}
	}
	return out
}

func stripRRSIGs(rrs []dnsmsg.RR) []dnsmsg.RR {
	var out []dnsmsg.RR
	for _, rr := range rrs {
		if rr.Type != dnsmsg.TypeRRSIG {
			out = append(out, rr)
		}
	}
	return out
}

// classify is §4.G step 3: decide what kind of response this is and either
// return a final answer or hand off to alias/delegation handling.
func (r *Resolver) classify(ctx context.Context, rc *resolveContext, resp *dnsmsg.Message) (classifyOutcome, *dnsmsg.Message, error) {
	if resp.Header.Rcode == dnsmsg.RcodeNameError {
		if rc.chain {
			if !proveNameError(resp.Authority, rc.current.Name, rc.auth.zone) {
				rc.breakChain()
			}
		}
		r.insertCache(rc, resp)
		return outcomeFinal, resp, nil
	}

	if len(resp.Answer) > 0 {
		final, cont, err := r.handleAlias(ctx, rc, resp)
		if err != nil {
			return outcomeFinal, nil, err
		}
		if final != nil {
			return outcomeFinal, final, nil
		}
		if cont {
			return outcomeContinue, nil, nil
		}
	}

	if hasReferral(resp, rc.current.Name) {
		if err := r.handleDelegation(ctx, rc, resp); err != nil {
			return outcomeFinal, nil, err
		}
		return outcomeContinue, nil, nil
	}

	if rc.chain {
		if !proveNoData(resp.Authority, rc.current.Name, rc.current.Type) {
			rc.breakChain()
		}
	}
	r.insertCache(rc, resp)
	return outcomeFinal, resp, nil
}

func hasReferral(resp *dnsmsg.Message, qname dnsmsg.Name) bool {
	sawNS := false
	for _, rr := range resp.Authority {
		if rr.Type != dnsmsg.TypeNS {
			continue
		}
		sawNS = true
		if rr.Name.Equal(qname) {
			return false // NS for the queried name itself, not a referral
		}
	}
	return sawNS
}

func proveNameError(authority []dnsmsg.RR, qname, zone dnsmsg.Name) bool {
	var nsecs, nsec3s []dnsmsg.RR
	for _, rr := range authority {
		switch rr.Type {
		case dnsmsg.TypeNSEC:
			nsecs = append(nsecs, rr)
		case dnsmsg.TypeNSEC3:
			nsec3s = append(nsec3s, rr)
		}
	}
	if len(nsecs) > 0 {
		return dnssec.ProveNameError(nsecs, qname)
	}
	if len(nsec3s) > 0 {
		return dnssec.ProveNameErrorNSEC3(nsec3s, qname, zone)
	}
	return false
}

func proveNoData(authority []dnsmsg.RR, qname dnsmsg.Name, qtype dnsmsg.Type) bool {
	var nsecs []dnsmsg.RR
	for _, rr := range authority {
		if rr.Type == dnsmsg.TypeNSEC {
			nsecs = append(nsecs, rr)
		}
	}
	if len(nsecs) == 0 {
		return false
	}
	return dnssec.ProveNoData(nsecs, qname, qtype)
}

// handleAlias is §4.G step 4.
func (r *Resolver) handleAlias(ctx context.Context, rc *resolveContext, resp *dnsmsg.Message) (final *dnsmsg.Message, cont bool, err error) {
	answer := stripRRSIGs(resp.Answer)

	var cnames []dnsmsg.RR
	for _, rr := range answer {
		if rr.Type == dnsmsg.TypeCNAME {
			cnames = append(cnames, rr)
		}
	}

	var target dnsmsg.Name
	switch {
	case rc.current.Type != dnsmsg.TypeCNAME && len(cnames) == 1 && cnames[0].Name.Equal(rc.current.Name):
		target = cnames[0].Data.(dnsmsg.NameRDATA).Target
		rc.chased = append(rc.chased, withSig(cnames[0], resp.Answer)...)
	case rc.current.Type != dnsmsg.TypeCNAME && len(cnames) > 1:
		target = collapseCNAMEChain(cnames, rc.current.Name)
		for _, c := range cnames {
			rc.chased = append(rc.chased, withSig(c, resp.Answer)...)
		}
	case rc.current.Type != dnsmsg.TypeDNAME:
		if dname, ok := findDNAME(answer, rc.current.Name); ok {
			newName, synthErr := synthesizeDNAME(rc.current.Name, dname)
			if synthErr != nil {
				return nil, false, ErrBadName
			}
			target = newName
			rc.chased = append(rc.chased, withSig(dname, resp.Answer)...)
		}
	}

	if target == "" {
		r.insertCache(rc, resp)
		return resp, false, nil
	}

	if !rc.markAlias(target) {
		return nil, false, ErrAliasLoop
	}

	rc.current = dnsmsg.Question{Name: target, Type: rc.original.Type, Class: rc.original.Class}
	rc.auth = authority{zone: ".", endpoints: append([]string{}, r.rootHints()...)}
	rc.ds = anchorsFor(r.cfg.TrustAnchors, ".")
	rc.chain = r.cfg.EnableDNSSEC
	rc.hops++
	return nil, true, nil
}

func withSig(rr dnsmsg.RR, all []dnsmsg.RR) []dnsmsg.RR {
	out := []dnsmsg.RR{rr}
	for _, sig := range all {
		if s, ok := sig.Data.(dnsmsg.RRSIG); ok && s.TypeCovered == rr.Type && sig.Name.Equal(rr.Name) {
			out = append(out, sig)
		}
	}
	return out
}

func findDNAME(rrs []dnsmsg.RR, qname dnsmsg.Name) (dnsmsg.RR, bool) {
	for _, rr := range rrs {
		if rr.Type == dnsmsg.TypeDNAME && qname.IsSubdomainOf(rr.Name) {
			return rr, true
		}
	}
	return dnsmsg.RR{}, false
}

func synthesizeDNAME(qname dnsmsg.Name, dname dnsmsg.RR) (dnsmsg.Name, error) {
	target := dname.Data.(dnsmsg.NameRDATA).Target
	ownerLabels := len(dname.Name.Labels())
	qLabels := qname.Labels()
	if len(qLabels) < ownerLabels {
		return "", fmt.Errorf("owner longer than qname")
	}
	prefix := qLabels[:len(qLabels)-ownerLabels]
	synthesized := strings.Join(append(prefix, strings.TrimSuffix(string(target.Canonical()), ".")), ".")
	if len(synthesized) > 255 {
		return "", dnsmsg.ErrNameTooLong
	}
	return dnsmsg.Name(synthesized + "."), nil
}

func collapseCNAMEChain(cnames []dnsmsg.RR, start dnsmsg.Name) dnsmsg.Name {
	byOwner := make(map[string]dnsmsg.RR, len(cnames))
	for _, c := range cnames {
		byOwner[string(c.Name.Canonical())] = c
	}
	cur := start
	seen := map[string]bool{}
	for {
		key := string(cur.Canonical())
		if seen[key] {
			return cur
		}
		seen[key] = true
		rr, ok := byOwner[key]
		if !ok {
			return cur
		}
		cur = rr.Data.(dnsmsg.NameRDATA).Target
	}
}

// handleDelegation is §4.G step 5.
func (r *Resolver) handleDelegation(ctx context.Context, rc *resolveContext, resp *dnsmsg.Message) error {
	var nsNames []dnsmsg.Name
	var newZone dnsmsg.Name
	for _, rr := range resp.Authority {
		if rr.Type != dnsmsg.TypeNS {
			continue
		}
		newZone = rr.Name
		nsNames = append(nsNames, rr.Data.(dnsmsg.NameRDATA).Target)
	}
	if len(nsNames) == 0 {
		return ErrNoNameservers
	}

	hardened := hardenGlue(resp.Additional, newZone, nsNames)

	glue := make(map[string][]string) // lower(NS owner/target name) -> endpoints
	for _, rr := range hardened {
		switch rr.Type {
		case dnsmsg.TypeA:
			addr := rr.Data.(dnsmsg.A).Addr.String()
			glue[string(rr.Name.Canonical())] = append(glue[string(rr.Name.Canonical())], net.JoinHostPort(addr, "53"))
		case dnsmsg.TypeAAAA:
			addr := rr.Data.(dnsmsg.AAAA).Addr.String()
			glue[string(rr.Name.Canonical())] = append(glue[string(rr.Name.Canonical())], net.JoinHostPort(addr, "53"))
		}
	}

	for _, ns := range nsNames {
		key := string(ns.Canonical())
		if _, ok := glue[key]; ok {
			continue
		}
		ips, err := r.resolveGlue(ctx, rc, ns)
		if err == nil && len(ips) > 0 {
			glue[key] = ips
		}
	}

	var chosenEndpoints []string
	var chosenNS dnsmsg.Name
	for _, ns := range nsNames {
		if eps, ok := glue[string(ns.Canonical())]; ok && len(eps) > 0 {
			chosenEndpoints = eps
			chosenNS = ns
			break
		}
	}
	if len(chosenEndpoints) == 0 {
		return ErrNoNameservers
	}

	if rc.chain {
		ds := extractDS(resp.Authority)
		if len(ds) == 0 {
			rc.breakChain()
		} else if !verifyNSEC3Delegation(resp.Authority, newZone) {
			rc.breakChain()
		} else {
			rc.ds = ds
		}
	}

	rc.auth = authority{zone: newZone, nsName: chosenNS, endpoints: chosenEndpoints}
	rc.zones = append(rc.zones, newZone)
	return nil
}

func extractDS(rrs []dnsmsg.RR) []dnsmsg.DS {
	var rrOnly []dnsmsg.RR
	for _, rr := range rrs {
		if rr.Type == dnsmsg.TypeDS {
			rrOnly = append(rrOnly, rr)
		}
	}
	return dnssec.SelectDS(rrOnly)
}

func verifyNSEC3Delegation(authority []dnsmsg.RR, zone dnsmsg.Name) bool {
	var nsec3s []dnsmsg.RR
	for _, rr := range authority {
		if rr.Type == dnsmsg.TypeNSEC3 {
			nsec3s = append(nsec3s, rr)
		}
	}
	if len(nsec3s) == 0 {
		return true // no NSEC3 present: nothing to verify, caller checked DS already
	}
	for _, rr := range nsec3s {
		n3 := rr.Data.(dnsmsg.NSEC3)
		hasNS, hasDS, hasSOA := false, false, false
		for _, t := range n3.Types {
			switch t {
			case dnsmsg.TypeNS:
				hasNS = true
			case dnsmsg.TypeDS:
				hasDS = true
			case dnsmsg.TypeSOA:
				hasSOA = true
			}
		}
		if hasNS && !hasDS && !hasSOA {
			return true
		}
	}
	return false
}

// resolveGlue performs a sub-lookup for an NS name's A/AAAA records using
// this same resolver, rooted at the same trust anchors.
func (r *Resolver) resolveGlue(ctx context.Context, rc *resolveContext, ns dnsmsg.Name) ([]string, error) {
	var endpoints []string
	for _, qtype := range []dnsmsg.Type{dnsmsg.TypeA, dnsmsg.TypeAAAA} {
		resp, err := r.Resolve(ctx, dnsmsg.Question{Name: ns, Type: qtype, Class: dnsmsg.ClassIN})
		if err != nil {
			continue
		}
		for _, rr := range resp.Answer {
			switch v := rr.Data.(type) {
			case dnsmsg.A:
				endpoints = append(endpoints, net.JoinHostPort(v.Addr.String(), "53"))
			case dnsmsg.AAAA:
				endpoints = append(endpoints, net.JoinHostPort(v.Addr.String(), "53"))
			}
		}
	}
	if len(endpoints) == 0 {
		return nil, ErrNoNameservers
	}
	return endpoints, nil
}

func (r *Resolver) insertCache(rc *resolveContext, resp *dnsmsg.Message) {
	if resp.Malformed {
		return
	}
	ttl := minTTL(resp)
	if ttl == 0 {
		return
	}
	wire, err := resp.Encode()
	if err != nil {
		return
	}
	key := cache.Key{Name: rc.current.Name, Type: rc.current.Type, Zone: rc.auth.zone}
	r.cache.Set(key, wire, ttl, false, rc.chain, false)
}

// minTTL is msg.min_ttl(): the minimum TTL across every record in the
// message (Answer, Authority, and Additional), ignoring zero TTLs. Returns
// 0 when no record has a positive TTL, which insertCache treats as
// uncacheable rather than falling back to a fabricated floor.
func minTTL(msg *dnsmsg.Message) uint32 {
	var min uint32
	found := false
	scan := func(rrs []dnsmsg.RR) {
		for _, rr := range rrs {
			if rr.TTL == 0 {
				continue
			}
			if !found || rr.TTL < min {
				min = rr.TTL
				found = true
			}
		}
	}
	scan(msg.Answer)
	scan(msg.Authority)
	scan(msg.Additional)
	return min
}

// synthesize builds the final response per §4.G's "Final synthesis": the
// original question, chased aliases prepended to the terminal answer, and
// RA/AD set according to the DNSSEC chain state.
func (r *Resolver) synthesize(rc *resolveContext, resp *dnsmsg.Message) *dnsmsg.Message {
	out := &dnsmsg.Message{
		Header: dnsmsg.Header{
			QR:     true,
			Opcode: dnsmsg.OpcodeQuery,
			Rcode:  resp.Header.Rcode,
			RA:     true,
			AD:     rc.chain,
		},
		Question:   []dnsmsg.Question{rc.original},
		Answer:     append(append([]dnsmsg.RR{}, rc.chased...), resp.Answer...),
		Authority:  resp.Authority,
		Additional: resp.Additional,
	}
	return out
}

// rootHints returns the configured root hint list, falling back to the
// compiled-in well-known root server addresses.
func (r *Resolver) rootHints() []string {
	if len(r.cfg.RootHints) > 0 {
		return r.cfg.RootHints
	}
	return rootServers
}

func anchorsFor(anchors []dnssec.TrustAnchor, zone dnsmsg.Name) []dnsmsg.DS {
	var out []dnsmsg.DS
	for _, a := range anchors {
		if a.Zone.Equal(zone) {
			out = append(out, a.DS)
		}
	}
	return out
}
