package resolver

import (
	"time"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

// authority is the current set of candidate servers the state machine is
// querying: the zone they're authoritative for, the NS name that
// advertised them, and their resolved endpoints.
type authority struct {
	zone      dnsmsg.Name
	nsName    dnsmsg.Name
	endpoints []string // host:port
}

// resolveContext is the per-query mutable state threaded through every
// iteration of the recursive state machine (spec'd data model's "Resolve
// context"): the original and current question, the authority currently
// being queried, alias/loop tracking, and the accumulating DNSSEC chain.
type resolveContext struct {
	original dnsmsg.Question
	current  dnsmsg.Question

	auth authority

	aliases map[string]struct{} // canonical names already chased, loop guard
	zones   []dnsmsg.Name        // zones traversed so far, root first

	ds    []dnsmsg.DS // accumulated trust anchor for the current zone
	chain bool        // DNSSEC chain still intact

	hops int

	chased []dnsmsg.RR // CNAME/DNAME records accumulated across alias chases

	lastResponse *dnsmsg.Message
	lastWasHit   bool

	minimize bool
	now      time.Time
}

func newResolveContext(q dnsmsg.Question, roots []string, ds []dnsmsg.DS, validateDNSSEC, minimize bool) *resolveContext {
	return &resolveContext{
		original: q,
		current:  q,
		auth:     authority{zone: ".", endpoints: append([]string{}, roots...)},
		aliases:  make(map[string]struct{}),
		zones:    []dnsmsg.Name{"."},
		ds:       ds,
		chain:    validateDNSSEC,
		minimize: minimize,
		now:      time.Now(),
	}
}

func (c *resolveContext) breakChain() {
	c.chain = false
	c.ds = nil
}

func (c *resolveContext) markAlias(target dnsmsg.Name) bool {
	key := string(target.Canonical())
	if _, seen := c.aliases[key]; seen {
		return false
	}
	c.aliases[key] = struct{}{}
	return true
}
