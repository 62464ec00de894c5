package dnssec

import (
	"strings"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

// coversName reports whether an NSEC owner/next-domain pair's canonical
// open interval (owner, next) contains name, handling the zone-apex wraparound
// case where next is numerically "before" owner.
func coversName(owner, next, name dnsmsg.Name) bool {
	o, n, q := canonicalOrderKey(owner), canonicalOrderKey(next), canonicalOrderKey(name)
	if o < n {
		return o < q && q < n
	}
	// wraps around the end of the zone back to the apex
	return q > o || q < n
}

// canonicalOrderKey gives a comparable string for RFC 4034 §6.1 canonical
// DNS name ordering: compare label count from the right, then byte value.
// A straightforward approximation sufficient for denial-of-existence
// interval checks is to compare the reversed, lower-cased label sequence.
func canonicalOrderKey(n dnsmsg.Name) string {
	labels := n.Canonical().Labels()
	reversed := make([]string, len(labels))
	for i, l := range labels {
		reversed[len(labels)-1-i] = l
	}
	return strings.Join(reversed, "\x00")
}

// ProveNameError checks that the NSEC records in an authority section
// collectively prove qname does not exist: one NSEC must cover the
// interval containing qname (RFC 4035 §5.4).
func ProveNameError(nsecs []dnsmsg.RR, qname dnsmsg.Name) bool {
	for _, rr := range nsecs {
		nsec, ok := rr.Data.(dnsmsg.NSEC)
		if !ok {
			continue
		}
		if coversName(rr.Name, nsec.NextDomain, qname) {
			return true
		}
	}
	return false
}

// ProveNoData checks that an NSEC owned exactly by qname does not list
// qtype in its type bitmap, proving the name exists but the type does not
// (RFC 4035 §5.4).
func ProveNoData(nsecs []dnsmsg.RR, qname dnsmsg.Name, qtype dnsmsg.Type) bool {
	for _, rr := range nsecs {
		if !rr.Name.Equal(qname) {
			continue
		}
		nsec, ok := rr.Data.(dnsmsg.NSEC)
		if !ok {
			continue
		}
		for _, t := range nsec.Types {
			if t == qtype {
				return false
			}
		}
		return true
	}
	return false
}
