package dnssec

import (
	"time"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

// TrustAnchor is a configured DS record for a zone the resolver trusts as
// a root of validation (typically the root zone's KSK digest).
type TrustAnchor struct {
	Zone dnsmsg.Name
	DS   dnsmsg.DS
}

// VerifyRRset validates rrs (all sharing name/qtype) against the RRSIGs
// present in sigs using the zone's DNSKEY set, themselves anchored by ds
// (nil for the root of trust, which the caller must have already matched
// against a configured TrustAnchor). Returns Secure if any signature by a
// key in keys verifies and that key's digest matches ds (when ds != nil),
// Bogus if a signature is present but fails to verify or match the anchor,
// and Insecure if no RRSIG covers this RRset at all.
func VerifyRRset(name dnsmsg.Name, rrs []dnsmsg.RR, sigs []dnsmsg.RRSIG, keys []dnsmsg.DNSKEY, ds *dnsmsg.DS, zone dnsmsg.Name, now time.Time) Verdict {
	if len(sigs) == 0 {
		return Insecure
	}

	var anchoredKeys []dnsmsg.DNSKEY
	if ds != nil {
		for _, k := range keys {
			if DigestMatches(*ds, zone, k) {
				anchoredKeys = append(anchoredKeys, k)
			}
		}
		if len(anchoredKeys) == 0 {
			return Bogus
		}
	} else {
		anchoredKeys = keys
	}

	for _, sig := range sigs {
		for _, key := range anchoredKeys {
			if err := VerifyRRSIG(sig, key, name, rrs, now); err == nil {
				return Secure
			}
		}
	}
	return Bogus
}

// SelectDS picks the DS record(s) in dsRRs whose digest type resolvd
// prefers (strongest available), per RFC 4035's guidance to validators to
// pick one algorithm per key rather than requiring all to match.
func SelectDS(dsRRs []dnsmsg.RR) []dnsmsg.DS {
	var best []dnsmsg.DS
	bestType := uint8(0)
	for _, rr := range dsRRs {
		ds, ok := rr.Data.(dnsmsg.DS)
		if !ok {
			continue
		}
		if ds.DigestType > bestType {
			bestType = ds.DigestType
			best = []dnsmsg.DS{ds}
		} else if ds.DigestType == bestType {
			best = append(best, ds)
		}
	}
	return best
}
