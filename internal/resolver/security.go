package resolver

import (
	"crypto/rand"
	"strings"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

// apply0x20 randomizes the case of name per RFC draft "0x20" query
// encoding: an off-path attacker that spoofs a response must also guess
// which case pattern the query used, shrinking the spoof window.
func apply0x20(name dnsmsg.Name) dnsmsg.Name {
	b := []byte(name)
	mask := make([]byte, len(b))
	if _, err := rand.Read(mask); err != nil {
		return name
	}
	for i, c := range b {
		if mask[i]&1 == 1 {
			if c >= 'a' && c <= 'z' {
				b[i] = c - ('a' - 'A')
			}
		} else if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return dnsmsg.Name(b)
}

// validate0x20Response checks that a response's question name matches the
// query's 0x20-mangled name byte-for-byte (case included), rejecting a
// response whose case pattern doesn't reflect the exact query sent.
func validate0x20Response(query, response dnsmsg.Name) bool {
	return string(query) == string(response)
}

// scrubResponse drops any Authority/Additional record that falls outside
// zone: a server answering for zone has no business asserting records for
// names elsewhere, and trusting it anyway is how cache poisoning via
// unsolicited glue happens.
func scrubResponse(msg *dnsmsg.Message, zone dnsmsg.Name) {
	msg.Authority = filterInBailiwick(msg.Authority, zone)
	msg.Additional = filterInBailiwick(msg.Additional, zone)
}

func filterInBailiwick(rrs []dnsmsg.RR, zone dnsmsg.Name) []dnsmsg.RR {
	out := rrs[:0]
	for _, rr := range rrs {
		if isInBailiwick(rr.Name, zone) {
			out = append(out, rr)
		}
	}
	return out
}

func isInBailiwick(name, zone dnsmsg.Name) bool {
	return name.Equal(zone) || name.IsSubdomainOf(zone)
}

// hardenGlue keeps only A/AAAA additional records whose owner name is one
// of delegatedZone's nameservers (nsNames). Owners outside delegatedZone
// are kept too, since every name is in-bailiwick for the root; Additional
// has already been limited to the queried zone by scrubResponse.
func hardenGlue(glue []dnsmsg.RR, delegatedZone dnsmsg.Name, nsNames []dnsmsg.Name) []dnsmsg.RR {
	claimed := make(map[string]struct{}, len(nsNames))
	for _, ns := range nsNames {
		claimed[string(ns.Canonical())] = struct{}{}
	}

	out := glue[:0]
	for _, rr := range glue {
		if rr.Type != dnsmsg.TypeA && rr.Type != dnsmsg.TypeAAAA {
			continue
		}
		if _, ok := claimed[string(rr.Name.Canonical())]; !ok {
			continue
		}
		if !isInBailiwick(rr.Name, delegatedZone) && !isInBailiwick(rr.Name, ".") {
			continue
		}
		out = append(out, rr)
	}
	return out
}

// minimumSuffix returns the ancestor of fullName exactly one label below
// currentZone (or fullName itself when it is at most one label below),
// used by query minimisation (RFC 7816) to ask each delegation
// hop about only the one label it needs to know.
func minimumSuffix(fullName, currentZone dnsmsg.Name) dnsmsg.Name {
	fullLabels := fullName.Labels()
	zoneLabels := currentZone.Labels()
	if len(fullLabels) <= len(zoneLabels)+1 {
		return fullName
	}
	want := len(zoneLabels) + 1
	return dnsmsg.Name(strings.Join(fullLabels[len(fullLabels)-want:], ".") + ".")
}
