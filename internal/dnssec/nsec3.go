package dnssec

import (
	"crypto/sha1"
	"encoding/base32"
	"strings"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

// HashNSEC3 computes the RFC 5155 §5 iterated-hash owner name for qname
// under the given NSEC3 parameters, returning the unpadded base32hex
// encoding used as the hashed owner label.
func HashNSEC3(qname dnsmsg.Name, algorithm uint8, iterations uint16, salt []byte) string {
	if algorithm != 1 { // SHA-1 is the only RFC 5155 hash algorithm defined
		return ""
	}

	h := canonicalWireName(qname)
	for i := 0; i <= int(iterations); i++ {
		sum := sha1.Sum(append(h, salt...))
		h = sum[:]
	}
	return strings.ToUpper(base32.HexEncoding.WithPadding(base32.NoPadding).EncodeToString(h))
}

func canonicalWireName(n dnsmsg.Name) []byte {
	var buf []byte
	for _, label := range n.Canonical().Labels() {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	return append(buf, 0)
}

// ProveNameErrorNSEC3 checks that the closest-encloser and next-closer
// NSEC3 covering records in an authority section prove qname does not
// exist, per RFC 5155 §8.4: there must be an NSEC3 RR whose owner hash
// equals the hash of some ancestor of qname (the closest encloser),
// another whose interval covers the hash of the next-closer name, and one
// whose interval covers the hash of the wildcard at the closest encloser.
func ProveNameErrorNSEC3(nsec3s []dnsmsg.RR, qname dnsmsg.Name, zone dnsmsg.Name) bool {
	labels := qname.Labels()
	zoneLabels := len(zone.Labels())

	for i := 0; i <= len(labels)-zoneLabels; i++ {
		candidate := dnsmsg.Name(strings.Join(labels[i:], ".") + ".")
		if !candidateCoveredOrMatched(nsec3s, candidate) {
			continue
		}
		// A covering (not matching) record for the immediate child of the
		// candidate closest encloser completes the proof.
		if i == 0 {
			continue
		}
		next := dnsmsg.Name(strings.Join(labels[i-1:], ".") + ".")
		wildcard := dnsmsg.Name("*." + string(candidate))
		if candidate == "." {
			wildcard = "*."
		}
		if nsec3Covers(nsec3s, next) && nsec3Covers(nsec3s, wildcard) {
			return true
		}
	}
	return false
}

func candidateCoveredOrMatched(nsec3s []dnsmsg.RR, name dnsmsg.Name) bool {
	for _, rr := range nsec3s {
		n3, ok := rr.Data.(dnsmsg.NSEC3)
		if !ok {
			continue
		}
		owner := ownerHashLabel(rr.Name)
		hash := HashNSEC3(name, n3.HashAlgorithm, n3.Iterations, n3.Salt)
		if owner == hash {
			return true
		}
	}
	return false
}

func nsec3Covers(nsec3s []dnsmsg.RR, name dnsmsg.Name) bool {
	for _, rr := range nsec3s {
		n3, ok := rr.Data.(dnsmsg.NSEC3)
		if !ok {
			continue
		}
		owner := ownerHashLabel(rr.Name)
		next := encodeBase32Hex(n3.NextHashed)
		hash := HashNSEC3(name, n3.HashAlgorithm, n3.Iterations, n3.Salt)
		if hashInInterval(owner, next, hash) {
			return true
		}
	}
	return false
}

func hashInInterval(owner, next, target string) bool {
	if owner < next {
		return owner < target && target < next
	}
	return target > owner || target < next
}

func ownerHashLabel(owner dnsmsg.Name) string {
	labels := owner.Labels()
	if len(labels) == 0 {
		return ""
	}
	return strings.ToUpper(labels[0])
}

func encodeBase32Hex(b []byte) string {
	return strings.ToUpper(base32.HexEncoding.WithPadding(base32.NoPadding).EncodeToString(b))
}
