package dnsmsg

import "encoding/binary"

// OptionCode identifies an EDNS(0) option (RFC 6891 §6.1.2).
type OptionCode uint16

const (
	OptCookie        OptionCode = 10 // RFC 7873
	OptPadding       OptionCode = 12 // RFC 7830
	OptTCPKeepalive  OptionCode = 11
)

// Option is one EDNS(0) OPT option (code + opaque data).
type Option struct {
	Code OptionCode
	Data []byte
}

// EDNS captures the pseudo-RR fields of RFC 6891's OPT record: the
// requestor's UDP payload size, extended RCODE/version, the DO bit
// (RFC 3225 DNSSEC OK), and any options such as COOKIE.
type EDNS struct {
	UDPSize      uint16
	ExtRcode     uint8
	Version      uint8
	DO           bool // DNSSEC OK
	Options      []Option
}

// Cookie returns the COOKIE option's raw bytes, if present.
func (e *EDNS) Cookie() ([]byte, bool) {
	for _, o := range e.Options {
		if o.Code == OptCookie {
			return o.Data, true
		}
	}
	return nil, false
}

// SetCookie replaces or appends a COOKIE option.
func (e *EDNS) SetCookie(data []byte) {
	for i, o := range e.Options {
		if o.Code == OptCookie {
			e.Options[i].Data = data
			return
		}
	}
	e.Options = append(e.Options, Option{Code: OptCookie, Data: data})
}

// toRR packages the EDNS pseudo-header back into its OPT RR form for
// encoding into the additional section.
func (e *EDNS) toRR() RR {
	ttl := uint32(e.ExtRcode)<<24 | uint32(e.Version)<<16
	if e.DO {
		ttl |= 0x8000
	}
	return RR{
		Name:  ".",
		Type:  TypeOPT,
		Class: Class(e.UDPSize),
		TTL:   ttl,
		Data:  optRDATA{opts: e.Options},
	}
}

// optRDATA adapts an EDNS option list to the RDATA interface so it can
// flow through the regular RR encode path.
type optRDATA struct{ opts []Option }

func (optRDATA) Type() Type { return TypeOPT }
func (o optRDATA) Encode(buf []byte, _ int) ([]byte, error) {
	for _, opt := range o.opts {
		buf = binary.BigEndian.AppendUint16(buf, uint16(opt.Code))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(opt.Data)))
		buf = append(buf, opt.Data...)
	}
	return buf, nil
}

// extractEDNS pulls the OPT pseudo-RR (if any) out of the additional
// section, decoding its options, and returns the remaining additional
// records alongside it.
func extractEDNS(additional []RR) ([]RR, *EDNS, error) {
	rest := make([]RR, 0, len(additional))
	var edns *EDNS

	for _, rr := range additional {
		if rr.Type != TypeOPT {
			rest = append(rest, rr)
			continue
		}

		e := &EDNS{
			UDPSize:  uint16(rr.Class),
			ExtRcode: uint8(rr.TTL >> 24),
			Version:  uint8(rr.TTL >> 16),
			DO:       rr.TTL&0x8000 != 0,
		}

		var raw []byte
		if r, ok := rr.Data.(RawRDATA); ok {
			raw = r.Raw
		}
		for i := 0; i+4 <= len(raw); {
			code := OptionCode(binary.BigEndian.Uint16(raw[i : i+2]))
			l := int(binary.BigEndian.Uint16(raw[i+2 : i+4]))
			i += 4
			if i+l > len(raw) {
				return nil, nil, ErrMessageTooShort
			}
			data := make([]byte, l)
			copy(data, raw[i:i+l])
			e.Options = append(e.Options, Option{Code: code, Data: data})
			i += l
		}
		edns = e
	}

	return rest, edns, nil
}
