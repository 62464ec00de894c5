package dnsmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrRRsetTooLarge indicates an RRset exceeds size limits.
	ErrRRsetTooLarge = errors.New("dnsmsg: rrset too large")

	// ErrTooManyRRs indicates too many records in a section.
	ErrTooManyRRs = errors.New("dnsmsg: too many resource records")
)

const (
	// Section-size defenses, the same Unbound-derived values the teacher's
	// packet parser used.
	maxRRsPerSection = 100
	maxRRsetSize     = 32 * 1024
	maxMessageSize   = 65535
	headerSize       = 12
)

// Opcode is a DNS message opcode (RFC 1035 §4.1.1).
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
	OpcodeNotify Opcode = 4
	OpcodeUpdate Opcode = 5
)

// Rcode is a DNS response code.
type Rcode uint8

const (
	RcodeSuccess        Rcode = 0
	RcodeFormatError    Rcode = 1
	RcodeServerFailure  Rcode = 2
	RcodeNameError      Rcode = 3
	RcodeNotImplemented Rcode = 4
	RcodeYXDomain       Rcode = 6
	RcodeRefused        Rcode = 5
	RcodeBadCookie      Rcode = 23
)

// Type is a DNS RR or QTYPE value.
type Type uint16

const (
	TypeA          Type = 1
	TypeNS         Type = 2
	TypeCNAME      Type = 5
	TypeSOA        Type = 6
	TypePTR        Type = 12
	TypeMX         Type = 15
	TypeTXT        Type = 16
	TypeAAAA       Type = 28
	TypeSRV        Type = 33
	TypeNAPTR      Type = 35
	TypeDNAME      Type = 39
	TypeOPT        Type = 41
	TypeDS         Type = 43
	TypeSSHFP      Type = 44
	TypeRRSIG      Type = 46
	TypeNSEC       Type = 47
	TypeDNSKEY     Type = 48
	TypeNSEC3      Type = 50
	TypeNSEC3PARAM Type = 51
	TypeTLSA       Type = 52
	TypeSMIMEA     Type = 53
	TypeCAA        Type = 257
	TypeAXFR       Type = 252
	TypeANY        Type = 255
)

// Class is a DNS CLASS value.
type Class uint16

const (
	ClassIN Class = 1
	ClassANY Class = 255
)

// Header is the fixed 12-byte DNS message header.
type Header struct {
	ID      uint16
	QR      bool
	Opcode  Opcode
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	AD      bool // Authenticated Data (RFC 4035 §3.1.6)
	CD      bool // Checking Disabled
	Z       uint8
	Rcode   Rcode
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is one entry of the question section.
type Question struct {
	Name  Name
	Type  Type
	Class Class
}

// RR is one resource record: a fixed envelope plus typed RDATA.
type RR struct {
	Name  Name
	Type  Type
	Class Class
	TTL   uint32
	Data  RDATA

	// ttlOffset records where this RR's TTL field began in the source
	// buffer; TTLOffsets collects these so the cache can decay TTLs in
	// place on the stored wire bytes without re-encoding.
	ttlOffset int
}

// Message is a fully decoded DNS message.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []RR
	Authority  []RR
	Additional []RR

	// EDNS, if present, is lifted out of Additional's pseudo-RR.
	EDNS *EDNS

	// Malformed is set when decoding stopped early because the wire data
	// ran out or a record failed to parse mid-section. The sections
	// populated before the failure are kept; nothing past the failure
	// point is. Callers must not cache a malformed message or use it to
	// extend a DNSSEC chain of trust.
	Malformed bool

	// Security/diagnostic metadata.
	CompressedSize int
	DecompressOps  int
}

// Decode parses a complete DNS message from wire bytes.
func Decode(msg []byte) (*Message, error) {
	if len(msg) < headerSize {
		return nil, ErrMessageTooShort
	}
	if len(msg) > maxMessageSize {
		return nil, fmt.Errorf("dnsmsg: message exceeds %d bytes", maxMessageSize)
	}

	m := &Message{}
	if err := decodeHeader(msg, &m.Header); err != nil {
		return nil, fmt.Errorf("dnsmsg: decode header: %w", err)
	}

	nr := &nameReader{msg: msg}
	offset := headerSize

	m.Question = make([]Question, 0, m.Header.QDCount)
	for i := 0; i < int(m.Header.QDCount); i++ {
		q, next, err := decodeQuestion(nr, msg, offset)
		if err != nil {
			if !isTruncation(err) {
				return nil, fmt.Errorf("dnsmsg: decode question: %w", err)
			}
			m.Malformed = true
			m.CompressedSize = len(msg)
			m.DecompressOps = nr.decompressionOps
			return m, nil
		}
		m.Question = append(m.Question, q)
		offset = next
	}

	var ok bool
	var err error
	m.Answer, offset, ok, err = decodeRRSection(nr, msg, offset, int(m.Header.ANCount))
	if err != nil {
		return nil, fmt.Errorf("dnsmsg: decode answer: %w", err)
	}
	if !ok {
		m.Malformed = true
		m.CompressedSize = len(msg)
		m.DecompressOps = nr.decompressionOps
		return m, nil
	}
	m.Authority, offset, ok, err = decodeRRSection(nr, msg, offset, int(m.Header.NSCount))
	if err != nil {
		return nil, fmt.Errorf("dnsmsg: decode authority: %w", err)
	}
	if !ok {
		m.Malformed = true
		m.CompressedSize = len(msg)
		m.DecompressOps = nr.decompressionOps
		return m, nil
	}
	m.Additional, offset, ok, err = decodeRRSection(nr, msg, offset, int(m.Header.ARCount))
	if err != nil {
		return nil, fmt.Errorf("dnsmsg: decode additional: %w", err)
	}
	if !ok {
		m.Malformed = true
		m.CompressedSize = len(msg)
		m.DecompressOps = nr.decompressionOps
		return m, nil
	}

	m.Additional, m.EDNS, err = extractEDNS(m.Additional)
	if err != nil {
		return nil, fmt.Errorf("dnsmsg: decode edns: %w", err)
	}

	m.CompressedSize = len(msg)
	m.DecompressOps = nr.decompressionOps

	return m, nil
}

func decodeHeader(msg []byte, h *Header) error {
	h.ID = binary.BigEndian.Uint16(msg[0:2])
	flags := binary.BigEndian.Uint16(msg[2:4])
	h.QR = flags&0x8000 != 0
	h.Opcode = Opcode((flags >> 11) & 0x0F)
	h.AA = flags&0x0400 != 0
	h.TC = flags&0x0200 != 0
	h.RD = flags&0x0100 != 0
	h.RA = flags&0x0080 != 0
	h.Z = uint8((flags >> 6) & 0x01)
	h.AD = flags&0x0020 != 0
	h.CD = flags&0x0010 != 0
	h.Rcode = Rcode(flags & 0x0F)
	h.QDCount = binary.BigEndian.Uint16(msg[4:6])
	h.ANCount = binary.BigEndian.Uint16(msg[6:8])
	h.NSCount = binary.BigEndian.Uint16(msg[8:10])
	h.ARCount = binary.BigEndian.Uint16(msg[10:12])
	return nil
}

func decodeQuestion(nr *nameReader, msg []byte, offset int) (Question, int, error) {
	name, offset, err := nr.readName(offset)
	if err != nil {
		return Question{}, 0, err
	}
	if offset+4 > len(msg) {
		return Question{}, 0, ErrMessageTooShort
	}
	q := Question{
		Name:  name,
		Type:  Type(binary.BigEndian.Uint16(msg[offset : offset+2])),
		Class: Class(binary.BigEndian.Uint16(msg[offset+2 : offset+4])),
	}
	return q, offset + 4, nil
}

// isTruncation reports whether err reflects the wire data simply running out
// (ErrMessageTooShort) rather than a security-limit violation. Only
// truncation is eligible to become a Malformed partial message; compression
// bombs, invalid pointers, and oversized names/labels/RRsets stay hard
// errors regardless of which section they surface in.
func isTruncation(err error) bool {
	return errors.Is(err, ErrMessageTooShort)
}

// decodeRRSection decodes up to count RRs starting at offset. A record that
// fails to parse because the wire data ran out mid-record is reported by
// ok=false along with whatever RRs were already decoded; the caller stops
// processing the rest of the message and marks it malformed rather than
// discarding it. Any other decode failure (compression bomb, invalid
// pointer, oversized name/label, bad rdata, ErrTooManyRRs/ErrRRsetTooLarge)
// is returned as a hard error: those are security limits, not wire
// truncation, and must not be silently downgraded.
func decodeRRSection(nr *nameReader, msg []byte, offset, count int) ([]RR, int, bool, error) {
	if count > maxRRsPerSection {
		return nil, 0, false, ErrTooManyRRs
	}

	rrs := make([]RR, 0, count)
	sectionSize := 0
	for i := 0; i < count; i++ {
		rr, next, size, err := decodeRR(nr, msg, offset)
		if err != nil {
			if isTruncation(err) {
				return rrs, offset, false, nil
			}
			return nil, 0, false, err
		}
		sectionSize += size
		if sectionSize > maxRRsetSize {
			return nil, 0, false, ErrRRsetTooLarge
		}
		rrs = append(rrs, rr)
		offset = next
	}
	return rrs, offset, true, nil
}

func decodeRR(nr *nameReader, msg []byte, offset int) (RR, int, int, error) {
	start := offset
	name, offset, err := nr.readName(offset)
	if err != nil {
		return RR{}, 0, 0, err
	}
	if offset+10 > len(msg) {
		return RR{}, 0, 0, ErrMessageTooShort
	}

	rr := RR{Name: name}
	rr.Type = Type(binary.BigEndian.Uint16(msg[offset : offset+2]))
	rr.Class = Class(binary.BigEndian.Uint16(msg[offset+2 : offset+4]))
	rr.ttlOffset = offset + 4
	rr.TTL = binary.BigEndian.Uint32(msg[offset+4 : offset+8])
	rdlength := int(binary.BigEndian.Uint16(msg[offset+8 : offset+10]))
	offset += 10

	if offset+rdlength > len(msg) {
		return RR{}, 0, 0, ErrMessageTooShort
	}
	raw := make([]byte, rdlength)
	copy(raw, msg[offset:offset+rdlength])

	rdata, err := decodeRDATA(rr.Type, raw, msg, offset)
	if err != nil {
		return RR{}, 0, 0, fmt.Errorf("rdata: %w", err)
	}
	rr.Data = rdata
	offset += rdlength

	return rr, offset, offset - start, nil
}

// Encode serializes m to wire format.
func (m *Message) Encode() ([]byte, error) {
	buf := make([]byte, headerSize)

	flags := uint16(0)
	if m.Header.QR {
		flags |= 0x8000
	}
	flags |= uint16(m.Header.Opcode&0x0F) << 11
	if m.Header.AA {
		flags |= 0x0400
	}
	if m.Header.TC {
		flags |= 0x0200
	}
	if m.Header.RD {
		flags |= 0x0100
	}
	if m.Header.RA {
		flags |= 0x0080
	}
	if m.Header.AD {
		flags |= 0x0020
	}
	if m.Header.CD {
		flags |= 0x0010
	}
	flags |= uint16(m.Header.Rcode & 0x0F)

	additional := m.Additional
	if m.EDNS != nil {
		additional = append(append([]RR{}, additional...), m.EDNS.toRR())
	}

	binary.BigEndian.PutUint16(buf[0:2], m.Header.ID)
	binary.BigEndian.PutUint16(buf[2:4], flags)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(m.Question)))
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(m.Answer)))
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(m.Authority)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(additional)))

	w := newNameWriter(buf)
	for _, q := range m.Question {
		if err := w.writeName(q.Name); err != nil {
			return nil, err
		}
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(q.Type))
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(q.Class))
	}

	for _, section := range [][]RR{m.Answer, m.Authority, additional} {
		for _, rr := range section {
			if err := encodeRR(w, rr); err != nil {
				return nil, err
			}
		}
	}

	if len(w.buf) > maxMessageSize {
		return nil, fmt.Errorf("dnsmsg: encoded message exceeds %d bytes", maxMessageSize)
	}
	return w.buf, nil
}

func encodeRR(w *nameWriter, rr RR) error {
	if err := w.writeName(rr.Name); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(rr.Type))
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(rr.Class))
	w.buf = binary.BigEndian.AppendUint32(w.buf, rr.TTL)

	rdlenOffset := len(w.buf)
	w.buf = binary.BigEndian.AppendUint16(w.buf, 0)
	rdataStart := len(w.buf)

	if rr.Data != nil {
		var err error
		w.buf, err = rr.Data.Encode(w.buf, rdataStart)
		if err != nil {
			return fmt.Errorf("encode rdata for %s: %w", rr.Name, err)
		}
	}

	rdlen := len(w.buf) - rdataStart
	binary.BigEndian.PutUint16(w.buf[rdlenOffset:rdlenOffset+2], uint16(rdlen))
	return nil
}

// TTLOffsets decodes wire just far enough to return the byte offset of
// every non-OPT resource record's TTL field in the answer, authority, and
// additional sections, in encounter order. The cache uses these to decay
// TTLs on already-encoded bytes in place, without a full decode/re-encode
// round trip on every read.
func TTLOffsets(wire []byte) ([]int, error) {
	if len(wire) < headerSize {
		return nil, ErrMessageTooShort
	}
	var h Header
	if err := decodeHeader(wire, &h); err != nil {
		return nil, err
	}

	nr := &nameReader{msg: wire}
	offset := headerSize
	for i := 0; i < int(h.QDCount); i++ {
		_, next, err := decodeQuestion(nr, wire, offset)
		if err != nil {
			return nil, err
		}
		offset = next
	}

	var offsets []int
	counts := []int{int(h.ANCount), int(h.NSCount), int(h.ARCount)}
	for _, count := range counts {
		for i := 0; i < count; i++ {
			rr, next, _, err := decodeRR(nr, wire, offset)
			if err != nil {
				return nil, err
			}
			if rr.Type != TypeOPT {
				offsets = append(offsets, rr.ttlOffset)
			}
			offset = next
		}
	}
	return offsets, nil
}

// PatchAD rewrites the AD bit in an already-encoded message's wire bytes in
// place, without a full re-decode/re-encode round trip. Used by the cache
// to set or clear AD on its stored bytes on each read, from the caller's
// wantDNSSEC flag and the entry's validation state.
func PatchAD(wire []byte, ad bool) error {
	if len(wire) < 4 {
		return ErrMessageTooShort
	}
	if ad {
		wire[3] |= 0x20
	} else {
		wire[3] &^= 0x20
	}
	return nil
}
