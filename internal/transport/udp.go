// Package transport implements the wire-level client side of outbound DNS
// queries: UDP with retry/server-rotation and TCP fallback on truncation.
// It also holds an inbound DNS-over-TLS listener (dot.go). It speaks
// dnsmsg.Message directly; it has no dependency on a third-party DNS codec.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
	"github.com/dnsscience/resolvd/internal/random"
)

var (
	ErrBadTruncation = errors.New("transport: truncated response over TCP")
	ErrNotResponse   = errors.New("transport: QR bit not set in response")
	ErrBadOpcode     = errors.New("transport: unexpected opcode in response")
	ErrBadQuestion   = errors.New("transport: response question does not match request")
	ErrLameServer    = errors.New("transport: lame delegation response")
	ErrAllServers    = errors.New("transport: all servers failed")
	ErrWrongSource   = errors.New("transport: response source address mismatch")
)

const (
	udpRetryTimeout = 2 * time.Second
	maxUDPRetries   = 5
	writeBufferCap  = 5 * 1024 * 1024
)

// Config controls how the exchanger talks to upstream servers.
type Config struct {
	DialTimeout time.Duration
	EDNSSize    uint16

	// MaxRetries bounds per-server UDP retry attempts (spec.md §6's
	// max_retries). Zero uses maxUDPRetries.
	MaxRetries int
}

// DefaultConfig returns the transport defaults used when none are supplied.
func DefaultConfig() Config {
	return Config{DialTimeout: udpRetryTimeout, EDNSSize: 4096, MaxRetries: maxUDPRetries}
}

// Exchanger sends one question to a sequence of candidate servers (in
// order) and returns the first usable response, following §4.D's fallback
// rules: UDP first, TCP retry on truncation, EDNS-stripped retry on
// FORMERR/NOTIMP/SERVFAIL.
type Exchanger struct {
	cfg Config
}

// New constructs an Exchanger with the given configuration.
func New(cfg Config) *Exchanger {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = udpRetryTimeout
	}
	if cfg.EDNSSize == 0 {
		cfg.EDNSSize = 4096
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = maxUDPRetries
	}
	return &Exchanger{cfg: cfg}
}

// Exchange sends q (built fresh for each server with a new random
// transaction ID, reused across that server's retries) to servers in
// order, retrying per server up to Config.MaxRetries times on any send or
// verification error before moving to the next server.
func (x *Exchanger) Exchange(ctx context.Context, q dnsmsg.Question, servers []string, withEDNS bool) (*dnsmsg.Message, error) {
	var lastErr error
	for _, server := range servers {
		resp, err := x.exchangeOneUDP(ctx, q, server, withEDNS)
		if err == nil {
			if resp.Header.TC {
				resp, err = x.exchangeOneTCP(ctx, q, server, withEDNS)
				if err != nil {
					lastErr = err
					continue
				}
				if resp.Header.TC {
					return nil, ErrBadTruncation
				}
			}
			if retryErr := classifyRetry(resp); retryErr != nil && withEDNS {
				// FORMERR/NOTIMP/SERVFAIL with EDNS attached: retry once
				// without EDNS before giving up on this server.
				resp2, err2 := x.exchangeOneUDP(ctx, q, server, false)
				if err2 == nil && classifyRetry(resp2) == nil {
					resp = resp2
				}
			}
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrAllServers
	}
	return nil, fmt.Errorf("%w: %v", ErrAllServers, lastErr)
}

func classifyRetry(resp *dnsmsg.Message) error {
	switch resp.Header.Rcode {
	case dnsmsg.RcodeFormatError, dnsmsg.RcodeNotImplemented, dnsmsg.RcodeServerFailure:
		return errors.New("retryable rcode")
	default:
		return nil
	}
}

func (x *Exchanger) exchangeOneUDP(ctx context.Context, q dnsmsg.Question, server string, withEDNS bool) (*dnsmsg.Message, error) {
	msg := buildQuery(q, withEDNS, x.cfg.EDNSSize)
	wire, err := msg.Encode()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < x.cfg.MaxRetries; attempt++ {
		resp, err := x.sendUDPOnce(ctx, wire, server, msg.Header.ID)
		if err == nil {
			if verifyErr := verifyResponse(msg, resp); verifyErr != nil {
				lastErr = verifyErr
				continue
			}
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (x *Exchanger) sendUDPOnce(ctx context.Context, wire []byte, server string, wantID uint16) (*dnsmsg.Message, error) {
	dialer := net.Dialer{Timeout: x.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "udp", server)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(udpRetryTimeout))
	if _, err := conn.Write(wire); err != nil {
		return nil, err
	}

	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}

	resp, err := dnsmsg.Decode(buf[:n])
	if err != nil {
		return nil, err
	}
	if resp.Header.ID != wantID {
		return nil, fmt.Errorf("transport: transaction id mismatch")
	}
	return resp, nil
}

func (x *Exchanger) exchangeOneTCP(ctx context.Context, q dnsmsg.Question, server string, withEDNS bool) (*dnsmsg.Message, error) {
	msg := buildQuery(q, withEDNS, x.cfg.EDNSSize)
	wire, err := msg.Encode()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: x.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(x.cfg.DialTimeout * 3))

	framed, err := frameTCP(wire)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(framed); err != nil {
		return nil, err
	}

	respWire, err := readTCPFrame(conn)
	if err != nil {
		return nil, err
	}

	resp, err := dnsmsg.Decode(respWire)
	if err != nil {
		return nil, err
	}
	if resp.Header.ID != msg.Header.ID {
		return nil, fmt.Errorf("transport: transaction id mismatch")
	}
	if verifyErr := verifyResponse(msg, resp); verifyErr != nil {
		return nil, verifyErr
	}
	return resp, nil
}

func buildQuery(q dnsmsg.Question, withEDNS bool, ednsSize uint16) *dnsmsg.Message {
	msg := &dnsmsg.Message{
		Header: dnsmsg.Header{
			ID:     random.TransactionID(),
			Opcode: dnsmsg.OpcodeQuery,
			RD:     false, // iterative queries never request recursion
		},
		Question: []dnsmsg.Question{q},
	}
	if withEDNS {
		msg.EDNS = &dnsmsg.EDNS{UDPSize: ednsSize, DO: true}
	}
	return msg
}

// verifyResponse applies §4.D's response-acceptance rules: must be a
// response (QR=1), must carry opcode QUERY, and the question section must
// match what we sent (with the documented FORMERR/NOTIMP/NXRRSET-with-empty-
// question exception).
func verifyResponse(query, resp *dnsmsg.Message) error {
	if !resp.Header.QR {
		return ErrNotResponse
	}
	if resp.Header.Opcode != dnsmsg.OpcodeQuery {
		return ErrBadOpcode
	}
	if len(resp.Question) == 0 {
		switch resp.Header.Rcode {
		case dnsmsg.RcodeFormatError, dnsmsg.RcodeNotImplemented, dnsmsg.Rcode(8): // 8 = NXRRSET
			return nil
		}
		return ErrBadQuestion
	}
	if len(query.Question) == 0 {
		return nil
	}
	want := query.Question[0]
	got := resp.Question[0]
	if !got.Name.Equal(want.Name) || got.Type != want.Type || got.Class != want.Class {
		return ErrBadQuestion
	}
	if isLameDelegation(resp, want.Name) {
		return ErrLameServer
	}
	return nil
}

// isLameDelegation reports a lame-delegation response per §4.D: a
// NOERROR/YXDOMAIN/NXDOMAIN answer with no Answer records, carrying an NS
// record in Authority whose owner is neither equal to nor an ancestor of
// qname. A real delegation's NS owner is always qname itself or some
// ancestor zone; anything else means the server has nothing authoritative
// to say about qname and must not be trusted for caching or chaining.
func isLameDelegation(resp *dnsmsg.Message, qname dnsmsg.Name) bool {
	if len(resp.Answer) > 0 {
		return false
	}
	switch resp.Header.Rcode {
	case dnsmsg.RcodeSuccess, dnsmsg.RcodeYXDomain, dnsmsg.RcodeNameError:
	default:
		return false
	}
	for _, rr := range resp.Authority {
		if rr.Type != dnsmsg.TypeNS {
			continue
		}
		if !qname.IsSubdomainOf(rr.Name) {
			return true
		}
	}
	return false
}

func frameTCP(wire []byte) ([]byte, error) {
	if len(wire) > 0xFFFF {
		return nil, fmt.Errorf("transport: message too large for TCP framing")
	}
	out := make([]byte, 2+len(wire))
	out[0] = byte(len(wire) >> 8)
	out[1] = byte(len(wire))
	copy(out[2:], wire)
	return out, nil
}

func readTCPFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1])
	if length > writeBufferCap {
		return nil, fmt.Errorf("transport: TCP frame exceeds buffer cap")
	}
	buf := make([]byte, length)
	if _, err := readFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
