// Package server implements the DNS server shell of §4.H: it terminates
// UDP and TCP listeners, validates and shapes incoming requests, invokes
// the recursive resolver, and writes back a response sized to fit the
// negotiated transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dnsscience/resolvd/internal/cookie"
	"github.com/dnsscience/resolvd/internal/dnsmsg"
	"github.com/dnsscience/resolvd/internal/dnssec"
	"github.com/dnsscience/resolvd/internal/engine"
	"github.com/dnsscience/resolvd/internal/eventbus"
	"github.com/dnsscience/resolvd/internal/metrics"
	"github.com/dnsscience/resolvd/internal/pool"
	"github.com/dnsscience/resolvd/internal/resolver"
	"github.com/dnsscience/resolvd/internal/rrl"
	"github.com/dnsscience/resolvd/internal/worker"
)

// Config holds DNS server configuration.
type Config struct {
	UDPAddr string
	TCPAddr string

	// UDPReaders is the number of goroutines concurrently calling
	// ReadFrom on the shared UDP socket. Unlike SO_REUSEPORT (one socket
	// per listener), this shares a single socket per §5's "many lookups
	// multiplexed through the same transport sockets".
	UDPReaders int

	ResolverConfig resolver.Config

	EnableCookies bool
	CookieConfig  cookie.Config

	EnableRRL bool
	RRLConfig rrl.Config

	// Ingress controls, independent of the resolver's own upstream RRL.
	EnableACL         bool
	AllowedNets       []string
	DeniedNets        []string
	EnableRateLimit   bool
	IngressRateLimit  engine.RateLimiterConfig

	Workers   int
	QueueSize int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration // TCP only

	UDPReadBuffer  int
	UDPWriteBuffer int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		UDPAddr:    ":53",
		TCPAddr:    ":53",
		UDPReaders: runtime.NumCPU() * 2,

		ResolverConfig: resolver.Config{
			QueryTimeout: 2 * time.Second,
			MaxHops:      30,
		},

		EnableCookies: true,
		CookieConfig:  cookie.Config{Enabled: true},

		EnableRRL: true,
		RRLConfig: rrl.DefaultConfig(),

		EnableACL:        false,
		EnableRateLimit:  true,
		IngressRateLimit: engine.DefaultRateLimiterConfig(),

		Workers:   1000,
		QueueSize: 100000,

		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  60 * time.Second,

		UDPReadBuffer:  8 * 1024 * 1024,
		UDPWriteBuffer: 8 * 1024 * 1024,
	}
}

// Server is the recursive DNS server shell.
type Server struct {
	cfg Config

	resolver *resolver.Resolver
	cookies  *cookie.Manager
	limiter  *rrl.Limiter
	acl      *engine.ACL
	ingress  *engine.RateLimiter
	events   *eventbus.Bus
	jobs     *worker.Pool

	udpConn     net.PacketConn
	tcpListener net.Listener

	queries  atomic.Uint64
	answers  atomic.Uint64
	errors   atomic.Uint64
	nxdomain atomic.Uint64
	dropped  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new DNS server.
func New(cfg Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:    cfg,
		events: eventbus.New(256),
		ctx:    ctx,
		cancel: cancel,
	}

	res, err := resolver.New(cfg.ResolverConfig)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init resolver: %w", err)
	}
	s.resolver = res

	if cfg.EnableCookies {
		s.cookies, err = cookie.NewManager(cfg.CookieConfig)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("init cookies: %w", err)
		}
	}
	if cfg.EnableRRL {
		s.limiter = rrl.NewLimiter(cfg.RRLConfig)
	}
	if cfg.EnableACL {
		s.acl = engine.NewACL(true)
		for _, n := range cfg.AllowedNets {
			_ = s.acl.AllowNet(n)
		}
		for _, n := range cfg.DeniedNets {
			_ = s.acl.DenyNet(n)
		}
	}
	if cfg.EnableRateLimit {
		s.ingress = engine.NewRateLimiter(cfg.IngressRateLimit)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU() * 4
	}
	s.jobs = worker.NewPool(worker.Config{
		Workers:   workers,
		QueueSize: cfg.QueueSize,
		PanicHandler: func(v interface{}) {
			s.events.Publish(s.ctx, eventbus.TopicServer, fmt.Sprintf("worker panic: %v", v))
		},
	})

	return s, nil
}

// Resolver exposes the underlying resolver (admin/metrics plane).
func (s *Server) Resolver() *resolver.Resolver { return s.resolver }

// Events returns the server's event bus.
func (s *Server) Events() *eventbus.Bus { return s.events }

// Start starts the UDP and TCP listeners.
func (s *Server) Start() error {
	udpConn, err := net.ListenPacket("udp", s.cfg.UDPAddr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", s.cfg.UDPAddr, err)
	}
	if uc, ok := udpConn.(*net.UDPConn); ok {
		if s.cfg.UDPReadBuffer > 0 {
			_ = uc.SetReadBuffer(s.cfg.UDPReadBuffer)
		}
		if s.cfg.UDPWriteBuffer > 0 {
			_ = uc.SetWriteBuffer(s.cfg.UDPWriteBuffer)
		}
	}
	s.udpConn = udpConn

	readers := s.cfg.UDPReaders
	if readers <= 0 {
		readers = 1
	}
	for i := 0; i < readers; i++ {
		s.wg.Add(1)
		go s.serveUDP()
	}

	ln, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.TCPAddr, err)
	}
	s.tcpListener = ln

	s.wg.Add(1)
	go s.serveTCP()

	s.events.Publish(s.ctx, eventbus.TopicServer, fmt.Sprintf("listening udp=%s tcp=%s readers=%d", s.cfg.UDPAddr, s.cfg.TCPAddr, readers))
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.cancel()
	if s.udpConn != nil {
		_ = s.udpConn.Close()
	}
	if s.tcpListener != nil {
		_ = s.tcpListener.Close()
	}
	s.wg.Wait()

	s.jobs.Close()
	s.resolver.Close()
	if s.limiter != nil {
		s.limiter.Close()
	}
	return nil
}

func (s *Server) serveUDP() {
	defer s.wg.Done()
	buf := pool.GetLargeBuffer()
	defer pool.PutLargeBuffer(buf)
	for {
		n, addr, err := s.udpConn.ReadFrom(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			continue
		}
		req := make([]byte, n)
		copy(req, buf[:n])

		job := worker.JobFunc(func(ctx context.Context) error {
			resp := s.handleRequest(ctx, req, clientIP(addr), 512, "udp")
			if resp == nil {
				return nil
			}
			_, err := s.udpConn.WriteTo(resp, addr)
			return err
		})
		if err := s.jobs.TrySubmit(s.ctx, job); err != nil {
			s.dropped.Add(1)
		}
	}
}

func (s *Server) serveTCP() {
	defer s.wg.Done()
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			continue
		}
		s.wg.Add(1)
		go s.serveTCPConn(conn)
	}
}

func (s *Server) serveTCPConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	addr := conn.RemoteAddr()
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		lenBuf := make([]byte, 2)
		if _, err := readFullConn(conn, lenBuf); err != nil {
			return
		}
		frameLen := int(lenBuf[0])<<8 | int(lenBuf[1])
		if frameLen == 0 || frameLen > 65535 {
			return
		}
		req := make([]byte, frameLen)
		if _, err := readFullConn(conn, req); err != nil {
			return
		}

		resp := s.handleRequest(s.ctx, req, clientIP(addr), 65535, "tcp")
		if resp == nil {
			continue
		}
		out := make([]byte, 2+len(resp))
		out[0] = byte(len(resp) >> 8)
		out[1] = byte(len(resp))
		copy(out[2:], resp)
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func readFullConn(conn net.Conn, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

func clientIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		return nil
	}
}

// handleRequest is §4.H: validate, resolve, shape. Returns nil when the
// response should be silently dropped (RRL ActionDrop or ingress denial).
func (s *Server) handleRequest(ctx context.Context, raw []byte, ip net.IP, maxSize int, proto string) []byte {
	s.queries.Add(1)
	metrics.QueriesTotal.WithLabelValues(proto).Inc()

	if s.acl != nil && ip != nil && !s.acl.IsAllowed(ip) {
		s.dropped.Add(1)
		return nil
	}
	if s.ingress != nil && ip != nil && !s.ingress.Allow(ip) {
		s.dropped.Add(1)
		return nil
	}

	req, err := dnsmsg.Decode(raw)
	if err != nil {
		return s.formErr(0)
	}

	if req.Header.QR || len(req.Question) != 1 || len(req.Answer) > 0 || len(req.Authority) > 0 {
		s.errors.Add(1)
		metrics.ErrorsTotal.WithLabelValues("format").Inc()
		return s.formErr(req.Header.ID)
	}
	q := req.Question[0]

	clientWantsDO := req.EDNS != nil && req.EDNS.DO
	wantsEDNS := req.EDNS != nil
	udpSize := uint16(maxSize)
	if wantsEDNS && req.EDNS.UDPSize > 0 && int(req.EDNS.UDPSize) < maxSize {
		udpSize = req.EDNS.UDPSize
	}

	var clientCookie [8]byte
	haveClientCookie := false
	if s.cfg.EnableCookies && s.cookies != nil && req.EDNS != nil {
		if raw, ok := req.EDNS.Cookie(); ok {
			if cc, sc, perr := cookie.ParseCookie(raw); perr == nil {
				clientCookie = cc
				haveClientCookie = true
				if badCookie, _ := s.cookies.ValidateQueryCookie(clientCookie, sc, ip); badCookie {
					resp := s.baseResponse(req, q, dnsmsg.RcodeBadCookie)
					s.attachEDNS(resp, req, udpSize, clientWantsDO, clientCookie)
					wire, _ := resp.Encode()
					s.errors.Add(1)
					return wire
				}
			}
		}
	}

	resp, rerr := s.resolver.Resolve(ctx, q)
	if rerr != nil {
		s.errors.Add(1)
		metrics.ErrorsTotal.WithLabelValues(errorKind(rerr)).Inc()
		s.events.Publish(ctx, eventbus.TopicServer, rerr.Error())
		out := s.baseResponse(req, q, rcodeForError(rerr))
		s.attachEDNS(out, req, udpSize, clientWantsDO, clientCookie)
		if haveClientCookie && s.cookies != nil {
			s.setServerCookie(out, clientCookie, ip)
		}
		wire, _ := out.Encode()
		return wire
	}

	if !clientWantsDO {
		resp.Answer = stripRRSIGsForClient(resp.Answer)
		resp.Authority = stripRRSIGsForClient(resp.Authority)
	}
	resp.Header.ID = req.Header.ID
	resp.Header.RD = req.Header.RD
	resp.Header.QR = true
	resp.Header.RA = true

	if resp.Header.Rcode == dnsmsg.RcodeNameError {
		s.nxdomain.Add(1)
	}
	s.answers.Add(1)
	metrics.AnswersTotal.WithLabelValues(rcodeName(resp.Header.Rcode)).Inc()

	s.attachEDNS(resp, req, udpSize, clientWantsDO, clientCookie)
	if haveClientCookie && s.cookies != nil {
		s.setServerCookie(resp, clientCookie, ip)
	}

	if s.limiter != nil {
		category := rrl.CategorizeResponse(int(resp.Header.Rcode), len(resp.Answer), len(resp.Authority))
		switch s.limiter.Check(ip, string(q.Name), uint16(q.Type), category) {
		case rrl.ActionDrop:
			return nil
		case rrl.ActionSlip:
			resp.Answer = nil
			resp.Authority = nil
			resp.Additional = nil
			resp.Header.TC = true
		}
	}

	return encodeFitting(resp, int(udpSize))
}

func stripRRSIGsForClient(rrs []dnsmsg.RR) []dnsmsg.RR {
	out := make([]dnsmsg.RR, 0, len(rrs))
	for _, rr := range rrs {
		if rr.Type != dnsmsg.TypeRRSIG && rr.Type != dnsmsg.TypeNSEC && rr.Type != dnsmsg.TypeNSEC3 {
			out = append(out, rr)
		}
	}
	return out
}

func (s *Server) baseResponse(req *dnsmsg.Message, q dnsmsg.Question, rcode dnsmsg.Rcode) *dnsmsg.Message {
	m := &dnsmsg.Message{}
	m.Header = dnsmsg.Header{
		ID:     req.Header.ID,
		QR:     true,
		Opcode: req.Header.Opcode,
		RD:     req.Header.RD,
		RA:     true,
		Rcode:  rcode,
	}
	m.Question = []dnsmsg.Question{q}
	return m
}

func (s *Server) formErr(id uint16) []byte {
	m := &dnsmsg.Message{Header: dnsmsg.Header{ID: id, QR: true, RA: true, Rcode: dnsmsg.RcodeFormatError}}
	wire, _ := m.Encode()
	return wire
}

func (s *Server) attachEDNS(m *dnsmsg.Message, req *dnsmsg.Message, udpSize uint16, do bool, _ [8]byte) {
	if req.EDNS == nil {
		return
	}
	m.EDNS = &dnsmsg.EDNS{UDPSize: udpSize, DO: do}
}

func (s *Server) setServerCookie(m *dnsmsg.Message, clientCookie [8]byte, ip net.IP) {
	serverCookie, err := s.cookies.GenerateServerCookie(clientCookie, ip)
	if err != nil {
		return
	}
	if m.EDNS == nil {
		m.EDNS = &dnsmsg.EDNS{UDPSize: 4096}
	}
	m.EDNS.SetCookie(cookie.FormatCookie(clientCookie, serverCookie[:]))
}

// encodeFitting implements §4.C's encode-time truncation: strip additional,
// then authority, then trailing answer records until the message fits
// maxSize, setting TC on the first strip.
func encodeFitting(m *dnsmsg.Message, maxSize int) []byte {
	wire, err := m.Encode()
	if err == nil && len(wire) <= maxSize {
		return wire
	}

	m.Header.TC = true
	m.Additional = nil
	wire, err = m.Encode()
	if err == nil && len(wire) <= maxSize {
		return wire
	}

	m.Authority = nil
	wire, err = m.Encode()
	if err == nil && len(wire) <= maxSize {
		return wire
	}

	for len(m.Answer) > 0 && (err != nil || len(wire) > maxSize) {
		m.Answer = m.Answer[:len(m.Answer)-1]
		wire, err = m.Encode()
	}
	if err != nil {
		m.Answer = nil
		wire, _ = m.Encode()
	}
	return wire
}

// rcodeForError maps the error kinds of §7 to a response RCODE. Anything
// not structurally representable collapses to SERVFAIL.
func rcodeForError(err error) dnsmsg.Rcode {
	switch {
	case errors.Is(err, resolver.ErrBadSignature):
		return dnsmsg.RcodeServerFailure
	case errors.Is(err, dnssec.ErrSignatureInvalid):
		return dnsmsg.RcodeServerFailure
	case errors.Is(err, resolver.ErrTooManyReferrals),
		errors.Is(err, resolver.ErrNoNameservers),
		errors.Is(err, resolver.ErrAliasLoop),
		errors.Is(err, resolver.ErrBadName):
		return dnsmsg.RcodeServerFailure
	default:
		return dnsmsg.RcodeServerFailure
	}
}

// errorKind labels a resolver error for the errors_total metric.
func errorKind(err error) string {
	switch {
	case errors.Is(err, resolver.ErrBadSignature), errors.Is(err, dnssec.ErrSignatureInvalid):
		return "bogus_signature"
	case errors.Is(err, resolver.ErrTooManyReferrals):
		return "too_many_referrals"
	case errors.Is(err, resolver.ErrNoNameservers):
		return "no_nameservers"
	case errors.Is(err, resolver.ErrAliasLoop):
		return "alias_loop"
	case errors.Is(err, resolver.ErrBadName):
		return "bad_name"
	default:
		return "other"
	}
}

func rcodeName(r dnsmsg.Rcode) string {
	switch r {
	case dnsmsg.RcodeSuccess:
		return "NOERROR"
	case dnsmsg.RcodeFormatError:
		return "FORMERR"
	case dnsmsg.RcodeServerFailure:
		return "SERVFAIL"
	case dnsmsg.RcodeNameError:
		return "NXDOMAIN"
	case dnsmsg.RcodeNotImplemented:
		return "NOTIMP"
	case dnsmsg.RcodeRefused:
		return "REFUSED"
	case dnsmsg.RcodeBadCookie:
		return "BADCOOKIE"
	default:
		return "OTHER"
	}
}

// Stats returns server statistics.
type Stats struct {
	Queries  uint64
	Answers  uint64
	Errors   uint64
	NXDOMAIN uint64
	Dropped  uint64

	Cache interface{}
}

// GetStats returns current statistics.
func (s *Server) GetStats() Stats {
	return Stats{
		Queries:  s.queries.Load(),
		Answers:  s.answers.Load(),
		Errors:   s.errors.Load(),
		NXDOMAIN: s.nxdomain.Load(),
		Dropped:  s.dropped.Load(),
		Cache:    s.resolver.CacheStats(),
	}
}
