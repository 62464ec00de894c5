package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
)

// Handler processes one decoded DNS message and returns the response to
// send back; DoTListener is its only user.
type Handler interface {
	HandleDNS(ctx context.Context, req *dnsmsg.Message) (*dnsmsg.Message, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, req *dnsmsg.Message) (*dnsmsg.Message, error)

func (f HandlerFunc) HandleDNS(ctx context.Context, req *dnsmsg.Message) (*dnsmsg.Message, error) {
	return f(ctx, req)
}

// DoTListener implements a DNS-over-TLS listener per RFC 7858: TCP framing
// (2-byte big-endian length prefix) inside a TLS connection.
type DoTListener struct {
	mu       sync.Mutex
	addr     string
	config   *tls.Config
	listener net.Listener
	handler  Handler
	running  bool
	wg       sync.WaitGroup
}

// DoTConfig holds configuration for the DoT listener.
type DoTConfig struct {
	Address   string
	TLSConfig *tls.Config
	CertFile  string
	KeyFile   string
	Timeout   time.Duration
}

// NewDoTListener creates a new DNS-over-TLS listener.
func NewDoTListener(cfg DoTConfig, handler Handler) (*DoTListener, error) {
	if cfg.Address == "" {
		cfg.Address = ":853"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	var tlsConfig *tls.Config
	switch {
	case cfg.TLSConfig != nil:
		tlsConfig = cfg.TLSConfig
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	default:
		return nil, fmt.Errorf("TLS configuration required: provide TLSConfig or CertFile/KeyFile")
	}

	return &DoTListener{addr: cfg.Address, config: tlsConfig, handler: handler}, nil
}

// Start begins accepting connections.
func (l *DoTListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("listener already running")
	}

	listener, err := tls.Listen("tcp", l.addr, l.config)
	if err != nil {
		return fmt.Errorf("start TLS listener: %w", err)
	}

	l.listener = listener
	l.running = true

	go l.acceptLoop()
	return nil
}

// Stop gracefully stops the listener.
func (l *DoTListener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	err := l.listener.Close()
	l.mu.Unlock()

	l.wg.Wait()
	return err
}

// Addr returns the listener's address, or nil if not started.
func (l *DoTListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return l.listener.Addr()
	}
	return nil
}

func (l *DoTListener) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			l.mu.Lock()
			running := l.running
			l.mu.Unlock()
			if !running {
				return
			}
			continue
		}

		l.wg.Add(1)
		go func(c net.Conn) {
			defer l.wg.Done()
			l.handleConnection(c)
		}(conn)
	}
}

func (l *DoTListener) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	for {
		length := make([]byte, 2)
		if _, err := io.ReadFull(conn, length); err != nil {
			return
		}

		msgLen := int(length[0])<<8 | int(length[1])
		if msgLen > 65535 || msgLen == 0 {
			return
		}

		msgBytes := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, msgBytes); err != nil {
			return
		}

		req, err := dnsmsg.Decode(msgBytes)
		if err != nil {
			continue
		}

		ctx := context.Background()
		resp, err := l.handler.HandleDNS(ctx, req)
		if err != nil {
			resp = &dnsmsg.Message{Header: dnsmsg.Header{
				ID: req.Header.ID, QR: true, Opcode: req.Header.Opcode, RD: req.Header.RD, Rcode: dnsmsg.RcodeServerFailure,
			}}
		}

		respBytes, err := resp.Encode()
		if err != nil {
			continue
		}

		header := []byte{byte(len(respBytes) >> 8), byte(len(respBytes))}
		conn.Write(header)
		conn.Write(respBytes)

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}
}
