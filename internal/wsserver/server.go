// Package wsserver implements a hand-rolled single-subscriber WebSocket
// server: a non-blocking TCP accept loop, an RFC 6455 HTTP→WebSocket
// handshake, and binary/text frame I/O. Hand-rolling here is intentional —
// spec.md's Design Notes call for it explicitly given the one-loopback-
// client dependency budget — rather than an omission of the gorilla/websocket
// library the rest of the pack (and this daemon's own teacher) uses
// elsewhere.
package wsserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"
)

// ErrBindFailed is returned by Start when the loopback listener cannot bind.
var ErrBindFailed = errors.New("wsserver: bind failed")

// pollTimeout is the deadline used to emulate a non-blocking accept/recv
// poll (the spec's FIONREAD/MSG_PEEK check) using stdlib net deadlines.
const pollTimeout = time.Millisecond

// Server accepts at most one WebSocket subscriber at a time on loopback.
// Not safe for concurrent use; the orchestrator's main loop is the sole
// caller of Poll/Send*/Stop.
type Server struct {
	ln     *net.TCPListener
	conn   net.Conn
	reader *bufio.Reader
}

// Start binds a TCP listener to 127.0.0.1:port.
func Start(port int) (*Server, error) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	return &Server{ln: ln}, nil
}

// HasClient reports whether a subscriber is currently connected.
func (s *Server) HasClient() bool { return s.conn != nil }

// Poll runs one non-blocking tick: if no subscriber is connected, it tries
// to accept one; otherwise it drains any inbound frames, invoking onCommand
// for each complete text frame payload.
func (s *Server) Poll(onCommand func(string)) {
	if s.conn == nil {
		s.tryAccept()
		return
	}
	s.drainInbound(onCommand)
}

func (s *Server) tryAccept() {
	_ = s.ln.SetDeadline(time.Now().Add(pollTimeout))
	conn, err := s.ln.Accept()
	if err != nil {
		return // timeout (no pending connection) or transient error: keep listening
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	_ = conn.SetDeadline(time.Time{})

	reader := bufio.NewReader(conn)
	key, err := readHandshake(reader)
	if err != nil {
		log.Printf("[ws] handshake failed: %v", err)
		conn.Close()
		return
	}
	if _, err := writeFull(conn, handshakeResponse(key)); err != nil {
		log.Printf("[ws] handshake response write failed: %v", err)
		conn.Close()
		return
	}

	s.conn = conn
	s.reader = reader
	log.Printf("[ws] subscriber connected")
}

func (s *Server) drainInbound(onCommand func(string)) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(pollTimeout))
		if _, err := s.reader.Peek(1); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return // no more inbound data right now
			}
			s.dropClient()
			return
		}
		_ = s.conn.SetReadDeadline(time.Time{})

		opcode, payload, err := decodeFrame(s.reader)
		if err != nil {
			log.Printf("[ws] dropping subscriber: %v", err)
			s.dropClient()
			return
		}

		switch opcode {
		case opText:
			if onCommand != nil {
				onCommand(string(payload))
			}
		case opClose:
			_, _ = writeFull(s.conn, encodeFrame(opClose, nil))
			s.dropClient()
			return
		default:
			// Pong and any other opcode: silently consumed.
		}
	}
}

func (s *Server) dropClient() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = nil
	s.reader = nil
	log.Printf("[ws] subscriber disconnected")
}

// SendBinary transmits one complete binary frame.
func (s *Server) SendBinary(payload []byte) error {
	return s.send(opBinary, payload)
}

// SendText transmits one complete text frame.
func (s *Server) SendText(payload []byte) error {
	return s.send(opText, payload)
}

func (s *Server) send(opcode byte, payload []byte) error {
	if s.conn == nil {
		return nil
	}
	if _, err := writeFull(s.conn, encodeFrame(opcode, payload)); err != nil {
		s.dropClient()
		return err
	}
	return nil
}

// Stop closes the client socket (if any) and the listener, in that order.
func (s *Server) Stop() error {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// writeFull retries partial writes so a send is atomic across header+payload.
func writeFull(w io.Writer, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := w.Write(data[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
