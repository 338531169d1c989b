package frontend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"ironbook/internal/parser"
	"ironbook/internal/queue"
)

const defaultWorkerPoolSize = 10

// TCPServer accepts newline-delimited JSON order lines over TCP, parses
// each with an Order Parser, and calls Submit. It writes back a
// one-line ACK or error per order; it holds no matching-relevant logic
// of its own — everything beyond framing and ack lives in the core.
type TCPServer struct {
	addr       string
	submission *queue.Submission
	parser     *parser.Parser
	pool       *workerPool

	ready     chan struct{}
	boundAddr string
}

// NewTCPServer constructs a server bound to addr, parsing order lines
// with p and submitting them to submission.
func NewTCPServer(addr string, submission *queue.Submission, p *parser.Parser) *TCPServer {
	s := &TCPServer{addr: addr, submission: submission, parser: p, ready: make(chan struct{})}
	s.pool = newWorkerPool(defaultWorkerPoolSize, s.handleConn)
	return s
}

// Addr blocks until the listener is bound, then returns its address.
// Mainly useful in tests that bind an ephemeral port (":0").
func (s *TCPServer) Addr() string {
	<-s.ready
	return s.boundAddr
}

// Run listens on addr and accepts connections until t is killed,
// dispatching each to the worker pool. It returns once the listener has
// been closed; the pool's goroutines run under t and are joined by t.Wait.
func (s *TCPServer) Run(t *tomb.Tomb) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("frontend: tcp listen on %s: %w", s.addr, err)
	}
	s.boundAddr = listener.Addr().String()
	close(s.ready)

	t.Go(func() error {
		s.pool.run(t)
		return nil
	})

	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	log.Info().Str("addr", s.boundAddr).Msg("frontend: tcp server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
				log.Error().Err(err).Msg("frontend: tcp accept failed")
				continue
			}
		}
		s.pool.addTask(conn)
	}
}

// handleConn reads newline-delimited JSON order lines from conn until
// EOF, a parse failure's connection is not dropped — only the
// offending line is rejected with an error ack — or t is killed.
func (s *TCPServer) handleConn(t *tomb.Tomb, conn net.Conn) error {
	defer conn.Close()

	sessionID := uuid.New().String()
	sessionLog := log.With().Str("session_id", sessionID).Str("remote_addr", conn.RemoteAddr().String()).Logger()
	sessionLog.Info().Msg("frontend: tcp session opened")
	defer sessionLog.Info().Msg("frontend: tcp session closed")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ack := s.submitLine(line)
		if _, err := fmt.Fprintln(conn, ack); err != nil {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		sessionLog.Warn().Err(err).Msg("frontend: tcp connection read error")
	}
	return nil
}

func (s *TCPServer) submitLine(line string) string {
	order, err := s.parser.Parse(line)
	if err != nil {
		return "ERR: " + err.Error()
	}
	if err := s.submission.Submit(order); err != nil {
		return "ERR: " + err.Error()
	}
	return fmt.Sprintf("ACK: order %d received", order.ID)
}
