package testutil

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// closeMarker makes the fake server drop the connection instead of answering
const closeMarker = "\x00close"

// FakeLongPollServer is a loopback TCP server speaking just enough HTTP/1.1 for the
// long-poll session. Each request is answered with the next queued response; a request
// arriving while the queue is empty waits for Enqueue.
type FakeLongPollServer struct {
	ln        net.Listener
	responses chan string
	done      chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	requests []string
	conns    []net.Conn
	accepted int
}

// NewFakeLongPollServer starts a server closed at the end of the test
func NewFakeLongPollServer(t *testing.T) *FakeLongPollServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	s := &FakeLongPollServer{
		ln:        ln,
		responses: make(chan string, 64),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Host returns the listening IP
func (s *FakeLongPollServer) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port
func (s *FakeLongPollServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port
func (s *FakeLongPollServer) Addr() string {
	return net.JoinHostPort(s.Host(), strconv.Itoa(s.Port()))
}

// Enqueue queues raw responses
func (s *FakeLongPollServer) Enqueue(responses ...string) {
	for _, r := range responses {
		s.responses <- r
	}
}

// EnqueueClose makes the next request be answered by closing the connection
func (s *FakeLongPollServer) EnqueueClose() {
	s.responses <- closeMarker
}

// Requests returns the raw requests received so far
func (s *FakeLongPollServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Connections returns the number of accepted connections
func (s *FakeLongPollServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Close stops the server and drops every connection
func (s *FakeLongPollServer) Close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	_ = s.ln.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *FakeLongPollServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			_ = conn.Close()
			return
		default:
		}
		s.conns = append(s.conns, conn)
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *FakeLongPollServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		req, err := readRequest(r)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		var resp string
		select {
		case resp = <-s.responses:
		case <-s.done:
			return
		}

		if resp == closeMarker {
			return
		}
		if _, err := conn.Write([]byte(resp)); err != nil {
			return
		}
		if strings.Contains(strings.ToLower(resp), "\r\nconnection: close\r\n") {
			return
		}
	}
}

// readRequest reads one header block, up to and including the blank line
func readRequest(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		b.WriteString(line)
		if err != nil {
			return "", err
		}
		if line == "\r\n" {
			return b.String(), nil
		}
	}
}
