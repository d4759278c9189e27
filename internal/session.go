package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// SessionState is the connection state of a LongPollSession
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateAwaitingDescriptor
	StateConnected
	StateRequestSent
	StateReceivingResponse
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingDescriptor:
		return "awaiting-descriptor"
	case StateConnected:
		return "connected"
	case StateRequestSent:
		return "request-sent"
	case StateReceivingResponse:
		return "receiving-response"
	default:
		return "unknown"
	}
}

// Dialer opens the long-poll TCP connection
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// LongPollOptions tunes the long-poll transport
type LongPollOptions struct {
	Port               int
	Wait               int
	Mode               int
	DialTimeout        time.Duration
	WriteTimeout       time.Duration
	InitialReadTimeout time.Duration
	ChunkReadTimeout   time.Duration
	// EmptyReadLimit is the number of consecutive "closed without data" reads
	// tolerated before the socket is dropped.
	EmptyReadLimit int
	Dial           Dialer
}

// DefaultLongPollOptions returns the options used against the real server
func DefaultLongPollOptions() LongPollOptions {
	return LongPollOptions{
		Port:               80,
		Wait:               25,
		Mode:               2,
		DialTimeout:        10 * time.Second,
		WriteTimeout:       time.Second,
		InitialReadTimeout: 100 * time.Millisecond,
		ChunkReadTimeout:   500 * time.Millisecond,
		EmptyReadLimit:     3,
	}
}

const readChunkSize = 4096

// LongPollSession owns the long-poll connection and its server descriptor.
// Poll cycles are strictly sequential; concurrent callers are serialized.
type LongPollSession struct {
	source  DescriptorSource
	decoder *Decoder
	opts    LongPollOptions

	cycle sync.Mutex // held for a whole poll cycle

	mu         sync.RWMutex
	state      SessionState
	descriptor *ServerDescriptor
	conn       net.Conn

	requestPending bool
	peerClosed     bool
	emptyReads     int
}

// NewLongPollSession creates a disconnected session
func NewLongPollSession(source DescriptorSource, opts LongPollOptions) *LongPollSession {
	defaults := DefaultLongPollOptions()
	if opts.Port == 0 {
		opts.Port = defaults.Port
	}
	if opts.Wait == 0 {
		opts.Wait = defaults.Wait
	}
	if opts.Mode == 0 {
		opts.Mode = defaults.Mode
	}
	if opts.EmptyReadLimit <= 0 {
		opts.EmptyReadLimit = defaults.EmptyReadLimit
	}
	if opts.Dial == nil {
		d := &net.Dialer{}
		opts.Dial = d.DialContext
	}
	return &LongPollSession{
		source:  source,
		decoder: NewDecoder(),
		opts:    opts,
		state:   StateDisconnected,
	}
}

// State returns the current state
func (s *LongPollSession) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cursor returns the ts the next request will carry, or "" when disconnected
func (s *LongPollSession) Cursor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.descriptor == nil {
		return ""
	}
	return s.descriptor.Cursor
}

func (s *LongPollSession) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Poll runs one long-poll cycle and returns the decoded updates. Every failure leaves
// the session in a state the next Poll can recover from; the returned error is
// informational and is one of *TransportError, *ProtocolError or *RemoteCallError.
// "No updates yet" is (nil, nil).
func (s *LongPollSession) Poll(ctx context.Context) ([]UpdateRecord, error) {
	s.cycle.Lock()
	defer s.cycle.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.conn == nil {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
	}

	if !s.requestPending {
		if err := s.sendRequest(); err != nil {
			return nil, err
		}
	} else {
		LogDebug("request still outstanding, waiting for its answer")
	}

	data, err := s.receive(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	return s.handleResponse(data)
}

// Reset drops the connection and descriptor; the next Poll fetches a new descriptor
func (s *LongPollSession) Reset() {
	s.cycle.Lock()
	defer s.cycle.Unlock()
	s.teardown()
}

// Close releases the connection
func (s *LongPollSession) Close() error {
	s.Reset()
	return nil
}

func (s *LongPollSession) connect(ctx context.Context) error {
	s.setState(StateAwaitingDescriptor)

	LogDebug("requesting info about the long-poll server")
	desc, err := s.source.GetLongPollServer(ctx)
	if err == nil && desc == nil {
		err = errors.New("empty descriptor")
	}
	if err != nil {
		s.setState(StateDisconnected)
		return &RemoteCallError{Method: "messages.getLongPollServer", Err: err}
	}
	if err := desc.SplitServer(); err != nil {
		s.setState(StateDisconnected)
		return &ProtocolError{Stage: "descriptor", Detail: "unusable long-poll descriptor", Err: err}
	}

	addr := net.JoinHostPort(desc.Host, strconv.Itoa(s.opts.Port))
	dialCtx := ctx
	if s.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.opts.DialTimeout)
		defer cancel()
	}

	LogDebug("connecting to the long-poll server: %s", addr)
	conn, err := s.opts.Dial(dialCtx, "tcp", addr)
	if err != nil {
		s.setState(StateDisconnected)
		return &TransportError{Op: "dial", Addr: addr, Err: err}
	}

	s.mu.Lock()
	s.conn = conn
	s.descriptor = desc
	s.state = StateConnected
	s.mu.Unlock()
	s.requestPending = false
	s.peerClosed = false
	s.emptyReads = 0

	return nil
}

func (s *LongPollSession) requestLine() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.descriptor
	return fmt.Sprintf("GET /%s?act=a_check&key=%s&ts=%s&wait=%d&mode=%d HTTP/1.1\r\nHost: %s\r\n\r\n",
		d.Path, url.QueryEscape(d.Key), url.QueryEscape(d.Cursor), s.opts.Wait, s.opts.Mode, d.Host)
}

func (s *LongPollSession) sendRequest() error {
	addr := s.conn.RemoteAddr().String()

	ready, err := AwaitReadiness(s.conn, WaitWritable, s.opts.WriteTimeout)
	if err == nil && !ready {
		err = errNotReady
	}
	if err != nil {
		s.teardown()
		return &TransportError{Op: "wait", Addr: addr, Err: err}
	}

	req := s.requestLine()
	LogDebug("sending request (escaped): %s", escapeCRLF(req))

	if s.opts.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	if _, err := io.WriteString(s.conn, req); err != nil {
		s.teardown()
		return &TransportError{Op: "write", Addr: addr, Err: err}
	}
	_ = s.conn.SetWriteDeadline(time.Time{})

	s.requestPending = true
	s.setState(StateRequestSent)
	return nil
}

// receive collects the response bytes. It returns no data when the server had nothing
// to say within the initial timeout, or closed the connection before answering.
func (s *LongPollSession) receive(ctx context.Context) ([]byte, error) {
	addr := s.conn.RemoteAddr().String()

	ready, err := AwaitReadiness(s.conn, WaitReadable, s.opts.InitialReadTimeout)
	if err != nil {
		s.teardown()
		return nil, &TransportError{Op: "wait", Addr: addr, Err: err}
	}
	if !ready {
		LogDebug("socket to the long-poll server isn't readable, skipping")
		s.setState(StateConnected)
		return nil, nil
	}

	s.setState(StateReceivingResponse)

	var (
		data []byte
		eof  bool
	)
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			s.teardown()
			return nil, err
		}

		ready, err := AwaitReadiness(s.conn, WaitReadable, s.opts.ChunkReadTimeout)
		if err != nil {
			s.teardown()
			return nil, &TransportError{Op: "wait", Addr: addr, Err: err}
		}
		if !ready {
			break
		}

		if s.opts.ChunkReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ChunkReadTimeout))
		}
		n, err := s.conn.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				break
			}
			s.teardown()
			return nil, &TransportError{Op: "read", Addr: addr, Err: err}
		}
		if n == 0 {
			eof = true
			break
		}
		if responseComplete(data) {
			break
		}
	}
	if s.conn != nil {
		_ = s.conn.SetReadDeadline(time.Time{})
	}

	if len(data) == 0 {
		LogDebug("no data returned by the long-poll server")
		if eof {
			// The answer to the outstanding request is gone; the next poll re-sends it.
			s.requestPending = false
			s.emptyReads++
			if s.emptyReads >= s.opts.EmptyReadLimit {
				s.teardown()
				return nil, &TransportError{Op: "read", Addr: addr, Err: io.EOF}
			}
		}
		s.setState(StateConnected)
		return nil, nil
	}

	s.emptyReads = 0
	s.requestPending = false
	s.peerClosed = eof
	LogDebug("data received from the long-poll server: %s", escapeCRLF(string(data)))
	return data, nil
}

func (s *LongPollSession) handleResponse(data []byte) ([]UpdateRecord, error) {
	resp, err := ParseResponse(data)
	if err != nil {
		return nil, s.keepSocket(err)
	}
	if resp.StatusCode != 200 {
		return nil, s.keepSocket(&ProtocolError{Stage: "status", Detail: "unexpected status: " + resp.StatusLine})
	}

	payload, err := s.decoder.Decode(resp.Body)
	if err != nil || payload.Failed {
		LogDebug("long-poll payload rejected, reconnecting: %v", err)
		s.teardown()
		if err == nil {
			err = &ProtocolError{Stage: "payload", Detail: "failed payload"}
		}
		return nil, err
	}

	if resp.ConnectionClose() || s.peerClosed {
		LogDebug("long-poll server closed the connection, a new key will be requested")
		s.teardown()
		return payload.Updates, nil
	}

	s.mu.Lock()
	s.descriptor.Cursor = payload.Cursor
	s.state = StateConnected
	s.mu.Unlock()

	return payload.Updates, nil
}

// keepSocket ends a cycle on a framing problem without dropping the connection
func (s *LongPollSession) keepSocket(err error) error {
	if s.peerClosed {
		s.teardown()
		return err
	}
	s.setState(StateConnected)
	return err
}

func (s *LongPollSession) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.descriptor = nil
	s.state = StateDisconnected
	s.requestPending = false
	s.peerClosed = false
	s.emptyReads = 0
}
