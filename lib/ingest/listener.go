// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/trace-agent/lib/netutil"
	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// maxDatagramSize is the largest UDP payload.
const maxDatagramSize = 65535

// initialLineBuffer is the scanner's starting buffer; it grows up to
// ListenerConfig.MaxLineBytes.
const initialLineBuffer = 64 * 1024

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Network is "tcp" or "udp".
	Network string

	// Host is the bind address. Empty means all interfaces.
	Host string

	// Port is the bind port. Zero picks a free port.
	Port int

	// MaxLineBytes bounds one trace line on a TCP connection. A longer
	// line ends that connection.
	MaxLineBytes int
}

// Listener receives trace lines on a network socket.
type Listener struct {
	config ListenerConfig
	sink   Sink
	logger *slog.Logger

	stream net.Listener
	packet net.PacketConn

	dropped   atomic.Uint64
	malformed atomic.Uint64

	mu          sync.Mutex
	connections map[net.Conn]struct{}
	active      sync.WaitGroup
}

// Listen binds the socket with SO_REUSEADDR set. A bind failure is
// returned; nothing is served until Serve is called.
func Listen(ctx context.Context, config ListenerConfig, sink Sink, logger *slog.Logger) (*Listener, error) {
	if config.MaxLineBytes <= 0 {
		return nil, fmt.Errorf("ingest: MaxLineBytes must be positive, got %d", config.MaxLineBytes)
	}
	host := config.Host
	if host == "" {
		host = "0.0.0.0"
	}
	address := net.JoinHostPort(host, strconv.Itoa(config.Port))
	listenConfig := netutil.ReuseAddrListenConfig()

	listener := &Listener{
		config:      config,
		sink:        sink,
		logger:      logger,
		connections: make(map[net.Conn]struct{}),
	}

	switch strings.ToLower(config.Network) {
	case "tcp":
		stream, err := listenConfig.Listen(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("ingest: listening on tcp %s: %w", address, err)
		}
		listener.stream = stream
	case "udp":
		packet, err := listenConfig.ListenPacket(ctx, "udp", address)
		if err != nil {
			return nil, fmt.Errorf("ingest: listening on udp %s: %w", address, err)
		}
		listener.packet = packet
	default:
		return nil, fmt.Errorf("ingest: unsupported network %q", config.Network)
	}
	return listener, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	if l.stream != nil {
		return l.stream.Addr()
	}
	return l.packet.LocalAddr()
}

// Dropped returns the number of records the sink rejected.
func (l *Listener) Dropped() uint64 { return l.dropped.Load() }

// Malformed returns the number of lines that failed to decode.
func (l *Listener) Malformed() uint64 { return l.malformed.Load() }

// Serve receives traces until ctx is cancelled, then closes the
// socket and every open connection. It returns nil after all
// connection goroutines have exited.
func (l *Listener) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		l.closeAll()
	}()

	l.logger.Info("trace listener started",
		"network", l.config.Network,
		"address", l.Addr().String(),
	)

	if l.packet != nil {
		return l.serveDatagrams(ctx)
	}
	return l.serveStream(ctx)
}

func (l *Listener) serveStream(ctx context.Context) error {
	defer l.active.Wait()
	for {
		conn, err := l.stream.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Error("accept failed", "error", err)
			continue
		}

		if !l.track(conn) {
			conn.Close()
			return nil
		}
		l.active.Add(1)
		go func() {
			defer l.active.Done()
			defer l.untrack(conn)
			l.handleConnection(conn)
		}()
	}
}

// handleConnection reads lines until EOF, an error, or a line over
// the size limit. It never affects other connections.
func (l *Listener) handleConnection(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	l.logger.Debug("gateway connected", "remote", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, l.config.MaxLineBytes)), l.config.MaxLineBytes)
	for scanner.Scan() {
		l.handleLine(scanner.Bytes(), remote)
	}

	switch err := scanner.Err(); {
	case err == nil, netutil.IsExpectedCloseError(err):
		l.logger.Debug("gateway disconnected", "remote", remote)
	case errors.Is(err, bufio.ErrTooLong):
		l.logger.Error("trace line exceeds limit, closing connection",
			"remote", remote,
			"max_line_bytes", l.config.MaxLineBytes,
		)
	default:
		l.logger.Warn("connection read failed", "remote", remote, "error", err)
	}
}

func (l *Listener) serveDatagrams(ctx context.Context) error {
	buffer := make([]byte, maxDatagramSize)
	for {
		n, remote, err := l.packet.ReadFrom(buffer)
		if n > 0 {
			source := ""
			if remote != nil {
				source = remote.String()
			}
			for _, line := range bytes.Split(buffer[:n], []byte{'\n'}) {
				l.handleLine(line, source)
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("datagram read failed", "error", err)
		}
	}
}

// handleLine decodes one line and offers it to the sink. Blank lines
// are ignored.
func (l *Listener) handleLine(line []byte, source string) {
	offerLine(line, source, trace.Decode, l.sink, &l.dropped, &l.malformed, l.logger)
}

// track registers conn for shutdown. It returns false once the
// listener is shutting down.
func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections == nil {
		return false
	}
	l.connections[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections != nil {
		delete(l.connections, conn)
	}
}

// closeAll closes the socket and every tracked connection. Tracking
// stops afterwards.
func (l *Listener) closeAll() {
	if l.stream != nil {
		l.stream.Close()
	}
	if l.packet != nil {
		l.packet.Close()
	}
	l.mu.Lock()
	connections := l.connections
	l.connections = nil
	l.mu.Unlock()
	for conn := range connections {
		conn.Close()
	}
}

// offerLine is shared by Listener and FileTail.
func offerLine(line []byte, source string, decode func([]byte) (trace.Record, error), sink Sink, dropped, malformed *atomic.Uint64, logger *slog.Logger) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	record, err := decode(line)
	if err != nil {
		malformed.Add(1)
		logger.Warn("discarding malformed trace", "source", source, "error", err)
		return
	}
	if !sink.Offer(record) {
		total := dropped.Add(1)
		logger.Debug("trace queue full, dropping trace",
			"request_id", record.RequestID,
			"host", record.Request.Host,
			"dropped_total", total,
		)
	}
}
