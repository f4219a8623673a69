// Package socket listens on TCP and decodes newline-delimited JSON objects
// from every accepted connection.
package socket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"streamproducer/internal/logging"
	"streamproducer/internal/record"
	"streamproducer/source"
	"streamproducer/source/lines"
)

const (
	Format = "socket"

	DefaultAddr        = "127.0.0.1:4000"
	DefaultBufferSize  = 10_000
	DefaultMaxLineSize = 1024 * 1024
)

type decoder struct {
	lis         net.Listener
	lines       chan []byte
	maxLineSize int
	item        int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Listen starts accepting connections immediately. The decoder never
// reports io.EOF; it ends when Next's context is cancelled.
func Listen(cfg source.SocketConfig) (source.Decoder, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = DefaultMaxLineSize
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("socket: listen %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &decoder{
		lis:         lis,
		lines:       make(chan []byte, cfg.BufferSize),
		maxLineSize: cfg.MaxLineSize,
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[net.Conn]struct{}),
	}
	logging.Component("socket").Info("listening", "addr", lis.Addr().String())

	d.wg.Add(1)
	go d.acceptLoop()
	return d, nil
}

// Addr is the bound listen address.
func (d *decoder) Addr() net.Addr { return d.lis.Addr() }

func (d *decoder) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.lis.Accept()
		if err != nil {
			if d.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		if !d.track(conn) {
			conn.Close()
			return
		}
		d.wg.Add(1)
		go d.handleConnection(conn)
	}
}

// track registers a live connection. It reports false once Close has run.
func (d *decoder) track(conn net.Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns == nil {
		return false
	}
	d.conns[conn] = struct{}{}
	return true
}

func (d *decoder) untrack(conn net.Conn) {
	d.mu.Lock()
	delete(d.conns, conn)
	d.mu.Unlock()
	conn.Close()
}

func (d *decoder) handleConnection(conn net.Conn) {
	defer d.wg.Done()
	defer d.untrack(conn)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), d.maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := append([]byte(nil), line...)
		select {
		case d.lines <- cp:
		case <-d.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if d.ctx.Err() != nil {
			return
		}
		if errors.Is(err, bufio.ErrTooLong) {
			logging.Component("socket").Warn("dropped connection with oversized line",
				"remote", conn.RemoteAddr().String(), "max_line_size", d.maxLineSize)
			return
		}
		logging.Component("socket").Warn("read error", "remote", conn.RemoteAddr().String(), "err", err)
	}
}

func (d *decoder) Next(ctx context.Context) (record.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.ctx.Done():
		return nil, net.ErrClosed
	case line := <-d.lines:
		d.item++
		rec, err := lines.ParseObject(line)
		if err != nil {
			return nil, &source.DecodeError{Item: d.item, Err: err}
		}
		return rec, nil
	}
}

func (d *decoder) Close() error {
	var err error
	d.once.Do(func() {
		d.cancel()
		err = d.lis.Close()
		// Idle clients would otherwise keep their readers blocked.
		d.mu.Lock()
		for conn := range d.conns {
			conn.Close()
		}
		d.conns = nil
		d.mu.Unlock()
		d.wg.Wait()
	})
	return err
}

func init() {
	source.Register(Format, func(_ context.Context, cfg source.Config) (source.Decoder, error) {
		return Listen(cfg.Socket)
	})
}
