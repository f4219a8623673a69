package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"streamproducer/source"
)

func TestSocket_DecodesLinesFromConnections(t *testing.T) {
	dec, err := Listen(source.SocketConfig{Addr: "127.0.0.1:0", BufferSize: 16})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer dec.Close()

	conn, err := net.Dial("tcp", dec.(*decoder).Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fmt.Fprint(conn, "{\"RECORD_ID\":\"1\"}\n\nbad line\n{\"RECORD_ID\":\"2\"}\n")
	conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := dec.Next(ctx)
	if err != nil || rec["RECORD_ID"] != "1" {
		t.Fatalf("first: (%v, %v)", rec, err)
	}
	if _, err := dec.Next(ctx); !source.IsRecoverable(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	rec, err = dec.Next(ctx)
	if err != nil || rec["RECORD_ID"] != "2" {
		t.Fatalf("third: (%v, %v)", rec, err)
	}
}

func TestSocket_NextStopsOnCancel(t *testing.T) {
	dec, err := Listen(source.SocketConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer dec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := dec.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSocket_CloseWithIdleClient(t *testing.T) {
	dec, err := Listen(source.SocketConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	conn, err := net.Dial("tcp", dec.(*decoder).Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	fmt.Fprint(conn, "{\"RECORD_ID\":\"1\"}\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := dec.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	// The client stays connected and silent.
	done := make(chan error, 1)
	go func() { done <- dec.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Close blocked while a client connection was open")
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected the server side to close the connection")
	}
}
