package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ":8000"},
		{in: "9000", want: ":9000"},
		{in: ":9000", want: ":9000"},
	}
	for _, tt := range tests {
		if got := Addr(tt.in); got != tt.want {
			t.Fatalf("Addr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	err = Run(context.Background(), ln.Addr().String(), http.NotFoundHandler())
	if err == nil {
		t.Fatalf("expected error for an address in use")
	}
}
