package datagram

import (
	"net"
	"testing"
	"time"
)

func TestBindSendRecvLoopback(t *testing.T) {
	server, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind server: %v", err)
	}
	defer server.Close()

	client, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind client: %v", err)
	}
	defer client.Close()

	serverAddr := server.LocalAddr().(*net.UDPAddr)
	sig := client.SendTo([]byte("hello"), serverAddr)
	if sig != CarriesData {
		t.Fatalf("SendTo signal = %v, want CarriesData", sig)
	}

	buf := make([]byte, 64)
	n, _, sig := server.RecvFrom(buf, time.Second)
	if sig != CarriesData {
		t.Fatalf("RecvFrom signal = %v, want CarriesData", sig)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("RecvFrom payload = %q, want hello", buf[:n])
	}
}

func TestRecvFromTimesOut(t *testing.T) {
	ep, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ep.Close()

	buf := make([]byte, 64)
	_, _, sig := ep.RecvFrom(buf, 20*time.Millisecond)
	if sig != Timeout {
		t.Fatalf("RecvFrom signal = %v, want Timeout", sig)
	}
}

func TestSignalString(t *testing.T) {
	if Fatal.String() != "FATAL" {
		t.Fatalf("Fatal.String() = %q, want FATAL", Fatal.String())
	}
}
