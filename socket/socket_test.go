package socket

import (
	"sync"
	"testing"
	"time"
)

func newTestPair(t *testing.T) (server, client *Socket) {
	t.Helper()
	settings := DefaultSettings()
	settings.AckTimeout = 50 * time.Millisecond

	var err error
	server, err = New(settings, nil)
	if err != nil {
		t.Fatalf("New server: %v", err)
	}
	client, err = New(settings, nil)
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	if err := server.Bind("127.0.0.1:0"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return server, client
}

func TestHandshakeEstablishesConnection(t *testing.T) {
	server, client := newTestPair(t)
	defer server.Close()
	defer client.Close()

	serverAddr := server.ep.LocalAddr().String()

	var wg sync.WaitGroup
	wg.Add(1)
	var acceptErr error
	go func() {
		defer wg.Done()
		_, acceptErr = server.Accept()
	}()

	time.Sleep(10 * time.Millisecond)
	if err := client.Connect("127.0.0.1:0", serverAddr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	wg.Wait()
	if acceptErr != nil {
		t.Fatalf("Accept: %v", acceptErr)
	}

	if server.State() != StateEstablished {
		t.Fatalf("server state = %v, want ESTABLISHED", server.State())
	}
	if client.State() != StateEstablished {
		t.Fatalf("client state = %v, want ESTABLISHED", client.State())
	}
}

func TestSendRecvInOrder(t *testing.T) {
	server, client := newTestPair(t)
	defer server.Close()
	defer client.Close()

	serverAddr := server.ep.LocalAddr().String()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Accept()
	}()
	time.Sleep(10 * time.Millisecond)
	if err := client.Connect("127.0.0.1:0", serverAddr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	wg.Wait()

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var recvWg sync.WaitGroup
	recvWg.Add(1)
	received := make([]byte, len(payload))
	var recvErr error
	var n int
	go func() {
		defer recvWg.Done()
		n, recvErr = server.Recv(received, WaitAll)
	}()

	if _, err := client.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	recvWg.Wait()
	if recvErr != nil {
		t.Fatalf("Recv: %v", recvErr)
	}
	if n != len(payload) {
		t.Fatalf("Recv delivered %d bytes, want %d", n, len(payload))
	}
	for i := range payload {
		if received[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, received[i], payload[i])
		}
	}
}

func TestGracefulActiveShutdown(t *testing.T) {
	server, client := newTestPair(t)
	defer server.Close()
	defer client.Close()

	serverAddr := server.ep.LocalAddr().String()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Accept()
	}()
	time.Sleep(10 * time.Millisecond)
	if err := client.Connect("127.0.0.1:0", serverAddr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	wg.Wait()

	var shutdownWg sync.WaitGroup
	shutdownWg.Add(2)
	var clientErr, serverErr error
	go func() {
		defer shutdownWg.Done()
		clientErr = client.Shutdown()
	}()
	go func() {
		defer shutdownWg.Done()
		buf := make([]byte, 1)
		for {
			_, serverErr = server.Recv(buf, WaitAll)
			if serverErr != nil {
				break
			}
		}
		if fe, ok := serverErr.(*FSMError); ok && fe.Errno == ErrnoPeerClosed {
			serverErr = server.FinishPassiveClose()
		}
	}()
	shutdownWg.Wait()

	if clientErr != nil {
		t.Fatalf("client Shutdown: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("server passive close: %v", serverErr)
	}
	if client.State() != StateClosed {
		t.Fatalf("client state after shutdown = %v, want CLOSED", client.State())
	}
}
