package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"testing"
	"time"

	"novachat/internal/httpapi"
)

// selfSignedTLSConfig builds an in-memory certificate good enough for
// a loopback TLS handshake in tests; nothing here touches the disk.
func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"Test"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

func TestListenAndServeRoundTrip(t *testing.T) {
	tlsConfig := selfSignedTLSConfig(t)
	dispatcher := &fakeDispatcher{}
	l, err := Listen("127.0.0.1:0", tlsConfig, dispatcher, nil, testConfig())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve()
	defer l.Shutdown()

	clientConn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Close = true
	if err := req.Write(clientConn); err != nil {
		t.Fatalf("write request: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected response bytes")
	}
	if len(dispatcher.calls) != 1 {
		t.Fatalf("expected one dispatched request, got %d", len(dispatcher.calls))
	}
}

func TestListenerCloseStopsAccepting(t *testing.T) {
	tlsConfig := selfSignedTLSConfig(t)
	l, err := Listen("127.0.0.1:0", tlsConfig, &fakeDispatcher{}, nil, testConfig())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- l.Serve() }()

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("expected Serve to return nil after Close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after Close")
	}
}

func TestShutdownWaitsForInFlightSessions(t *testing.T) {
	tlsConfig := selfSignedTLSConfig(t)
	started := make(chan struct{})
	blockUntil := make(chan struct{})
	dispatcher := &fakeDispatcher{respond: func(req *httpapi.Request) *httpapi.Response {
		close(started)
		<-blockUntil
		h := http.Header{}
		return &httpapi.Response{Status: http.StatusOK, Header: h}
	}}
	l, err := Listen("127.0.0.1:0", tlsConfig, dispatcher, nil, testConfig())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve()

	clientConn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Close = true
	go req.Write(clientConn)

	<-started
	close(blockUntil)
	l.Shutdown()
}

func TestDrainWithPollReturnsTrueWhenSessionsFinishInTime(t *testing.T) {
	tlsConfig := selfSignedTLSConfig(t)
	l, err := Listen("127.0.0.1:0", tlsConfig, &fakeDispatcher{}, nil, testConfig())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve()

	clientConn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Close = true
	if err := req.Write(clientConn); err != nil {
		t.Fatalf("write request: %v", err)
	}
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	if _, err := clientConn.Read(buf); err != nil {
		t.Fatalf("read response: %v", err)
	}

	drained := l.DrainWithPoll(2*time.Second, 50*time.Millisecond)
	if !drained {
		t.Fatalf("expected DrainWithPoll to report a clean drain")
	}
}

func TestDrainWithPollReturnsFalseOnTimeout(t *testing.T) {
	tlsConfig := selfSignedTLSConfig(t)
	blockUntil := make(chan struct{})
	started := make(chan struct{})
	dispatcher := &fakeDispatcher{respond: func(req *httpapi.Request) *httpapi.Response {
		close(started)
		<-blockUntil
		h := http.Header{}
		return &httpapi.Response{Status: http.StatusOK, Header: h}
	}}
	l, err := Listen("127.0.0.1:0", tlsConfig, dispatcher, nil, testConfig())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve()
	defer close(blockUntil)

	clientConn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Close = true
	go req.Write(clientConn)

	<-started
	drained := l.DrainWithPoll(200*time.Millisecond, 50*time.Millisecond)
	if drained {
		t.Fatalf("expected DrainWithPoll to time out while the handler is still blocked")
	}
}
