package chassis

import (
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSecurityHeaders(t *testing.T) {
	s, err := New(Config{Handler: http.NotFoundHandler(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestNewRejects(t *testing.T) {
	if _, err := New(Config{Logger: quietLogger()}); err == nil {
		t.Error("nil handler: expected an error")
	}
	if _, err := New(Config{Handler: http.NotFoundHandler(), TLSMode: "quic", Logger: quietLogger()}); err == nil {
		t.Error("unknown tls mode: expected an error")
	}
	if _, err := New(Config{Handler: http.NotFoundHandler(), TLSMode: TLSFiles, CertFile: "missing.pem", KeyFile: "missing.key", Logger: quietLogger()}); err == nil {
		t.Error("missing cert files: expected an error")
	}
}

func TestDevelopmentTLSConfig(t *testing.T) {
	cfg, err := DevelopmentTLSConfig("climmo.test", "10.0.0.7", "0.0.0.0", "")
	if err != nil {
		t.Fatalf("DevelopmentTLSConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 || cfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("config = %+v", cfg)
	}
	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	for _, host := range []string{"localhost", "climmo.test", "127.0.0.1", "10.0.0.7"} {
		if err := leaf.VerifyHostname(host); err != nil {
			t.Errorf("VerifyHostname(%s): %v", host, err)
		}
	}
	if len(leaf.IPAddresses) != 3 {
		t.Errorf("ip SANs = %v, want loopbacks and 10.0.0.7", leaf.IPAddresses)
	}
}

func writePair(t *testing.T, dir, host string, mtime time.Time) (string, string) {
	t.Helper()
	cert, err := GenerateSelfSignedCert(host)
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(cert.PrivateKey.(*ecdsa.PrivateKey))
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	certFile, keyFile := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	for _, f := range []string{certFile, keyFile} {
		if err := os.Chtimes(f, mtime, mtime); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}
	return certFile, keyFile
}

func TestProductionTLSConfigReloads(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	certFile, keyFile := writePair(t, dir, "first.test", base)

	cfg, err := ProductionTLSConfig(certFile, keyFile)
	if err != nil {
		t.Fatalf("ProductionTLSConfig: %v", err)
	}
	served := func() *x509.Certificate {
		t.Helper()
		c, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
		if err != nil {
			t.Fatalf("GetCertificate: %v", err)
		}
		leaf, err := x509.ParseCertificate(c.Certificate[0])
		if err != nil {
			t.Fatalf("ParseCertificate: %v", err)
		}
		return leaf
	}
	if err := served().VerifyHostname("first.test"); err != nil {
		t.Errorf("initial cert: %v", err)
	}

	writePair(t, dir, "second.test", base.Add(time.Minute))
	if err := served().VerifyHostname("second.test"); err != nil {
		t.Errorf("renewed cert not picked up: %v", err)
	}

	if err := os.Remove(keyFile); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := served().VerifyHostname("second.test"); err != nil {
		t.Errorf("missing key file should keep the last pair: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "ok") })
	s, err := New(Config{Addr: "127.0.0.1:0", Handler: handler, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		if s.Addr() != "127.0.0.1:0" {
			resp, err = http.Get("http://" + s.Addr() + "/")
			if err == nil {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if resp == nil {
		t.Fatalf("server never answered: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" || resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Errorf("body = %q, headers = %v", body, resp.Header)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
