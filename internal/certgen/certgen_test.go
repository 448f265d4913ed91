package certgen

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewCA(t *testing.T) {
	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if !ca.Cert.IsCA {
		t.Error("certificate is not a CA")
	}
	if ca.Cert.Subject.CommonName != "Test CA" {
		t.Errorf("CN = %q; want %q", ca.Cert.Subject.CommonName, "Test CA")
	}
	block, _ := pem.Decode(ca.CertPEM())
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("CertPEM did not produce a certificate block")
	}
}

func TestServerCertificate_VerifiesAgainstCA(t *testing.T) {
	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	certPEM, keyPEM, err := ca.ServerCertificate(time.Hour, "localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("ServerCertificate: %v", err)
	}
	if !strings.Contains(string(keyPEM), "EC PRIVATE KEY") {
		t.Errorf("unexpected key PEM: %s", keyPEM)
	}

	block, _ := pem.Decode(certPEM)
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	for _, host := range []string{"localhost", "127.0.0.1"} {
		if _, err := cert.Verify(x509.VerifyOptions{Roots: pool, DNSName: host}); err != nil {
			t.Errorf("verify for %s: %v", host, err)
		}
	}
	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool, DNSName: "example.com"}); err == nil {
		t.Error("expected verification to fail for an unlisted host")
	}
}

func TestServerCertificate_NoHosts(t *testing.T) {
	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := ca.ServerCertificate(time.Hour); err == nil {
		t.Error("expected error for empty host list")
	}
}

func TestTLSServerCertificate(t *testing.T) {
	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ca.TLSServerCertificate(time.Hour, "127.0.0.1")
	if err != nil {
		t.Fatalf("TLSServerCertificate: %v", err)
	}
	if len(c.Certificate) != 1 {
		t.Errorf("chain length = %d; want 1", len(c.Certificate))
	}
}

func TestLoadCA(t *testing.T) {
	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")
	keyPEM, err := ca.KeyPEM()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(certPath, ca.CertPEM(), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadCA(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCA: %v", err)
	}
	if !loaded.Cert.Equal(ca.Cert) {
		t.Error("loaded certificate differs")
	}
	if !loaded.Key.Equal(ca.Key) {
		t.Error("loaded key differs")
	}
}

func TestLoadCA_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cert     string
		key      string
		contains string
	}{
		{"missing cert", filepath.Join(dir, "none.crt"), bad, "read ca cert"},
		{"missing key", bad, filepath.Join(dir, "none.key"), "read ca key"},
		{"invalid cert", bad, bad, "invalid CA cert PEM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCA(tt.cert, tt.key)
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error containing %q, got %v", tt.contains, err)
			}
		})
	}
}
