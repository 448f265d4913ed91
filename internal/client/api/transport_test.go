package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/chemora/internal/client/apitest"
	"github.com/atinyakov/chemora/internal/models"
)

// helper: generate a self-signed CA cert
func generateCACert(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	certTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, certTmpl, certTmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
}

func TestNewHTTPClient_NoCA(t *testing.T) {
	c, err := NewHTTPClient(3*time.Second, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Timeout != 3*time.Second {
		t.Errorf("timeout = %s; want 3s", c.Timeout)
	}
}

func TestNewHTTPClient_ReadCAError(t *testing.T) {
	_, err := NewHTTPClient(time.Second, "nonexistent.pem")
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file not exist error, got %v", err)
	}
}

func TestNewHTTPClient_InvalidCA(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	// write invalid PEM
	if err := os.WriteFile(caPath, []byte("invalid pem"), 0600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}
	_, err := NewHTTPClient(time.Second, caPath)
	if err == nil || !strings.Contains(err.Error(), "failed to parse CA cert") {
		t.Errorf("expected parse CA error, got %v", err)
	}
}

func TestNewHTTPClient_WithCA(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(caPath, generateCACert(t), 0600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}

	client, err := NewHTTPClient(time.Second, caPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	tcfg := client.Transport.(*http.Transport).TLSClientConfig
	// verify root CAs contains our CA
	found := false
	for _, subj := range tcfg.RootCAs.Subjects() {
		if bytes.Contains(subj, []byte("Test CA")) {
			found = true
			break
		}
	}
	if !found {
		t.Error("CA certificate not found in RootCAs")
	}
}

func TestNewHTTPClient_TrustsPrivateCA(t *testing.T) {
	srv, err := apitest.NewTLS()
	if err != nil {
		t.Fatalf("start tls server: %v", err)
	}
	defer srv.Close()

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(caPath, srv.CAPEM(), 0600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}
	cred := models.Credential{Username: "admin", Password: "admin"}

	hc, err := NewHTTPClient(5*time.Second, caPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := New(srv.BaseURL(), hc, nil).Login(context.Background(), cred); err != nil {
		t.Errorf("login over tls with CA bundle: %v", err)
	}

	// Without the bundle the system pool rejects the certificate.
	plain, err := NewHTTPClient(5*time.Second, "")
	if err != nil {
		t.Fatal(err)
	}
	err = New(srv.BaseURL(), plain, nil).Login(context.Background(), cred)
	if KindOf(err) != KindConnection {
		t.Errorf("expected connection error without CA, got %v", err)
	}
}
