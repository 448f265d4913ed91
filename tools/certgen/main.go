// Package main generates a private CA and a server certificate signed by it,
// writing them under the output directory. An existing ca.crt/ca.key pair in
// that directory is reused unless -new-ca is given. Point the client at the
// CA with -ca <dir>/ca.crt when the API is served over https with these files.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/chemora/internal/certgen"
)

const (
	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 365 * 24 * time.Hour
)

func main() {
	dir := flag.String("out", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	newCA := flag.Bool("new-ca", false, "replace an existing CA in the output directory")
	flag.Parse()

	if err := generate(*dir, strings.Split(*hosts, ","), *newCA); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Certificates generated into %s\n", *dir)
}

// generate writes server.crt and server.key into dir, signed by the CA in
// dir. The CA is created (ca.crt, ca.key) when absent or when newCA is set.
func generate(dir string, hosts []string, newCA bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	ca, err := loadOrCreateCA(dir, newCA)
	if err != nil {
		return err
	}
	caKey, err := ca.KeyPEM()
	if err != nil {
		return err
	}
	serverCert, serverKey, err := ca.ServerCertificate(serverValidity, hosts...)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{"ca.crt", ca.CertPEM(), 0o644},
		{"ca.key", caKey, 0o600},
		{"server.crt", serverCert, 0o644},
		{"server.key", serverKey, 0o600},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, f.perm); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

func loadOrCreateCA(dir string, fresh bool) (*certgen.CA, error) {
	certPath, keyPath := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
	if !fresh {
		ca, err := certgen.LoadCA(certPath, keyPath)
		if err == nil {
			return ca, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reuse existing CA: %w", err)
		}
	}
	return certgen.NewCA("Chemora Dev CA", caValidity)
}
