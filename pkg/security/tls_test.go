package security

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

func newInitializedCA(t *testing.T) *CertAuthority {
	t.Helper()
	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return ca
}

func TestCertAuthorityInitialize(t *testing.T) {
	ca := NewCertAuthority()
	if ca.IsInitialized() {
		t.Error("new CA reports initialized")
	}

	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !ca.IsInitialized() {
		t.Error("CA not initialized after Initialize()")
	}

	pem := ca.RootCertPEM()
	if len(pem) == 0 {
		t.Error("RootCertPEM() returned empty")
	}
}

func TestIssueServerCertificate(t *testing.T) {
	ca := newInitializedCA(t)

	cert, err := ca.IssueServerCertificate("strata-api",
		[]string{"localhost", "strata.internal"},
		[]net.IP{net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("IssueServerCertificate() error = %v", err)
	}

	leaf := cert.Leaf
	if leaf == nil {
		t.Fatal("issued certificate has no leaf")
	}
	if leaf.Subject.CommonName != "strata-api" {
		t.Errorf("CommonName = %q, want strata-api", leaf.Subject.CommonName)
	}
	if len(leaf.DNSNames) != 2 || leaf.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", leaf.DNSNames)
	}
	if leaf.IsCA {
		t.Error("serving certificate marked as CA")
	}

	if err := ca.VerifyCertificate(leaf); err != nil {
		t.Errorf("VerifyCertificate() error = %v", err)
	}
}

func TestIssueWithoutInitialization(t *testing.T) {
	ca := NewCertAuthority()
	if _, err := ca.IssueServerCertificate("strata-api", nil, nil); err == nil {
		t.Error("IssueServerCertificate() on empty CA expected error")
	}
}

func TestVerifyRejectsForeignCertificate(t *testing.T) {
	ca := newInitializedCA(t)
	other := newInitializedCA(t)

	cert, err := other.IssueServerCertificate("strata-api", []string{"localhost"}, nil)
	if err != nil {
		t.Fatalf("IssueServerCertificate() error = %v", err)
	}

	if err := ca.VerifyCertificate(cert.Leaf); err == nil {
		t.Error("VerifyCertificate() accepted a certificate from another CA")
	}
}

func TestSaveAndLoadCertAuthority(t *testing.T) {
	dir := t.TempDir()
	box, _ := NewBoxFromSecret("bootstrap-secret")
	ca := newInitializedCA(t)

	if CAExists(dir) {
		t.Error("CAExists() true for empty directory")
	}
	if err := ca.SaveToDir(dir, box); err != nil {
		t.Fatalf("SaveToDir() error = %v", err)
	}
	if !CAExists(dir) {
		t.Error("CAExists() false after save")
	}

	loaded, err := LoadCertAuthority(dir, box)
	if err != nil {
		t.Fatalf("LoadCertAuthority() error = %v", err)
	}
	if !loaded.IsInitialized() {
		t.Error("loaded CA not initialized")
	}

	// A certificate issued by the loaded CA verifies against the original.
	cert, err := loaded.IssueServerCertificate("strata-api", []string{"localhost"}, nil)
	if err != nil {
		t.Fatalf("IssueServerCertificate() error = %v", err)
	}
	if err := ca.VerifyCertificate(cert.Leaf); err != nil {
		t.Errorf("certificate from loaded CA failed verification: %v", err)
	}
}

func TestLoadCertAuthorityWrongSecret(t *testing.T) {
	dir := t.TempDir()
	box, _ := NewBoxFromSecret("bootstrap-secret")
	ca := newInitializedCA(t)

	if err := ca.SaveToDir(dir, box); err != nil {
		t.Fatalf("SaveToDir() error = %v", err)
	}

	wrong, _ := NewBoxFromSecret("other-secret")
	if _, err := LoadCertAuthority(dir, wrong); err == nil {
		t.Error("LoadCertAuthority() with wrong secret expected error")
	}
}

func TestCertNeedsRotation(t *testing.T) {
	tests := []struct {
		name string
		cert *x509.Certificate
		want bool
	}{
		{
			name: "nil certificate",
			cert: nil,
			want: true,
		},
		{
			name: "fresh certificate",
			cert: &x509.Certificate{
				SerialNumber: big.NewInt(1),
				Subject:      pkix.Name{CommonName: "fresh"},
				NotAfter:     time.Now().Add(60 * 24 * time.Hour),
			},
			want: false,
		},
		{
			name: "inside rotation window",
			cert: &x509.Certificate{
				SerialNumber: big.NewInt(2),
				Subject:      pkix.Name{CommonName: "aging"},
				NotAfter:     time.Now().Add(10 * 24 * time.Hour),
			},
			want: true,
		},
		{
			name: "expired certificate",
			cert: &x509.Certificate{
				SerialNumber: big.NewInt(3),
				Subject:      pkix.Name{CommonName: "expired"},
				NotAfter:     time.Now().Add(-time.Hour),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CertNeedsRotation(tt.cert); got != tt.want {
				t.Errorf("CertNeedsRotation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServerTLSConfig(t *testing.T) {
	ca := newInitializedCA(t)
	cert, err := ca.IssueServerCertificate("strata-api", []string{"localhost"}, nil)
	if err != nil {
		t.Fatalf("IssueServerCertificate() error = %v", err)
	}

	cfg := ServerTLSConfig(cert)
	if len(cfg.Certificates) != 1 {
		t.Errorf("Certificates length = %d, want 1", len(cfg.Certificates))
	}
	if cfg.MinVersion != 0x0303 { // TLS 1.2
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
}
