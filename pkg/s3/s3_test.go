package s3

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "bare host", cfg: Config{Endpoint: "minio:9000"}, want: "https://minio:9000"},
		{name: "bare host without tls", cfg: Config{Endpoint: "minio:9000", DisableTLS: true}, want: "http://minio:9000"},
		{name: "full url kept", cfg: Config{Endpoint: "http://s3.local", DisableTLS: false}, want: "http://s3.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.endpointURL(); got != tt.want {
				t.Fatalf("endpointURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("S3_ENDPOINT", " minio:9000 ")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_DISABLE_TLS", "true")
	t.Setenv("S3_FORCE_PATH_STYLE", "false")

	cfg := ConfigFromEnv()
	if cfg.Endpoint != "minio:9000" || cfg.Region != "us-east-1" || !cfg.DisableTLS || cfg.ForcePathStyle {
		t.Fatalf("ConfigFromEnv() = %+v", cfg)
	}
}

func TestBucketSignerPresignsKey(t *testing.T) {
	client, err := NewClient(context.Background(), Config{
		Endpoint:       "minio:9000",
		AccessKey:      "ak",
		SecretKey:      "sk",
		Region:         "us-east-1",
		DisableTLS:     true,
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	signer, err := NewBucketSigner(client, "photos", 5*time.Minute)
	if err != nil {
		t.Fatalf("NewBucketSigner() error = %v", err)
	}

	raw, err := signer.URL(context.Background(), "users/7/a.jpg")
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Host != "minio:9000" || !strings.HasPrefix(u.Path, "/photos/users/7/a.jpg") {
		t.Fatalf("presigned url = %s", raw)
	}
	if u.Query().Get("X-Amz-Expires") != "300" {
		t.Fatalf("X-Amz-Expires = %q, want 300", u.Query().Get("X-Amz-Expires"))
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{Endpoint: "minio:9000"}); err == nil {
		t.Fatalf("NewClient() without credentials succeeded")
	}
	if _, err := NewBucketSigner(nil, "photos", time.Minute); err == nil {
		t.Fatalf("NewBucketSigner(nil) succeeded")
	}
}

func writeCABundle(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "eventmatch test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestNewClientHonoursCABundle(t *testing.T) {
	t.Setenv("AWS_CA_BUNDLE", writeCABundle(t))

	client, err := NewClient(context.Background(), Config{
		Endpoint:   "minio:9000",
		AccessKey:  "ak",
		SecretKey:  "sk",
		Region:     "us-east-1",
		DisableTLS: true,
	})
	if err != nil {
		t.Fatalf("NewClient() with AWS_CA_BUNDLE error = %v", err)
	}
	signer, err := NewBucketSigner(client, "photos", time.Minute)
	if err != nil {
		t.Fatalf("NewBucketSigner() error = %v", err)
	}
	if _, err := signer.URL(context.Background(), "users/7/a.jpg"); err != nil {
		t.Fatalf("URL() error = %v", err)
	}
}
