package dkim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"complaintmail/internal/config"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, string(pem.EncodeToMemory(block))
}

func TestNewDisabled(t *testing.T) {
	signer, err := New(config.DKIM{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if signer != nil {
		t.Fatalf("expected nil signer when nothing is configured")
	}
}

func TestNewRequiresSelector(t *testing.T) {
	_, pemData := testKeyPEM(t)
	if _, err := New(config.DKIM{PrivateKey: pemData}); err == nil {
		t.Fatalf("expected error without selector")
	}
}

func TestNewInlineKey(t *testing.T) {
	_, pemData := testKeyPEM(t)

	signer, err := New(config.DKIM{Selector: "mail", PrivateKey: pemData, Domain: "Example.com"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if signer.Selector() != "mail" || signer.Domain() != "example.com" {
		t.Fatalf("unexpected signer %q/%q", signer.Selector(), signer.Domain())
	}
}

func TestNewKeyPath(t *testing.T) {
	_, pemData := testKeyPEM(t)
	path := filepath.Join(t.TempDir(), "dkim.pem")
	if err := os.WriteFile(path, []byte(pemData), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	if _, err := New(config.DKIM{Selector: "mail", KeyPath: path}); err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := New(config.DKIM{Selector: "mail", KeyPath: path + ".missing"}); err == nil {
		t.Fatalf("expected error for missing key file")
	}
}

func TestSignerSignAddsHeader(t *testing.T) {
	key, _ := testKeyPEM(t)
	signer := &Signer{
		selector:   "test",
		key:        key,
		headerKeys: []string{"from", "subject"},
	}

	raw := "From: Complaints Desk <desk@example.com>\nSubject: Test\n\nBody\n"
	signed, err := signer.Sign([]byte(raw), "Complaints Desk <desk@example.com>")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	payload := string(signed)
	if !strings.Contains(payload, "DKIM-Signature:") {
		t.Fatalf("expected DKIM-Signature header, got %q", payload)
	}
	if !strings.Contains(payload, "d=example.com") {
		t.Fatalf("expected signing domain from sender, got %q", payload)
	}
	if !strings.Contains(payload, "\r\nFrom: Complaints Desk <desk@example.com>") {
		t.Fatalf("expected CRLF normalized output, got %q", payload)
	}
}

func TestSignerSkipsWhenHeaderPresent(t *testing.T) {
	key, _ := testKeyPEM(t)
	signer := &Signer{selector: "test", key: key, headerKeys: []string{"from"}}

	raw := "DKIM-Signature: existing\r\nFrom: sender@example.com\r\n\r\nBody\r\n"
	signed, err := signer.Sign([]byte(raw), "sender@example.com")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if string(signed) != raw {
		t.Fatalf("expected message to remain unchanged when signature exists")
	}
}

func TestNilSignerPassesThrough(t *testing.T) {
	var signer *Signer
	out, err := signer.Sign([]byte("body"), "a@example.com")
	if err != nil || string(out) != "body" {
		t.Fatalf("expected passthrough, got %q, %v", out, err)
	}
	if signer.Selector() != "" || signer.Domain() != "" {
		t.Fatalf("expected empty selector and domain for nil signer")
	}
}

func TestHasSignatureOnlyInspectsHeaders(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want bool
	}{
		{"first header", "DKIM-Signature: v=1\r\nFrom: a@x.com\r\n\r\nbody\r\n", true},
		{"later header lower case", "From: a@x.com\r\ndkim-signature: v=1\r\n\r\nbody\r\n", true},
		{"mentioned in body", "From: a@x.com\r\n\r\nDKIM-Signature: quoted\r\n", false},
		{"folded continuation", "Subject: hi\r\n DKIM-Signature: x\r\n\r\nbody\r\n", false},
		{"lf only", "From: a@x.com\nDKIM-Signature: v=1\n\nbody\n", true},
	}
	for _, tc := range cases {
		if got := hasSignature([]byte(tc.msg)); got != tc.want {
			t.Errorf("%s: hasSignature = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeLineEndings(t *testing.T) {
	cases := map[string]string{
		"a\nb\n":      "a\r\nb\r\n",
		"a\r\nb\r\n":  "a\r\nb\r\n",
		"a\r\nb\nc":   "a\r\nb\r\nc",
		"single line": "single line",
		"\nleading":   "\r\nleading",
	}
	for in, want := range cases {
		if got := string(normalizeLineEndings([]byte(in))); got != want {
			t.Errorf("normalizeLineEndings(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePrivateKeySkipsOtherBlocks(t *testing.T) {
	key, keyPEM := testKeyPEM(t)
	cert := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("not a cert")}))

	got, err := parsePrivateKey([]byte(cert + keyPEM))
	if err != nil {
		t.Fatalf("parsePrivateKey returned error: %v", err)
	}
	if !key.PublicKey.Equal(got.Public()) {
		t.Fatalf("parsed key does not match generated key")
	}

	if _, err := parsePrivateKey([]byte(cert)); err == nil {
		t.Fatalf("expected error when no key block is present")
	}
	bad := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("garbage")})
	if _, err := parsePrivateKey(bad); err == nil || !strings.Contains(err.Error(), "private key") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
