package internal

import (
	"abcpay/config"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testMerchant = "103881234567890"

// Committed identity of testMerchant: merchant.key with its certificate, also
// exported as merchant.pfx under pfxPassword.
const (
	merchantKeyFile = "testdata/merchant.key"
	merchantPfxFile = "testdata/merchant.pfx"
	pfxPassword     = "abc123"
)

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// recordingLogger keeps every line for assertions.
type recordingLogger struct {
	mutex   sync.Mutex
	entries []string
}

func (l *recordingLogger) add(level, text string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.entries = append(l.entries, level+": "+text)
}

func (l *recordingLogger) Debug(text string) { l.add("debug", text) }
func (l *recordingLogger) Info(text string)  { l.add("info", text) }
func (l *recordingLogger) Warn(text string)  { l.add("warn", text) }
func (l *recordingLogger) Error(text string, err error) {
	l.add("error", fmt.Sprintf("%s: %v", text, err))
}

func (l *recordingLogger) contains(level, fragment string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, entry := range l.entries {
		if strings.HasPrefix(entry, level+": ") && strings.Contains(entry, fragment) {
			return true
		}
	}
	return false
}

var (
	keysOnce sync.Once
	testKeys [2]*rsa.PrivateKey
)

// testKey returns one of two RSA keys shared by the package tests.
func testKey(t *testing.T, n int) *rsa.PrivateKey {
	t.Helper()
	keysOnce.Do(func() {
		for i := range testKeys {
			key, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				panic(err)
			}
			testKeys[i] = key
		}
	})
	return testKeys[n]
}

// selfSigned issues a CA certificate valid from a year before testNow until notAfter.
func selfSigned(t *testing.T, key *rsa.PrivateKey, commonName string, notAfter time.Time) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"Agricultural Bank of China"}},
		NotBefore:             testNow.AddDate(-1, 0, 0),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// serverCertificate issues a TLS certificate for 127.0.0.1 signed by itself.
func serverCertificate(t *testing.T, key *rsa.PrivateKey) (tls.Certificate, *x509.Certificate) {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "pay.test.abchina.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: cert}, cert
}

func certPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// writeIdentity stores a certificate and its PKCS#8 key in one PEM file.
func writeIdentity(t *testing.T, dir, name string, key *rsa.PrivateKey, cert *x509.Certificate) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	data := append(certPEM(cert), pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})...)
	return writeFile(t, dir, name, data)
}

func testConfig(dir string, merchants ...config.Merchant) *config.Config {
	conf := &config.Config{Environment: "Test"}
	conf.Abc = config.Abc{
		ServerName:    "127.0.0.1",
		ServerPort:    "443",
		ConnectMethod: "https",
		TrxUrlPath:    "/ebus/ReceiveMerchantTrxReqServlet",
		IETrxUrlPath:  "/ebus/ReceiveMerchantIERequestServlet",
		Timeout:       5 * time.Second,
		TrustStoreDir: dir,
		Merchants:     merchants,
	}
	return conf
}

// testStore loads a store holding one PEM identity for testMerchant and,
// when withTrustPay is set, a TrustPay certificate made with the second key.
func testStore(t *testing.T, withTrustPay bool) (*CertificateStore, *recordingLogger) {
	t.Helper()
	dir := t.TempDir()
	key := testKey(t, 0)
	identity := writeIdentity(t, dir, "merchant.pem", key, selfSigned(t, key, "merchant", testNow.AddDate(1, 0, 0)))
	conf := testConfig(dir, config.Merchant{ID: testMerchant, CertFile: identity})
	if withTrustPay {
		trustKey := testKey(t, 1)
		conf.Abc.TrustPayCert = writeFile(t, dir, "TrustPay.cer", certPEM(selfSigned(t, trustKey, "TrustPay", testNow.AddDate(5, 0, 0))))
	}
	logger := &recordingLogger{}
	store, err := loadCertificates(conf, logger, fixedClock{now: testNow})
	require.NoError(t, err)
	return store, logger
}

// pfxStore loads the committed PKCS#12 identity for testMerchant.
func pfxStore(t *testing.T) (*CertificateStore, *recordingLogger) {
	t.Helper()
	conf := testConfig(t.TempDir(), config.Merchant{ID: testMerchant, CertFile: merchantPfxFile, CertPassword: pfxPassword})
	logger := &recordingLogger{}
	store, err := loadCertificates(conf, logger, fixedClock{now: testNow})
	require.NoError(t, err)
	return store, logger
}
