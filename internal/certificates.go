package internal

import (
	"abcpay/config"
	"abcpay/entity"
	"abcpay/services"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Identity is a merchant certificate with its private key.
type Identity struct {
	MerchantID  string
	Path        string
	Format      string
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	PrivateKey  *rsa.PrivateKey
	keyPEM      []byte
}

func (i *Identity) HasPrivateKey() bool {
	return i.PrivateKey != nil
}

// TLSCertificate presents the identity as a client certificate.
func (i *Identity) TLSCertificate() (tls.Certificate, error) {
	if i.PrivateKey == nil {
		return tls.Certificate{}, ErrNoPrivateKey
	}
	chain := [][]byte{i.Certificate.Raw}
	for _, c := range i.Chain {
		chain = append(chain, c.Raw)
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  i.PrivateKey,
		Leaf:        i.Certificate,
	}, nil
}

// CertificateStore holds the merchant signing identities and the TrustPay trust anchor.
// Loading and trust installation are separate steps; see LoadCertificates and InstallTrustAnchors.
type CertificateStore struct {
	conf         *config.Config
	logger       services.LogHandler
	clock        Clock
	mutex        sync.RWMutex
	identities   map[string]*Identity
	failures     map[string]error
	trustPay     *x509.Certificate
	trustPayPEM  []byte
	trustPayPath string
	roots        *x509.CertPool
	anchors      int
}

// LoadCertificates reads every configured merchant identity and the TrustPay certificate.
// The store is returned even when some identities fail; the error joins all failures.
func LoadCertificates(conf *config.Config, logger services.LogHandler) (*CertificateStore, error) {
	return loadCertificates(conf, logger, defaultClock)
}

func loadCertificates(conf *config.Config, logger services.LogHandler, clock Clock) (*CertificateStore, error) {
	s := &CertificateStore{
		conf:       conf,
		logger:     logger,
		clock:      clock,
		identities: make(map[string]*Identity),
		failures:   make(map[string]error),
	}

	var errs []error
	if len(conf.Abc.Merchants) == 0 {
		errs = append(errs, configurationError(ErrMerchantNotConfigured))
	}
	for _, merchant := range conf.Abc.Merchants {
		identity, err := s.loadIdentity(merchant)
		if err != nil {
			s.failures[merchant.ID] = err
			logger.Error(fmt.Sprintf("merchant %s: load certificate %s", merchant.ID, merchant.CertFile), err)
			errs = append(errs, fmt.Errorf("merchant %s: %w", merchant.ID, err))
			continue
		}
		s.identities[merchant.ID] = identity
		s.logIdentity(identity)
	}

	if conf.Abc.TrustPayCert == "" {
		logger.Warn("trustpay certificate not configured; response signatures will not be verified")
	} else if err := s.loadTrustPay(conf.Abc.TrustPayCert); err != nil {
		logger.Error("trustpay certificate unavailable; response signatures will not be verified", err)
	}

	return s, errors.Join(errs...)
}

func (s *CertificateStore) loadIdentity(merchant config.Merchant) (*Identity, error) {
	if merchant.ID == "" {
		return nil, fmt.Errorf("%w: empty merchant id", ErrMerchantNotConfigured)
	}
	path, err := s.resolvePath(merchant.CertFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCertificateUnavailable, path, err)
	}
	identity, err := parseIdentity(path, data, merchant.CertPassword)
	if err != nil {
		return nil, err
	}
	identity.MerchantID = merchant.ID
	identity.Path = path
	return identity, nil
}

func (s *CertificateStore) logIdentity(identity *Identity) {
	cert := identity.Certificate
	s.logger.Info(fmt.Sprintf("merchant %s: certificate %s loaded as %s; subject: %s; expires: %s; private key: %v",
		identity.MerchantID, identity.Path, identity.Format, cert.Subject.String(), cert.NotAfter.Format(time.DateOnly), identity.HasPrivateKey()))
	if s.clock.Now().After(cert.NotAfter) {
		s.logger.Warn(fmt.Sprintf("merchant %s: certificate expired on %s", identity.MerchantID, cert.NotAfter.Format(time.DateOnly)))
	}
}

func (s *CertificateStore) loadTrustPay(file string) error {
	path, err := s.resolvePath(file)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrCertificateUnavailable, path, err)
	}
	certs, err := parseCertificates(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	publicKey, err := x509.MarshalPKIXPublicKey(certs[0].PublicKey)
	if err != nil {
		return fmt.Errorf("%s: public key: %w", path, err)
	}
	s.trustPay = certs[0]
	s.trustPayPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKey})
	s.trustPayPath = path
	s.logger.Info(fmt.Sprintf("trustpay certificate %s loaded; subject: %s; expires: %s",
		path, certs[0].Subject.String(), certs[0].NotAfter.Format(time.DateOnly)))
	return nil
}

// pathCandidates lists where a configured file is looked for, in order.
func pathCandidates(file string) []string {
	if filepath.IsAbs(file) {
		return []string{file}
	}
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), file))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, file))
	}
	return append(candidates, file)
}

func (s *CertificateStore) resolvePath(file string) (string, error) {
	candidates := pathCandidates(file)
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			s.logger.Debug(fmt.Sprintf("certificate path %s: exists", candidate))
			return candidate, nil
		}
		s.logger.Debug(fmt.Sprintf("certificate path %s: missing", candidate))
	}
	return "", fmt.Errorf("%w: %s not found; tried %s", ErrCertificateUnavailable, file, strings.Join(candidates, ", "))
}

type identityParser struct {
	name  string
	parse func(data []byte, password string) (*Identity, error)
}

var identityParsers = []identityParser{
	{name: "pkcs12", parse: parsePKCS12Identity},
	{name: "pem", parse: parsePEMIdentity},
}

// parseIdentity runs the parser chain and reports every rejection when none fits.
func parseIdentity(path string, data []byte, password string) (*Identity, error) {
	failure := &UnrecognizedFormatError{Path: path}
	for _, parser := range identityParsers {
		identity, err := parser.parse(data, password)
		if err == nil {
			identity.Format = parser.name
			return identity, nil
		}
		failure.Tried = append(failure.Tried, parser.name)
		failure.Causes = append(failure.Causes, err)
	}
	return nil, failure
}

func parsePKCS12Identity(data []byte, password string) (*Identity, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, err
	}
	return identityFromBlocks(blocks)
}

func parsePEMIdentity(data []byte, _ string) (*Identity, error) {
	var blocks []*pem.Block
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no PEM blocks")
	}
	return identityFromBlocks(blocks)
}

func identityFromBlocks(blocks []*pem.Block) (*Identity, error) {
	var certs []*x509.Certificate
	var key *rsa.PrivateKey
	for _, block := range blocks {
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			certs = append(certs, cert)
		case "PRIVATE KEY", "RSA PRIVATE KEY":
			parsed, err := parsePrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			key = parsed
		}
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found")
	}

	identity := &Identity{PrivateKey: key}
	leaf := 0
	if key != nil {
		for i, cert := range certs {
			if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok && pub.Equal(&key.PublicKey) {
				leaf = i
				break
			}
		}
		identity.keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	}
	identity.Certificate = certs[leaf]
	for i, cert := range certs {
		if i != leaf {
			identity.Chain = append(identity.Chain, cert)
		}
	}
	return identity, nil
}

// parsePrivateKey accepts PKCS#1 and PKCS#8 encodings of an RSA key.
func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("private key is neither PKCS#1 nor PKCS#8: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}
	return key, nil
}

// parseCertificates reads PEM encoded certificates, or a single DER certificate.
func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) > 0 {
		return certs, nil
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: neither PEM nor DER: %v", ErrUnrecognizedFormat, err)
	}
	return []*x509.Certificate{cert}, nil
}

// InstallTrustAnchors builds the pool used to verify the bank's TLS certificate:
// the system roots, the TrustPay certificate and the configured truststore files.
// Missing truststore files are skipped; unreadable ones are reported.
func (s *CertificateStore) InstallTrustAnchors() (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		s.logger.Warn(fmt.Sprintf("system certificate pool unavailable: %v", err))
		pool = x509.NewCertPool()
	}

	installed := 0
	if s.trustPay != nil {
		pool.AddCert(s.trustPay)
		installed++
	}

	var errs []error
	for _, file := range s.conf.Abc.TrustStoreFiles {
		name := file
		if s.conf.Abc.TrustStoreDir != "" && !filepath.IsAbs(file) {
			name = filepath.Join(s.conf.Abc.TrustStoreDir, file)
		}
		path, err := s.resolvePath(name)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("truststore file %s skipped: not found", name))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		certs, err := parseCertificates(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for _, cert := range certs {
			pool.AddCert(cert)
			installed++
			kind := "intermediate"
			if isSelfIssued(cert) {
				kind = "root"
			}
			s.logger.Info(fmt.Sprintf("trust anchor %s installed as %s: %s", filepath.Base(path), kind, cert.Subject.String()))
		}
	}

	s.mutex.Lock()
	s.roots = pool
	s.anchors = installed
	s.mutex.Unlock()

	s.logger.Info(fmt.Sprintf("%d trust anchors installed", installed))
	return pool, errors.Join(errs...)
}

func isSelfIssued(cert *x509.Certificate) bool {
	return cert.Issuer.String() == cert.Subject.String()
}

// DefaultMerchant is the first configured merchant.
func (s *CertificateStore) DefaultMerchant() string {
	if len(s.conf.Abc.Merchants) == 0 {
		return ""
	}
	return s.conf.Abc.Merchants[0].ID
}

func (s *CertificateStore) isConfigured(merchantID string) bool {
	for _, m := range s.conf.Abc.Merchants {
		if m.ID == merchantID {
			return true
		}
	}
	return false
}

// Identity returns the loaded identity of a merchant; empty id selects the default merchant.
func (s *CertificateStore) Identity(merchantID string) (*Identity, error) {
	if merchantID == "" {
		merchantID = s.DefaultMerchant()
	}
	if merchantID == "" || !s.isConfigured(merchantID) {
		return nil, configurationError(fmt.Errorf("%w: %q", ErrMerchantNotConfigured, merchantID))
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	identity, ok := s.identities[merchantID]
	if !ok {
		cause := s.failures[merchantID]
		return nil, configurationError(fmt.Errorf("%w: merchant %s: %v", ErrCertificateUnavailable, merchantID, cause))
	}
	return identity, nil
}

// Sign produces the SHA1withRSA signature of data with the merchant's key.
func (s *CertificateStore) Sign(merchantID string, data []byte) (string, error) {
	identity, err := s.Identity(merchantID)
	if err != nil {
		return "", err
	}
	if !identity.HasPrivateKey() {
		return "", signingError(fmt.Errorf("%w: merchant %s", ErrNoPrivateKey, identity.MerchantID))
	}
	signature, err := signSHA1WithRSA(identity.keyPEM, data)
	if err != nil {
		return "", signingError(err)
	}
	return signature, nil
}

// TrustAnchor returns the TrustPay certificate, nil when not loaded.
func (s *CertificateStore) TrustAnchor() *x509.Certificate {
	return s.trustPay
}

// Verify checks a SHA256withRSA signature made by the bank over data.
func (s *CertificateStore) Verify(data []byte, signature string) (bool, error) {
	if s.trustPayPEM == nil {
		return false, fmt.Errorf("%w: trustpay certificate not loaded", ErrCertificateUnavailable)
	}
	return verifySHA256WithRSA(s.trustPayPEM, data, signature)
}

// Roots returns the pool built by InstallTrustAnchors, nil before it ran.
func (s *CertificateStore) Roots() *x509.CertPool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roots
}

func (s *CertificateStore) Status() entity.CertificateStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status := entity.CertificateStatus{
		Environment:         s.conf.Environment,
		ConfiguredMerchants: s.conf.MerchantIDs(),
		TrustPayPath:        s.conf.Abc.TrustPayCert,
		TrustAnchorsLoaded:  s.anchors,
	}
	for _, merchant := range s.conf.Abc.Merchants {
		identity, ok := s.identities[merchant.ID]
		if !ok {
			continue
		}
		info := s.certificateInfo(identity.Certificate, identity.Path)
		info.MerchantID = merchant.ID
		info.HasPrivateKey = identity.HasPrivateKey()
		info.Format = identity.Format
		status.MerchantCertificate = append(status.MerchantCertificate, info)
	}
	if s.trustPay != nil {
		info := s.certificateInfo(s.trustPay, s.trustPayPath)
		status.TrustPayCertificate = &info
	}
	if len(s.failures) > 0 {
		status.Failures = make(map[string]string, len(s.failures))
		for id, err := range s.failures {
			status.Failures[id] = err.Error()
		}
	}
	return status
}

func (s *CertificateStore) certificateInfo(cert *x509.Certificate, path string) entity.CertificateInfo {
	now := s.clock.Now()
	thumbprint := sha1.Sum(cert.Raw)
	return entity.CertificateInfo{
		Path:            path,
		Subject:         cert.Subject.String(),
		Issuer:          cert.Issuer.String(),
		SerialNumber:    strings.ToUpper(cert.SerialNumber.Text(16)),
		Thumbprint:      strings.ToUpper(hex.EncodeToString(thumbprint[:])),
		NotBefore:       cert.NotBefore,
		NotAfter:        cert.NotAfter,
		IsExpired:       now.After(cert.NotAfter),
		DaysUntilExpiry: int(cert.NotAfter.Sub(now).Hours() / 24),
	}
}
