package internal

import (
	"abcpay/config"
	"abcpay/services"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	payloadKey      = "MSG"
	contentTypeJSON = "application/json; charset=UTF-8"
	responseLogSize = 1000
)

// IdentitySource supplies the client certificate of a merchant.
type IdentitySource interface {
	Identity(merchantID string) (*Identity, error)
}

// Transport posts payloads to the bank over mutually authenticated TLS.
// One HTTP client is kept per merchant identity; requests are never retried.
type Transport struct {
	conf       *config.Abc
	identities IdentitySource
	roots      *x509.CertPool
	logger     services.LogHandler
	mutex      sync.Mutex
	clients    map[string]*resty.Client
}

func NewTransport(conf *config.Abc, identities IdentitySource, roots *x509.CertPool, logger services.LogHandler) *Transport {
	return &Transport{
		conf:       conf,
		identities: identities,
		roots:      roots,
		logger:     logger,
		clients:    make(map[string]*resty.Client),
	}
}

func (t *Transport) url(ie bool) string {
	if ie {
		return t.conf.BaseURL() + t.conf.IETrxUrlPath
	}
	return t.conf.BaseURL() + t.conf.TrxUrlPath
}

func (t *Transport) client(merchantID string) (*resty.Client, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if client, ok := t.clients[merchantID]; ok {
		return client, nil
	}

	identity, err := t.identities.Identity(merchantID)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		RootCAs:    t.roots,
		MinVersion: tls.VersionTLS12,
	}
	if identity.HasPrivateKey() {
		certificate, err := identity.TLSCertificate()
		if err != nil {
			return nil, configurationError(err)
		}
		tlsConfig.Certificates = []tls.Certificate{certificate}
	}

	timeout := t.conf.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetTLSClientConfig(tlsConfig).
		SetLogger(restyLogger{t.logger}).
		SetDebug(t.conf.PrintLog)
	t.clients[merchantID] = client
	return client, nil
}

// Send posts payload for merchantID. A payload holding only the MSG key goes out
// as a raw UTF-8 JSON body; anything else is form encoded. The body of any HTTP
// status is returned for interpretation; only transport failures are errors.
func (t *Transport) Send(ctx context.Context, merchantID string, payload map[string]string, ie bool) ([]byte, error) {
	client, err := t.client(merchantID)
	if err != nil {
		return nil, err
	}

	request := client.R().SetContext(ctx)
	if message, ok := rawMessage(payload); ok {
		request.SetHeader("Content-Type", contentTypeJSON).SetBody([]byte(message))
		t.logger.Debug(fmt.Sprintf("request body: %s", message))
	} else {
		request.SetFormData(payload)
		t.logger.Debug(fmt.Sprintf("request form: %v", payload))
	}

	url := t.url(ie)
	started := time.Now()
	response, err := request.Post(url)
	if err != nil {
		return nil, networkError(fmt.Errorf("%w: post %s: %v", ErrNetwork, url, describeNetworkError(err)))
	}

	body := response.Body()
	t.logger.Info(fmt.Sprintf("post %s: status %d, %d bytes in %v", url, response.StatusCode(), len(body), time.Since(started).Round(time.Millisecond)))
	if response.StatusCode() < http.StatusOK || response.StatusCode() >= http.StatusMultipleChoices {
		t.logger.Warn(fmt.Sprintf("post %s: http status %d", url, response.StatusCode()))
	}
	t.logger.Debug(fmt.Sprintf("response body: %s", truncate(string(body), responseLogSize)))
	return body, nil
}

func rawMessage(payload map[string]string) (string, bool) {
	if len(payload) != 1 {
		return "", false
	}
	message, ok := payload[payloadKey]
	return message, ok
}

func describeNetworkError(err error) string {
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timeout: %v", err)
	case errors.As(err, &certErr), errors.As(err, &unknownAuthority):
		return fmt.Sprintf("tls: %v", err)
	default:
		return err.Error()
	}
}

func truncate(s string, size int) string {
	if len(s) <= size {
		return s
	}
	return s[:size] + "..."
}

type restyLogger struct {
	logger services.LogHandler
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), nil)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
