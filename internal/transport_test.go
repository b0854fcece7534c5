package internal

import (
	"abcpay/entity"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identitySourceFunc func(merchantID string) (*Identity, error)

func (f identitySourceFunc) Identity(merchantID string) (*Identity, error) {
	return f(merchantID)
}

type captured struct {
	path        string
	contentType string
	body        string
	form        url.Values
}

// bankServer answers every post with status and body and records the last request.
func bankServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	last := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		last.path = r.URL.Path
		last.contentType = r.Header.Get("Content-Type")
		last.body = string(data)
		last.form, _ = url.ParseQuery(string(data))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, last
}

func testTransport(t *testing.T, serverURL string, calls *int32) (*Transport, *recordingLogger) {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	conf := testConfig(t.TempDir())
	conf.Abc.ConnectMethod = u.Scheme
	conf.Abc.ServerName = u.Hostname()
	conf.Abc.ServerPort = u.Port()
	conf.Abc.Timeout = 2 * time.Second

	identities := identitySourceFunc(func(merchantID string) (*Identity, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if merchantID != testMerchant {
			return nil, configurationError(fmt.Errorf("%w: %q", ErrMerchantNotConfigured, merchantID))
		}
		return &Identity{MerchantID: merchantID}, nil
	})
	logger := &recordingLogger{}
	return NewTransport(&conf.Abc, identities, nil, logger), logger
}

func TestTransport_SendsSignedBodyRaw(t *testing.T) {
	server, last := bankServer(t, http.StatusOK, `{"MSG":{}}`)
	var calls int32
	transport, _ := testTransport(t, server.URL, &calls)
	message := `{"Message":{"Version":"V3.0.0"},"Signature-Algorithm":"SHA1withRSA","Signature":"c2ln"}`

	body, err := transport.Send(context.Background(), testMerchant, map[string]string{"MSG": message}, false)
	require.NoError(t, err)

	assert.Equal(t, `{"MSG":{}}`, string(body))
	assert.Equal(t, "/ebus/ReceiveMerchantTrxReqServlet", last.path)
	assert.Equal(t, "application/json; charset=UTF-8", last.contentType)
	assert.Equal(t, message, last.body)

	_, err = transport.Send(context.Background(), testMerchant, map[string]string{"MSG": message}, true)
	require.NoError(t, err)
	assert.Equal(t, "/ebus/ReceiveMerchantIERequestServlet", last.path)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransport_SendsFlatPayloadAsForm(t *testing.T) {
	server, last := bankServer(t, http.StatusOK, `{"ResponseCode":"0000"}`)
	transport, _ := testTransport(t, server.URL, nil)

	_, err := transport.Send(context.Background(), testMerchant, map[string]string{
		"TrxType":    "OrderQuery",
		"OrderNo":    "ON1",
		"MerchantID": testMerchant,
	}, false)
	require.NoError(t, err)

	assert.Contains(t, last.contentType, "application/x-www-form-urlencoded")
	assert.Equal(t, "OrderQuery", last.form.Get("TrxType"))
	assert.Equal(t, "ON1", last.form.Get("OrderNo"))
	assert.Equal(t, testMerchant, last.form.Get("MerchantID"))
}

func TestTransport_ReturnsBodyOfFailedStatus(t *testing.T) {
	server, _ := bankServer(t, http.StatusInternalServerError, "<html>error</html>")
	transport, logger := testTransport(t, server.URL, nil)

	body, err := transport.Send(context.Background(), testMerchant, map[string]string{"MSG": "{}"}, false)
	require.NoError(t, err)

	assert.Equal(t, "<html>error</html>", string(body))
	assert.True(t, logger.contains("warn", "http status 500"))
}

func TestTransport_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()
	transport, _ := testTransport(t, address, nil)

	_, err := transport.Send(context.Background(), testMerchant, map[string]string{"MSG": "{}"}, false)
	require.ErrorIs(t, err, ErrNetwork)

	var protocolErr *ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, entity.OutcomeNetworkError, protocolErr.Kind)
	assert.Equal(t, entity.CodeNetworkError, protocolErr.Code)
}

func TestTransport_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()
	transport, _ := testTransport(t, server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := transport.Send(ctx, testMerchant, map[string]string{"MSG": "{}"}, false)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "timeout")
}

// tlsBank serves HTTPS on 127.0.0.1 and demands a client certificate.
// The subject of each presented certificate is sent to peers.
func tlsBank(t *testing.T, peers chan<- string) (*httptest.Server, *x509.Certificate) {
	t.Helper()
	certificate, leaf := serverCertificate(t, testKey(t, 1))
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, cert := range r.TLS.PeerCertificates {
			peers <- cert.Subject.CommonName
		}
		_, _ = w.Write([]byte(`{"MSG":{}}`))
	}))
	server.TLS = &tls.Config{
		Certificates: []tls.Certificate{certificate},
		ClientAuth:   tls.RequireAnyClientCert,
	}
	server.StartTLS()
	t.Cleanup(server.Close)
	return server, leaf
}

func tlsTransport(t *testing.T, serverURL string, store *CertificateStore, roots *x509.CertPool) *Transport {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	conf := store.conf.Abc
	conf.ServerName = u.Hostname()
	conf.ServerPort = u.Port()
	conf.Timeout = 2 * time.Second
	return NewTransport(&conf, store, roots, &recordingLogger{})
}

func TestTransport_MutualTLS(t *testing.T) {
	peers := make(chan string, 4)
	server, leaf := tlsBank(t, peers)
	store, _ := pfxStore(t)
	writeFile(t, store.conf.Abc.TrustStoreDir, "bank.cer", certPEM(leaf))
	store.conf.Abc.TrustStoreFiles = []string{"bank.cer"}
	roots, err := store.InstallTrustAnchors()
	require.NoError(t, err)

	transport := tlsTransport(t, server.URL, store, roots)
	body, err := transport.Send(context.Background(), testMerchant, map[string]string{"MSG": "{}"}, false)
	require.NoError(t, err)
	assert.Equal(t, `{"MSG":{}}`, string(body))

	select {
	case peer := <-peers:
		assert.Equal(t, "merchant", peer)
	default:
		t.Fatal("no client certificate presented")
	}
}

func TestTransport_UntrustedServer(t *testing.T) {
	server, _ := tlsBank(t, make(chan string, 4))
	store, _ := pfxStore(t)

	transport := tlsTransport(t, server.URL, store, x509.NewCertPool())
	_, err := transport.Send(context.Background(), testMerchant, map[string]string{"MSG": "{}"}, false)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "tls")
}

func TestTransport_UnknownMerchant(t *testing.T) {
	server, _ := bankServer(t, http.StatusOK, "{}")
	transport, _ := testTransport(t, server.URL, nil)

	_, err := transport.Send(context.Background(), "999", map[string]string{"MSG": "{}"}, false)
	assert.ErrorIs(t, err, ErrMerchantNotConfigured)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
}
