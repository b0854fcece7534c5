package internal

import (
	"abcpay/entity"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	requests []entity.TransactionRequest
	outcome  entity.Outcome
	notified []byte
	notify   error
}

func (f *fakePayments) Execute(_ context.Context, request entity.TransactionRequest) entity.Outcome {
	f.requests = append(f.requests, request)
	outcome := f.outcome
	outcome.Channel = request.Channel()
	outcome.OrderNo = request.Order()
	return outcome
}

func (f *fakePayments) Notify(_ context.Context, body []byte) error {
	f.notified = body
	return f.notify
}

type fakeCertificates struct{}

func (fakeCertificates) Status() entity.CertificateStatus {
	return entity.CertificateStatus{Environment: "Test", ConfiguredMerchants: []string{testMerchant}}
}

func testRouter(t *testing.T, payments *fakePayments) *httprouter.Router {
	t.Helper()
	server := NewServer(testConfig(t.TempDir()))
	server.SetLogger(&recordingLogger{})
	server.SetPaymentsService(payments)
	server.SetCertificates(fakeCertificates{})
	router := httprouter.New()
	server.Register(router)
	return router
}

func serve(router http.Handler, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, entity.PaymentResult) {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	var result entity.PaymentResult
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	return w, result
}

const scanPayBody = `{"orderNo":"ON1","amount":"0.01","merchantId":"103881234567890","notifyUrl":"https://shop.example.com/notify"}`

func TestServer_TransactionOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		outcome   entity.Outcome
		status    int
		isSuccess bool
		state     string
	}{
		{
			name: "success",
			outcome: entity.Outcome{Kind: entity.OutcomeSuccess, Response: &entity.TransactionResponse{
				ReturnCode: "0000", Message: "交易成功", QRCodeURL: "https://pay.abchina.com/qr/1",
			}},
			status:    http.StatusOK,
			isSuccess: true,
			state:     entity.StatusSuccess,
		},
		{
			name: "indeterminate",
			outcome: entity.Outcome{Kind: entity.OutcomeIndeterminate, Response: &entity.TransactionResponse{
				ReturnCode: "EUNKWN", Message: "交易结果未知，请查询订单状态确认 (EUNKWN)",
			}},
			status: http.StatusOK,
			state:  entity.StatusUnknown,
		},
		{
			name: "business error",
			outcome: entity.Outcome{Kind: entity.OutcomePeerBusinessError, Response: &entity.TransactionResponse{
				ReturnCode: "E200", Message: "余额不足 (E200)",
			}},
			status: http.StatusBadRequest,
			state:  entity.StatusFailed,
		},
		{
			name: "network error",
			outcome: entity.Outcome{Kind: entity.OutcomeNetworkError, Err: errors.New("refused"), Response: &entity.TransactionResponse{
				ReturnCode: entity.CodeNetworkError, Message: "网络错误: refused",
			}},
			status: http.StatusBadGateway,
			state:  entity.StatusFailed,
		},
		{
			name: "configuration error",
			outcome: entity.Outcome{Kind: entity.OutcomeConfigurationError, Err: errors.New("no merchant"), Response: &entity.TransactionResponse{
				ReturnCode: entity.CodeInternalError, Message: "系统错误: no merchant",
			}},
			status: http.StatusInternalServerError,
			state:  entity.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &fakePayments{outcome: tt.outcome}

			w, result := serve(testRouter(t, payments), http.MethodPost, abcScanPay, scanPayBody, nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.isSuccess, result.IsSuccess)
			assert.Equal(t, tt.state, result.Status)
			assert.Equal(t, "ON1", result.OrderNo)
			assert.Equal(t, "0.01", result.Amount)
			assert.Equal(t, tt.outcome.Response.ReturnCode, result.ReturnCode)
			require.Len(t, payments.requests, 1)
			assert.IsType(t, &entity.ScanPayRequest{}, payments.requests[0])
		})
	}
}

func TestServer_IndeterminateMessage(t *testing.T) {
	payments := &fakePayments{outcome: entity.Outcome{Kind: entity.OutcomeIndeterminate, Response: &entity.TransactionResponse{ReturnCode: "EUNKWN"}}}

	_, result := serve(testRouter(t, payments), http.MethodPost, alipayBarcode,
		`{"orderNo":"ON1","amount":1,"authCode":"281234567890123456"}`, nil)

	assert.Equal(t, indeterminateMessage, result.Message)
	assert.Equal(t, "1.00", result.Amount)
}

func TestServer_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		body    string
		message string
	}{
		{name: "malformed json", target: abcScanPay, body: `{"orderNo":`, message: "invalid request body"},
		{name: "missing order", target: abcScanPay, body: `{"amount":"1","merchantId":"1","notifyUrl":"https://a.b/n"}`, message: "orderNo is required"},
		{name: "zero amount", target: alipayApp, body: `{"orderNo":"ON1","amount":"0"}`, message: "amount must be greater than 0"},
		{name: "sub-cent amount", target: alipayApp, body: `{"orderNo":"ON1","amount":"0.001"}`, message: "amount must have at most 2 decimal places"},
		{name: "missing merchant", target: abcPagePay, body: `{"orderNo":"ON1","amount":"1","notifyUrl":"https://a.b/n"}`, message: "merchantId is required"},
		{name: "missing return url", target: alipayWap, body: `{"orderNo":"ON1","amount":"1"}`, message: "returnUrl is required"},
		{name: "refund exceeds order", target: alipayRefund, body: `{"orderNo":"ON1","refundAmount":"5","orderAmount":"3"}`, message: "exceeds orderAmount"},
		{name: "refund rounding", target: alipayRefund, body: `{"orderNo":"ON1","refundAmount":"100.005"}`, message: "refundAmount must have at most 2 decimal places"},
		{name: "legacy without type", target: legacyPay, body: `{"orderNo":"ON1","orderAmount":"3"}`, message: "trxType is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &fakePayments{}

			w, result := serve(testRouter(t, payments), http.MethodPost, tt.target, tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, result.IsSuccess)
			assert.Contains(t, result.Message, tt.message)
			assert.Empty(t, payments.requests)
		})
	}
}

func TestServer_QueryOrder(t *testing.T) {
	payments := &fakePayments{outcome: entity.Outcome{Kind: entity.OutcomePeerBusinessError, Response: &entity.TransactionResponse{ReturnCode: "1001"}}}
	router := testRouter(t, payments)

	w, result := serve(router, http.MethodGet, "/api/payment/alipay/query/ON1?merchant_id="+testMerchant, "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.StatusProcessing, result.Status)
	require.Len(t, payments.requests, 1)
	assert.Equal(t, &entity.QueryRequest{OrderNo: "ON1", MerchantID: testMerchant}, payments.requests[0])

	_, _ = serve(router, http.MethodGet, "/api/payment/query/ON2", "", map[string]string{"X-Merchant-Id": testMerchant})
	require.Len(t, payments.requests, 2)
	assert.Equal(t, &entity.LegacyQueryRequest{OrderNo: "ON2", MerchantID: testMerchant}, payments.requests[1])
}

func TestOrderStatus(t *testing.T) {
	assert.Equal(t, entity.StatusSuccess, orderStatus("0000"))
	assert.Equal(t, entity.StatusProcessing, orderStatus("1001"))
	assert.Equal(t, entity.StatusClosed, orderStatus("2001"))
	assert.Equal(t, entity.StatusRefunded, orderStatus("3001"))
	assert.Equal(t, entity.StatusUnknown, orderStatus("E001"))
}

func TestServer_NotifyAlwaysAcknowledges(t *testing.T) {
	payments := &fakePayments{notify: errors.New("not recognized")}

	w, _ := serve(testRouter(t, payments), http.MethodPost, paymentNotify, "MSG=abc", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"SUCCESS"}`, w.Body.String())
	assert.Equal(t, "MSG=abc", string(payments.notified))
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	payments := &fakePayments{outcome: entity.Outcome{Kind: entity.OutcomeSuccess, Response: &entity.TransactionResponse{ReturnCode: "0000"}}}

	w, _ := serve(testRouter(t, payments), http.MethodPost, abcScanPay, scanPayBody, map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w, _ = serve(testRouter(t, payments), http.MethodPost, abcScanPay, scanPayBody, nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_CertificateStatusAndHealth(t *testing.T) {
	router := testRouter(t, &fakePayments{})

	w, _ := serve(router, http.MethodGet, certificatesStatus, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var status entity.CertificateStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, []string{testMerchant}, status.ConfiguredMerchants)

	w, _ = serve(router, http.MethodGet, health, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
