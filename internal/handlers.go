package internal

import (
	"abcpay/entity"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

const indeterminateMessage = "交易结果未知，请稍后查询订单状态或联系客服确认 (EUNKWN)"

func newScanPay() entity.TransactionRequest        { return &entity.ScanPayRequest{} }
func newPagePay() entity.TransactionRequest        { return &entity.PagePayRequest{} }
func newQRCodePay() entity.TransactionRequest      { return &entity.QRCodePayRequest{} }
func newPrecreate() entity.TransactionRequest      { return &entity.PrecreateRequest{} }
func newWapPay() entity.TransactionRequest         { return &entity.WapPayRequest{} }
func newAppPay() entity.TransactionRequest         { return &entity.AppPayRequest{} }
func newPcPay() entity.TransactionRequest          { return &entity.PcPayRequest{} }
func newBarcodePay() entity.TransactionRequest     { return &entity.BarcodePayRequest{} }
func newRefund() entity.TransactionRequest         { return &entity.RefundRequest{} }
func newWalletPay() entity.TransactionRequest      { return &entity.WalletPayRequest{} }
func newLegacyPayment() entity.TransactionRequest { return &entity.LegacyPaymentRequest{} }

func requestContext(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	ctx := WithGivenRequestID(r.Context(), r.Header.Get(requestIDHeader))
	reqID := GetRequestID(ctx)
	w.Header().Set(requestIDHeader, reqID)
	return r.WithContext(ctx), reqID
}

// transaction decodes, validates and executes one channel request.
func (s *Server) transaction(newRequest func() entity.TransactionRequest) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		r, reqID := requestContext(w, r)

		request := newRequest()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			s.logger.Error(fmt.Sprintf("[%s] %s: read request body", reqID, request.Channel()), err)
			s.writeJSON(w, http.StatusBadRequest, rejected("", "invalid request body"))
			return
		}
		if err = json.Unmarshal(body, request); err != nil {
			s.logger.Warn(fmt.Sprintf("[%s] %s: decode request body: %v", reqID, request.Channel(), err))
			s.writeJSON(w, http.StatusBadRequest, rejected("", "invalid request body"))
			return
		}
		if err = validateRequest(request); err != nil {
			s.logger.Warn(fmt.Sprintf("[%s] %s order %s: %v", reqID, request.Channel(), request.Order(), err))
			s.writeJSON(w, http.StatusBadRequest, rejected(request.Order(), err.Error()))
			return
		}

		s.logger.Info(fmt.Sprintf("[%s] processing request: %s order %s, merchant %s", reqID, request.Channel(), request.Order(), request.Merchant()))
		outcome := s.payments.Execute(r.Context(), request)
		result := resultOf(outcome)
		if result.Amount == "" {
			if a, ok := request.(interface{ TotalAmount() decimal.Decimal }); ok {
				result.Amount = amount(a.TotalAmount())
			}
		}
		s.writeJSON(w, outcomeStatus(outcome.Kind), result)
	}
}

// queryOrder asks the bank for the state of an order through a signed envelope.
func (s *Server) queryOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.query(w, r, &entity.QueryRequest{
		OrderNo:    ps.ByName("order_no"),
		MerchantID: merchantParam(r),
	})
}

// legacyQuery asks through the flat form call.
func (s *Server) legacyQuery(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.query(w, r, &entity.LegacyQueryRequest{
		OrderNo:    ps.ByName("order_no"),
		MerchantID: merchantParam(r),
	})
}

func merchantParam(r *http.Request) string {
	if id := r.URL.Query().Get("merchant_id"); id != "" {
		return id
	}
	return r.Header.Get("X-Merchant-Id")
}

func (s *Server) query(w http.ResponseWriter, r *http.Request, request entity.TransactionRequest) {
	r, reqID := requestContext(w, r)
	if request.Order() == "" {
		s.logger.Warn(fmt.Sprintf("[%s] query: empty order number", reqID))
		s.writeJSON(w, http.StatusBadRequest, rejected("", "orderNo is required"))
		return
	}

	outcome := s.payments.Execute(r.Context(), request)
	result := resultOf(outcome)
	if outcome.Response != nil && outcome.Kind != entity.OutcomeNetworkError {
		result.Status = orderStatus(outcome.Response.ReturnCode)
	}

	status := outcomeStatus(outcome.Kind)
	if outcome.Kind == entity.OutcomePeerBusinessError {
		status = http.StatusOK
	}
	s.writeJSON(w, status, result)
}

func (s *Server) paymentNotify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r, reqID := requestContext(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] payment notify: get body", reqID), err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "FAIL"})
		return
	}

	err = s.payments.Notify(r.Context(), body)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] payment notify: process body", reqID), err)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "SUCCESS"})
}

func (s *Server) certificateStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	_, reqID := requestContext(w, r)
	if s.certificates == nil {
		s.logger.Warn(fmt.Sprintf("[%s] certificate status: store not set", reqID))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, s.certificates.Status())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "ABC Payment Gateway",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", err)
	}
}

func rejected(orderNo, message string) entity.PaymentResult {
	return entity.PaymentResult{
		IsSuccess: false,
		Status:    entity.StatusFailed,
		OrderNo:   orderNo,
		Message:   message,
		ErrorCode: "PARAM_ERROR",
	}
}

func resultOf(outcome entity.Outcome) entity.PaymentResult {
	result := entity.PaymentResult{
		IsSuccess: outcome.Kind == entity.OutcomeSuccess,
		Status:    entity.StatusFailed,
		Outcome:   string(outcome.Kind),
		OrderNo:   outcome.OrderNo,
	}
	if result.IsSuccess {
		result.Status = entity.StatusSuccess
	}
	if response := outcome.Response; response != nil {
		if response.OrderNo != "" {
			result.OrderNo = response.OrderNo
		}
		result.TransactionID = response.TransactionID
		result.ThirdOrderNo = response.ThirdOrderNo
		result.QRCodeURL = response.QRCodeURL
		result.PaymentURL = response.PaymentURL
		result.Amount = response.OrderAmount
		result.PayStatus = response.PayStatus
		result.Message = response.Message
		result.ErrorCode = response.ReturnCode
		result.ReturnCode = response.ReturnCode
	}
	if outcome.Kind == entity.OutcomeIndeterminate {
		result.Status = entity.StatusUnknown
		result.Message = indeterminateMessage
	}
	return result
}

// outcomeStatus maps an outcome to the HTTP status of the front door.
// An indeterminate result is a 200: the caller reconciles through a query.
func outcomeStatus(kind entity.OutcomeKind) int {
	switch kind {
	case entity.OutcomeSuccess, entity.OutcomeIndeterminate:
		return http.StatusOK
	case entity.OutcomePeerBusinessError, entity.OutcomeParseError:
		return http.StatusBadRequest
	case entity.OutcomeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func orderStatus(code string) string {
	switch code {
	case entity.CodeSuccess:
		return entity.StatusSuccess
	case "1001":
		return entity.StatusProcessing
	case "2001":
		return entity.StatusClosed
	case "3001":
		return entity.StatusRefunded
	default:
		return entity.StatusUnknown
	}
}
