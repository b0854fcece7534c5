package internal

import (
	"abcpay/config"
	"abcpay/entity"
	"abcpay/services"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	networkErrorMessage  = "网络错误"
	internalErrorMessage = "系统错误"
)

// Sender delivers a payload to the bank and returns the raw answer.
type Sender interface {
	Send(ctx context.Context, merchantID string, payload map[string]string, ie bool) ([]byte, error)
}

// MerchantKeys resolves merchant identities and signs with them.
type MerchantKeys interface {
	MessageSigner
	Identity(merchantID string) (*Identity, error)
}

// Payments runs transactions against the ABC platform: resolve the merchant,
// map the request, build and sign the envelope, send it and interpret the answer.
// Every call ends in an entity.Outcome; nothing is retried.
type Payments struct {
	conf   *config.Config
	keys   MerchantKeys
	sender Sender
	clock  Clock
	logger services.LogHandler
}

func NewPayments(conf *config.Config) *Payments {
	return &Payments{
		conf:  conf,
		clock: defaultClock,
	}
}

// SetCertificates wires the merchant keys; when keys can also verify the bank's
// signature, responses are checked with them.
func (p *Payments) SetCertificates(keys MerchantKeys) {
	p.keys = keys
}

func (p *Payments) SetSender(sender Sender) {
	p.sender = sender
}

func (p *Payments) SetClock(clock Clock) {
	p.clock = clock
}

func (p *Payments) SetLogger(logger services.LogHandler) {
	p.logger = logger
}

func (p *Payments) interpreter() *Interpreter {
	var verifier ResponseVerifier
	if v, ok := p.keys.(ResponseVerifier); ok {
		verifier = v
	}
	return NewInterpreter(verifier, p.logger)
}

// Execute runs one transaction.
func (p *Payments) Execute(ctx context.Context, request entity.TransactionRequest) entity.Outcome {
	started := time.Now()
	reqID := GetRequestID(ctx)
	outcome := entity.Outcome{
		Channel: request.Channel(),
		OrderNo: request.Order(),
	}

	raw, err := p.exchange(ctx, request)
	outcome.Duration = time.Since(started)
	if err != nil {
		p.fail(&outcome, err)
		p.logger.Error(fmt.Sprintf("[%s] %s order %s: %s", reqID, outcome.Channel, outcome.OrderNo, outcome.Kind), err)
		return outcome
	}

	response := p.interpreter().Interpret(raw)
	outcome.Response = &response
	outcome.Kind = outcomeKind(&response)
	p.logger.Info(fmt.Sprintf("[%s] %s order %s: %s; code %s; %s; signature %s; %v",
		reqID, outcome.Channel, outcome.OrderNo, outcome.Kind, response.ReturnCode, response.Message, response.Signature, outcome.Duration.Round(time.Millisecond)))
	return outcome
}

func (p *Payments) exchange(ctx context.Context, request entity.TransactionRequest) ([]byte, error) {
	if p.keys == nil || p.sender == nil {
		return nil, configurationError(errors.New("payments service not wired"))
	}
	identity, err := p.keys.Identity(request.Merchant())
	if err != nil {
		return nil, err
	}
	merchantID := identity.MerchantID

	mapped, err := MapRequest(request, merchantID, p.clock.Now())
	if err != nil {
		return nil, configurationError(err)
	}

	var payload map[string]string
	if mapped.Flat {
		payload, err = mapped.Fields.Strings()
		if err != nil {
			return nil, configurationError(err)
		}
	} else {
		envelope, err := BuildEnvelope(entity.NewMerchantIdentity(merchantID), mapped.Fields)
		if err != nil {
			return nil, configurationError(err)
		}
		signed, err := AttachSignature(envelope, p.keys)
		if err != nil {
			var protocolErr *ProtocolError
			if errors.As(err, &protocolErr) {
				return nil, err
			}
			return nil, signingError(err)
		}
		p.logger.Debug(fmt.Sprintf("%s envelope for merchant %s: %s", envelope.TrxType(), merchantID, envelope.Bytes()))
		payload = signed.Payload()
	}

	timeout := p.conf.Abc.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ie := request.Channel() == entity.ChannelPagePay && p.conf.Abc.PagePayIE
	return p.sender.Send(ctx, merchantID, payload, ie)
}

// fail turns a local failure into an outcome carrying a reserved code.
func (p *Payments) fail(outcome *entity.Outcome, err error) {
	outcome.Err = err
	outcome.Kind = entity.OutcomeConfigurationError
	code := entity.CodeInternalError
	text := internalErrorMessage

	cause := err
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		outcome.Kind = protocolErr.Kind
		code = protocolErr.Code
		cause = protocolErr.Err
	}
	if outcome.Kind == entity.OutcomeNetworkError {
		text = networkErrorMessage
	}
	outcome.Response = &entity.TransactionResponse{
		ReturnCode: code,
		Message:    fmt.Sprintf("%s: %v", text, cause),
		OrderNo:    outcome.OrderNo,
		Signature:  entity.SignatureNotChecked,
		Category:   entity.CategoryBusinessError,
	}
}

func outcomeKind(response *entity.TransactionResponse) entity.OutcomeKind {
	if response.Shape == entity.ShapeUnparsed {
		return entity.OutcomeParseError
	}
	switch response.Category {
	case entity.CategorySuccess:
		return entity.OutcomeSuccess
	case entity.CategoryIndeterminate:
		return entity.OutcomeIndeterminate
	default:
		return entity.OutcomePeerBusinessError
	}
}

func (p *Payments) ScanPay(ctx context.Context, request *entity.ScanPayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) PagePay(ctx context.Context, request *entity.PagePayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) AlipayQRCode(ctx context.Context, request *entity.QRCodePayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) AlipayPrecreate(ctx context.Context, request *entity.PrecreateRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) AlipayWap(ctx context.Context, request *entity.WapPayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) AlipayApp(ctx context.Context, request *entity.AppPayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) AlipayPC(ctx context.Context, request *entity.PcPayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) AlipayBarcode(ctx context.Context, request *entity.BarcodePayRequest) entity.Outcome {
	p.logger.Info(fmt.Sprintf("barcode payment: order %s; auth code %s", request.OrderNo, secret(request.AuthCode)))
	return p.Execute(ctx, request)
}

func (p *Payments) WeChatPay(ctx context.Context, request *entity.WalletPayRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) Refund(ctx context.Context, request *entity.RefundRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) QueryOrder(ctx context.Context, orderNo, merchantID string) entity.Outcome {
	return p.Execute(ctx, &entity.QueryRequest{OrderNo: orderNo, MerchantID: merchantID})
}

func (p *Payments) LegacyPay(ctx context.Context, request *entity.LegacyPaymentRequest) entity.Outcome {
	return p.Execute(ctx, request)
}

func (p *Payments) LegacyQuery(ctx context.Context, orderNo, merchantID string) entity.Outcome {
	return p.Execute(ctx, &entity.LegacyQueryRequest{OrderNo: orderNo, MerchantID: merchantID})
}

// Notify reads an asynchronous result notification. The bank posts the message
// either as a form field MSG holding base64 JSON, or as the JSON itself.
func (p *Payments) Notify(ctx context.Context, body []byte) error {
	reqID := GetRequestID(ctx)
	message, err := notificationMessage(body)
	if err != nil {
		p.logger.Warn(fmt.Sprintf("[%s] notify: %s", reqID, truncate(string(body), responseLogSize)))
		return err
	}
	response := p.interpreter().Interpret(message)
	if response.Shape == entity.ShapeUnparsed {
		return fmt.Errorf("notification not recognized")
	}
	p.logger.Info(fmt.Sprintf("[%s] notify: order %s; code %s; status %s; amount %s; signature %s",
		reqID, response.OrderNo, response.ReturnCode, response.PayStatus, response.OrderAmount, response.Signature))
	return nil
}

func notificationMessage(body []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	encoded := values.Get(payloadKey)
	if encoded == "" {
		return nil, fmt.Errorf("notification has no %s field", payloadKey)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", payloadKey, err)
	}
	return decoded, nil
}
