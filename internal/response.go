package internal

import (
	"abcpay/entity"
	"abcpay/services"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	parseFailedMessage     = "响应解析失败"
	unknownResponseMessage = "未知响应"
)

type jsonObject map[string]json.RawMessage

func decodeObject(raw []byte) (jsonObject, bool) {
	var object jsonObject
	if err := json.Unmarshal(raw, &object); err != nil || object == nil {
		return nil, false
	}
	return object, true
}

// text returns a string or number member as text.
func (o jsonObject) text(key string) (string, bool) {
	raw, ok := o[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&n); err == nil {
		return n.String(), true
	}
	return "", false
}

func (o jsonObject) object(key string) (jsonObject, bool) {
	raw, ok := o[key]
	if !ok {
		return nil, false
	}
	return decodeObject(raw)
}

// ParseResponse interprets the raw answer of the bank. Shapes are tried in order:
// error envelope, success envelope, legacy flat. Anything else yields code 9997
// with the raw body kept.
func ParseResponse(raw []byte) entity.TransactionResponse {
	parsers := []func(jsonObject) (entity.TransactionResponse, bool){
		parseErrorShape,
		parseSuccessShape,
		parseLegacyShape,
	}
	if root, ok := decodeObject(raw); ok {
		for _, parse := range parsers {
			if response, ok := parse(root); ok {
				response.Raw = string(raw)
				response.Signature = entity.SignatureNotChecked
				response.Category = LookupCode(response.ReturnCode).Category
				return response
			}
		}
	}
	return entity.TransactionResponse{
		ReturnCode: entity.CodeParseError,
		Message:    FriendlyMessage(entity.CodeParseError, parseFailedMessage),
		Shape:      entity.ShapeUnparsed,
		Signature:  entity.SignatureNotChecked,
		Category:   entity.CategoryBusinessError,
		Raw:        string(raw),
	}
}

func messageOf(root jsonObject) (jsonObject, bool) {
	msg, ok := root.object("MSG")
	if !ok {
		return nil, false
	}
	return msg.object("Message")
}

func resultMessage(code string, block jsonObject) string {
	if LookupCode(code).Category == entity.CategorySuccess {
		return LookupCode(code).Message
	}
	original, _ := block.text("ErrorMessage")
	return FriendlyMessage(code, original)
}

func parseErrorShape(root jsonObject) (entity.TransactionResponse, bool) {
	message, ok := messageOf(root)
	if !ok {
		return entity.TransactionResponse{}, false
	}
	if _, nested := message["TrxResponse"]; nested {
		return entity.TransactionResponse{}, false
	}
	code, ok := message.text("ReturnCode")
	if !ok {
		return entity.TransactionResponse{}, false
	}
	response := entity.TransactionResponse{
		ReturnCode: code,
		Message:    resultMessage(code, message),
		Shape:      entity.ShapeError,
	}
	response.OrderNo, _ = message.text("OrderNo")
	response.PaymentURL, _ = message.text("PaymentURL")
	response.OrderAmount, _ = message.text("OrderAmount")
	return response, true
}

func parseSuccessShape(root jsonObject) (entity.TransactionResponse, bool) {
	message, ok := messageOf(root)
	if !ok {
		return entity.TransactionResponse{}, false
	}
	trx, ok := message.object("TrxResponse")
	if !ok {
		return entity.TransactionResponse{}, false
	}
	code, ok := trx.text("ReturnCode")
	if !ok {
		code = entity.CodeInternalError
	}
	response := entity.TransactionResponse{
		ReturnCode: code,
		Message:    resultMessage(code, trx),
		Shape:      entity.ShapeSuccess,
	}
	response.OrderNo, _ = trx.text("OrderNo")
	response.TransactionID, _ = trx.text("TrxId")
	response.PayStatus, _ = trx.text("PayStatus")
	response.PaymentURL, _ = trx.text("PaymentURL")
	response.OrderAmount, _ = trx.text("OrderAmount")
	response.ThirdOrderNo, _ = trx.text("ThirdOrderNo")
	if url, ok := trx.text("QRCodeURL"); ok {
		response.QRCodeURL = url
	}
	if url, ok := trx.text("ScanPayQRURL"); ok {
		response.QRCodeURL = url
	}
	return response, true
}

func parseLegacyShape(root jsonObject) (entity.TransactionResponse, bool) {
	code, ok := root.text("ResponseCode")
	if !ok {
		code, ok = root.text("RspCode")
	}
	if !ok {
		return entity.TransactionResponse{}, false
	}
	text, ok := root.text("ResponseMessage")
	if !ok {
		text, ok = root.text("RspMsg")
	}
	if !ok || text == "" {
		text = unknownResponseMessage
	}
	response := entity.TransactionResponse{
		ReturnCode: code,
		Message:    text,
		Shape:      entity.ShapeLegacy,
	}
	response.OrderNo, _ = root.text("OrderNo")
	response.TransactionID, _ = root.text("TrxId")
	response.PayStatus, _ = root.text("PayStatus")
	return response, true
}

// ResponseVerifier checks the bank's signature over the raw Message bytes.
type ResponseVerifier interface {
	Verify(data []byte, signature string) (bool, error)
}

// Interpreter parses responses and records whether their signature holds.
// A response failing verification is logged and still returned.
type Interpreter struct {
	verifier ResponseVerifier
	logger   services.LogHandler
}

func NewInterpreter(verifier ResponseVerifier, logger services.LogHandler) *Interpreter {
	return &Interpreter{
		verifier: verifier,
		logger:   logger,
	}
}

func (i *Interpreter) Interpret(raw []byte) entity.TransactionResponse {
	response := ParseResponse(raw)
	if response.Shape == entity.ShapeUnparsed {
		i.logger.Warn(fmt.Sprintf("unrecognized response: %s", truncate(response.Raw, responseLogSize)))
		return response
	}
	response.Signature = i.verify(raw)
	if response.Signature == entity.SignatureInvalid {
		i.logger.Warn(fmt.Sprintf("response signature invalid; order %s, code %s", response.OrderNo, response.ReturnCode))
	}
	return response
}

func (i *Interpreter) verify(raw []byte) entity.SignatureStatus {
	if i.verifier == nil {
		return entity.SignatureNotChecked
	}
	root, ok := decodeObject(raw)
	if !ok {
		return entity.SignatureNotChecked
	}
	msg, ok := root.object("MSG")
	if !ok {
		return entity.SignatureNotChecked
	}
	message, hasMessage := msg["Message"]
	signature, hasSignature := msg.text("Signature")
	if !hasMessage || !hasSignature || signature == "" {
		return entity.SignatureNotChecked
	}
	valid, err := i.verifier.Verify(message, signature)
	if errors.Is(err, ErrCertificateUnavailable) {
		return entity.SignatureNotChecked
	}
	if err != nil {
		i.logger.Debug(fmt.Sprintf("verify response signature: %v", err))
		return entity.SignatureInvalid
	}
	if !valid {
		return entity.SignatureInvalid
	}
	return entity.SignatureValid
}
