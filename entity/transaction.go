// Package entity defines data models for the ABC payment adapter.
package entity

import "time"

// Reserved response codes produced locally, never by the bank.
const (
	CodeSuccess       = "0000"
	CodeIndeterminate = "EUNKWN"
	CodeParseError    = "9997"
	CodeNetworkError  = "9998"
	CodeInternalError = "9999"
)

// ResponseShape tells which response layout the bank answered with.
type ResponseShape string

const (
	ShapeError    ResponseShape = "error"
	ShapeSuccess  ResponseShape = "success"
	ShapeLegacy   ResponseShape = "legacy"
	ShapeUnparsed ResponseShape = "unparsed"
)

// SignatureStatus is the result of checking the bank's signature on a response.
type SignatureStatus string

const (
	SignatureNotChecked SignatureStatus = "not_checked"
	SignatureValid      SignatureStatus = "valid"
	SignatureInvalid    SignatureStatus = "invalid"
)

// TransactionResponse is the normalized answer to one transaction.
type TransactionResponse struct {
	ReturnCode    string          `json:"returnCode" bson:"return_code"`
	Message       string          `json:"message" bson:"message"`
	OrderNo       string          `json:"orderNo,omitempty" bson:"order_no"`
	TransactionID string          `json:"transactionId,omitempty" bson:"transaction_id"`
	PayStatus     string          `json:"payStatus,omitempty" bson:"pay_status"`
	QRCodeURL     string          `json:"qrCodeUrl,omitempty" bson:"qr_code_url"`
	PaymentURL    string          `json:"paymentUrl,omitempty" bson:"payment_url"`
	OrderAmount   string          `json:"orderAmount,omitempty" bson:"order_amount"`
	ThirdOrderNo  string          `json:"thirdOrderNo,omitempty" bson:"third_order_no"`
	Shape         ResponseShape   `json:"shape" bson:"shape"`
	Signature     SignatureStatus `json:"signature" bson:"signature"`
	Category      Category        `json:"category" bson:"category"`
	Raw           string          `json:"-" bson:"raw"`
}

// IsSuccess reports whether the bank accepted the transaction.
func (r *TransactionResponse) IsSuccess() bool {
	return r.Category == CategorySuccess
}

// Category is the classification of a bank return code.
type Category string

const (
	CategorySuccess       Category = "Success"
	CategoryBusinessError Category = "BusinessError"
	CategoryIndeterminate Category = "Indeterminate"
)

// ErrorCode is one entry of the return code table.
type ErrorCode struct {
	Code      string   `json:"code"`
	Category  Category `json:"category"`
	Message   string   `json:"message"`
	MessageEn string   `json:"messageEn"`
	Known     bool     `json:"known"`
}

// OutcomeKind is the result class of an executed transaction.
type OutcomeKind string

const (
	OutcomeSuccess            OutcomeKind = "SUCCESS"
	OutcomeConfigurationError OutcomeKind = "CONFIGURATION_ERROR"
	OutcomeSigningError       OutcomeKind = "SIGNING_ERROR"
	OutcomeNetworkError       OutcomeKind = "NETWORK_ERROR"
	OutcomePeerBusinessError  OutcomeKind = "PEER_BUSINESS_ERROR"
	OutcomeIndeterminate      OutcomeKind = "INDETERMINATE"
	OutcomeParseError         OutcomeKind = "PARSE_ERROR"
)

// Outcome is what a transaction call returns instead of a bare error.
// Response is set whenever the bank answered or a local code was assigned;
// Err holds the cause for local failures.
type Outcome struct {
	Kind     OutcomeKind
	Channel  Channel
	OrderNo  string
	Response *TransactionResponse
	Err      error
	Duration time.Duration
}

// CertificateInfo describes one loaded certificate.
type CertificateInfo struct {
	MerchantID      string    `json:"merchantId,omitempty"`
	Path            string    `json:"path"`
	Subject         string    `json:"subject"`
	Issuer          string    `json:"issuer"`
	SerialNumber    string    `json:"serialNumber"`
	Thumbprint      string    `json:"thumbprint"`
	NotBefore       time.Time `json:"notBefore"`
	NotAfter        time.Time `json:"notAfter"`
	IsExpired       bool      `json:"isExpired"`
	DaysUntilExpiry int       `json:"daysUntilExpiry"`
	HasPrivateKey   bool      `json:"hasPrivateKey"`
	Format          string    `json:"format,omitempty"`
}

// CertificateStatus reports what the certificate store holds.
type CertificateStatus struct {
	Environment         string            `json:"environment"`
	ConfiguredMerchants []string          `json:"configuredMerchants"`
	MerchantCertificate []CertificateInfo `json:"merchantCertificates"`
	TrustPayCertificate *CertificateInfo  `json:"trustPayCertificate,omitempty"`
	TrustPayPath        string            `json:"trustPayPath"`
	Failures            map[string]string `json:"failures,omitempty"`
	TrustAnchorsLoaded  int               `json:"trustAnchorsLoaded"`
}
