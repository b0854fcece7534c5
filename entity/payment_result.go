package entity

// Status values reported to front-door callers.
const (
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusUnknown    = "UNKNOWN"
	StatusProcessing = "PROCESSING"
	StatusClosed     = "CLOSED"
	StatusRefunded   = "REFUNDED"
)

// PaymentResult is the JSON answer of every transaction endpoint.
type PaymentResult struct {
	IsSuccess     bool   `json:"isSuccess"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome,omitempty"`
	OrderNo       string `json:"orderNo"`
	TransactionID string `json:"transactionId,omitempty"`
	ThirdOrderNo  string `json:"thirdOrderNo,omitempty"`
	QRCodeURL     string `json:"qrCodeUrl,omitempty"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
	Amount        string `json:"amount,omitempty"`
	PayStatus     string `json:"payStatus,omitempty"`
	Message       string `json:"message"`
	ErrorCode     string `json:"errorCode,omitempty"`
	ReturnCode    string `json:"returnCode,omitempty"`
}
