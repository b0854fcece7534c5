package entity

import "github.com/shopspring/decimal"

// Channel names one supported payment flow.
type Channel string

const (
	ChannelScanPay         Channel = "abc.scanpay"
	ChannelPagePay         Channel = "abc.pagepay"
	ChannelAlipayQRCode    Channel = "alipay.qrcode"
	ChannelAlipayPrecreate Channel = "alipay.precreate"
	ChannelAlipayWap       Channel = "alipay.wap"
	ChannelAlipayApp       Channel = "alipay.app"
	ChannelAlipayPC        Channel = "alipay.pc"
	ChannelAlipayBarcode   Channel = "alipay.barcode"
	ChannelWeChat          Channel = "wechat.wallet"
	ChannelRefund          Channel = "refund"
	ChannelQuery           Channel = "query"
	ChannelLegacyPayment   Channel = "legacy.payment"
	ChannelLegacyQuery     Channel = "legacy.query"
)

// TransactionRequest is implemented only by the request types of this package,
// one per channel.
type TransactionRequest interface {
	Channel() Channel
	// Merchant returns the requested merchant number, empty for the default merchant.
	Merchant() string
	// Order returns the merchant order number.
	Order() string
	isTransactionRequest()
}

// OrderInfo carries the fields every payment channel needs.
type OrderInfo struct {
	OrderNo    string          `json:"orderNo" validate:"required,max=60"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	MerchantID string          `json:"merchantId,omitempty"`
	GoodsName  string          `json:"goodsName,omitempty"`
	NotifyURL  string          `json:"notifyUrl,omitempty" validate:"omitempty,url"`
}

func (o *OrderInfo) Merchant() string {
	return o.MerchantID
}

func (o *OrderInfo) Order() string {
	return o.OrderNo
}

// ScanPayRequest creates a one-code-multi-scan order (OLScanPayOrderReq).
type ScanPayRequest struct {
	OrderInfo
	PayTypeID           string `json:"payTypeId,omitempty"`
	PaymentType         string `json:"paymentType,omitempty"`
	PaymentLinkType     string `json:"paymentLinkType,omitempty"`
	NotifyType          string `json:"notifyType,omitempty"`
	CurrencyCode        string `json:"currencyCode,omitempty"`
	CommodityType       string `json:"commodityType,omitempty"`
	ExpiredDate         string `json:"expiredDate,omitempty"`
	InstallmentMark     string `json:"installmentMark,omitempty"`
	IsBreakAccount      string `json:"isBreakAccount,omitempty"`
	ReceiverAddress     string `json:"receiverAddress,omitempty"`
	BuyIP               string `json:"buyIp,omitempty"`
	MerchantRemarks     string `json:"merchantRemarks,omitempty"`
	OrderFrom           string `json:"orderFrom,omitempty"`
	ReceiveMerchantType string `json:"receiveMerchantType,omitempty"`
	SplitAccTemplate    string `json:"splitAccTemplate,omitempty"`
}

// PagePayRequest creates a hosted payment page order (PayReq).
type PagePayRequest struct {
	OrderInfo
	PayTypeID        string `json:"payTypeId,omitempty"`
	PaymentType      string `json:"paymentType,omitempty"`
	PaymentLinkType  string `json:"paymentLinkType,omitempty"`
	CurrencyCode     string `json:"currencyCode,omitempty"`
	CommodityType    string `json:"commodityType,omitempty"`
	ExpiredDate      string `json:"expiredDate,omitempty"`
	InstallmentMark  string `json:"installmentMark,omitempty"`
	IsBreakAccount   string `json:"isBreakAccount,omitempty"`
	ReceiverAddress  string `json:"receiverAddress,omitempty"`
	BuyIP            string `json:"buyIp,omitempty"`
	ReceiveAccount   string `json:"receiveAccount,omitempty"`
	ReceiveAccName   string `json:"receiveAccName,omitempty"`
	MerchantRemarks  string `json:"merchantRemarks,omitempty"`
	OrderURL         string `json:"orderUrl,omitempty"`
	OrderTimeoutDate string `json:"orderTimeoutDate,omitempty"`
}

// QRCodePayRequest asks for an Alipay QR code the customer scans.
type QRCodePayRequest struct {
	OrderInfo
	ReturnURL   string `json:"returnUrl,omitempty"`
	ExpiredDate string `json:"expiredDate,omitempty"`
	LimitPay    string `json:"limitPay,omitempty"`
	Attach      string `json:"attach,omitempty"`
}

// PrecreateRequest pre-creates an Alipay order (PayTypeID 4).
type PrecreateRequest struct {
	OrderInfo
	ExpiredDate string `json:"expiredDate,omitempty"`
	LimitPay    string `json:"limitPay,omitempty"`
	Attach      string `json:"attach,omitempty"`
	StoreID     string `json:"storeId,omitempty"`
	TerminalID  string `json:"terminalId,omitempty"`
}

// WapPayRequest redirects a mobile browser to Alipay.
type WapPayRequest struct {
	OrderInfo
	ReturnURL string `json:"returnUrl" validate:"required,url"`
	QuitURL   string `json:"quitUrl,omitempty"`
}

// AppPayRequest returns an order string for the Alipay app SDK.
type AppPayRequest struct {
	OrderInfo
}

// PcPayRequest redirects a desktop browser to Alipay.
type PcPayRequest struct {
	OrderInfo
	ReturnURL string `json:"returnUrl" validate:"required,url"`
	QuitURL   string `json:"quitUrl,omitempty"`
}

// BarcodePayRequest charges the payment code shown by the customer.
type BarcodePayRequest struct {
	OrderInfo
	AuthCode string `json:"authCode" validate:"required"`
	Attach   string `json:"attach,omitempty"`
}

// WalletPayRequest is a WeChat wallet payment.
type WalletPayRequest struct {
	OrderInfo
	OrderDesc      string `json:"orderDesc,omitempty"`
	OrderValidTime string `json:"orderValidTime,omitempty"`
	OrderTime      string `json:"orderTime,omitempty"`
	Remarks        string `json:"merchantRemarks,omitempty"`
	Token          string `json:"token,omitempty"`
	OpenID         string `json:"openId,omitempty"`
	ClientIP       string `json:"clientIp,omitempty"`
	SceneInfo      string `json:"sceneInfo,omitempty"`
	GoodsID        string `json:"goodsId,omitempty"`
	GoodsQuantity  int    `json:"goodsQuantity,omitempty"`
	Attach         string `json:"attach,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// RefundRequest refunds all or part of a paid order.
type RefundRequest struct {
	OrderNo      string           `json:"orderNo" validate:"required,max=60"`
	MerchantID   string           `json:"merchantId,omitempty"`
	RefundAmount decimal.Decimal  `json:"refundAmount" validate:"gt=0"`
	OrderAmount  *decimal.Decimal `json:"orderAmount,omitempty"`
	RefundReason string           `json:"refundReason,omitempty"`
}

func (r *RefundRequest) Merchant() string {
	return r.MerchantID
}

func (r *RefundRequest) Order() string {
	return r.OrderNo
}

// QueryRequest asks the bank for the status of an order.
type QueryRequest struct {
	OrderNo    string `json:"orderNo" validate:"required"`
	MerchantID string `json:"merchantId,omitempty"`
}

func (q *QueryRequest) Merchant() string {
	return q.MerchantID
}

func (q *QueryRequest) Order() string {
	return q.OrderNo
}

// LegacyPaymentRequest is the flat, form-encoded generic payment call.
type LegacyPaymentRequest struct {
	TrxType         string          `json:"trxType" validate:"required"`
	OrderNo         string          `json:"orderNo" validate:"required,max=60"`
	OrderAmount     decimal.Decimal `json:"orderAmount" validate:"gt=0"`
	MerchantID      string          `json:"merchantId,omitempty"`
	OrderDesc       string          `json:"orderDesc,omitempty"`
	OrderValidTime  string          `json:"orderValidTime,omitempty"`
	PayQRCode       string          `json:"payQRCode,omitempty"`
	OrderTime       string          `json:"orderTime,omitempty"`
	OrderAbstract   string          `json:"orderAbstract,omitempty"`
	ResultNotifyURL string          `json:"resultNotifyUrl,omitempty"`
	ProductName     string          `json:"productName,omitempty"`
	PaymentType     string          `json:"paymentType,omitempty"`
	PaymentLinkType string          `json:"paymentLinkType,omitempty"`
	MerchantRemarks string          `json:"merchantRemarks,omitempty"`
	NotifyType      string          `json:"notifyType,omitempty"`
	Token           string          `json:"token,omitempty"`
}

func (l *LegacyPaymentRequest) Merchant() string {
	return l.MerchantID
}

func (l *LegacyPaymentRequest) Order() string {
	return l.OrderNo
}

// LegacyQueryRequest is the flat, form-encoded order query.
type LegacyQueryRequest struct {
	OrderNo    string `json:"orderNo" validate:"required"`
	MerchantID string `json:"merchantId,omitempty"`
}

func (l *LegacyQueryRequest) Merchant() string {
	return l.MerchantID
}

func (l *LegacyQueryRequest) Order() string {
	return l.OrderNo
}

func (*ScanPayRequest) Channel() Channel       { return ChannelScanPay }
func (*PagePayRequest) Channel() Channel       { return ChannelPagePay }
func (*QRCodePayRequest) Channel() Channel     { return ChannelAlipayQRCode }
func (*PrecreateRequest) Channel() Channel     { return ChannelAlipayPrecreate }
func (*WapPayRequest) Channel() Channel        { return ChannelAlipayWap }
func (*AppPayRequest) Channel() Channel        { return ChannelAlipayApp }
func (*PcPayRequest) Channel() Channel         { return ChannelAlipayPC }
func (*BarcodePayRequest) Channel() Channel    { return ChannelAlipayBarcode }
func (*WalletPayRequest) Channel() Channel     { return ChannelWeChat }
func (*RefundRequest) Channel() Channel        { return ChannelRefund }
func (*QueryRequest) Channel() Channel         { return ChannelQuery }
func (*LegacyPaymentRequest) Channel() Channel { return ChannelLegacyPayment }
func (*LegacyQueryRequest) Channel() Channel   { return ChannelLegacyQuery }

func (*ScanPayRequest) isTransactionRequest()       {}
func (*PagePayRequest) isTransactionRequest()       {}
func (*QRCodePayRequest) isTransactionRequest()     {}
func (*PrecreateRequest) isTransactionRequest()     {}
func (*WapPayRequest) isTransactionRequest()        {}
func (*AppPayRequest) isTransactionRequest()        {}
func (*PcPayRequest) isTransactionRequest()         {}
func (*BarcodePayRequest) isTransactionRequest()    {}
func (*WalletPayRequest) isTransactionRequest()     {}
func (*RefundRequest) isTransactionRequest()        {}
func (*QueryRequest) isTransactionRequest()         {}
func (*LegacyPaymentRequest) isTransactionRequest() {}
func (*LegacyQueryRequest) isTransactionRequest()   {}

// TotalAmount is the amount a request moves.
func (o *OrderInfo) TotalAmount() decimal.Decimal {
	return o.Amount
}

func (r *RefundRequest) TotalAmount() decimal.Decimal {
	return r.RefundAmount
}

func (l *LegacyPaymentRequest) TotalAmount() decimal.Decimal {
	return l.OrderAmount
}
