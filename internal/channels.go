package internal

import (
	"abcpay/entity"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TrxTypeScanPay    = "OLScanPayOrderReq"
	TrxTypePagePay    = "PayReq"
	TrxTypeWallet     = "EWalletPayReq"
	TrxTypeRefund     = "Refund"
	TrxTypeOrderQuery = "OrderQuery"

	orderDateLayout  = "2006/01/02"
	orderClockLayout = "15:04:05"
	timestampLayout  = "20060102150405"

	defaultOrderDesc       = "商品购买"
	defaultProductName     = "商品"
	defaultRefundReason    = "用户申请退款"
	defaultNotifyURL       = "http://127.0.0.1/Merchant/MerchantResult.aspx"
	defaultOrderURLPattern = "http://127.0.0.1/Merchant/MerchantQueryOrder.aspx?ON=%s&DetailQuery=1"
)

// Mapped is the field set of one request and how it travels.
type Mapped struct {
	Fields Fields
	// Flat requests are form encoded without envelope or signature.
	Flat bool
}

// MapRequest dispatches a request to its channel mapper. merchantID is the
// resolved merchant; now stamps every time field.
func MapRequest(request entity.TransactionRequest, merchantID string, now time.Time) (Mapped, error) {
	switch r := request.(type) {
	case *entity.ScanPayRequest:
		return Mapped{Fields: ScanPayFields(r, now)}, nil
	case *entity.PagePayRequest:
		return Mapped{Fields: PagePayFields(r, now)}, nil
	case *entity.QRCodePayRequest:
		return Mapped{Fields: QRCodePayFields(r, now)}, nil
	case *entity.PrecreateRequest:
		return Mapped{Fields: PrecreateFields(r, now)}, nil
	case *entity.WapPayRequest:
		return Mapped{Fields: WapPayFields(r, now)}, nil
	case *entity.AppPayRequest:
		return Mapped{Fields: AppPayFields(r, now)}, nil
	case *entity.PcPayRequest:
		return Mapped{Fields: PcPayFields(r, now)}, nil
	case *entity.BarcodePayRequest:
		return Mapped{Fields: BarcodePayFields(r, now)}, nil
	case *entity.WalletPayRequest:
		return Mapped{Fields: WalletPayFields(r, now)}, nil
	case *entity.RefundRequest:
		return Mapped{Fields: RefundFields(r, now)}, nil
	case *entity.QueryRequest:
		return Mapped{Fields: QueryFields(r, now)}, nil
	case *entity.LegacyPaymentRequest:
		return Mapped{Fields: LegacyPaymentFields(r, merchantID, now), Flat: true}, nil
	case *entity.LegacyQueryRequest:
		return Mapped{Fields: LegacyQueryFields(r, merchantID), Flat: true}, nil
	default:
		return Mapped{}, fmt.Errorf("unsupported request type %T", request)
	}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// orderItems is the single item block the bank's demo merchant sends.
func orderItems(order *entity.OrderInfo, discount string) []Fields {
	return []Fields{{
		{Key: "SubMerName", Value: "测试二级商户1"},
		{Key: "SubMerId", Value: "12345"},
		{Key: "SubMerMCC", Value: "0000"},
		{Key: "SubMerchantRemarks", Value: "测试"},
		{Key: "ProductID", Value: "IP000001"},
		{Key: "ProductName", Value: orDefault(order.GoodsName, defaultProductName)},
		{Key: "UnitPrice", Value: amount(order.Amount)},
		{Key: "Qty", Value: "1"},
		{Key: "ProductRemarks", Value: orDefault(order.GoodsName, defaultOrderDesc)},
		{Key: "ProductType", Value: "充值类"},
		{Key: "ProductDiscount", Value: discount},
		{Key: "ProductExpiredDate", Value: "10"},
	}}
}

type orderOptions struct {
	payTypeID        string
	expiredDate      string
	currencyCode     string
	receiverAddress  string
	installmentMark  string
	buyIP            string
	orderURL         string
	orderTimeoutDate string
	commodityType    string
	discount         string
}

func orderBlock(order *entity.OrderInfo, opts orderOptions, now time.Time) Fields {
	return Fields{
		{Key: "PayTypeID", Value: orDefault(opts.payTypeID, "ImmediatePay")},
		{Key: "OrderNo", Value: order.OrderNo},
		{Key: "ExpiredDate", Value: orDefault(opts.expiredDate, "30")},
		{Key: "OrderAmount", Value: amount(order.Amount)},
		{Key: "SubsidyAmount", Value: ""},
		{Key: "Fee", Value: ""},
		{Key: "AccountNo", Value: ""},
		{Key: "CurrencyCode", Value: orDefault(opts.currencyCode, "156")},
		{Key: "ReceiverAddress", Value: orDefault(opts.receiverAddress, "北京")},
		{Key: "InstallmentMark", Value: orDefault(opts.installmentMark, "0")},
		{Key: "BuyIP", Value: opts.buyIP},
		{Key: "OrderDesc", Value: orDefault(order.GoodsName, defaultOrderDesc)},
		{Key: "OrderURL", Value: orDefault(opts.orderURL, fmt.Sprintf(defaultOrderURLPattern, order.OrderNo))},
		{Key: "OrderDate", Value: now.Format(orderDateLayout)},
		{Key: "OrderTime", Value: now.Format(orderClockLayout)},
		{Key: "orderTimeoutDate", Value: orDefault(opts.orderTimeoutDate, now.AddDate(0, 0, 1).Format(timestampLayout))},
		{Key: "CommodityType", Value: opts.commodityType},
		{Key: "OrderItems", Value: orderItems(order, opts.discount)},
	}
}

// ScanPayFields maps a one-code-multi-scan order. Every key the bank expects is
// present, empty when unset.
func ScanPayFields(r *entity.ScanPayRequest, now time.Time) Fields {
	order := orderBlock(&r.OrderInfo, orderOptions{
		payTypeID:       r.PayTypeID,
		expiredDate:     r.ExpiredDate,
		currencyCode:    r.CurrencyCode,
		receiverAddress: r.ReceiverAddress,
		installmentMark: r.InstallmentMark,
		buyIP:           r.BuyIP,
		commodityType:   orDefault(r.CommodityType, "0202"),
		discount:        "0.9",
	}, now)
	return Fields{
		{Key: "TrxType", Value: TrxTypeScanPay},
		{Key: "PaymentType", Value: orDefault(r.PaymentType, "1")},
		{Key: "PaymentLinkType", Value: orDefault(r.PaymentLinkType, "1")},
		{Key: "ReceiveAccount", Value: ""},
		{Key: "ReceiveAccName", Value: ""},
		{Key: "NotifyType", Value: orDefault(r.NotifyType, "0")},
		{Key: "ResultNotifyURL", Value: orDefault(r.NotifyURL, defaultNotifyURL)},
		{Key: "MerchantRemarks", Value: r.MerchantRemarks},
		{Key: "OrderFrom", Value: r.OrderFrom},
		{Key: "ReceiveMark", Value: ""},
		{Key: "ReceiveMerchantType", Value: r.ReceiveMerchantType},
		{Key: "IsBreakAccount", Value: orDefault(r.IsBreakAccount, "0")},
		{Key: "SplitAccTemplate", Value: r.SplitAccTemplate},
		{Key: "VerifyFlag", Value: "0"},
		{Key: "VerifyType", Value: ""},
		{Key: "VerifyNo", Value: ""},
		{Key: "Order", Value: order},
	}
}

// PagePayFields maps a hosted payment page order.
func PagePayFields(r *entity.PagePayRequest, now time.Time) Fields {
	order := orderBlock(&r.OrderInfo, orderOptions{
		payTypeID:        r.PayTypeID,
		expiredDate:      r.ExpiredDate,
		currencyCode:     r.CurrencyCode,
		receiverAddress:  r.ReceiverAddress,
		installmentMark:  r.InstallmentMark,
		buyIP:            r.BuyIP,
		orderURL:         r.OrderURL,
		orderTimeoutDate: r.OrderTimeoutDate,
		commodityType:    orDefault(r.CommodityType, "0201"),
		discount:         "1.0",
	}, now)
	return Fields{
		{Key: "TrxType", Value: TrxTypePagePay},
		{Key: "PaymentType", Value: orDefault(r.PaymentType, "1")},
		{Key: "PaymentLinkType", Value: orDefault(r.PaymentLinkType, "1")},
		{Key: "ReceiveAccount", Value: r.ReceiveAccount},
		{Key: "ReceiveAccName", Value: r.ReceiveAccName},
		{Key: "NotifyType", Value: "0"},
		{Key: "ResultNotifyURL", Value: r.NotifyURL},
		{Key: "MerchantRemarks", Value: r.MerchantRemarks},
		{Key: "OrderFrom", Value: ""},
		{Key: "ReceiveMark", Value: ""},
		{Key: "ReceiveMerchantType", Value: ""},
		{Key: "IsBreakAccount", Value: orDefault(r.IsBreakAccount, "0")},
		{Key: "SplitAccTemplate", Value: ""},
		{Key: "VerifyFlag", Value: "0"},
		{Key: "VerifyType", Value: ""},
		{Key: "VerifyNo", Value: ""},
		{Key: "Order", Value: order},
	}
}

// walletFields is the head shared by every electronic wallet channel.
func walletFields(order *entity.OrderInfo, linkType string, now time.Time) Fields {
	return Fields{
		{Key: "TrxType", Value: TrxTypeWallet},
		{Key: "PaymentType", Value: "D"},
		{Key: "PaymentLinkType", Value: linkType},
		{Key: "OrderNo", Value: order.OrderNo},
		{Key: "OrderAmount", Value: amount(order.Amount)},
		{Key: "OrderTime", Value: now.Format(timestampLayout)},
		{Key: "NotifyType", Value: "1"},
		{Key: "OrderDesc", Value: orDefault(order.GoodsName, defaultOrderDesc)},
	}.
		SetIf("ProductName", order.GoodsName).
		SetIf("ResultNotifyURL", order.NotifyURL)
}

// QRCodePayFields maps an Alipay QR code order (customer scans the merchant).
func QRCodePayFields(r *entity.QRCodePayRequest, now time.Time) Fields {
	return walletFields(&r.OrderInfo, "2", now).
		SetIf("ReturnURL", r.ReturnURL).
		SetIf("OrderValidTime", r.ExpiredDate).
		SetIf("MerchantRemarks", r.Attach).
		SetIf("LimitPay", r.LimitPay)
}

// PrecreateFields maps an Alipay pre-created order; PayTypeID follows TrxType.
func PrecreateFields(r *entity.PrecreateRequest, now time.Time) Fields {
	head := walletFields(&r.OrderInfo, "2", now)
	fields := append(Fields{head[0], {Key: "PayTypeID", Value: "4"}}, head[1:]...)
	return fields.
		SetIf("OrderValidTime", r.ExpiredDate).
		SetIf("LimitPay", r.LimitPay).
		SetIf("MerchantRemarks", r.Attach).
		SetIf("StoreID", r.StoreID).
		SetIf("TerminalID", r.TerminalID)
}

func WapPayFields(r *entity.WapPayRequest, now time.Time) Fields {
	return walletFields(&r.OrderInfo, "1", now).
		SetIf("ReturnURL", r.ReturnURL).
		SetIf("QuitURL", r.QuitURL)
}

func AppPayFields(r *entity.AppPayRequest, now time.Time) Fields {
	return walletFields(&r.OrderInfo, "3", now)
}

func PcPayFields(r *entity.PcPayRequest, now time.Time) Fields {
	return walletFields(&r.OrderInfo, "1", now).
		SetIf("ReturnURL", r.ReturnURL).
		SetIf("QuitURL", r.QuitURL)
}

// BarcodePayFields maps a payment code charge; the auth code follows PaymentLinkType.
func BarcodePayFields(r *entity.BarcodePayRequest, now time.Time) Fields {
	head := walletFields(&r.OrderInfo, "4", now)
	fields := append(Fields{head[0], head[1], head[2], {Key: "PayQRCode", Value: r.AuthCode}}, head[3:]...)
	return fields.SetIf("MerchantRemarks", r.Attach)
}

// WalletPayFields maps a WeChat wallet payment.
func WalletPayFields(r *entity.WalletPayRequest, now time.Time) Fields {
	orderTime := orDefault(r.OrderTime, now.Format(timestampLayout))
	fields := Fields{
		{Key: "TrxType", Value: TrxTypeWallet},
		{Key: "PaymentType", Value: "D"},
		{Key: "PaymentLinkType", Value: "2"},
		{Key: "OrderNo", Value: r.OrderNo},
		{Key: "OrderAmount", Value: amount(r.Amount)},
		{Key: "OrderTime", Value: orderTime},
		{Key: "NotifyType", Value: "1"},
	}.
		SetIf("OrderDesc", orDefault(r.OrderDesc, r.GoodsName)).
		SetIf("OrderValidTime", r.OrderValidTime).
		SetIf("ProductName", r.GoodsName).
		SetIf("ResultNotifyURL", r.NotifyURL).
		SetIf("MerchantRemarks", r.Remarks).
		SetIf("Token", r.Token).
		SetIf("OpenId", r.OpenID).
		SetIf("ClientIP", r.ClientIP).
		SetIf("SceneInfo", r.SceneInfo).
		SetIf("GoodsId", r.GoodsID)
	if r.GoodsQuantity > 0 {
		fields = fields.Set("GoodsQuantity", strconv.Itoa(r.GoodsQuantity))
	}
	return fields.
		SetIf("Attach", r.Attach).
		SetIf("Detail", r.Detail)
}

func RefundFields(r *entity.RefundRequest, now time.Time) Fields {
	return Fields{
		{Key: "TrxType", Value: TrxTypeRefund},
		{Key: "OrderNo", Value: r.OrderNo},
		{Key: "RefundAmount", Value: amount(r.RefundAmount)},
		{Key: "RefundReason", Value: orDefault(r.RefundReason, defaultRefundReason)},
		{Key: "OrderTime", Value: now.Format(timestampLayout)},
	}
}

func QueryFields(r *entity.QueryRequest, now time.Time) Fields {
	return Fields{
		{Key: "TrxType", Value: TrxTypeOrderQuery},
		{Key: "OrderNo", Value: r.OrderNo},
		{Key: "OrderTime", Value: now.Format(timestampLayout)},
	}
}

// LegacyPaymentFields maps the flat payment call; optional keys are sent only when set.
func LegacyPaymentFields(r *entity.LegacyPaymentRequest, merchantID string, now time.Time) Fields {
	return Fields{
		{Key: "TrxType", Value: r.TrxType},
		{Key: "OrderNo", Value: r.OrderNo},
		{Key: "OrderAmount", Value: amount(r.OrderAmount)},
		{Key: "MerchantID", Value: merchantID},
	}.
		SetIf("OrderDesc", r.OrderDesc).
		SetIf("OrderValidTime", r.OrderValidTime).
		SetIf("PayQRCode", r.PayQRCode).
		Set("OrderTime", orDefault(r.OrderTime, now.Format(timestampLayout))).
		SetIf("OrderAbstract", r.OrderAbstract).
		SetIf("ResultNotifyURL", r.ResultNotifyURL).
		SetIf("ProductName", r.ProductName).
		SetIf("PaymentType", r.PaymentType).
		SetIf("PaymentLinkType", r.PaymentLinkType).
		SetIf("MerchantRemarks", r.MerchantRemarks).
		SetIf("NotifyType", r.NotifyType).
		SetIf("Token", r.Token)
}

func LegacyQueryFields(r *entity.LegacyQueryRequest, merchantID string) Fields {
	return Fields{
		{Key: "TrxType", Value: TrxTypeOrderQuery},
		{Key: "OrderNo", Value: r.OrderNo},
		{Key: "MerchantID", Value: merchantID},
	}
}
