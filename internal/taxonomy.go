package internal

import (
	"abcpay/entity"
	"fmt"
	"sort"
)

const unknownErrorMessage = "未知错误"

var errorCodes = map[string]entity.ErrorCode{
	"0000":   {Category: entity.CategorySuccess, Message: "交易成功", MessageEn: "Transaction succeeded"},
	"APE001": {Category: entity.CategoryBusinessError, Message: "系统错误，请稍后重试", MessageEn: "System error, please retry later"},
	"APE002": {Category: entity.CategoryBusinessError, Message: "商户信息不存在，请检查商户号配置", MessageEn: "Merchant not found, check the merchant number"},
	"APE003": {Category: entity.CategoryBusinessError, Message: "商户未开通此功能，请联系农行开通", MessageEn: "Function not enabled for the merchant, contact the bank"},
	"APE004": {Category: entity.CategoryBusinessError, Message: "商户已停用，请联系农行", MessageEn: "Merchant suspended, contact the bank"},
	"APE009": {Category: entity.CategoryBusinessError, Message: "请求报文格式错误，请检查必填字段", MessageEn: "Malformed request, check required fields"},
	"APE400": {Category: entity.CategoryBusinessError, Message: "签名验证失败，请检查证书配置", MessageEn: "Signature verification failed, check the certificate configuration"},
	"EUNKWN": {Category: entity.CategoryIndeterminate, Message: "交易结果未知，请查询订单状态确认", MessageEn: "Transaction result unknown, query the order status"},
	"E001":   {Category: entity.CategoryBusinessError, Message: "订单不存在", MessageEn: "Order does not exist"},
	"E002":   {Category: entity.CategoryBusinessError, Message: "订单已支付", MessageEn: "Order already paid"},
	"E003":   {Category: entity.CategoryBusinessError, Message: "订单已关闭", MessageEn: "Order closed"},
	"E004":   {Category: entity.CategoryBusinessError, Message: "订单已退款", MessageEn: "Order already refunded"},
	"E005":   {Category: entity.CategoryBusinessError, Message: "订单金额不符", MessageEn: "Order amount mismatch"},
	"E100":   {Category: entity.CategoryBusinessError, Message: "支付方式不支持", MessageEn: "Payment method not supported"},
	"E101":   {Category: entity.CategoryBusinessError, Message: "支付渠道异常", MessageEn: "Payment channel failure"},
	"E102":   {Category: entity.CategoryBusinessError, Message: "支付超时", MessageEn: "Payment timed out"},
	"E200":   {Category: entity.CategoryBusinessError, Message: "余额不足", MessageEn: "Insufficient balance"},
	"E201":   {Category: entity.CategoryBusinessError, Message: "超过限额", MessageEn: "Limit exceeded"},
}

// successAliases are accepted as success although the table does not list them.
var successAliases = map[string]bool{"00": true}

// LookupCode classifies a bank return code. Unknown codes are business errors, never success.
func LookupCode(code string) entity.ErrorCode {
	if entry, ok := errorCodes[code]; ok {
		entry.Code = code
		entry.Known = true
		return entry
	}
	if successAliases[code] {
		entry := errorCodes[entity.CodeSuccess]
		entry.Code = code
		entry.Known = true
		return entry
	}
	return entity.ErrorCode{
		Code:     code,
		Category: entity.CategoryBusinessError,
	}
}

// FriendlyMessage renders "message (code)", preferring the table text over the bank's own.
func FriendlyMessage(code, original string) string {
	entry := LookupCode(code)
	message := entry.Message
	if !entry.Known {
		message = original
	}
	if message == "" {
		message = unknownErrorMessage
	}
	return fmt.Sprintf("%s (%s)", message, code)
}

// ErrorCodes lists the table ordered by code.
func ErrorCodes() []entity.ErrorCode {
	codes := make([]entity.ErrorCode, 0, len(errorCodes))
	for code := range errorCodes {
		codes = append(codes, LookupCode(code))
	}
	sort.Slice(codes, func(i, j int) bool {
		return codes[i].Code < codes[j].Code
	})
	return codes
}
