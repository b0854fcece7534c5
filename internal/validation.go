package internal

import (
	"abcpay/entity"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateRequest checks struct tags and the rules tags cannot express.
func validateRequest(request entity.TransactionRequest) error {
	if err := validate.Struct(request); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			return describeValidation(fieldErrors)
		}
		return err
	}
	if err := checkPrecision(request); err != nil {
		return err
	}

	switch r := request.(type) {
	case *entity.ScanPayRequest:
		return requireOrderFields(&r.OrderInfo)
	case *entity.PagePayRequest:
		return requireOrderFields(&r.OrderInfo)
	case *entity.RefundRequest:
		if r.OrderAmount != nil && r.RefundAmount.GreaterThan(*r.OrderAmount) {
			return fmt.Errorf("refundAmount %s exceeds orderAmount %s", amount(r.RefundAmount), amount(*r.OrderAmount))
		}
	}
	return nil
}

// checkPrecision rejects amounts finer than a cent; the bank receives them
// formatted with two decimals and anything beyond would be rounded away.
func checkPrecision(request entity.TransactionRequest) error {
	fields := map[string]decimal.Decimal{}
	switch r := request.(type) {
	case *entity.RefundRequest:
		fields["refundAmount"] = r.RefundAmount
		if r.OrderAmount != nil {
			fields["orderAmount"] = *r.OrderAmount
		}
	case *entity.LegacyPaymentRequest:
		fields["orderAmount"] = r.OrderAmount
	case interface{ TotalAmount() decimal.Decimal }:
		fields["amount"] = r.TotalAmount()
	}

	var messages []string
	for _, name := range []string{"amount", "refundAmount", "orderAmount"} {
		value, ok := fields[name]
		if ok && !value.Equal(value.Truncate(2)) {
			messages = append(messages, fmt.Sprintf("%s must have at most 2 decimal places", name))
		}
	}
	if len(messages) > 0 {
		return errors.New(strings.Join(messages, "; "))
	}
	return nil
}

// requireOrderFields applies to the bank's own channels, which name the merchant
// and the notification address explicitly.
func requireOrderFields(order *entity.OrderInfo) error {
	var missing []string
	if order.MerchantID == "" {
		missing = append(missing, "merchantId is required")
	}
	if order.NotifyURL == "" {
		missing = append(missing, "notifyUrl is required")
	}
	if len(missing) > 0 {
		return errors.New(strings.Join(missing, "; "))
	}
	return nil
}

func describeValidation(fieldErrors validator.ValidationErrors) error {
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", fe.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(messages, "; "))
}
