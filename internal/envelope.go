package internal

import (
	"abcpay/entity"
	"fmt"
)

// Envelope is the versioned, merchant-scoped message around one transaction.
// Its canonical bytes are produced once and never re-serialized.
type Envelope struct {
	merchant  entity.MerchantIdentity
	trxType   string
	canonical []byte
}

// BuildEnvelope wraps the transaction fields into the V3.0.0 message.
func BuildEnvelope(merchant entity.MerchantIdentity, trxRequest Fields) (*Envelope, error) {
	if merchant.ID == "" {
		return nil, configurationError(ErrMerchantNotConfigured)
	}
	trxType := trxRequest.GetString("TrxType")
	if trxType == "" {
		return nil, ErrMissingTrxType
	}
	if merchant.Type == "" {
		merchant.Type = entity.ECMerchantType
	}
	message := Fields{
		{Key: "Version", Value: entity.ProtocolVersion},
		{Key: "Format", Value: entity.MessageFormat},
		{Key: "Merchant", Value: Fields{
			{Key: "ECMerchantType", Value: merchant.Type},
			{Key: "MerchantID", Value: merchant.ID},
		}},
		{Key: "TrxRequest", Value: trxRequest},
	}
	canonical, err := MarshalCanonical(message)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return &Envelope{
		merchant:  merchant,
		trxType:   trxType,
		canonical: canonical,
	}, nil
}

func (e *Envelope) Merchant() entity.MerchantIdentity {
	return e.merchant
}

func (e *Envelope) TrxType() string {
	return e.trxType
}

// Bytes returns a copy of the canonical message bytes.
func (e *Envelope) Bytes() []byte {
	return append([]byte(nil), e.canonical...)
}
