package entity

// Fixed values of the V3.0.0 message envelope.
const (
	ProtocolVersion    = "V3.0.0"
	MessageFormat      = "JSON"
	ECMerchantType     = "EBUS"
	SignatureAlgorithm = "SHA1withRSA"
)

// MerchantIdentity identifies the merchant on whose behalf an envelope is sent.
type MerchantIdentity struct {
	// Merchant number assigned by the bank
	ID string `json:"MerchantID"`
	// Merchant channel type, always EBUS for internet merchants
	Type string `json:"ECMerchantType"`
}

func NewMerchantIdentity(id string) MerchantIdentity {
	return MerchantIdentity{
		ID:   id,
		Type: ECMerchantType,
	}
}
