package internal

import (
	"abcpay/entity"
	"encoding/json"
	"fmt"

	"gitee.com/golang-module/dongle"
)

// MessageSigner produces the base64 signature of data with a merchant's key.
type MessageSigner interface {
	Sign(merchantID string, data []byte) (string, error)
}

// SignedEnvelope is an envelope together with the signature over its exact bytes.
type SignedEnvelope struct {
	envelope  *Envelope
	signature string
	body      []byte
}

// AttachSignature signs the canonical bytes of env and splices the same bytes,
// unchanged, into the transmitted body.
func AttachSignature(env *Envelope, signer MessageSigner) (*SignedEnvelope, error) {
	if env == nil {
		return nil, signingError(fmt.Errorf("%w: no envelope", ErrSigning))
	}
	message := env.Bytes()
	signature, err := signer.Sign(env.Merchant().ID, message)
	if err != nil {
		return nil, err
	}
	body, err := MarshalCanonical(Fields{
		{Key: "Message", Value: json.RawMessage(message)},
		{Key: "Signature-Algorithm", Value: entity.SignatureAlgorithm},
		{Key: "Signature", Value: signature},
	})
	if err != nil {
		return nil, signingError(fmt.Errorf("%w: %v", ErrSigning, err))
	}
	return &SignedEnvelope{
		envelope:  env,
		signature: signature,
		body:      body,
	}, nil
}

func (s *SignedEnvelope) Envelope() *Envelope {
	return s.envelope
}

func (s *SignedEnvelope) Signature() string {
	return s.signature
}

// Body returns a copy of the transmitted bytes.
func (s *SignedEnvelope) Body() []byte {
	return append([]byte(nil), s.body...)
}

// Payload is the single-key map the transport sends as a raw JSON body.
func (s *SignedEnvelope) Payload() map[string]string {
	return map[string]string{payloadKey: string(s.body)}
}

// signSHA1WithRSA signs data with a PKCS#1 PEM private key, PKCS#1 v1.5 padding.
func signSHA1WithRSA(privateKeyPEM []byte, data []byte) (string, error) {
	sign := dongle.Sign.FromBytes(data).ByRsa(privateKeyPEM, dongle.SHA1)
	if sign.Error != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, sign.Error)
	}
	signature := sign.ToBase64String()
	if signature == "" {
		return "", fmt.Errorf("%w: empty signature", ErrSigning)
	}
	return signature, nil
}

// verifySHA256WithRSA checks a base64 signature with a PEM public key.
func verifySHA256WithRSA(publicKeyPEM []byte, data []byte, signature string) (bool, error) {
	verify := dongle.Verify.FromBase64String(signature, string(data)).ByRsa(publicKeyPEM, dongle.SHA256)
	if verify.Error != nil {
		return false, verify.Error
	}
	return verify.ToBool(), nil
}
