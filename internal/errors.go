package internal

import (
	"abcpay/entity"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMerchantNotConfigured  = errors.New("merchant not configured")
	ErrCertificateUnavailable = errors.New("certificate unavailable")
	ErrNoPrivateKey           = errors.New("certificate has no private key")
	ErrSigning                = errors.New("signing failed")
	ErrNetwork                = errors.New("network failure")
	ErrUnrecognizedFormat     = errors.New("unrecognized certificate format")
	ErrMissingTrxType         = errors.New("transaction fields have no TrxType")
)

// ProtocolError tags a failure with the outcome kind and reserved code it maps to.
type ProtocolError struct {
	Kind entity.OutcomeKind
	Code string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Code, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func configurationError(err error) error {
	return &ProtocolError{Kind: entity.OutcomeConfigurationError, Code: entity.CodeInternalError, Err: err}
}

func signingError(err error) error {
	return &ProtocolError{Kind: entity.OutcomeSigningError, Code: entity.CodeInternalError, Err: err}
}

func networkError(err error) error {
	return &ProtocolError{Kind: entity.OutcomeNetworkError, Code: entity.CodeNetworkError, Err: err}
}

// UnrecognizedFormatError lists every decoder that rejected a key file.
type UnrecognizedFormatError struct {
	Path   string
	Tried  []string
	Causes []error
}

func (e *UnrecognizedFormatError) Error() string {
	causes := make([]string, 0, len(e.Causes))
	for i, c := range e.Causes {
		causes = append(causes, fmt.Sprintf("%s: %v", e.Tried[i], c))
	}
	return fmt.Sprintf("%s: unrecognized format, tried %s", e.Path, strings.Join(causes, "; "))
}

func (e *UnrecognizedFormatError) Is(target error) bool {
	return target == ErrUnrecognizedFormat
}
