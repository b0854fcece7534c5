package services

import (
	"abcpay/entity"
	"context"
)

type Payments interface {
	Execute(ctx context.Context, request entity.TransactionRequest) entity.Outcome
	Notify(ctx context.Context, body []byte) error
}

type Certificates interface {
	Status() entity.CertificateStatus
}
