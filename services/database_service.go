package services

import "context"

type Database interface {
	WriteLogMessage(ctx context.Context, data Data) error
}

type Data interface {
	DataType() string
}
