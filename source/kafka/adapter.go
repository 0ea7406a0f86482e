package kafka

import (
	"context"

	"weir/internal/message"
)

type EmitFunc func(*message.Frame) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}
