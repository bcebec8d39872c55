package ports

import (
	"context"
	"io"
)

type Dialer interface {
	Dial(ctx context.Context, address string) (io.ReadWriteCloser, error)
}
