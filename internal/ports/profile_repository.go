package ports

import (
	"context"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

type ProfileRepository interface {
	List(ctx context.Context) ([]domain.ProfileRecord, error)
	Save(ctx context.Context, record domain.ProfileRecord) error
	Delete(ctx context.Context, username string) error
}
