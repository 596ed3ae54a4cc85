package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

var ErrNoSession = errors.New("no session")

type SessionStore interface {
	// Load returns ErrNoSession when nothing is stored
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
}
