package service

import (
	"context"
	"time"

	"academy/internal/models"
	"academy/internal/repository"
)

// AccountStore is the persistence contract the services depend on.
// repository.AccountRepository implements it.
type AccountStore interface {
	FindOne(ctx context.Context, filter repository.AccountFilter, fields ...repository.Field) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, filter repository.AccountFilter, update repository.AccountUpdate) (int64, error)
	Remove(ctx context.Context, filter repository.AccountFilter) (int64, error)
}

// ExpiredTokenCleaner clears refresh and reset tokens that expired before now
type ExpiredTokenCleaner interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Mailer delivers a single message. Implementations must not retry.
type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}
