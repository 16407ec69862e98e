package repository

import (
	"context"
	"time"

	"SigRelay/internal/domain/models"
)

// RawMessage is one inbound channel message before parsing.
type RawMessage struct {
	ChannelID int64
	Text      string
	SentAt    time.Time
}

// AuthProvider is the messaging-platform login collaborator (MTProto
// gateway sidecar). Implementations map platform failures onto the domain
// auth errors.
type AuthProvider interface {
	RequestCode(ctx context.Context, phone string) error
	SubmitCode(ctx context.Context, code string) (models.CodeResult, error)
	SubmitPassword(ctx context.Context, password string) error
	Logout(ctx context.Context) error
	// ExportSession serializes the live platform session so it can be
	// replayed after a restart; RestoreSession is its inverse.
	ExportSession(ctx context.Context) (string, error)
	RestoreSession(ctx context.Context, session string) error
}

// MessageStream delivers raw channel text for one subscription. Subscribe
// returns a receive channel and an error channel; both close when ctx is
// cancelled or the stream dies.
type MessageStream interface {
	Subscribe(ctx context.Context, channelID int64) (<-chan RawMessage, <-chan error, error)
}

// BalanceProvider queries the broker for one credential's balance.
// Failures come back as *models.BalanceUnavailableError.
type BalanceProvider interface {
	QueryBalance(ctx context.Context, credential string) (float64, error)
}

// AccountStore persists the account registry: one record per account keyed
// by name, plus insertion order. State survives restarts; the in-memory
// registry is authoritative while the process runs.
type AccountStore interface {
	Put(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, name string) error
	LoadAll(ctx context.Context) ([]*models.Account, error)
	SaveOrder(ctx context.Context, names []string) error
	SaveChannelID(ctx context.Context, channelID int64) error
	LoadChannelID(ctx context.Context) (int64, error)
	SaveSession(ctx context.Context, session string) error
	LoadSession(ctx context.Context) (string, error)
	Close() error
}

// SignalPublisher relays parsed signals to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, s models.Signal) error
	Close() error
}

// SignalArchive is the append-only history of everything that came off the
// channel.
type SignalArchive interface {
	Append(ctx context.Context, s models.Signal) error
	Recent(ctx context.Context, limit int) ([]models.Signal, error)
	Close() error
}

// Metrics is the operational counters surface.
type Metrics interface {
	RecordMessage(channelID int64, parsed bool)
	RecordAuthTransition(state string)
	RecordBalanceFetch(outcome string, seconds float64)
	RecordError(kind string)
}
