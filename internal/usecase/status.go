package usecase

import (
	"context"

	"SigRelay/internal/domain/models"
)

// StatusAggregator composes the read-only view any front end polls: auth
// state, listener state, recent signals and account summaries. It mutates
// nothing and takes no locks beyond each source's own snapshot.
type StatusAggregator struct {
	auth     *AuthSession
	listener *ChannelListener
	registry *AccountRegistry
}

func NewStatusAggregator(auth *AuthSession, listener *ChannelListener, registry *AccountRegistry) *StatusAggregator {
	return &StatusAggregator{auth: auth, listener: listener, registry: registry}
}

// Snapshot always succeeds and reflects whatever the components currently
// hold. recentLimit <= 0 returns the full ring buffer.
func (s *StatusAggregator) Snapshot(ctx context.Context, recentLimit int) models.Status {
	channelID, listening := s.listener.Active()
	return models.Status{
		Auth:            s.auth.Status(),
		ActiveChannelID: channelID,
		SavedChannelID:  s.listener.SavedChannelID(ctx),
		Listening:       listening,
		RecentSignals:   s.listener.Recent(recentLimit),
		Accounts:        s.registry.Summaries(),
	}
}
