package agent

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"dietolog/internal/schema"
	"dietolog/internal/store"
)

// Today returns the user's current day log. A user with no log yet gets
// an empty day, not an error.
func (s *Service) Today(userID string) (*schema.Today, error) {
	var today schema.Today
	if err := s.store.Read(userID, store.DocToday, &today); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &today, nil
}

// SweepPending walks today's pending drafts: drafts older than timeout
// are discarded, the rest older than remindAfter are returned so the
// transport can nudge the user. Confirmed meals are never touched.
func (s *Service) SweepPending(userID string, remindAfter, timeout time.Duration) (remind, expired []schema.Meal, err error) {
	now := time.Now().UTC()
	var today schema.Today
	err = s.store.Update(userID, store.DocToday, &today, func() error {
		kept := today.Meals[:0]
		for _, m := range today.Meals {
			age := now.Sub(m.Timestamp)
			switch {
			case m.Pending && age >= timeout:
				expired = append(expired, m)
			case m.Pending && age >= remindAfter:
				remind = append(remind, m)
				kept = append(kept, m)
			default:
				kept = append(kept, m)
			}
		}
		today.Meals = kept
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	for _, m := range expired {
		s.logger.Info("pending meal expired",
			zap.String("user", userID),
			zap.String("meal", m.ID),
			zap.String("type", m.Type))
	}
	return remind, expired, nil
}
