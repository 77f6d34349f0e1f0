package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// sessionGuard centralizes the exists / owned / active checks every
// session-scoped operation starts with.
type sessionGuard struct {
	sessions SessionStore
}

func (g sessionGuard) load(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	s, err := g.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (g sessionGuard) owned(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.ExamSession, error) {
	s, err := g.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.OwnedBy(p) {
		return nil, ErrUnauthorized
	}
	return s, nil
}

func (g sessionGuard) ownedActive(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.ExamSession, error) {
	s, err := g.owned(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	if !s.IsActive {
		return nil, ErrSessionNotActive
	}
	return s, nil
}

// inactiveErr translates the repository's closed-session signal.
func inactiveErr(err error) error {
	if errors.Is(err, repository.ErrSessionInactive) {
		return ErrSessionNotActive
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
