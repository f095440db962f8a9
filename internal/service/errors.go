package service

import (
	"errors"

	"github.com/spec-kit/helpdesk-api/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-api/pkg/util/errorutil"
)

// translateRepoError maps storage sentinels onto API errors.
func translateRepoError(err error, resource string) error {
	if err == nil {
		return nil
	}

	var conflict *repository.VersionConflictError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrNoAgent):
		return apperrors.NewNoAgentAvailable()
	case errors.As(err, &conflict):
		return apperrors.NewConflict("version conflict", map[string]any{"serverVersion": conflict.Current})
	default:
		return apperrors.MapError(err)
	}
}
