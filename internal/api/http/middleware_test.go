package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/helpdesk-api/pkg/util/errorutil"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"deadline", fmt.Errorf("list tickets: %w", context.DeadlineExceeded), http.StatusInternalServerError, apperrors.CodeInternal, "internal server error"},
		{"unmatched route", fiber.ErrNotFound, http.StatusNotFound, apperrors.CodeNotFound, fiber.ErrNotFound.Message},
		{"bad body", fiber.ErrUnprocessableEntity, http.StatusUnprocessableEntity, apperrors.CodeValidation, fiber.ErrUnprocessableEntity.Message},
		{"domain", apperrors.NewConflict("version conflict", nil), http.StatusConflict, apperrors.CodeConflict, "version conflict"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := toDomainError(tc.err)
			assert.Equal(t, tc.status, got.HTTPStatus)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.message, got.Message)
		})
	}
}
