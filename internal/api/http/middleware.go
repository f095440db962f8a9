package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-api/internal/config"
	"github.com/spec-kit/helpdesk-api/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-api/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares. Registration order is
// outermost first: the request logger must observe the status written by
// the error middleware.
func RegisterMiddlewares(app *fiber.App, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.Origins(),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: false,
	}))
	if cfg.HTTP.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Next:       isProbe,
			Max:        cfg.HTTP.RateLimitMax,
			Expiration: cfg.HTTP.RateLimitWindow(),
			LimitReached: func(c *fiber.Ctx) error {
				return apperrors.NewDomainError(apperrors.CodeRateLimited, "too many requests", http.StatusTooManyRequests, nil)
			},
		}))
	}
	if timeout := cfg.App.RequestTimeout(); timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func isProbe(c *fiber.Ctx) bool {
	path := c.Path()
	return path == "/metrics" || path == "/health/live" || path == "/health/ready"
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = renderError(c, err, logger, metrics)
			}
		}()
		return c.Next()
	}
}

// ErrorHandler is installed as fiber's fallback handler for errors raised
// outside the middleware chain.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return renderError(c, err, logger, metrics)
	}
}

func renderError(c *fiber.Ctx, err error, logger *zap.Logger, metrics *observability.Metrics) error {
	domainErr := toDomainError(err)
	metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(domainErr))
	}
	resp := fiber.Map{"error": body}
	if version, ok := domainErr.Details["serverVersion"]; ok && domainErr.Code == apperrors.CodeConflict {
		resp["serverVersion"] = version
	}
	return c.Status(domainErr.HTTPStatus).JSON(resp)
}

// toDomainError also converts fiber's own errors, such as unmatched routes
// and malformed bodies, into the API error shape.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		var code string
		switch fiberErr.Code {
		case http.StatusNotFound:
			code = apperrors.CodeNotFound
		case http.StatusUnauthorized:
			code = apperrors.CodeUnauthorized
		case http.StatusForbidden:
			code = apperrors.CodeForbidden
		case http.StatusTooManyRequests:
			code = apperrors.CodeRateLimited
		case http.StatusConflict:
			code = apperrors.CodeConflict
		default:
			if fiberErr.Code >= http.StatusInternalServerError {
				return apperrors.ToDomainError(err)
			}
			code = apperrors.CodeValidation
		}
		return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ToDomainError(apperrors.NewInternalError(err))
	}
	return apperrors.ToDomainError(err)
}
