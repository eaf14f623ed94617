package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pedalhub/rental-service/internal/observability"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

// MiddlewareOptions tunes the global middleware chain.
type MiddlewareOptions struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Timeout time.Duration
	// ExposeInternalErrors adds the raw error text to 5xx responses.
	ExposeInternalErrors bool
}

// NewApp creates a fiber app whose error handler and global middlewares share opts.
func NewApp(appName string, opts MiddlewareOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      appName,
		ErrorHandler: ErrorHandler(opts),
	})
	RegisterMiddlewares(app, opts)
	return app
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, opts MiddlewareOptions) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	app.Use(observability.RequestLogger(opts.Logger, opts.Metrics))
	app.Use(errorHandlingMiddleware(opts))
	if opts.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(opts.Timeout))
	}
}

// ErrorHandler renders errors that escape the middleware chain, for fiber.Config.
func ErrorHandler(opts MiddlewareOptions) fiber.ErrorHandler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		return renderError(c, err, opts)
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(opts MiddlewareOptions) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				opts.Logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = renderError(c, err, opts)
			}
		}()
		return c.Next()
	}
}

func renderError(c *fiber.Ctx, err error, opts MiddlewareOptions) error {
	domainErr := toDomainError(err)

	path := c.Route().Path
	if path == "" {
		path = c.Path()
	}
	opts.Metrics.RecordError(path, c.Method(), domainErr.Code)

	response := apperrors.NewErrorResponse(domainErr.Message, "")
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		opts.Logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(domainErr))
		if opts.ExposeInternalErrors && domainErr.Err != nil {
			response.Error = domainErr.Err.Error()
		}
	} else {
		response.Error = domainErr.Code
		if len(domainErr.Details) > 0 {
			response.Details = domainErr.Details
		}
	}
	return c.Status(domainErr.HTTPStatus).JSON(response)
}

// toDomainError also understands fiber's own errors such as unmatched routes.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := "HTTP_ERROR"
		switch fiberErr.Code {
		case http.StatusNotFound:
			code = "NOT_FOUND"
		case http.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case http.StatusRequestEntityTooLarge:
			code = "PAYLOAD_TOO_LARGE"
		}
		return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewDomainError("TIMEOUT", "request timed out", http.StatusGatewayTimeout, nil)
	}
	return apperrors.ToDomainError(err)
}
