package serverutils

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders every error returned by a handler as a BaseResponse.
// Internal details are never exposed for 5xx responses.
func ErrorHandlerMiddleware() fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var appErr *AppError
		if errors.As(err, &appErr) {
			if appErr.RetryAfter > 0 {
				ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(appErr.RetryAfter.Seconds()+0.5)))
			}
			if len(appErr.Errors) > 0 {
				return ctx.Status(appErr.Code).JSON(ErrorResponseWithData(appErr.Code, appErr.Message, fiber.Map{"errors": appErr.Errors}))
			}
			return ctx.Status(appErr.Code).JSON(ErrorResponse(appErr.Code, appErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
