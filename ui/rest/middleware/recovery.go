package middleware

import (
	"fmt"

	pkgError "github.com/AzielCF/az-publish/pkg/error"
	"github.com/AzielCF/az-publish/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			res := utils.ResponseData{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", err),
			}

			if typed, ok := err.(pkgError.GenericError); ok {
				res.Status = typed.StatusCode()
				res.Code = typed.ErrCode()
				res.Message = typed.Error()
			}

			if res.Status >= fiber.StatusInternalServerError {
				logrus.WithFields(logrus.Fields{
					"path":       ctx.Path(),
					"request_id": ctx.GetRespHeader(fiber.HeaderXRequestID),
				}).Errorf("[REST] Panic recovered: %v", err)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
