package rest

import (
	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	"github.com/AzielCF/az-publish/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Publish struct {
	Service domainPublish.IPublishUsecase
}

func InitRestPublish(app fiber.Router, service domainPublish.IPublishUsecase) Publish {
	rest := Publish{Service: service}
	app.Post("/publish/run", rest.Run)
	app.Get("/publish/stats", rest.Stats)
	app.Get("/publish/posts/:id", rest.GetPost)
	return rest
}

func (controller *Publish) Run(c *fiber.Ctx) error {
	var request domainPublish.RunRequest
	if len(c.Body()) > 0 {
		err := c.BodyParser(&request)
		utils.PanicIfNeeded(err)
	}

	result, err := controller.Service.Run(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Publish run finished",
		Results: result,
	})
}

func (controller *Publish) Stats(c *fiber.Ctx) error {
	stats, err := controller.Service.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch publish stats",
		Results: stats,
	})
}

func (controller *Publish) GetPost(c *fiber.Ctx) error {
	detail, err := controller.Service.GetPost(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch post",
		Results: detail,
	})
}
