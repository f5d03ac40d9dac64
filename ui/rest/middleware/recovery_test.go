package middleware

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	pkgError "github.com/AzielCF/az-publish/pkg/error"
	"github.com/AzielCF/az-publish/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery(t *testing.T) {
	app := fiber.New()
	app.Use(Recovery())
	app.Get("/typed", func(c *fiber.Ctx) error {
		panic(pkgError.ValidationError("batch_size: must be no greater than 500."))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		panic(errors.New("boom"))
	})

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/typed", 400, "VALIDATION_ERROR"},
		{"/plain", 500, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode)

		var body utils.ResponseData
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, tc.status, body.Status)
	}
}
