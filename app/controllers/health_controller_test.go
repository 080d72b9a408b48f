package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healhub/healhub-auth/internal/pkg/constants"
)

func TestHandleHealth(t *testing.T) {
	app := fiber.New()
	ctrl := NewHealthController(nil)
	app.Get(constants.HealthRoute, ctrl.HandleHealth)

	resp, err := app.Test(httptest.NewRequest("GET", constants.HealthRoute, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"], "the probe reports healthy while the process serves")

	timestamp, _ := body["timestamp"].(string)
	parsed, err := time.Parse(time.RFC3339, timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)

	assert.Equal(t, "down", body["database"], "no database handle is wired in this test")
	assert.Contains(t, body, "cache")
}

func TestHandleIndex(t *testing.T) {
	app := fiber.New()
	app.Get(constants.IndexRoute, HandleIndex)

	resp, err := app.Test(httptest.NewRequest("GET", constants.IndexRoute, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "HealHub Auth API", body["name"])

	endpoints, ok := body["endpoints"].([]interface{})
	require.True(t, ok)
	assert.Len(t, endpoints, 3)
}
