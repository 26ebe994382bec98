package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/cmd"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/scheduler"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	engine, err := cmd.NewEngine(t.Context(), log.Discard(), cmd.Config{
		DatabaseURL: t.TempDir(),
		Scheduler:   scheduler.NewManual(log.Discard()),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, engine.Close(context.Background()))
	})

	return NewAPI(log.Discard(), engine).App()
}

func get(t *testing.T, app *fiber.App, path string) (int, []byte) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestAPI_RootEndpoint(t *testing.T) {
	t.Parallel()

	status, body := get(t, setupTestApp(t), "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Shopflow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(body))

	status, _ = get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	t.Parallel()

	status, body := get(t, setupTestApp(t), "/workflows")
	require.Equal(t, http.StatusOK, status)

	var response map[string]any
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Empty(t, response["workflows"])
	assert.Equal(t, false, response["has_next_page"])
}

func TestAPI_CatalogListsTriggers(t *testing.T) {
	t.Parallel()

	status, body := get(t, setupTestApp(t), "/catalog/triggers")
	require.Equal(t, http.StatusOK, status)

	var response struct {
		Triggers []struct {
			Name string `json:"name"`
		} `json:"triggers"`
	}
	require.NoError(t, json.Unmarshal(body, &response))
	assert.NotEmpty(t, response.Triggers)
}
