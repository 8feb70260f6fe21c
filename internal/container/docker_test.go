package container_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"simplej/internal/container"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dockerAPI answers the handful of Engine API calls Run makes. Start always
// fails the way the daemon does when the host port is taken.
type dockerAPI struct {
	mu    sync.Mutex
	calls []string
	query map[string]string
}

func (a *dockerAPI) record(c echo.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, c.Request().Method+" "+c.Request().URL.Path)
	if c.Request().Method == http.MethodDelete {
		a.query = map[string]string{
			"force": c.QueryParam("force"),
			"v":     c.QueryParam("v"),
		}
	}
}

func (a *dockerAPI) deleted(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, call := range a.calls {
		if strings.HasPrefix(call, http.MethodDelete) && strings.HasSuffix(call, "/containers/"+id) {
			return true
		}
	}
	return false
}

func newDockerAPI(t *testing.T) (*dockerAPI, string) {
	t.Helper()
	api := &dockerAPI{}

	e := echo.New()
	e.HideBanner = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			api.record(c)
			return next(c)
		}
	})

	ping := func(c echo.Context) error {
		c.Response().Header().Set("API-Version", "1.45")
		c.Response().Header().Set("OSType", "linux")
		return c.String(http.StatusOK, "OK")
	}
	e.HEAD("/_ping", ping)
	e.GET("/_ping", ping)
	e.POST("/:version/containers/create", func(c echo.Context) error {
		return c.Blob(http.StatusCreated, "application/json", []byte(`{"Id":"abc123","Warnings":[]}`))
	})
	e.POST("/:version/containers/:id/start", func(c echo.Context) error {
		body := `{"message":"driver failed programming external connectivity: Bind for 0.0.0.0:8888 failed: port is already allocated"}`
		return c.Blob(http.StatusInternalServerError, "application/json", []byte(body))
	})
	e.DELETE("/:version/containers/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return api, "tcp://" + strings.TrimPrefix(srv.URL, "http://")
}

func TestDockerRunRemovesContainerWhenStartFails(t *testing.T) {
	t.Setenv("DOCKER_HOST", "")
	t.Setenv("DOCKER_API_VERSION", "")
	t.Setenv("DOCKER_CERT_PATH", "")
	t.Setenv("DOCKER_TLS_VERIFY", "")

	api, host := newDockerAPI(t)
	engine, err := container.NewDockerEngine(host)
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Run(context.Background(), &container.RunConfig{
		Name:  "simplej-demo",
		Image: "sha256:0123",
		Ports: []int{8888},
	})
	require.Error(t, err)

	var ce *container.ContainerError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, container.ErrorTypeNetworkError, ce.Type)
	assert.Contains(t, err.Error(), "port is already allocated")

	assert.True(t, api.deleted("abc123"), "calls: %v", api.calls)
	assert.Equal(t, "1", api.query["force"])
}
