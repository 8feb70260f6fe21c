package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
)

// FileServer serves fixed files over HTTP and counts requests
type FileServer struct {
	*httptest.Server
	requests atomic.Int32
}

// NewFileServer starts a server answering path -> body. Unknown paths get 404.
func NewFileServer(t *testing.T, files map[string]string) *FileServer {
	t.Helper()

	fs := &FileServer{}

	e := echo.New()
	e.HideBanner = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			fs.requests.Add(1)
			return next(c)
		}
	})
	for path, body := range files {
		body := body
		e.GET(path, func(c echo.Context) error {
			return c.String(http.StatusOK, body)
		})
	}

	fs.Server = httptest.NewServer(e)
	t.Cleanup(fs.Close)
	return fs
}

// Requests returns how many requests the server has answered
func (fs *FileServer) Requests() int {
	return int(fs.requests.Load())
}
