package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var startedAt = time.Now()

// DebugServer exposes health and metrics on a side port. It never shares the
// frame stream: the channel owns stdout, this listens on its own socket.
type DebugServer struct {
	srv *http.Server
}

func NewDebugServer(addr string, logger zerolog.Logger) *DebugServer {
	return &DebugServer{srv: &http.Server{Addr: addr, Handler: newDebugRouter(logger)}}
}

func newDebugRouter(logger zerolog.Logger) *gin.Engine {
	RegisterMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(debugRequestObserver(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "framepipe",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// debugRequestObserver counts and logs debug-endpoint traffic. Only the side
// channel passes through here; frame traffic never touches this listener.
func debugRequestObserver(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		RecordDebugRequest(path, status)

		event := logger.Info()
		if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("debug_request")
	}
}

// Run serves until ctx is canceled, then shuts the listener down.
func (d *DebugServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return d.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
