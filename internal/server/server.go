package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"car-animator/internal/sim"
)

// StatusProvider exposes the state of the running animation.
type StatusProvider interface {
	Status() (sim.Status, bool)
	Route() (*geojson.FeatureCollection, bool)
}

// NewRouter wires /healthz, /status, /route and, when metrics is non-nil, /metrics.
func NewRouter(sp StatusProvider, metrics http.Handler, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		st, ok := sp.Status()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no animation yet"})
			return
		}
		c.JSON(http.StatusOK, st)
	})
	r.GET("/route", func(c *gin.Context) {
		fc, ok := sp.Route()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no route yet"})
			return
		}
		b, err := fc.MarshalJSON()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/geo+json", b)
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Serve starts an HTTP server on addr in the background.
func Serve(addr string, h http.Handler, log *zap.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http listening", zap.String("addr", addr))
	return srv
}

// Shutdown stops srv with a 3s grace period.
func Shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
