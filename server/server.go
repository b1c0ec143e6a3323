// Package server 提供推荐引擎的 HTTP 接口。
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/engine"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/tracker"
)

// Server 把 Engine 与 Tracker 暴露为 HTTP 接口。
type Server struct {
	engine   *engine.Engine
	tracker  *tracker.Tracker
	pipeline *pipeline.Config
}

// Option 配置 Server
type Option func(*Server)

// WithPipeline 设置 mode=pipeline 时使用的 Pipeline 配置
func WithPipeline(cfg *pipeline.Config) Option {
	return func(s *Server) {
		s.pipeline = cfg
	}
}

// New 创建 Server，tracker 可为 nil（此时交互相关接口返回 404）。
func New(e *engine.Engine, t *tracker.Tracker, opts ...Option) *Server {
	s := &Server{engine: e, tracker: t}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router 返回路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.Health)
		r.Get("/users", s.Users)
		r.Get("/products", s.Products)
		r.Get("/recommend/{userID}", s.Recommend)
		r.Post("/rebuild", s.Rebuild)
		if s.tracker != nil {
			r.Post("/interactions", s.TrackInteraction)
			r.Get("/users/{userID}/interactions", s.UserInteractions)
			r.Get("/products/{productID}/interactions", s.ProductInteractions)
		}
	})
	return r
}

// ListenAndServe 启动 HTTP 服务，ctx 结束时优雅退出。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Logger().Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Logger().Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Logger().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("cost", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())))
	})
}
