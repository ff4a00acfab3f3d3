package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/pkg/infra/middleware"
	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
	httpopts "github.com/kart-io/agriqa/pkg/options/server/http"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// HTTPServer is a gin based HTTP server.
type HTTPServer struct {
	opts   *httpopts.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

var _ Runnable = (*HTTPServer)(nil)

// NewHTTPServer 创建 HTTP 服务并按配置挂载中间件。
// 中间件必须在注册路由之前挂载，否则路由组不会继承。
func NewHTTPServer(opts *httpopts.Options, mw *mwopts.Options) *HTTPServer {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	if mw == nil {
		mw = mwopts.NewOptions()
	}
	_ = mw.Complete()

	gin.SetMode(opts.Mode)
	engine := gin.New()
	middleware.Apply(engine, mw)

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return &HTTPServer{opts: opts, engine: engine}
}

// Name returns the server name.
func (s *HTTPServer) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *HTTPServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("http server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "error", err.Error())
		}
	}()

	logger.Infow("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
