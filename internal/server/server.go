// Package server exposes the lease protocol over HTTP and serializes
// all requests through a single-worker dispatcher.
package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Saiid2001/login-security-landscape/internal/config"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	dispatcher *Dispatcher
	pool       *pgxpool.Pool
}

func NewServer(cfg *config.Config, dispatcher *Dispatcher, pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:       e,
		config:     cfg,
		dispatcher: dispatcher,
		pool:       pool,
	}

	e.POST("/api", srv.handleAPI)
	e.GET("/healthz", srv.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
