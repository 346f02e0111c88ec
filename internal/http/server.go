package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gpio_control_server/config"
	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/http/middleware"
	"gpio_control_server/internal/lockout"
	"gpio_control_server/internal/motion"
	"gpio_control_server/internal/switches"
	"gpio_control_server/pkg/logger"
)

// Deps are the services the HTTP layer serves
type Deps struct {
	Devices  *devices.Service
	Motion   *motion.Manager
	Switches *switches.Manager
	Lockouts *lockout.Manager
	Backend  *hardware.Backend
	Hub      *WebSocketHub
	Ping     func() error
	Log      *logger.Logger
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	cfg    config.ServerConfig
	log    *logger.Logger
	srv    *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg config.ServerConfig, auth config.AuthConfig, deps Deps) *Server {
	// Set Gin to release mode to reduce debug output
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.RequestID())
	if cfg.LogHTTP {
		router.Use(middleware.RequestLogger(deps.Log))
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	s := &Server{
		router: router,
		cfg:    cfg,
		log:    deps.Log.WithComponent("http"),
	}
	SetupRoutes(router, auth, deps)
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"POST", "OPTIONS", "GET", "PUT", "DELETE", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Mirror the caller's origin so credentials keep working
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown; ErrServerClosed is not reported as an error
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Logger.Info().Str("port", s.cfg.Port).Msg("HTTP REST API server starting")
	s.log.Info("WebSocket endpoint available at /ws for device events")

	var err error
	if s.cfg.HTTPSEnabled && s.tlsFilesPresent() {
		err = s.startHTTPS()
	} else {
		err = s.srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) tlsFilesPresent() bool {
	if s.cfg.CertFile == "" || s.cfg.KeyFile == "" {
		s.log.Error("SSL_CERT_FILE and SSL_KEY_FILE must be set for HTTPS, falling back to HTTP mode")
		return false
	}
	for _, f := range []string{s.cfg.CertFile, s.cfg.KeyFile} {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			s.log.Logger.Error().Str("file", f).Msg("SSL file not found, falling back to HTTP mode")
			return false
		}
	}
	return true
}

// startHTTPS starts the server with HTTPS
func (s *Server) startHTTPS() error {
	s.srv.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
		},
	}
	s.log.Logger.Info().Str("cert", s.cfg.CertFile).Str("key", s.cfg.KeyFile).Msg("HTTPS enabled")
	return s.srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
