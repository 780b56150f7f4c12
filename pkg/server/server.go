// Package server provides HTTP server functionality for LocalGo.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-localsend/localgo/pkg/config"
	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/route"
	"github.com/go-localsend/localgo/pkg/server/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server manages the HTTP/S server lifecycle and owns the router wiring
// for every endpoint the wire protocol defines.
type Server struct {
	config     *config.Config
	state      *core.State
	httpServer *http.Server
	muxRouter  *mux.Router
}

// NewServer creates a new Server instance sharing state with the send engine.
func NewServer(cfg *config.Config, state *core.State) *Server {
	return &Server{
		config:    cfg,
		state:     state,
		muxRouter: mux.NewRouter(),
	}
}

// configureRoutes mounts the discovery and receive-engine endpoints for
// both protocol versions, using pkg/route's path table as the single
// source of truth for route naming.
func (s *Server) configureRoutes() {
	apiRouter := s.muxRouter.PathPrefix("/api/localsend").Subrouter()

	discoveryHandler := handlers.NewDiscoveryHandler(s.config)
	apiRouter.HandleFunc("/v1/info", discoveryHandler.InfoHandler).Methods("GET")
	apiRouter.HandleFunc("/v2/info", discoveryHandler.InfoHandler).Methods("GET")
	apiRouter.HandleFunc("/v1/register", discoveryHandler.RegisterHandler).Methods("POST")
	apiRouter.HandleFunc("/v2/register", discoveryHandler.RegisterHandler).Methods("POST")

	receiveHandler := handlers.NewReceiveHandler(s.config, s.state)
	apiRouter.HandleFunc("/v1/"+route.Path(route.PrepareUpload, route.V1), receiveHandler.PrepareUpload(route.V1)).Methods("POST")
	apiRouter.HandleFunc("/v2/"+route.Path(route.PrepareUpload, route.V2), receiveHandler.PrepareUpload(route.V2)).Methods("POST")
	apiRouter.HandleFunc("/v1/"+route.Path(route.Upload, route.V1), receiveHandler.Upload(route.V1)).Methods("POST")
	apiRouter.HandleFunc("/v2/"+route.Path(route.Upload, route.V2), receiveHandler.Upload(route.V2)).Methods("POST")
	apiRouter.HandleFunc("/v1/"+route.Path(route.Cancel, route.V1), receiveHandler.Cancel(route.V1)).Methods("POST")
	apiRouter.HandleFunc("/v2/"+route.Path(route.Cancel, route.V2), receiveHandler.Cancel(route.V2)).Methods("POST")

	logrus.Info("configured API routes")
}

// Start runs the HTTP/S server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.configureRoutes()

	addr := fmt.Sprintf("0.0.0.0:%d", s.config.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.muxRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.config.HTTPSEnabled {
		logrus.Infof("starting HTTPS server on %s with alias %s", addr, s.config.Alias)
		cert, err := tls.X509KeyPair([]byte(s.config.SecurityContext.Certificate), []byte(s.config.SecurityContext.PrivateKey))
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		go func() {
			if err := s.httpServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				logrus.Errorf("HTTPS server failed: %v", err)
			}
		}()
	} else {
		logrus.Infof("starting HTTP server on %s with alias %s", addr, s.config.Alias)
		go func() {
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Errorf("HTTP server failed: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logrus.Info("server shutting down")
	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logrus.Info("server stopped")
	s.httpServer = nil
	return nil
}
