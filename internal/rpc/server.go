package rpc

import (
	"context"
	"net/http"
	"time"

	"github.com/ainvaltin/httpsrv"
)

// NewServer returns REST server of the bridge, not started.
func NewServer(addr string, handler *RequestHandler) http.Server {
	return http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// Run serves the REST API until ctx is cancelled.
func Run(ctx context.Context, addr string, handler *RequestHandler) error {
	log.Info("starting REST server on %s", addr)
	return httpsrv.Run(ctx, NewServer(addr, handler), httpsrv.ShutdownTimeout(5*time.Second))
}
