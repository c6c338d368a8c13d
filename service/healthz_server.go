package service

import (
	"context"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthzServer answers liveness probes on /healthz
type HealthzServer struct {
	log    log.Logger
	server *http.Server
}

// Listen binds addr and serves until Shutdown. It returns the bound listener
// address once the socket is open.
func (h *HealthzServer) Listen(addr string) (net.Addr, <-chan error, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	h.server = &http.Server{Handler: c.Handler(mux)}
	return serve(h.server, addr)
}

func (h *HealthzServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}
