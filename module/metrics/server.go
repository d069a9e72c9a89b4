package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blockclique/blockclique-go/module/component"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
)

const shutdownTimeout = 5 * time.Second

// Server is the http server that will be serving the /metrics request for prometheus
type Server struct {
	component.Component
	server *http.Server
	log    zerolog.Logger
}

// Route is an additional endpoint of the server.
type Route struct {
	Pattern string
	Handler http.Handler
}

// NewServer creates a new server that will start on the specified port,
// and responds to the `/metrics` endpoint and the given routes
func NewServer(log zerolog.Logger, port uint, gatherer prometheus.Gatherer, routes ...Route) *Server {
	addr := ":" + strconv.Itoa(int(port))

	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	for _, route := range routes {
		mux.Handle(route.Pattern, route.Handler)
	}

	m := &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		log:    log.With().Str("component", "metrics_server").Logger(),
	}

	m.Component = component.NewComponentManagerBuilder().
		AddWorker(m.serve).
		Build()

	return m
}

func (m *Server) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	m.log.Info().Str("address", m.server.Addr).Msg("metrics server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.ListenAndServe()
	}()
	ready()

	select {
	case err := <-errCh:
		// http.ErrServerClosed is returned when Close or Shutdown is called
		if !errors.Is(err, http.ErrServerClosed) {
			ctx.Throw(err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			m.log.Warn().Err(err).Msg("error shutting down metrics server")
		}
		m.log.Debug().Msg("metrics server shutdown")
	}
}
