package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/citizenwallet/boxdao/internal/auth"
	"github.com/citizenwallet/boxdao/internal/governance"
	"github.com/citizenwallet/boxdao/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Router struct {
	apiKey string
	gov    *governance.Service
	log    *zap.Logger
}

// NewServer serves gov behind apiKey, an empty key leaves the api open
func NewServer(apiKey string, gov *governance.Service, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Router{
		apiKey: apiKey,
		gov:    gov,
		log:    logger,
	}
}

// Handler builds the status api
func (r *Router) Handler() http.Handler {
	cr := chi.NewRouter()

	// configure middleware
	cr.Use(middleware.RequestID)
	cr.Use(LoggerMiddleware(r.log))
	cr.Use(middleware.Recoverer)

	// configure custom middleware
	cr.Use(OptionsMiddleware)
	cr.Use(HealthMiddleware)
	cr.Use(RequestSizeLimitMiddleware(1 << 20)) // the api is read only
	cr.Use(middleware.Compress(9))

	cr.Handle("/metrics", promhttp.Handler())
	cr.Get("/version", version.NewService().Current)

	a := auth.New(r.apiKey)

	cr.Group(func(cr chi.Router) {
		cr.Use(a.AuthMiddleware)
		r.gov.Routes(cr)
	})

	return cr
}

// Start serves the api on port until ctx is done
func (r *Router) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", port),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	r.log.Info("api listening", zap.Int("port", port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(sctx)
	if err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
