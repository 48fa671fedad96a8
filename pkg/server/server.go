package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/alexedwards/flow"
)

type Server struct {
	ctx               context.Context
	e                 *flow.Mux
	srv               *http.Server
	readHeaderTimeout time.Duration
}

func New(ctx context.Context, e *flow.Mux, readHeaderTimeout time.Duration) *Server {
	return &Server{ctx: ctx, e: e, readHeaderTimeout: readHeaderTimeout}
}

func (s *Server) Ctx() context.Context { return s.ctx }

func (s *Server) E() *flow.Mux { return s.e }

// Run serves until the server context is cancelled, then drains in-flight requests.
func (s *Server) Run(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.e,
		ReadHeaderTimeout: s.readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-s.ctx.Done():
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
