package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/niksmo/storefront/internal/core/port"
)

type HTTPServer struct {
	httpServer *http.Server
}

// NewHTTPServer serves handler on addr. Handlers set their own timeouts
// because the cart event stream must stay open. Request contexts are
// canceled on shutdown so open streams end.
func NewHTTPServer(addr string, handler http.Handler) HTTPServer {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	s.RegisterOnShutdown(cancel)
	return HTTPServer{s}
}

// NewRouter registers every route behind the logging, session and JSON
// middlewares.
func NewRouter(
	carts port.CartProvider,
	placer port.OrderPlacer,
	orders port.OrdersReader,
	products port.ProductsReader,
) http.Handler {
	mux := http.NewServeMux()
	RegisterCart(mux, carts)
	RegisterCheckout(mux, placer, orders)
	RegisterProducts(mux, products)

	return Logging(Session(AllowJSON(mux)))
}

func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	defer stopFn()
	log.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.Error("unexpected servers shutdown", "err", err)
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
	}
	log.Info("http server is closed")
}
