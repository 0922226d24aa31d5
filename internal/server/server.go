package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/accounts"
	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/router"
	"github.com/JeanneIrsaeva/library-tracker/internal/server/middleware"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/config"
	"github.com/JeanneIrsaeva/library-tracker/pkg/state"
	"github.com/JeanneIrsaeva/library-tracker/pkg/state/statemanager"
	"github.com/JeanneIrsaeva/library-tracker/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var errShutdown = errors.New("graceful shutdown")

// Services are the collaborators the App is wired with.
type Services struct {
	Verifier   middleware.TokenVerifier
	Transcript *store.Transcript
	Accounts   *accounts.Service
	Library    *library.Service
}

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	eventRouter  *router.EventRouter
	broadcaster  *router.Broadcaster
	wg           sync.WaitGroup
	chatHTTP     *http.Server
	apiHTTP      *http.Server
	config       *config.Config

	// closing is set once Shutdown starts; admission of new connections
	// (wg.Add and registration) happens under mu so Wait never races an Add.
	mu      sync.Mutex
	closing bool

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, svc Services) *App {
	stateManager := statemanager.NewInMemoryManager(logger)
	broadcaster := router.NewBroadcaster(logger, stateManager)
	eventRouter := router.NewEventRouter(logger, stateManager, svc.Verifier, svc.Transcript, broadcaster, cfg.Chat.HistoryLimit)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		eventRouter:  eventRouter,
		broadcaster:  broadcaster,
		config:       cfg,
		ctx:          rootCtx,
	}

	// closes the oldest connection from an IP to make room for a new one.
	connCycler := func(ip string) {
		oldest, found := stateManager.FindOldestConnectionByIP(ip)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.String("ip", ip), slog.String("connID", oldest.ID.String()))
			go oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	chatMux := http.NewServeMux()
	chatMux.Handle(cfg.Server.ChatPath,
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				stateManager.ConnectionCountByIP,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)

	authMiddleware := middleware.NewAuthMiddleware(logger, svc.Verifier)
	apiHandler := newAPI(logger, svc, authMiddleware, cfg.Server.CORSOrigins, chatURL(cfg.Server))

	baseCtx := func(net.Listener) context.Context { return app.ctx }
	app.chatHTTP = &http.Server{Addr: cfg.Server.ChatAddress, Handler: chatMux, BaseContext: baseCtx}
	app.apiHTTP = &http.Server{Addr: cfg.Server.APIAddress, Handler: apiHandler, BaseContext: baseCtx}

	return app
}

// chatURL is the address advertised by /websocket-info.
func chatURL(s config.ServerConfig) string {
	host, port, err := net.SplitHostPort(s.ChatAddress)
	if err != nil {
		return "ws://" + s.ChatAddress + s.ChatPath
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port) + strings.TrimSuffix(s.ChatPath, "/")
}

// ChatHandler serves the WebSocket endpoint.
func (a *App) ChatHandler() http.Handler { return a.chatHTTP.Handler }

// APIHandler serves the REST API.
func (a *App) APIHandler() http.Handler { return a.apiHTTP.Handler }

// Registry exposes the live connection registry.
func (a *App) Registry() state.Manager { return a.stateManager }

func (a *App) Run() error {
	errCh := make(chan error, 2)
	for _, srv := range []*http.Server{a.chatHTTP, a.apiHTTP} {
		go func(srv *http.Server) {
			a.logger.Info("Server starting", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("HTTP server failed", slog.String("addr", srv.Addr), slog.Any("error", err))
				errCh <- fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-a.ctx.Done():
	case runErr = <-errCh:
	}
	if err := a.Shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// upgradeHandler owns one chat connection from accept to close.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		reqMeta = &middleware.RequestMetadata{IP: r.RemoteAddr}
	}
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	if a.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		wsConn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.eventRouter.HandleMessage,
		func(id uuid.UUID, err error) {
			connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
			if dErr := a.stateManager.DeregisterConnection(id); dErr != nil {
				connLogger.Error("Failed to deregister connection from state", slog.Any("error", dErr))
			}
		},
		a.logger,
	)
	stateConn, err := a.stateManager.RegisterConnection(conn, reqMeta.IP)
	a.mu.Unlock()
	if err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	a.broadcaster.Greet(stateConn)

	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()

	var errs []error
	for _, srv := range []*http.Server{a.apiHTTP, a.chatHTTP} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	a.CloseConnections()

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return errors.Join(errs...)
}

// CloseConnections starts closing every registered chat connection. Each
// one goes through the normal deregistration path; use Wait to block until
// they are all gone.
func (a *App) CloseConnections() {
	conns := a.stateManager.AllConnections()
	a.logger.Info("Closing all active connections...", slog.Int("count", len(conns)))
	for _, conn := range conns {
		go conn.Transport.Close(errShutdown)
	}
}

func (a *App) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

// Wait blocks until every chat connection has finished its cleanup.
func (a *App) Wait() { a.wg.Wait() }
