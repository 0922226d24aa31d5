package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/JeanneIrsaeva/library-tracker/pkg/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Verifier turns a credential string into identity claims.
type Verifier interface {
	Verify(token string) (*identity.Claims, error)
}

// Transcript is the durable chat log the router writes to and reads from.
type Transcript interface {
	Append(ctx context.Context, subjectID int64, body string, origin store.Origin) (*store.ChatMessage, error)
	Recent(ctx context.Context, filter store.HistoryFilter, limit int) ([]store.ChatMessage, error)
}

// request is the context a single inbound frame is handled with.
type request struct {
	ctx     context.Context
	conn    *state.Connection
	payload gjson.Result
}

type handlerFunc func(req *request) error

// EventRouter is the per-connection protocol handler. HandleMessage is
// called sequentially for each connection and concurrently across connections.
type EventRouter struct {
	logger       *slog.Logger
	stateManager state.Manager
	verifier     Verifier
	transcript   Transcript
	broadcaster  *Broadcaster
	historyLimit int

	handlers map[string]handlerFunc
}

func NewEventRouter(logger *slog.Logger, stateManager state.Manager, verifier Verifier, transcript Transcript, broadcaster *Broadcaster, historyLimit int) *EventRouter {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	r := &EventRouter{
		logger:       logger.With(slog.String("component", "event_router")),
		stateManager: stateManager,
		verifier:     verifier,
		transcript:   transcript,
		broadcaster:  broadcaster,
		historyLimit: historyLimit,
		handlers:     make(map[string]handlerFunc),
	}
	r.register(TypeAuth, r.handleAuth)
	r.register(TypeMessage, r.handleUserMessage)
	r.register(TypeAdminMessage, r.handleAdminMessage)
	r.register(TypeGetHistory, r.handleGetHistory)
	r.register(TypeTypingStart, r.handleTyping(TypeTypingStart))
	r.register(TypeTypingStop, r.handleTyping(TypeTypingStop))
	return r
}

func (r *EventRouter) register(msgType string, fn handlerFunc) {
	if _, exists := r.handlers[msgType]; exists {
		panic("message handler already registered: " + msgType)
	}
	r.handlers[msgType] = fn
}

// HandleMessage dispatches one inbound frame. Faults are reported to the
// sender as frames and never close the connection.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	conn, ok := r.stateManager.GetConnection(connID)
	if !ok {
		r.logger.Warn("Message from unregistered connection dropped", slog.String("connID", connID.String()))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while handling message", slog.String("connID", connID.String()), slog.Any("panic", rec))
			r.broadcaster.SendTo(conn, ErrorFrame{Type: TypeError, Message: "internal server error"})
		}
	}()

	if !gjson.ValidBytes(msg) {
		r.replyError(conn, protocolErr("invalid JSON format"))
		return
	}
	payload := gjson.ParseBytes(msg)
	if !payload.IsObject() {
		r.replyError(conn, protocolErr("invalid JSON format"))
		return
	}

	msgType := payload.Get(fieldType).String()
	handler, ok := r.handlers[msgType]
	if !ok {
		r.logger.Warn("Received unknown message type", slog.String("type", msgType), slog.String("connID", connID.String()))
		r.replyError(conn, protocolErr("unknown message type"))
		return
	}

	r.logger.Debug("Handling message", slog.String("type", msgType), slog.String("connID", connID.String()))
	if err := handler(&request{ctx: ctx, conn: conn, payload: payload}); err != nil {
		r.replyError(conn, err)
	}
}

// replyError turns a handler error into an error or auth_error frame.
func (r *EventRouter) replyError(conn *state.Connection, err error) {
	var perr *protocolError
	if !errors.As(err, &perr) {
		perr = &protocolError{frameType: TypeError, message: "internal server error", cause: err}
	}
	if perr.cause != nil {
		r.logger.Error("Message handling failed",
			slog.String("connID", conn.ID.String()),
			slog.String("reply", perr.message),
			slog.Any("error", perr.cause),
		)
	} else {
		r.logger.Debug("Rejected message", slog.String("connID", conn.ID.String()), slog.String("reason", perr.message))
	}
	r.broadcaster.SendTo(conn, ErrorFrame{Type: perr.frameType, Message: perr.message})
}

// protocolError is a failure reported back to the sender.
type protocolError struct {
	frameType string
	message   string
	cause     error
}

func (e *protocolError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *protocolError) Unwrap() error { return e.cause }

func protocolErr(message string) error {
	return &protocolError{frameType: TypeError, message: message}
}

func authErr(message string, cause error) error {
	return &protocolError{frameType: TypeAuthError, message: message, cause: cause}
}

func internalErr(message string, cause error) error {
	return &protocolError{frameType: TypeError, message: message, cause: cause}
}
