package router

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/tidwall/gjson"
)

var (
	errAuthRequired  = errors.New("authentication required")
	errAdminRequired = errors.New("administrator rights required")
	errUserRequired  = errors.New("only users can send support messages")
)

func (r *EventRouter) handleAuth(req *request) error {
	claims, err := r.verifier.Verify(req.payload.Get(fieldToken).String())
	if err != nil {
		r.logger.Info("Chat authentication failed", slog.String("connID", req.conn.ID.String()), slog.Any("error", err))
		return &protocolError{frameType: TypeAuthError, message: "invalid token"}
	}

	if claims.IsAdmin() {
		if err := r.stateManager.BindAdmin(req.conn.ID); err != nil {
			return authErr("authentication failed", err)
		}
		r.broadcaster.SendTo(req.conn, AuthSuccess{
			Type:    TypeAuthSuccess,
			Role:    identity.RoleAdmin,
			Message: "Connected as administrator",
		})
		r.logger.Info("Administrator joined chat", slog.Int64("userID", claims.UserID), slog.String("connID", req.conn.ID.String()))
		return nil
	}

	if err := r.stateManager.BindUser(req.conn.ID, claims.UserID); err != nil {
		return authErr("authentication failed", err)
	}
	r.broadcaster.SendTo(req.conn, AuthSuccess{
		Type:    TypeAuthSuccess,
		Role:    claims.Role,
		Message: "Connected to support chat",
	})
	r.logger.Info("User joined chat", slog.Int64("userID", claims.UserID), slog.String("connID", req.conn.ID.String()))
	r.broadcaster.NotifyAdminsNewUser(claims.UserID)
	return nil
}

// authorize re-validates the credential carried by the frame. The
// connection must also have completed an auth exchange. An empty role
// accepts any authenticated subject.
func (r *EventRouter) authorize(req *request, role string) (*identity.Claims, error) {
	if !req.conn.Authenticated() {
		return nil, protocolErr(errAuthRequired.Error())
	}
	claims, err := r.verifier.Verify(req.payload.Get(fieldToken).String())
	if err != nil {
		if role == identity.RoleAdmin {
			return nil, protocolErr(errAdminRequired.Error())
		}
		return nil, protocolErr(errAuthRequired.Error())
	}
	switch role {
	case identity.RoleAdmin:
		if !claims.IsAdmin() {
			return nil, protocolErr(errAdminRequired.Error())
		}
	case identity.RoleUser:
		if claims.IsAdmin() {
			return nil, protocolErr(errUserRequired.Error())
		}
	}
	return claims, nil
}

func (r *EventRouter) handleUserMessage(req *request) error {
	claims, err := r.authorize(req, identity.RoleUser)
	if err != nil {
		return err
	}
	body := strings.TrimSpace(req.payload.Get(fieldMessage).String())
	if body == "" {
		return protocolErr("message cannot be empty")
	}

	msg, err := r.transcript.Append(req.ctx, claims.UserID, body, store.OriginUser)
	if err != nil {
		return internalErr("failed to save message", err)
	}
	ts := formatTimestamp(msg.CreatedAt)

	r.broadcaster.BroadcastToAdmins(UserMessage{
		Type:      TypeUserMessage,
		UserID:    claims.UserID,
		Message:   body,
		Timestamp: ts,
		MessageID: msg.ID,
	})
	r.broadcaster.SendTo(req.conn, MessageSent{Type: TypeMessageSent, MessageID: msg.ID, Timestamp: ts})
	return nil
}

func (r *EventRouter) handleAdminMessage(req *request) error {
	if _, err := r.authorize(req, identity.RoleAdmin); err != nil {
		return err
	}
	target, ok := targetUserID(req.payload)
	body := strings.TrimSpace(req.payload.Get(fieldMessage).String())
	if !ok || body == "" {
		return protocolErr("target user and message are required")
	}

	// stored under the target user's id; the origin flag marks the author.
	msg, err := r.transcript.Append(req.ctx, target, body, store.OriginAdmin)
	if err != nil {
		return internalErr("failed to save message", err)
	}
	ts := formatTimestamp(msg.CreatedAt)

	if userConn, ok := r.stateManager.LookupUser(target); ok {
		r.broadcaster.SendTo(userConn, AdminMessage{
			Type:      TypeAdminMessage,
			Message:   body,
			Timestamp: ts,
			MessageID: msg.ID,
		})
	} else {
		r.logger.Debug("Target user offline, reply stored only", slog.Int64("userID", target))
	}
	r.broadcaster.SendTo(req.conn, MessageSent{Type: TypeMessageSent, MessageID: msg.ID, Timestamp: ts})
	return nil
}

func (r *EventRouter) handleGetHistory(req *request) error {
	claims, err := r.authorize(req, "")
	if err != nil {
		return err
	}
	var filter store.HistoryFilter
	if !claims.IsAdmin() {
		filter.SubjectID = &claims.UserID
	}

	msgs, err := r.transcript.Recent(req.ctx, filter, r.historyLimit)
	if err != nil {
		return internalErr("failed to load chat history", err)
	}
	r.broadcaster.SendTo(req.conn, ChatHistory{Type: TypeChatHistory, Messages: HistoryEntries(msgs)})
	return nil
}

// handleTyping relays typing indicators. Users notify every admin; admins
// notify the user named by target_user_id, if any and online.
func (r *EventRouter) handleTyping(frameType string) handlerFunc {
	return func(req *request) error {
		claims, err := r.authorize(req, "")
		if err != nil {
			return err
		}
		if !claims.IsAdmin() {
			r.broadcaster.BroadcastToAdmins(Typing{Type: frameType, UserID: claims.UserID})
			return nil
		}

		target, ok := targetUserID(req.payload)
		if !ok {
			return nil
		}
		if userConn, ok := r.stateManager.LookupUser(target); ok {
			r.broadcaster.SendTo(userConn, Typing{Type: frameType, UserID: target})
		}
		return nil
	}
}

// targetUserID accepts only a positive integral JSON number.
func targetUserID(payload gjson.Result) (int64, bool) {
	v := payload.Get(fieldTargetUserID)
	if v.Type != gjson.Number {
		return 0, false
	}
	id := v.Int()
	if id <= 0 || float64(id) != v.Num {
		return 0, false
	}
	return id, true
}
