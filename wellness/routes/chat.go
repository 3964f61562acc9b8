package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const streamTimeout = 2 * time.Minute

// ChatRoutes serves the session CRUD under /chat. The websocket is served by
// ChatStreamHandler, mounted on its own so the request timeout does not apply.
func ChatRoutes(chat *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		gr.Get("/sessions", handleJSON(func(r *http.Request) (any, int, error) {
			sessions, err := chat.ListSessions(r.Context(), userID(r))
			return map[string]any{"sessions": sessions}, http.StatusOK, err
		}))

		gr.Post("/sessions", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.CreateSessionRequest
			if err := decode(r, &req); err != nil {
				return nil, 0, err
			}
			s, err := chat.CreateSession(r.Context(), userID(r), req)
			return s, http.StatusCreated, err
		}))

		gr.Get("/sessions/{session_id}", handleJSON(func(r *http.Request) (any, int, error) {
			s, err := chat.GetSession(r.Context(), userID(r), chi.URLParam(r, "session_id"))
			return s, http.StatusOK, err
		}))

		gr.Put("/sessions/{session_id}", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.UpdateSessionRequest
			if err := decode(r, &req); err != nil {
				return nil, 0, err
			}
			s, err := chat.UpdateSession(r.Context(), userID(r), chi.URLParam(r, "session_id"), req)
			return s, http.StatusOK, err
		}))

		gr.Delete("/sessions/{session_id}", handleJSON(func(r *http.Request) (any, int, error) {
			resp, err := chat.DeleteSession(r.Context(), userID(r), chi.URLParam(r, "session_id"))
			return resp, http.StatusOK, err
		}))
	})

	return r
}

// ChatStreamHandler answers questions over a websocket. The token travels in
// the first frame since browsers cannot set headers on the handshake.
func ChatStreamHandler(chat *controllers.ChatController, query *controllers.QueryController, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")
		streamAnswer(r.Context(), conn, chat, query, cfg)
	}
}

func streamAnswer(ctx context.Context, conn *websocket.Conn, chat *controllers.ChatController, query *controllers.QueryController, cfg config.Config) {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	var in types.StreamRequest
	if err := wsjson.Read(ctx, conn, &in); err != nil {
		conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}
	claims, err := middlewares.ParseToken(cfg, in.Token)
	if err != nil {
		wsjson.Write(ctx, conn, types.StreamFrame{Type: "error", Error: "unauthorized"})
		conn.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}
	ctx = middlewares.WithClaims(ctx, claims)
	uid := claims.Subject

	ask, err := query.Validate(types.QueryRequest{
		Question:            in.Question,
		RequestSessionID:    in.SessionID,
		ConversationHistory: in.ConversationHistory,
	})
	if err != nil {
		wsjson.Write(ctx, conn, types.StreamFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	resp, err := query.Answer(ctx, uid, *ask, func(delta string) error {
		return wsjson.Write(ctx, conn, types.StreamFrame{Type: "delta", Content: delta})
	})
	if err != nil {
		msg := err.Error()
		var ce *controllers.Error
		if !errors.As(err, &ce) {
			msg = "Unable to process your request. Please try again later."
		}
		logging.ErrorLogger.Warn("stream answer failed", zap.String("user_id", uid), zap.Error(err))
		wsjson.Write(ctx, conn, types.StreamFrame{Type: "error", Error: msg})
		conn.Close(websocket.StatusInternalError, "answer failed")
		return
	}

	if sid := strings.TrimSpace(in.SessionID); sid != "" {
		if err := chat.AppendExchange(ctx, uid, sid, ask.Question, resp.Response); err != nil {
			logging.ErrorLogger.Warn("could not store streamed exchange",
				zap.String("user_id", uid), zap.String("session_id", sid), zap.Error(err))
		}
	}

	done := types.StreamFrame{
		Type:         "done",
		SessionID:    resp.SessionID,
		Citation:     resp.Citation,
		RAGUsed:      resp.RAGUsed,
		FallbackUsed: resp.FallbackUsed,
	}
	if err := wsjson.Write(ctx, conn, done); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TitleRoutes(chat *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))
	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.GenerateTitleRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		title, err := chat.GenerateTitle(r.Context(), req)
		return map[string]string{"title": title}, http.StatusOK, err
	}))
	return r
}
