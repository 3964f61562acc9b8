package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/utils/logging"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// handleJSON wraps a controller call. A zero status means 200; errors are
// mapped with controllers.StatusCode and rendered with controllers.ErrorBody.
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			status := controllers.StatusCode(err)
			logFailure(r, status, err)
			writeJSON(w, status, controllers.ErrorBody(err))
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

func logFailure(r *http.Request, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	logging.ErrorLogger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("user_id", middlewares.UserID(r.Context())),
		zap.Error(err))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.ErrorLogger.Warn("response encode failed", zap.Error(err))
	}
}

var errInvalidJSON = &controllers.Error{Kind: controllers.ErrBadRequest, Message: "Invalid JSON in request body"}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errInvalidJSON
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errInvalidJSON
	}
	return body, nil
}

// intParam returns a positive integer query parameter, or nil when it is
// absent or invalid.
func intParam(r *http.Request, name string) *int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func userID(r *http.Request) string {
	return middlewares.UserID(r.Context())
}
