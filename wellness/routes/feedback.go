package routes

import (
	"net/http"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
)

func FeedbackRoutes(ctrl *controllers.FeedbackController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.FeedbackRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		resp, err := ctrl.Submit(r.Context(), userID(r), req)
		return resp, http.StatusCreated, err
	}))

	r.Get("/{message_id}", handleJSON(func(r *http.Request) (any, int, error) {
		fb, err := ctrl.Get(r.Context(), userID(r), chi.URLParam(r, "message_id"))
		return fb, http.StatusOK, err
	}))

	r.Put("/{message_id}", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.FeedbackUpdate
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		fb, err := ctrl.Update(r.Context(), userID(r), chi.URLParam(r, "message_id"), req)
		return fb, http.StatusOK, err
	}))

	r.Delete("/{message_id}", handleJSON(func(r *http.Request) (any, int, error) {
		resp, err := ctrl.Delete(r.Context(), userID(r), chi.URLParam(r, "message_id"))
		return resp, http.StatusOK, err
	}))
	return r
}

func ActivityRoutes(ctrl *controllers.ActivityController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))
	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.ActivityLogRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		resp, err := ctrl.Log(r.Context(), userID(r), req)
		return resp, http.StatusCreated, err
	}))
	return r
}
