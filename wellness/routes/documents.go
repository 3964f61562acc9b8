package routes

import (
	"net/http"
	"strconv"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
)

func DocumentRoutes(ctrl *controllers.DocumentsController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	r.Post("/upload", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.UploadRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		resp, err := ctrl.Upload(r.Context(), userID(r), req)
		return resp, http.StatusOK, err
	}))

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		list, err := ctrl.List(r.Context(), userID(r), q.Get("documentType"), q.Get("status"), limit)
		return list, http.StatusOK, err
	}))

	r.Get("/{document_id}/status", handleJSON(func(r *http.Request) (any, int, error) {
		st, err := ctrl.Status(r.Context(), userID(r), chi.URLParam(r, "document_id"))
		return st, http.StatusOK, err
	}))

	r.Post("/{document_id}/complete", handleJSON(func(r *http.Request) (any, int, error) {
		st, err := ctrl.Complete(r.Context(), userID(r), chi.URLParam(r, "document_id"))
		return st, http.StatusOK, err
	}))

	r.Delete("/{document_id}", handleJSON(func(r *http.Request) (any, int, error) {
		resp, err := ctrl.Delete(r.Context(), userID(r), chi.URLParam(r, "document_id"))
		return resp, http.StatusOK, err
	}))
	return r
}
