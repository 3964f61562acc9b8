package routes

import (
	"net/http"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/services/roadmap"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
)

func RoadmapRoutes(ctrl *controllers.RoadmapController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		items, err := ctrl.List(r.Context(), userID(r))
		return map[string]any{"items": items}, http.StatusOK, err
	}))

	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.RoadmapItemRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		item, err := ctrl.Create(r.Context(), userID(r), req)
		return map[string]any{"item": item}, http.StatusCreated, err
	}))

	r.Put("/{item_id}", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.RoadmapItemRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		item, err := ctrl.Update(r.Context(), userID(r), chi.URLParam(r, "item_id"), req)
		return map[string]any{"item": item}, http.StatusOK, err
	}))

	r.Delete("/{item_id}", handleJSON(func(r *http.Request) (any, int, error) {
		return nil, http.StatusNoContent, ctrl.Delete(r.Context(), userID(r), chi.URLParam(r, "item_id"))
	}))
	return r
}

func RoadmapTransformRoutes(ctrl *controllers.RoadmapController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))
	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req roadmap.TransformRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		item, err := ctrl.Transform(r.Context(), userID(r), req)
		return map[string]any{"roadmapItem": item}, http.StatusOK, err
	}))
	return r
}
