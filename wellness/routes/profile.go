package routes

import (
	"net/http"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"

	"github.com/go-chi/chi/v5"
)

func ProfileRoutes(ctrl *controllers.ProfileController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		p, err := ctrl.Get(r.Context(), userID(r))
		return p, http.StatusOK, err
	}))

	save := handleJSON(func(r *http.Request) (any, int, error) {
		body, err := readBody(r)
		if err != nil {
			return nil, 0, err
		}
		resp, created, err := ctrl.Save(r.Context(), userID(r), body)
		if err != nil {
			return nil, 0, err
		}
		if created {
			return resp, http.StatusCreated, nil
		}
		return resp, http.StatusOK, nil
	})
	r.Post("/", save)
	r.Put("/", save)
	return r
}
