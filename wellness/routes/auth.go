package routes

import (
	"net/http"

	"wellness/wellness/controllers"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(ctrl *controllers.AuthController) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.RegisterRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		resp, err := ctrl.Register(r.Context(), req)
		if err != nil {
			return nil, 0, err
		}
		return resp, http.StatusCreated, nil
	}))

	r.Post("/login", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.LoginRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		resp, err := ctrl.Login(r.Context(), req)
		return resp, http.StatusOK, err
	}))
	return r
}
