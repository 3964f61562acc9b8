package routes

import (
	"net/http"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
)

// QueryRoutes serves /docs. Its errors keep the answer shape, with the
// message under "response".
func QueryRoutes(ctrl *controllers.QueryController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var req types.QueryRequest
		err := decode(r, &req)
		var resp *types.QueryResponse
		if err == nil {
			resp, err = ctrl.Query(r.Context(), userID(r), req)
		}
		if err != nil {
			status, body := controllers.QueryErrorBody(err)
			logFailure(r, status, err)
			writeJSON(w, status, body)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
	return r
}
