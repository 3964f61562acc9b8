package routes

import (
	"net/http"
	"strconv"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
)

func AdminRoutes(ctrl *controllers.AdminController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))
	r.Use(middlewares.RequireGroup(models.GroupAdmins))

	r.Get("/analytics", handleJSON(func(r *http.Request) (any, int, error) {
		a, err := ctrl.Analytics(r.Context(), intParam(r, "timeFilter"))
		return a, http.StatusOK, err
	}))

	r.Get("/activity-log", handleJSON(func(r *http.Request) (any, int, error) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		entries, err := ctrl.ActivityLog(r.Context(), types.ActivityLogQuery{
			Limit:        limit,
			ActivityType: q.Get("activityType"),
			UserID:       q.Get("userId"),
			Hours:        intParam(r, "timeFilter"),
		})
		return entries, http.StatusOK, err
	}))

	r.Get("/users", handleJSON(func(r *http.Request) (any, int, error) {
		users, err := ctrl.Users(r.Context())
		return users, http.StatusOK, err
	}))

	r.Post("/users/delete", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.DeleteUserRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		report, err := ctrl.DeleteUser(r.Context(), req)
		return report, http.StatusOK, err
	}))

	r.Post("/kb-sync", handleJSON(func(r *http.Request) (any, int, error) {
		report, err := ctrl.KBSync(r.Context())
		return report, http.StatusAccepted, err
	}))

	r.Get("/web-sources", handleJSON(func(r *http.Request) (any, int, error) {
		sources, err := ctrl.WebSources(r.Context())
		return map[string]any{"sources": sources, "count": len(sources)}, http.StatusOK, err
	}))

	r.Post("/web-sources", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.WebSourceRequest
		if err := decode(r, &req); err != nil {
			return nil, 0, err
		}
		src, created, err := ctrl.AddWebSource(r.Context(), req)
		if created {
			return src, http.StatusCreated, err
		}
		return src, http.StatusOK, err
	}))
	return r
}
