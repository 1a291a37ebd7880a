package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/pozo-survey/app"
	"github.com/mbolis/pozo-survey/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middlewares.RequestLog, middleware.Recoverer)

	root.Group(func(r chi.Router) {
		r.Use(middlewares.FormSession(app.Sessions))
		r.Get("/", Page(app))
		r.Get("/auth/state", AuthState(app))
		r.Mount("/api", apiRouter(app))
	})

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	api.Use(middlewares.Authenticated(app.Gates))

	api.Get("/catalog", GetCatalog(app))

	api.Route("/survey", func(r chi.Router) {
		r.Get("/", GetSurvey(app))
		r.Put("/fields/{name}", SetField(app))

		r.Post("/connections", AddConnection(app))
		r.Put(`/connections/{index:^\d+$}/{name}`, SetConnectionField(app))
		r.Delete(`/connections/{index:^\d+$}`, RemoveConnection(app))

		r.Put("/photos", ReplacePhotos(app))

		r.Post("/submit", SubmitSurvey(app))
	})

	api.Get("/submissions", ListSubmissions(app))
	api.Get("/submissions/{id}", GetSubmission(app))

	return api
}
