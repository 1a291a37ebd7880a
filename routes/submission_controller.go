package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/pozo-survey/app"
	"github.com/mbolis/pozo-survey/database"
	"github.com/mbolis/pozo-survey/httpx"
	"github.com/mbolis/pozo-survey/log"
	"github.com/mbolis/pozo-survey/model"
	"github.com/mbolis/pozo-survey/routes/middlewares"
	"github.com/mbolis/pozo-survey/submit"
)

// SubmitSurvey queues a snapshot of the session's survey and answers with the
// ticket ID. With ?wait=true it answers with the outcome of the delivery instead,
// falling back to the ticket if the outcome takes longer than SubmitWait.
// The survey is left as it is after submitting.
func SubmitSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := middlewares.Session(r.Context())
		e, fotos := app.Forms.Get(session).Snapshot()

		ticket, err := app.Pipeline.Submit(r.Context(), session, e, fotos)
		switch {
		case errors.Is(err, submit.ErrBusy):
			httpx.LogStatusJSON(w, r, http.StatusConflict, log.DebugLevel, "submit.busy", err)
			return
		case errors.Is(err, submit.ErrClosed):
			httpx.LogStatus(w, http.StatusServiceUnavailable, log.WarnLevel, "submit.closed")
			return
		case err != nil:
			httpx.LogInternalError(w, "submit.queue", err)
			return
		}

		if r.URL.Query().Get("wait") != "true" {
			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, map[string]string{"id": ticket.ID})
			return
		}

		// answer before the server's write timeout cuts the reply
		ctx, cancel := context.WithTimeout(r.Context(), app.SubmitWait)
		defer cancel()
		res, err := ticket.Wait(ctx)
		if err != nil {
			log.Debugf("submit.wait: %s gave up: %s", ticket.ID, err)
			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, map[string]string{"id": ticket.ID})
			return
		}
		render.JSON(w, r, res)
	}
}

func ListSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submissions, err := app.List(r.Context(), middlewares.Session(r.Context()))
		if err != nil {
			httpx.LogInternalError(w, "db.list_submissions", err)
			return
		}
		if submissions == nil {
			submissions = []model.Submission{}
		}
		render.JSON(w, r, submissions)
	}
}

func GetSubmission(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		s, err := app.Get(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "get_submission", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_submission", err)
			return
		}

		// other sessions' submissions are not visible
		if s.Session != middlewares.Session(r.Context()) {
			httpx.LogNotFound(w, "get_submission.session", id)
			return
		}
		render.JSON(w, r, s)
	}
}
