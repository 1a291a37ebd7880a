package routes

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/pozo-survey/app"
	"github.com/mbolis/pozo-survey/catalog"
	"github.com/mbolis/pozo-survey/form"
	"github.com/mbolis/pozo-survey/httpx"
	"github.com/mbolis/pozo-survey/log"
	"github.com/mbolis/pozo-survey/model"
	"github.com/mbolis/pozo-survey/routes/middlewares"
)

// photos beyond this size are spilled to temporary files while parsing
const maxPhotoMemory = 32 << 20

type fieldValue struct {
	Value *string `json:"value"`
}

type surveyView struct {
	Encuesta model.Encuesta `json:"encuesta"`
	Fotos    []string       `json:"fotos"`
	// values outside their catalog, reported but accepted in advisory mode
	Violations []string `json:"violations"`
}

func controller(app app.App, r *http.Request) *form.Controller {
	return app.Forms.Get(middlewares.Session(r.Context()))
}

func GetCatalog(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"placeholder": catalog.Placeholder,
			"fields":      catalog.All(),
		})
	}
}

func GetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, fotos := controller(app, r).Snapshot()

		view := surveyView{
			Encuesta:   e,
			Fotos:      make([]string, len(fotos)),
			Violations: []string{},
		}
		for i, f := range fotos {
			view.Fotos[i] = f.Filename
		}

		var merr *multierror.Error
		if errors.As(catalog.Validate(e), &merr) {
			for _, err := range merr.Errors {
				view.Violations = append(view.Violations, err.Error())
			}
		}
		render.JSON(w, r, view)
	}
}

func SetField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		var body fieldValue
		err := render.DecodeJSON(r.Body, &body)
		if err != nil || body.Value == nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "survey.set_field.decode")
			return
		}

		err = controller(app, r).SetField(name, *body.Value)
		if err != nil {
			editError(w, r, "survey.set_field", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AddConnection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index := controller(app, r).AddConnection()

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]int{"index": index})
	}
}

func SetConnectionField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.index")
			return
		}
		name := chi.URLParam(r, "name")

		var body fieldValue
		err = render.DecodeJSON(r.Body, &body)
		if err != nil || body.Value == nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "survey.set_connection_field.decode")
			return
		}

		err = controller(app, r).SetConnectionField(index, name, *body.Value)
		if err != nil {
			editError(w, r, "survey.set_connection_field", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RemoveConnection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.index")
			return
		}

		err = controller(app, r).RemoveConnection(index)
		if err != nil {
			editError(w, r, "survey.remove_connection", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReplacePhotos installs the "fotos" parts of a multipart request as the full
// set of photos of the survey. A request without parts clears them.
func ReplacePhotos(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseMultipartForm(maxPhotoMemory)
		if err != nil && !errors.Is(err, http.ErrNotMultipart) {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "survey.photos.parse")
			return
		}

		var fotos []model.Attachment
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()

			for _, fh := range r.MultipartForm.File["fotos"] {
				f, err := fh.Open()
				if err != nil {
					httpx.LogInternalError(w, "survey.photos.open", err)
					return
				}
				content, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					httpx.LogInternalError(w, "survey.photos.read", err)
					return
				}
				fotos = append(fotos, model.Attachment{Filename: fh.Filename, Content: content})
			}
		}

		controller(app, r).ReplaceAttachments(fotos)
		log.Debugf("survey.photos: %d attached", len(fotos))

		render.JSON(w, r, map[string]int{"fotos": len(fotos)})
	}
}

func editError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var notInCatalog *catalog.NotInCatalogError
	switch {
	case errors.Is(err, model.ErrUnknownField):
		httpx.LogStatusJSON(w, r, http.StatusBadRequest, log.DebugLevel, code, err)
	case errors.As(err, &notInCatalog):
		httpx.LogStatusJSON(w, r, http.StatusUnprocessableEntity, log.DebugLevel, code, err)
	case errors.Is(err, form.ErrIndexOutOfRange):
		httpx.LogStatusJSON(w, r, http.StatusNotFound, log.DebugLevel, code, err)
	default:
		httpx.LogInternalError(w, code, err)
	}
}
