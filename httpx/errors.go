package httpx

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/pozo-survey/log"
)

// LogInternalError logs err under code and answers 500 with the default text.
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// LogNotFound answers 404 for the resource id.
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// LogStatus logs code at level and answers status with the default text.
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// LogStatusJSON answers status with {"error": ...}, so the form can show the
// reason next to the field.
func LogStatusJSON(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, err error) {
	log.Logf(level, "%s: %s", code, err)
	render.Status(r, status)
	render.JSON(w, r, map[string]string{
		"error": err.Error(),
	})
}
