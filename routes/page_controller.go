package routes

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/pozo-survey/app"
	"github.com/mbolis/pozo-survey/catalog"
	"github.com/mbolis/pozo-survey/gate"
	"github.com/mbolis/pozo-survey/httpx"
	"github.com/mbolis/pozo-survey/model"
	"github.com/mbolis/pozo-survey/routes/middlewares"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pages = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

type pageField struct {
	Name     string
	Label    string
	Value    string
	Options  []string
	TextArea bool
}

type pageSection struct {
	Title  string
	Fields []pageField
}

type pageConexion struct {
	Index  int
	Fields []pageField
}

type formPage struct {
	Placeholder string
	Sections    []pageSection
	Conexiones  []pageConexion
	Fotos       []string
}

type section struct {
	title  string
	fields [][2]string // name, label
}

var layout = []section{
	{"Datos Generales", [][2]string{
		{"tipo_sistema", "Tipo de Sistema"},
		{"tipo_pozo", "Tipo de Pozo"},
		{"pozo_numero", "Número de Pozo"},
	}},
	{"Tapa", [][2]string{
		{"tapa_existe", "Existe"},
		{"tapa_tipo", "Tipo"},
		{"tapa_estado", "Estado"},
		{"tapa_diagnostico", "Diagnóstico"},
	}},
	{"Cargue", [][2]string{
		{"cargue_existe", "Existe"},
		{"cargue_estado", "Estado"},
		{"cargue_diagnostico", "Diagnóstico"},
	}},
	{"Cono", [][2]string{
		{"cono_existe", "Existe"},
		{"cono_estado", "Estado"},
		{"cono_diagnostico", "Diagnóstico"},
	}},
	{"Cilindro", [][2]string{
		{"cilindro_material", "Material"},
		{"cilindro_estado", "Estado"},
		{"cilindro_diagnostico", "Diagnóstico"},
	}},
	{"Cañuela", [][2]string{
		{"canuela_estado", "Estado"},
		{"canuela_diagnostico", "Diagnóstico"},
	}},
	{"Escalones", [][2]string{
		{"escalones_existe", "Existen"},
		{"escalones_tipo", "Tipo"},
		{"escalones_estado", "Estado"},
		{"escalones_diagnostico", "Diagnóstico"},
	}},
	{"Evaluación Final", [][2]string{
		{"estado_general_pozo", "Estado General del Pozo"},
		{"observaciones", "Observaciones"},
	}},
}

var conexionLabels = [][2]string{
	{"cota_razante", "Cota Razante"},
	{"cota_clave", "Cota Clave"},
	{"diametro_pulgadas", "Diámetro (pulg)"},
	{"material", "Material"},
	{"conecta_a", "Conecta A"},
}

// AuthState reports the gate of the session's current page load.
func AuthState(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"state":     app.Gates.State(middlewares.Session(r.Context())),
			"login_url": app.Backend.LoginURL(),
		})
	}
}

// Page starts a new load, with its own session check, unless the waiting page
// sends the browser back once the check of the current load is over
// (?checked=1). It shows the form if the check passed, a link to the backend
// login if it failed, or the waiting page if it takes longer than AuthWait.
func Page(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := middlewares.Session(r.Context())

		g := app.Gates.Current(session)
		if g == nil || r.URL.Query().Get("checked") == "" {
			g = app.Gates.Start(session)
		}

		ctx, cancel := context.WithTimeout(r.Context(), app.AuthWait)
		state := g.Wait(ctx)
		cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		var err error
		switch state {
		case gate.Pending:
			err = pages.ExecuteTemplate(w, "waiting.html", nil)
		case gate.Unauthenticated:
			err = pages.ExecuteTemplate(w, "login.html", app.Backend.LoginURL())
		default:
			e, fotos := app.Forms.Get(session).Snapshot()
			err = pages.ExecuteTemplate(w, "form.html", buildFormPage(e, fotos))
		}
		if err != nil {
			httpx.LogInternalError(w, "page.render", err)
		}
	}
}

func buildFormPage(e model.Encuesta, fotos []model.Attachment) formPage {
	page := formPage{Placeholder: catalog.Placeholder}

	for _, s := range layout {
		ps := pageSection{Title: s.title}
		for _, f := range s.fields {
			value, _ := e.Field(f[0])
			opts, _ := catalog.For(f[0])
			ps.Fields = append(ps.Fields, pageField{
				Name:     f[0],
				Label:    f[1],
				Value:    value,
				Options:  opts,
				TextArea: f[0] == "observaciones",
			})
		}
		page.Sections = append(page.Sections, ps)
	}

	for i, c := range e.ListaConexiones {
		pc := pageConexion{Index: i}
		for _, f := range conexionLabels {
			value, _ := c.Field(f[0])
			pc.Fields = append(pc.Fields, pageField{Name: f[0], Label: f[1], Value: value})
		}
		page.Conexiones = append(page.Conexiones, pc)
	}

	for _, f := range fotos {
		page.Fotos = append(page.Fotos, f.Filename)
	}
	return page
}
