package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

var ErrUnknownField = errors.New("unknown field")

// Conexion is one pipe entering or leaving the well.
type Conexion struct {
	CotaRazante      string `json:"cota_razante"`
	CotaClave        string `json:"cota_clave"`
	DiametroPulgadas string `json:"diametro_pulgadas"`
	Material         string `json:"material"`
	ConectaA         string `json:"conecta_a"`
}

// Encuesta is a full inspection report of one well.
type Encuesta struct {
	// Datos generales
	PozoNumero  string `json:"pozo_numero"`
	TipoSistema string `json:"tipo_sistema"`
	TipoPozo    string `json:"tipo_pozo"`

	TapaExiste      string `json:"tapa_existe"`
	TapaTipo        string `json:"tapa_tipo"`
	TapaEstado      string `json:"tapa_estado"`
	TapaDiagnostico string `json:"tapa_diagnostico"`

	CargueExiste      string `json:"cargue_existe"`
	CargueEstado      string `json:"cargue_estado"`
	CargueDiagnostico string `json:"cargue_diagnostico"`

	ConoExiste      string `json:"cono_existe"`
	ConoEstado      string `json:"cono_estado"`
	ConoDiagnostico string `json:"cono_diagnostico"`

	CilindroMaterial    string `json:"cilindro_material"`
	CilindroEstado      string `json:"cilindro_estado"`
	CilindroDiagnostico string `json:"cilindro_diagnostico"`

	CanuelaEstado      string `json:"canuela_estado"`
	CanuelaDiagnostico string `json:"canuela_diagnostico"`

	EscalonesExiste      string `json:"escalones_existe"`
	EscalonesTipo        string `json:"escalones_tipo"`
	EscalonesEstado      string `json:"escalones_estado"`
	EscalonesDiagnostico string `json:"escalones_diagnostico"`

	// Evaluación final
	EstadoGeneralPozo string `json:"estado_general_pozo"`
	Observaciones     string `json:"observaciones"`

	// the list is called "conexiones" on the wire
	ListaConexiones []Conexion `json:"conexiones"`
}

// Attachment is one photo captured for the current survey.
type Attachment struct {
	Filename string
	Content  []byte
}

// Scalar field names of Encuesta, in form order.
var Fields = []string{
	"pozo_numero", "tipo_sistema", "tipo_pozo",
	"tapa_existe", "tapa_tipo", "tapa_estado", "tapa_diagnostico",
	"cargue_existe", "cargue_estado", "cargue_diagnostico",
	"cono_existe", "cono_estado", "cono_diagnostico",
	"cilindro_material", "cilindro_estado", "cilindro_diagnostico",
	"canuela_estado", "canuela_diagnostico",
	"escalones_existe", "escalones_tipo", "escalones_estado", "escalones_diagnostico",
	"estado_general_pozo", "observaciones",
}

var ConexionFields = []string{
	"cota_razante", "cota_clave", "diametro_pulgadas", "material", "conecta_a",
}

func (e *Encuesta) field(name string) *string {
	switch name {
	case "pozo_numero":
		return &e.PozoNumero
	case "tipo_sistema":
		return &e.TipoSistema
	case "tipo_pozo":
		return &e.TipoPozo
	case "tapa_existe":
		return &e.TapaExiste
	case "tapa_tipo":
		return &e.TapaTipo
	case "tapa_estado":
		return &e.TapaEstado
	case "tapa_diagnostico":
		return &e.TapaDiagnostico
	case "cargue_existe":
		return &e.CargueExiste
	case "cargue_estado":
		return &e.CargueEstado
	case "cargue_diagnostico":
		return &e.CargueDiagnostico
	case "cono_existe":
		return &e.ConoExiste
	case "cono_estado":
		return &e.ConoEstado
	case "cono_diagnostico":
		return &e.ConoDiagnostico
	case "cilindro_material":
		return &e.CilindroMaterial
	case "cilindro_estado":
		return &e.CilindroEstado
	case "cilindro_diagnostico":
		return &e.CilindroDiagnostico
	case "canuela_estado":
		return &e.CanuelaEstado
	case "canuela_diagnostico":
		return &e.CanuelaDiagnostico
	case "escalones_existe":
		return &e.EscalonesExiste
	case "escalones_tipo":
		return &e.EscalonesTipo
	case "escalones_estado":
		return &e.EscalonesEstado
	case "escalones_diagnostico":
		return &e.EscalonesDiagnostico
	case "estado_general_pozo":
		return &e.EstadoGeneralPozo
	case "observaciones":
		return &e.Observaciones
	}
	return nil
}

// Field returns the value of the scalar field with the given wire name.
func (e *Encuesta) Field(name string) (string, error) {
	p := e.field(name)
	if p == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return *p, nil
}

// SetField overwrites the scalar field with the given wire name. Any string is accepted.
func (e *Encuesta) SetField(name, value string) error {
	p := e.field(name)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	*p = value
	return nil
}

// MarshalJSON writes an empty connection list as [] rather than null.
func (e Encuesta) MarshalJSON() ([]byte, error) {
	type encuesta Encuesta
	w := encuesta(e)
	if w.ListaConexiones == nil {
		w.ListaConexiones = []Conexion{}
	}
	return json.Marshal(w)
}

// Clone returns a deep copy, safe to hand off while the original keeps changing.
func (e Encuesta) Clone() Encuesta {
	c := e
	c.ListaConexiones = make([]Conexion, len(e.ListaConexiones))
	copy(c.ListaConexiones, e.ListaConexiones)
	return c
}

func (c *Conexion) field(name string) *string {
	switch name {
	case "cota_razante":
		return &c.CotaRazante
	case "cota_clave":
		return &c.CotaClave
	case "diametro_pulgadas":
		return &c.DiametroPulgadas
	case "material":
		return &c.Material
	case "conecta_a":
		return &c.ConectaA
	}
	return nil
}

func (c *Conexion) Field(name string) (string, error) {
	p := c.field(name)
	if p == nil {
		return "", fmt.Errorf("%w: conexion %q", ErrUnknownField, name)
	}
	return *p, nil
}

func (c *Conexion) SetField(name, value string) error {
	p := c.field(name)
	if p == nil {
		return fmt.Errorf("%w: conexion %q", ErrUnknownField, name)
	}
	*p = value
	return nil
}

func CloneAttachments(src []Attachment) []Attachment {
	dst := make([]Attachment, len(src))
	for i, a := range src {
		dst[i] = Attachment{
			Filename: a.Filename,
			Content:  append([]byte(nil), a.Content...),
		}
	}
	return dst
}

type SubmissionStatus string

const (
	StatusQueued       SubmissionStatus = "queued"
	StatusSending      SubmissionStatus = "sending"
	StatusSent         SubmissionStatus = "sent"
	StatusUnauthorized SubmissionStatus = "unauthorized"
	StatusFailed       SubmissionStatus = "failed"
	StatusCancelled    SubmissionStatus = "cancelled"
)

// Done reports whether the submission reached a final state.
func (s SubmissionStatus) Done() bool {
	switch s {
	case StatusSent, StatusUnauthorized, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Submission is one attempt to deliver a survey to the backend.
type Submission struct {
	ID         string           `json:"id"`
	Session    string           `json:"-"`
	PozoNumero string           `json:"pozo_numero"`
	Conexiones int              `json:"conexiones"`
	Fotos      int              `json:"fotos"`
	Status     SubmissionStatus `json:"status"`
	HTTPStatus int              `json:"http_status,omitempty"`
	Error      string           `json:"error,omitempty"`
	Data       string           `json:"data,omitempty"`
	QueuedAt   time.Time        `json:"queued_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}
