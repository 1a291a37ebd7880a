// Package catalog holds the fixed option lists offered by each classification
// field of the inspection form.
package catalog

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/pozo-survey/model"
)

// Placeholder is rendered for an empty value; it is never a catalog member.
const Placeholder = "Seleccione una opción"

var (
	TipoSistema            = []string{"Aguas Lluvia", "Aguas Residuales", "Combinado"}
	TipoPozo               = []string{"Pozo", "Camara", "Alivio"}
	SiNo                   = []string{"Si", "No"}
	TapaTipo               = []string{"Ferroconcreto", "Concreto", "Hierro sin Bisagra", "Hierro con bisagra", "Tapa Seguridad", "Tapa en fibra"}
	EstadoBuenoRegularMalo = []string{"Bueno", "Regular", "Malo"}
	Diagnostico            = []string{"Cambiar", "Reparar", "No Requiere"}
	EstadoEstructura       = []string{"Bueno", "Regular", "Malo", "Grietas", "Partido", "Hundido"}
	CilindroMaterial       = []string{"Mamposteria", "Concreto", "GRP"}
	CilindroEstado         = []string{"Bueno", "Regular", "Malo", "Grietas", "Partido", "Huecos", "Sin Pañete", "Otro"}
	CanuelaEstado          = []string{"Bueno", "Regular", "Malo", "Sedimentada", "Desgastada", "Socavacion"}
	EscalonesTipo          = []string{"Escalones", "Ladrillos"}
	EscalonesEstado        = []string{"Bueno", "Regular", "Malo", "Doblados", "Faltan", "Corroidos"}
	EstadoGeneralPozo      = []string{"Infiltracion", "Represado", "Con basura", "Raices", "Fuera de Servicio", "Lleno de tierra"}
)

var byField = map[string][]string{
	"tipo_sistema": TipoSistema,
	"tipo_pozo":    TipoPozo,

	"tapa_existe":      SiNo,
	"tapa_tipo":        TapaTipo,
	"tapa_estado":      EstadoBuenoRegularMalo,
	"tapa_diagnostico": Diagnostico,

	"cargue_existe":      SiNo,
	"cargue_estado":      EstadoEstructura,
	"cargue_diagnostico": Diagnostico,

	"cono_existe":      SiNo,
	"cono_estado":      EstadoEstructura,
	"cono_diagnostico": Diagnostico,

	"cilindro_material":    CilindroMaterial,
	"cilindro_estado":      CilindroEstado,
	"cilindro_diagnostico": Diagnostico,

	"canuela_estado":      CanuelaEstado,
	"canuela_diagnostico": Diagnostico,

	"escalones_existe":      SiNo,
	"escalones_tipo":        EscalonesTipo,
	"escalones_estado":      EscalonesEstado,
	"escalones_diagnostico": Diagnostico,

	"estado_general_pozo": EstadoGeneralPozo,
}

// For returns a copy of the options bound to a survey field.
// Free-text fields have no catalog.
func For(field string) ([]string, bool) {
	opts, ok := byField[field]
	if !ok {
		return nil, false
	}
	return append([]string(nil), opts...), true
}

// All returns every bound catalog keyed by survey field name.
func All() map[string][]string {
	all := make(map[string][]string, len(byField))
	for field := range byField {
		all[field], _ = For(field)
	}
	return all
}

// Contains reports whether value is a member of opts.
func Contains(opts []string, value string) bool {
	for _, o := range opts {
		if o == value {
			return true
		}
	}
	return false
}

// NotInCatalogError reports a value outside the options of its field.
type NotInCatalogError struct {
	Field string
	Value string
}

func (e *NotInCatalogError) Error() string {
	return fmt.Sprintf("%s: %q is not a catalog option", e.Field, e.Value)
}

// Check accepts the empty string, any member of the field's catalog, and
// anything at all for free-text fields.
func Check(field, value string) error {
	opts, ok := byField[field]
	if !ok || value == "" || Contains(opts, value) {
		return nil
	}
	return &NotInCatalogError{Field: field, Value: value}
}

// Validate checks every classification field of e against its catalog.
func Validate(e model.Encuesta) error {
	var result *multierror.Error
	for _, field := range model.Fields {
		value, err := e.Field(field)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := Check(field, value); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
