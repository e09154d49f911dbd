// Package rubric holds the fixed competency catalog. The catalog is supplied
// externally as product content and is never mutated at runtime.
package rubric

import (
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// Criteria statements shared by every conduct, one set per tier.
var (
	// T1Criteria are the baseline criteria (scores 5-8, or 7-10 in
	// seven-point mode).
	T1Criteria = [models.T1CriteriaCount]string{
		"Cumple la conducta de forma habitual",
		"Mantiene la conducta sin necesidad de supervisión",
		"Aplica la conducta en situaciones de carga elevada",
		"Sirve de referencia a otros compañeros en esta conducta",
	}
	// T2Criteria are the excellence criteria (scores 9-10).
	T2Criteria = [models.T2CriteriaCount]string{
		"Aporta mejoras documentadas relacionadas con la conducta",
		"Obtiene reconocimiento expreso de usuarios o superiores",
		"Forma o tutoriza a otros en esta conducta",
		"Extiende la conducta más allá de su puesto",
		"Sostiene resultados excelentes durante todo el periodo",
	}
)

var competencies = []models.Competency{
	{
		ID:          "A",
		Title:       "Dedicación y Calidad",
		Description: "Esmero, rigor y fiabilidad en la ejecución de las tareas propias del puesto.",
		Conducts: []models.Conduct{
			{ID: "A1", Description: "Realiza su trabajo con precisión y sin errores relevantes.", ExampleEvidence: "Registros de revisión sin incidencias en el periodo."},
			{ID: "A2", Description: "Cumple los plazos comprometidos de forma sistemática.", ExampleEvidence: "Listado de entregas con fechas previstas y reales."},
			{ID: "A3", Description: "Revisa y corrige su propio trabajo antes de entregarlo.", ExampleEvidence: "Ejemplos de autocorrecciones o listas de verificación propias."},
		},
	},
	{
		ID:          "B",
		Title:       "Trabajo en Equipo",
		Description: "Colaboración efectiva con el resto del equipo y otras unidades.",
		Conducts: []models.Conduct{
			{ID: "B1", Description: "Comparte información útil con sus compañeros de forma proactiva.", ExampleEvidence: "Correos o actas donde se difunde conocimiento al equipo."},
			{ID: "B2", Description: "Asume tareas adicionales cuando el equipo lo necesita.", ExampleEvidence: "Coberturas de ausencias o refuerzos en picos de trabajo."},
			{ID: "B3", Description: "Facilita acuerdos en situaciones de discrepancia.", ExampleEvidence: "Mediaciones o propuestas de consenso documentadas."},
		},
	},
	{
		ID:          "C",
		Title:       "Iniciativa y Mejora",
		Description: "Propuesta e impulso de mejoras en procedimientos y servicios.",
		Conducts: []models.Conduct{
			{ID: "C1", Description: "Detecta y comunica problemas antes de que se agraven.", ExampleEvidence: "Avisos tempranos registrados con su resolución."},
			{ID: "C2", Description: "Propone mejoras concretas de procedimientos.", ExampleEvidence: "Propuestas presentadas y su estado de adopción."},
			{ID: "C3", Description: "Se forma por iniciativa propia en materias del puesto.", ExampleEvidence: "Certificados de cursos no obligatorios realizados."},
		},
	},
	{
		ID:          "D",
		Title:       "Organización y Planificación",
		Description: "Ordenación eficaz del trabajo propio y de los recursos asignados.",
		Conducts: []models.Conduct{
			{ID: "D1", Description: "Prioriza adecuadamente ante tareas concurrentes.", ExampleEvidence: "Planificaciones propias con criterios de prioridad."},
			{ID: "D2", Description: "Mantiene la documentación y los expedientes al día.", ExampleEvidence: "Auditorías internas de expedientes sin atrasos."},
			{ID: "D3", Description: "Optimiza el uso de los recursos materiales del servicio.", ExampleEvidence: "Ahorros o reutilizaciones documentadas."},
		},
	},
	{
		ID:          "E",
		Title:       "Atención al Usuario",
		Description: "Calidad del trato y de la respuesta a usuarios internos y externos.",
		Conducts: []models.Conduct{
			{ID: "E1", Description: "Atiende con corrección y empatía a los usuarios.", ExampleEvidence: "Encuestas o agradecimientos recibidos."},
			{ID: "E2", Description: "Resuelve las consultas en el primer contacto cuando es posible.", ExampleEvidence: "Registros de resolución sin derivaciones."},
			{ID: "E3", Description: "Adapta la comunicación al perfil de cada usuario.", ExampleEvidence: "Materiales o respuestas adaptadas elaboradas."},
		},
	},
	{
		ID:          "F",
		Title:       "Compromiso Institucional",
		Description: "Identificación con los objetivos y valores de la organización.",
		Conducts: []models.Conduct{
			{ID: "F1", Description: "Participa en actividades institucionales voluntarias.", ExampleEvidence: "Inscripciones en grupos de trabajo o comisiones."},
			{ID: "F2", Description: "Representa adecuadamente a la unidad ante terceros.", ExampleEvidence: "Participación en reuniones externas o ponencias."},
			{ID: "F3", Description: "Cuida la imagen y confidencialidad de la información.", ExampleEvidence: "Ausencia de incidencias y buenas prácticas observadas."},
		},
	},
}

// Competencies hidden per worker group.
var hiddenByGroup = map[models.WorkerGroup][]string{
	models.GroupGeneral:   {"C", "D"},
	models.GroupTechnical: {"E", "F"},
}

// All returns the full catalog.
func All() []models.Competency {
	return competencies
}

// ForGroup returns the competencies visible to the given worker group.
func ForGroup(group models.WorkerGroup) []models.Competency {
	hidden := hiddenByGroup[group]
	if len(hidden) == 0 {
		return competencies
	}
	hiddenSet := make(map[string]struct{}, len(hidden))
	for _, id := range hidden {
		hiddenSet[id] = struct{}{}
	}
	visible := make([]models.Competency, 0, len(competencies))
	for _, comp := range competencies {
		if _, ok := hiddenSet[comp.ID]; !ok {
			visible = append(visible, comp)
		}
	}
	return visible
}

// ConductIDs lists every conduct id in the catalog, in catalog order.
func ConductIDs() []string {
	ids := make([]string, 0, len(competencies)*3)
	for _, comp := range competencies {
		for _, conduct := range comp.Conducts {
			ids = append(ids, conduct.ID)
		}
	}
	return ids
}

// FindConduct resolves a conduct id to its conduct and owning competency id.
func FindConduct(conductID string) (models.Conduct, string, bool) {
	for _, comp := range competencies {
		for _, conduct := range comp.Conducts {
			if conduct.ID == conductID {
				return conduct, comp.ID, true
			}
		}
	}
	return models.Conduct{}, "", false
}

// HasConduct reports whether the conduct id exists in the catalog.
func HasConduct(conductID string) bool {
	_, _, ok := FindConduct(conductID)
	return ok
}
