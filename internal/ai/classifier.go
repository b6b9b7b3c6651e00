package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/logger"
)

// JSONGenerator is the structured-output capability the classifiers need.
// *Engine satisfies it; tests substitute fakes.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt, schemaDescription string, out any) error
}

// ProcessInput is the slice of a tender listing the classifier sees.
type ProcessInput struct {
	ID          string
	Title       string
	Description string
}

// ProcessClassification labels one process for a company audience.
type ProcessClassification struct {
	ID           string `json:"id"`
	IsCorporate  bool   `json:"isCorporate"`
	IsActionable bool   `json:"isActionable"`
	Advice       string `json:"advice"`
}

const classifierDescriptionLimit = 300

// ClassifyProcesses labels a batch of processes in a single model call:
// corporate vs. personal-services contract, whether offers can still be
// submitted, and one line of tactical advice. Any failure yields an empty
// result set, never an error surfaced to the caller.
func ClassifyProcesses(ctx context.Context, gen JSONGenerator, processes []ProcessInput, lg *zap.Logger) []ProcessClassification {
	if lg == nil {
		lg = zap.NewNop()
	}
	if len(processes) == 0 || gen == nil {
		return []ProcessClassification{}
	}

	var entries []string
	for _, p := range processes {
		// Rune-aware: descriptions are Spanish text, a byte slice could cut
		// a multi-byte character in half.
		desc := logger.TruncateForLog(p.Description, classifierDescriptionLimit)
		entries = append(entries, fmt.Sprintf("ID: %s\nTÍTULO: %s\nDESCRIPCIÓN: %s", p.ID, p.Title, desc))
	}

	prompt := fmt.Sprintf(`Analiza el siguiente lote de licitaciones públicas en Colombia y clasifícalas para una EMPRESA.

REGLAS DE CLASIFICACIÓN (CRÍTICO):
1. isCorporate: TRUE si el contrato es para una EMPRESA (Ejemplos: Obra Pública, Interventoría, Suministros, Consultoría Técnica, Compraventa, Mantenimiento de Infraestructura).
   isCorporate: FALSE si el contrato es para PERSONA NATURAL. Identificadores clave: "apoyo a la gestión", "auxiliar", "honorarios", "servicios profesionales de carácter personal", "asistente", "profesional universitario para apoyo".
2. isActionable: TRUE si el proceso tiene cronograma vigente para presentar ofertas hoy. FALSE si ya está adjudicado, celebrado o liquidado.
3. advice: Un consejo táctico de experto (máx 15 palabras). Ej: "Consorcio necesario por capacidad K", "Enfocarse en precio", "Requiere experiencia en mantenimiento vial".

LOTE DE PROCESOS:
%s

Genera un JSON que sea UN ARRAY de objetos con esta estructura:
[
    {
        "id": "el ID proporcionado",
        "isCorporate": boolean,
        "isActionable": boolean,
        "advice": "string"
    }
]`, strings.Join(entries, "\n---\n"))

	var result []ProcessClassification
	if err := gen.GenerateJSON(ctx, prompt, "Array of process classification objects", &result); err != nil {
		lg.Warn("process classification failed", zap.Int("batch_size", len(processes)), zap.Error(err))
		return []ProcessClassification{}
	}

	// Drop entries for IDs we never sent.
	known := make(map[string]bool, len(processes))
	for _, p := range processes {
		known[p.ID] = true
	}
	valid := result[:0]
	for _, r := range result {
		if known[r.ID] {
			valid = append(valid, r)
		}
	}
	return valid
}

// TenderAnalysis is the qualitative breakdown of a single tender description.
type TenderAnalysis struct {
	Deliverables          []string `json:"deliverables"`
	TechnicalRequirements []string `json:"technicalRequirements"`
	Timeline              []string `json:"timeline"`
	Summary               string   `json:"summary"`
}

// AnalyzeTenderDescription extracts deliverables, technical requirements and
// timeline milestones from one tender description.
func AnalyzeTenderDescription(ctx context.Context, gen JSONGenerator, title, description string) (*TenderAnalysis, error) {
	if gen == nil {
		return nil, ErrNotConfigured
	}

	prompt := fmt.Sprintf(`Analiza la siguiente descripción de una licitación pública en Colombia y extrae la información clave.

TÍTULO: %s

DESCRIPCIÓN:
%s

Genera un JSON con la siguiente estructura:
{
    "deliverables": ["lista de entregables o productos específicos que se deben entregar"],
    "technicalRequirements": ["lista de requisitos técnicos clave, tecnologías o perfiles requeridos"],
    "timeline": ["hitos de tiempo, plazos o duración mencionada"],
    "summary": "Un resumen ejecutivo de 2-3 líneas sobre qué hay que hacer exactamente"
}

Si no hay información suficiente para algún campo, déjalo como array vacío o string vacío.
Sé conciso y directo.`, title, description)

	var analysis TenderAnalysis
	if err := gen.GenerateJSON(ctx, prompt, "TenderAnalysis object with deliverables, technicalRequirements, timeline arrays and summary string", &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}
