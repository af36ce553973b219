package sources

import "context"

// Source names used in health reporting.
const (
	SourceOpenTargets    = "opentargets"
	SourceReactome       = "reactome"
	SourceString         = "string"
	SourceChembl         = "chembl"
	SourceEuropePMC      = "europepmc"
	SourceClinicalTrials = "clinicaltrials"
)

type Disease struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Target struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type TargetAssociation struct {
	TargetID         string  `json:"targetId"`
	TargetSymbol     string  `json:"targetSymbol"`
	TargetName       string  `json:"targetName"`
	AssociationScore float64 `json:"associationScore"`
}

type Pathway struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species"`
}

type Drug struct {
	ID      string  `json:"drugId"`
	Name    string  `json:"name"`
	Phase   int     `json:"phase,omitempty"`
	Potency float64 `json:"potency,omitempty"`
}

type Interaction struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

type Network struct {
	Nodes []string      `json:"nodes"`
	Edges []Interaction `json:"edges"`
}

type Article struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

type Trial struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Phase  string `json:"phase,omitempty"`
	Status string `json:"status,omitempty"`
}

// DiseaseSource resolves disease text and disease-target associations.
type DiseaseSource interface {
	SearchDiseases(ctx context.Context, text string, n int) ([]Disease, error)
	DiseaseTargetsSummary(ctx context.Context, diseaseID string, n int) ([]TargetAssociation, error)
}

// TargetSource resolves target text and known drugs per target.
type TargetSource interface {
	SearchTargets(ctx context.Context, text string, n int) ([]Target, error)
	KnownDrugsForTarget(ctx context.Context, targetID string, n int) ([]Drug, error)
}

type PathwaySource interface {
	PathwaysByGene(ctx context.Context, symbol string) ([]Pathway, error)
}

type InteractionSource interface {
	InteractionNetwork(ctx context.Context, symbols []string, confidence float64, maxNeighbors int) (Network, error)
}

// DrugSource answers drug name search, bioactivity queries and
// drug-to-target hints used by the planner's drug expansion.
type DrugSource interface {
	SearchDrugs(ctx context.Context, text string, n int) ([]Drug, error)
	TargetActivityDrugs(ctx context.Context, symbol string, n int) ([]Drug, error)
	DrugTargetHints(ctx context.Context, drugName string) ([]string, error)
}

// LiteratureSource answers article and trial searches for a disease/target
// pair. The operations fail independently; Europe PMC and ClinicalTrials.gov
// carry separate health.
type LiteratureSource interface {
	SearchArticles(ctx context.Context, disease, targetSymbol, drugHint string) ([]Article, error)
	SearchTrials(ctx context.Context, disease, targetSymbol, drugHint string) ([]Trial, error)
}

// Catalog bundles one client per external source.
type Catalog struct {
	Diseases     DiseaseSource
	Targets      TargetSource
	Pathways     PathwaySource
	Interactions InteractionSource
	Drugs        DrugSource
	Literature   LiteratureSource
}
