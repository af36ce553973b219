package sources

import (
	"time"

	"github.com/atlasbio/meridian/internal/cache"
	"github.com/atlasbio/meridian/internal/config"
	"github.com/atlasbio/meridian/internal/logger"
)

// NewCatalog wires the production clients from config. Open Targets serves
// both the disease and target contracts.
func NewCatalog(log *logger.Logger, c cache.Cache, cfg config.SourcesConfig) Catalog {
	timeout := time.Duration(cfg.CallTimeoutMS) * time.Millisecond
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute

	ot := NewOpenTargetsClient(log, c, cfg.OpenTargetsURL, timeout, ttl)

	return Catalog{
		Diseases:     ot,
		Targets:      ot,
		Pathways:     NewReactomeClient(log, c, cfg.ReactomeURL, timeout, ttl),
		Interactions: NewStringClient(log, c, cfg.StringURL, timeout, ttl),
		Drugs:        NewChemblClient(log, c, cfg.ChemblURL, timeout, ttl),
		Literature:   NewLiteratureClient(log, c, cfg.EuropePMCURL, cfg.ClinicalTrialsURL, timeout, ttl),
	}
}
