package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	// TimeoutMS bounds every single Generate call.
	TimeoutMS int `toml:"timeout_ms"`
}

type SourcesConfig struct {
	OpenTargetsURL    string `toml:"opentargets_url"`
	ReactomeURL       string `toml:"reactome_url"`
	StringURL         string `toml:"string_url"`
	ChemblURL         string `toml:"chembl_url"`
	EuropePMCURL      string `toml:"europepmc_url"`
	ClinicalTrialsURL string `toml:"clinicaltrials_url"`
	CallTimeoutMS     int    `toml:"call_timeout_ms"`
	CacheTTLMinutes   int    `toml:"cache_ttl_minutes"`
}

type PipelineConfig struct {
	BatchSize            int  `toml:"batch_size"`
	BatchDelayMS         int  `toml:"batch_delay_ms"`
	PhaseBudgetMS        int  `toml:"phase_budget_ms"`
	RunBudgetMS          int  `toml:"run_budget_ms"`
	MaxTargets           int  `toml:"max_targets"`
	MaxLiteratureTargets int  `toml:"max_literature_targets"`
	SkipPathways         bool `toml:"skip_pathways"`
	SkipDrugs            bool `toml:"skip_drugs"`
	SkipInteractions     bool `toml:"skip_interactions"`
	SkipLiterature       bool `toml:"skip_literature"`

	// SeedSymbols are resolved via direct target search when a critical
	// phase comes back empty.
	SeedSymbols []string `toml:"seed_symbols"`
}

type RankingConfig struct {
	// Sliders are 0-100, UI semantics: novelty<->actionability and risk
	// tolerance. They are normalized into weights summing to 1.
	NoveltySlider   int `toml:"novelty_slider"`
	RiskSlider      int `toml:"risk_slider"`
	RefineTimeoutMS int `toml:"refine_timeout_ms"`
}

type MirrorConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type CacheConfig struct {
	RedisAddr string `toml:"redis_addr"`
}

type PromptsConfig struct {
	Mentions string `toml:"mentions"`
	Refine   string `toml:"refine"`
}

type Config struct {
	LogMode  string         `toml:"log_mode"`
	LLM      LLMConfig      `toml:"llm"`
	Sources  SourcesConfig  `toml:"sources"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Ranking  RankingConfig  `toml:"ranking"`
	Mirror   MirrorConfig   `toml:"mirror"`
	Cache    CacheConfig    `toml:"cache"`
	Prompts  PromptsConfig  `toml:"prompts"`
}

// Default returns a config that works with zero files on disk: public
// endpoints, conservative budgets, no LLM provider.
func Default() *Config {
	return &Config{
		LogMode: "dev",
		LLM: LLMConfig{
			TimeoutMS: 12000,
		},
		Sources: SourcesConfig{
			OpenTargetsURL:    "https://api.platform.opentargets.org/api/v4/graphql",
			ReactomeURL:       "https://reactome.org/ContentService",
			StringURL:         "https://string-db.org/api",
			ChemblURL:         "https://www.ebi.ac.uk/chembl/api/data",
			EuropePMCURL:      "https://www.ebi.ac.uk/europepmc/webservices/rest",
			ClinicalTrialsURL: "https://clinicaltrials.gov/api/v2",
			CallTimeoutMS:     8000,
			CacheTTLMinutes:   60,
		},
		Pipeline: PipelineConfig{
			BatchSize:            3,
			BatchDelayMS:         150,
			PhaseBudgetMS:        20000,
			RunBudgetMS:          120000,
			MaxTargets:           12,
			MaxLiteratureTargets: 6,
		},
		Ranking: RankingConfig{
			NoveltySlider:   50,
			RiskSlider:      50,
			RefineTimeoutMS: 10000,
		},
	}
}

// Load reads a TOML file over the defaults. A missing file is not an error;
// env overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse TOML config '%s': %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr(&c.LogMode, "LOG_MODE")
	setStr(&c.LLM.Provider, "LLM_PROVIDER")
	setStr(&c.LLM.Model, "LLM_MODEL")
	setStr(&c.LLM.APIKey, "LLM_API_KEY")
	setStr(&c.LLM.BaseURL, "LLM_BASE_URL")
	setStr(&c.Mirror.URI, "MEMGRAPH_URI")
	setStr(&c.Mirror.User, "MEMGRAPH_USER")
	setStr(&c.Mirror.Password, "MEMGRAPH_PASSWORD")
	setStr(&c.Cache.RedisAddr, "REDIS_ADDR")
	setInt(&c.Pipeline.RunBudgetMS, "RUN_BUDGET_MS")
	setInt(&c.Pipeline.PhaseBudgetMS, "PHASE_BUDGET_MS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
