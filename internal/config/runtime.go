package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Runtime stores environment-driven settings for the engine.
type Runtime struct {
	// HTTPAddr is the listen address of the approval API.
	HTTPAddr string `env:"ADVANCE_HTTP_ADDR" envDefault:":8080"`
	// LogLevel sets the logger level.
	LogLevel string `env:"ADVANCE_LOG_LEVEL" envDefault:"info"`
	// DBPath is the SQLite audit database file.
	DBPath string `env:"ADVANCE_DB_PATH" envDefault:"advance.db"`
	// GraphPath overrides the embedded graph definition when set.
	GraphPath string `env:"ADVANCE_GRAPH_PATH"`
	// BankURL is the bank-account/transaction read service base URL.
	BankURL string `env:"ADVANCE_BANK_URL" envDefault:"http://localhost:9091"`
	// IncomeURL is the recurring-income signal service base URL.
	IncomeURL string `env:"ADVANCE_INCOME_URL" envDefault:"http://localhost:9092"`
	// BankTimeout bounds calls to the bank collaborators.
	BankTimeout time.Duration `env:"ADVANCE_BANK_TIMEOUT" envDefault:"5s"`
	// MLURL is the risk-model service base URL.
	MLURL string `env:"ADVANCE_ML_URL" envDefault:"http://localhost:9093"`
	// MLTimeout bounds a single model invocation before falling back to rules.
	MLTimeout time.Duration `env:"ADVANCE_ML_TIMEOUT" envDefault:"800ms"`
	// ObsBuffer sizes the async latency-observer buffer.
	ObsBuffer int `env:"ADVANCE_OBS_BUFFER" envDefault:"4096"`
	// ExportCacheMax bounds the graph-export render cache.
	ExportCacheMax int `env:"ADVANCE_EXPORT_CACHE_MAX" envDefault:"16"`
	// DotBin is the graphviz binary used for image exports.
	DotBin string `env:"ADVANCE_DOT_BIN" envDefault:"dot"`
	// HistoryLimit caps how many prior runs feed history rules.
	HistoryLimit int `env:"ADVANCE_HISTORY_LIMIT" envDefault:"20"`
	// ShutdownTimeout controls graceful shutdown duration.
	ShutdownTimeout time.Duration `env:"ADVANCE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses environment variables into Runtime.
func Load() (Runtime, error) {
	return env.ParseAs[Runtime]()
}
