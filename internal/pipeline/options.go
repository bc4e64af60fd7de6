package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/data-agent/internal/config"
	"github.com/sells-group/data-agent/internal/prepare"
)

// Options bound a single run. Start from DefaultOptions or
// OptionsFromConfig: a zero MaxStageRetries is kept as a single attempt.
type Options struct {
	// MaxStageRetries is how many times a stage is retried after a
	// recoverable failure. 0 means a single attempt.
	MaxStageRetries int
	// CandidateRetryLimit is the most candidate sources tried before the
	// run aborts.
	CandidateRetryLimit int
	// DataByteBudget caps the serialized data sent for analysis. Zero
	// selects the default.
	DataByteBudget int
	// OverallTimeout bounds the whole run. Zero disables it.
	OverallTimeout time.Duration

	MaxFileBytes  int64
	FetchTimeout  time.Duration
	PreviewRows   int
	Sheet         string
	KeepDownloads bool
}

// DefaultOptions returns the defaults used when no config is loaded.
func DefaultOptions() Options {
	return Options{
		MaxStageRetries:     2,
		CandidateRetryLimit: 3,
		DataByteBudget:      1 << 20,
		OverallTimeout:      10 * time.Minute,
		MaxFileBytes:        100 << 20,
		FetchTimeout:        60 * time.Second,
		PreviewRows:         prepare.DefaultPreviewRows,
	}
}

// OptionsFromConfig builds run options from the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxStageRetries:     cfg.Pipeline.MaxStageRetries,
		CandidateRetryLimit: cfg.Pipeline.CandidateRetryLimit,
		DataByteBudget:      cfg.Pipeline.DataByteBudget,
		OverallTimeout:      time.Duration(cfg.Pipeline.OverallTimeoutSecs) * time.Second,
		MaxFileBytes:        cfg.Fetch.MaxBytes,
		FetchTimeout:        time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		PreviewRows:         cfg.Pipeline.PreviewRows,
		Sheet:               cfg.Pipeline.Sheet,
		KeepDownloads:       cfg.Fetch.KeepDownloads,
	}
}

// Validate rejects caller-supplied bounds outside what a run accepts.
func (o Options) Validate() error {
	if o.MaxStageRetries < 0 || o.MaxStageRetries > config.MaxStageRetriesLimit {
		return eris.Errorf("max stage retries must be between 0 and %d, got %d", config.MaxStageRetriesLimit, o.MaxStageRetries)
	}
	if o.DataByteBudget < config.MinDataByteBudget {
		return eris.Errorf("data byte budget must be at least %d, got %d", config.MinDataByteBudget, o.DataByteBudget)
	}
	return nil
}

// normalize fills unset fields with defaults and clamps the rest into range,
// so library callers that skip Validate still get a bounded run.
func (o Options) normalize() Options {
	def := DefaultOptions()
	switch {
	case o.MaxStageRetries < 0:
		o.MaxStageRetries = 0
	case o.MaxStageRetries > config.MaxStageRetriesLimit:
		o.MaxStageRetries = config.MaxStageRetriesLimit
	}
	switch {
	case o.DataByteBudget <= 0:
		o.DataByteBudget = def.DataByteBudget
	case o.DataByteBudget < config.MinDataByteBudget:
		o.DataByteBudget = config.MinDataByteBudget
	}
	if o.CandidateRetryLimit <= 0 {
		o.CandidateRetryLimit = def.CandidateRetryLimit
	}
	if o.OverallTimeout < 0 {
		o.OverallTimeout = 0
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = def.MaxFileBytes
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = def.FetchTimeout
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = def.PreviewRows
	}
	return o
}
