package models

import "time"

// Run variants
const (
	VariantConcentration = "concentration"
	VariantInline        = "inline"
	VariantSpectrum      = "spectrum"
)

// Run statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Run represents one measured iteration of a synthesis session
type Run struct {
	ID                  string     `json:"id"`
	SessionID           string     `json:"session_id"`
	Variant             string     `json:"variant"`
	Status              string     `json:"status"`
	TargetConcentration *float64   `json:"target_concentration_mm,omitempty"`
	SoluteFlowRate      *float64   `json:"solute_flow_rate,omitempty"`
	DiluentFlowRate     *float64   `json:"diluent_flow_rate,omitempty"`
	FlowUnit            string     `json:"flow_unit,omitempty"`
	CSVPath             *string    `json:"csv_path,omitempty"`
	ArchiveKey          *string    `json:"archive_key,omitempty"`
	ErrorMsg            *string    `json:"error_message,omitempty"`
	DownloadURL         *string    `json:"download_url,omitempty"` // pre-signed, set by the API only
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// RunResults holds the absorbance spectrum measured for a run
type RunResults struct {
	ID         string          `json:"id"`
	RunID      string          `json:"run_id"`
	Absorbance []SpectrumPoint `json:"absorbance"`
	CreatedAt  time.Time       `json:"created_at"`
}
