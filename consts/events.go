package consts

const (
	// Dashboard events pushed to subscribers
	EventTick           = "tick"
	EventSelection      = "selection"
	EventRecommendation = "recommendation"
	EventAnalysing      = "analysing"

	// EventState is the full view sent when a stream client connects
	EventState = "state"
)

const (
	// Error codes surfaced to the presentation layer
	CodeCredentialMissing = "credential_missing"
	CodeCredentialInvalid = "credential_invalid"
	CodeAnalysisFailed    = "analysis_failed"
	CodeUnknownSymbol     = "unknown_symbol"
	CodeNoSelection       = "no_selection"
	CodeBadRequest        = "bad_request"
)
