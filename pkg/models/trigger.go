package models

// TriggerType classifies a detected signal.
type TriggerType string

// Trigger types emitted by detectors. TriggerGeoIntent is synthesized
// by the pipeline when a city mention needs clarification.
const (
	TriggerTime       TriggerType = "time"
	TriggerRelocation TriggerType = "relocation"
	TriggerMention    TriggerType = "mention"
	TriggerGeoIntent  TriggerType = "geo_intent"
)

// DetectedTrigger is one signal extracted from an inbound event.
// Data carries the trigger-specific payload (see TimeTriggerData and
// RelocationTriggerData).
type DetectedTrigger struct {
	Type         TriggerType    `json:"trigger_type"`
	Confidence   float64        `json:"confidence"`
	OriginalText string         `json:"original_text"`
	Data         map[string]any `json:"data,omitempty"`
}

// Keys used in DetectedTrigger.Data.
const (
	DataHour         = "hour"
	DataMinute       = "minute"
	DataTimezoneHint = "timezone_hint"
	DataSourceTz     = "source_tz"
	DataIsExplicitTz = "is_explicit_tz"
	DataIsTomorrow   = "is_tomorrow"
	DataCity         = "city"
	DataResolvedTz   = "resolved_tz"
)

// ResolvedContext is the timezone context the pipeline computed for an event:
// where the speaker is (source) and which zones conversions should target.
type ResolvedContext struct {
	SourceTz         string   `json:"source_tz,omitempty"`
	SourceConfidence float64  `json:"source_confidence"`
	SourceOrigin     TzSource `json:"source_origin,omitempty"`
	TargetTzs        []string `json:"target_tzs"`
	// TeamTzs marks which of TargetTzs came from configuration rather than
	// from the chat's active set; used for labeling.
	TeamTzs map[string]bool `json:"-"`
}

// HandlerResult is what a single action handler produced for one trigger.
type HandlerResult struct {
	Messages []OutboundMessage
	// NeedsStateCollection signals that the handler could not act because
	// user state is missing; the orchestrator turns this into a session.
	NeedsStateCollection bool
	Trigger              *DetectedTrigger
}

// PipelineResult aggregates the outcome of processing one event.
type PipelineResult struct {
	Messages             []OutboundMessage
	TriggersDetected     int
	TriggersHandled      int
	Errors               []string
	NeedsStateCollection bool
	// StateTrigger is the trigger that requested state collection, when set.
	StateTrigger *DetectedTrigger
}
