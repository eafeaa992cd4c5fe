// Package pipeline runs the detection-to-action flow for one event and
// the orchestrator that routes events between sessions and the pipeline.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/detect"
	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/handlers"
	"github.com/izgorodin/team-ops-assistant/pkg/identity"
	"github.com/izgorodin/team-ops-assistant/pkg/llm"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// contextResolver is the slice of the identity manager the pipeline
// uses to build the ResolvedContext.
type contextResolver interface {
	Effective(ctx context.Context, platform models.Platform, userID, chatID, explicitHint string) identity.Resolved
	TargetZones(ctx context.Context, platform models.Platform, chatID, sourceTz string, teamTzs []string) ([]string, map[string]bool)
}

// Pipeline fans an event out to the detectors, resolves the timezone
// context, and dispatches triggers to their handlers.
type Pipeline struct {
	detectors []detect.Detector
	handlers  map[models.TriggerType]handlers.Handler
	identity  contextResolver
	teamTzs   []string

	// Geo-intent backstop: a bare city mention with no trigger.
	finder    *geo.Finder
	llmClient *llm.Client

	logger *slog.Logger
	now    func() time.Time
}

// New creates a Pipeline. finder and llmClient may be nil to disable
// the geo-intent backstop.
func New(detectors []detect.Detector, handlerMap map[models.TriggerType]handlers.Handler, resolver contextResolver, teamTzs []string, finder *geo.Finder, llmClient *llm.Client) *Pipeline {
	return &Pipeline{
		detectors: detectors,
		handlers:  handlerMap,
		identity:  resolver,
		teamTzs:   teamTzs,
		finder:    finder,
		llmClient: llmClient,
		logger:    slog.Default().With("component", "pipeline"),
		now:       time.Now,
	}
}

// Process implements the detect-resolve-dispatch flow. Detector and
// handler failures are captured per component; the rest continue.
func (p *Pipeline) Process(ctx context.Context, event models.NormalizedEvent) models.PipelineResult {
	var result models.PipelineResult

	triggers := p.runDetectors(ctx, event, &result)
	result.TriggersDetected = len(triggers)

	if len(triggers) == 0 {
		p.geoIntentBackstop(ctx, event, &result)
		return result
	}

	rc := p.resolveContext(ctx, event, triggers)

	for _, trigger := range triggers {
		handler, ok := p.handlers[trigger.Type]
		if !ok {
			continue
		}
		res, err := handler.Handle(ctx, event, trigger, rc)
		if err != nil {
			p.logger.Error("handler failed", "trigger_type", trigger.Type, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", trigger.Type, err))
			continue
		}
		result.TriggersHandled++
		result.Messages = append(result.Messages, res.Messages...)
		if res.NeedsStateCollection && !result.NeedsStateCollection {
			result.NeedsStateCollection = true
			result.StateTrigger = res.Trigger
		}
	}
	return result
}

// runDetectors executes all detectors concurrently and merges their
// triggers in registration order.
func (p *Pipeline) runDetectors(ctx context.Context, event models.NormalizedEvent, result *models.PipelineResult) []models.DetectedTrigger {
	perDetector := make([][]models.DetectedTrigger, len(p.detectors))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, d := range p.detectors {
		wg.Add(1)
		go func(i int, d detect.Detector) {
			defer wg.Done()
			triggers, err := d.Detect(ctx, event)
			if err != nil {
				p.logger.Error("detector failed", "detector", d.Name(), "error", err)
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", d.Name(), err))
				mu.Unlock()
				return
			}
			perDetector[i] = triggers
		}(i, d)
	}
	wg.Wait()

	var merged []models.DetectedTrigger
	for _, triggers := range perDetector {
		merged = append(merged, triggers...)
	}
	return merged
}

// resolveContext computes the source and target zones for the event.
// The first explicit in-message zone hint wins as the source.
func (p *Pipeline) resolveContext(ctx context.Context, event models.NormalizedEvent, triggers []models.DetectedTrigger) models.ResolvedContext {
	var hint string
	for _, t := range triggers {
		if t.Type != models.TriggerTime {
			continue
		}
		if h, ok := t.Data[models.DataTimezoneHint].(string); ok && h != "" {
			hint = h
			break
		}
	}

	src := p.identity.Effective(ctx, event.Platform, event.UserID, event.ChatID, hint)
	targets, team := p.identity.TargetZones(ctx, event.Platform, event.ChatID, src.Tz, p.teamTzs)

	return models.ResolvedContext{
		SourceTz:         src.Tz,
		SourceConfidence: src.Confidence,
		SourceOrigin:     src.Source,
		TargetTzs:        targets,
		TeamTzs:          team,
	}
}

// geoIntentBackstop handles a bare city mention: no time, no relocation
// pattern, but the finder sees a city. The LLM decides the intent;
// uncertainty becomes a clarification session.
func (p *Pipeline) geoIntentBackstop(ctx context.Context, event models.NormalizedEvent, result *models.PipelineResult) {
	if p.finder == nil || p.llmClient == nil {
		return
	}
	cities := p.finder.FindInText(event.Text)
	if len(cities) == 0 {
		return
	}
	city := cities[0]

	intent, err := p.llmClient.ClassifyGeoIntent(ctx, event.Text, city.City)
	if err != nil {
		p.logger.Warn("geo intent call failed, asking the user", "error", err)
		intent = llm.IntentUncertain
	}

	switch intent {
	case llm.IntentFalsePositive:
		return
	case llm.IntentTimeQuery:
		// One-off reply with the city's current time.
		loc, err := time.LoadLocation(city.Timezone)
		if err != nil {
			p.logger.Warn("unloadable finder zone", "tz", city.Timezone, "error", err)
			return
		}
		at := p.now().In(loc)
		result.Messages = append(result.Messages, models.OutboundMessage{
			Platform:         event.Platform,
			ChatID:           event.ChatID,
			Text:             fmt.Sprintf("It's %02d:%02d in %s (%s) right now.", at.Hour(), at.Minute(), city.City, city.Timezone),
			ReplyToMessageID: event.MessageID,
			ParseMode:        models.ParseModePlain,
		})
	case llm.IntentRelocation:
		result.NeedsStateCollection = true
		result.StateTrigger = &models.DetectedTrigger{
			Type:         models.TriggerRelocation,
			Confidence:   0.8,
			OriginalText: city.City,
			Data: map[string]any{
				models.DataCity:       city.City,
				models.DataResolvedTz: city.Timezone,
			},
		}
	default: // time_query and uncertain both go through clarification
		result.NeedsStateCollection = true
		result.StateTrigger = &models.DetectedTrigger{
			Type:         models.TriggerGeoIntent,
			Confidence:   0.5,
			OriginalText: city.City,
			Data: map[string]any{
				models.DataCity:       city.City,
				models.DataResolvedTz: city.Timezone,
			},
		}
	}
}
