package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// GeoIntent is the model's judgement of why a message mentions a place.
type GeoIntent string

const (
	IntentTimeQuery     GeoIntent = "time_query"
	IntentRelocation    GeoIntent = "relocation"
	IntentFalsePositive GeoIntent = "false_positive"
	IntentUncertain     GeoIntent = "uncertain"
)

const intentSystemPrompt = `A chat message mentions a city. Decide why.
Respond with JSON only: {"intent": "time_query" | "relocation" | "false_positive" | "uncertain"}.
"time_query": the city scopes a time ("3pm Berlin time", "по Москве").
"relocation": the speaker says they moved to or now live in the city.
"false_positive": the city is incidental (news, sports, someone else's trip).
"uncertain": you cannot tell.`

type intentResponse struct {
	Intent string `json:"intent"`
}

// ClassifyGeoIntent asks why the message mentions city. Unknown labels
// collapse to IntentUncertain so callers get a closed set.
func (c *Client) ClassifyGeoIntent(ctx context.Context, text, city string) (GeoIntent, error) {
	if c == nil {
		return IntentUncertain, ErrDisabled
	}

	user := fmt.Sprintf("City: %s\nMessage: %s", city, text)
	raw, err := c.complete(ctx, c.intentBreaker, c.cfg.Intent, intentSystemPrompt, user)
	if err != nil {
		return IntentUncertain, fmt.Errorf("geo intent classification failed: %w", err)
	}

	var resp intentResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		c.intentBreaker.recordFailure()
		return IntentUncertain, fmt.Errorf("geo intent returned malformed JSON: %w", err)
	}

	switch GeoIntent(resp.Intent) {
	case IntentTimeQuery, IntentRelocation, IntentFalsePositive:
		return GeoIntent(resp.Intent), nil
	default:
		return IntentUncertain, nil
	}
}
