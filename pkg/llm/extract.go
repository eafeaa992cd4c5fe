package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/timeparse"
)

const extractionSystemPrompt = `You extract clock-time references from chat messages.
Respond with JSON only: {"times": [{"hour": 0-23, "minute": 0-59, "timezone_hint": "<IANA zone or empty string>", "is_tomorrow": true|false, "original_text": "<the matched fragment>"}]}.
Use 24-hour values. Include an entry for each distinct time mentioned. If the message mentions no clock time, respond {"times": []}.
Never guess a timezone_hint; leave it empty unless the message names a zone or a well-known city.`

type extractedTime struct {
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	TimezoneHint string `json:"timezone_hint"`
	IsTomorrow   bool   `json:"is_tomorrow"`
	OriginalText string `json:"original_text"`
}

type extractionResponse struct {
	Times []extractedTime `json:"times"`
}

// ExtractTimes asks the model for the clock times in text. Out-of-range
// entries are dropped rather than failing the whole call.
func (c *Client) ExtractTimes(ctx context.Context, text string) ([]models.ParsedTime, error) {
	if c == nil {
		return nil, ErrDisabled
	}

	raw, err := c.complete(ctx, c.extractionBreaker, c.cfg.Extraction, extractionSystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("time extraction failed: %w", err)
	}

	var resp extractionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		c.extractionBreaker.recordFailure()
		return nil, fmt.Errorf("time extraction returned malformed JSON: %w", err)
	}

	out := make([]models.ParsedTime, 0, len(resp.Times))
	for _, t := range resp.Times {
		pt := models.ParsedTime{
			OriginalText: t.OriginalText,
			Hour:         t.Hour,
			Minute:       t.Minute,
			TimezoneHint: t.TimezoneHint,
			IsTomorrow:   t.IsTomorrow,
			Confidence:   timeparse.LLMConfidence(),
		}
		if !pt.Valid() {
			c.logger.Warn("dropping out-of-range extracted time",
				"hour", t.Hour, "minute", t.Minute)
			continue
		}
		out = append(out, pt)
	}
	return out, nil
}
