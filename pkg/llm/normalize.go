package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCity is returned when the model cannot map the input to a
// real city name.
var ErrUnknownCity = errors.New("city not recognized")

const normalizationSystemPrompt = `You normalize city names from chat messages: fix typos, transliterate, and strip grammatical case endings.
Respond with JSON only: {"city": "<canonical English city name>"}.
If the input is not a real populated place, respond {"city": "UNKNOWN"}. Never invent a city.`

type normalizationResponse struct {
	City string `json:"city"`
}

// NormalizeCity maps a free-form city mention to its canonical English
// name. Satisfies the geocoder's Normalizer interface.
func (c *Client) NormalizeCity(ctx context.Context, input string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}

	raw, err := c.complete(ctx, c.normalizationBreaker, c.cfg.Normalization, normalizationSystemPrompt, input)
	if err != nil {
		return "", fmt.Errorf("city normalization failed: %w", err)
	}

	var resp normalizationResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		c.normalizationBreaker.recordFailure()
		return "", fmt.Errorf("city normalization returned malformed JSON: %w", err)
	}

	city := strings.TrimSpace(resp.City)
	if city == "" || strings.EqualFold(city, "UNKNOWN") {
		return "", ErrUnknownCity
	}
	return city, nil
}
