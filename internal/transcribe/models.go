// Package transcribe turns an audio file into a transcript (and optional
// summary) with a Gemini model, estimating the cost of every call.
package transcribe

import "fmt"

// Model is one allow-listed Gemini model and its approximate pricing.
type Model struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	MaxOutputTokens     int32   `json:"max_output_tokens"`
	PriceInputPer1K     float64 `json:"price_input_per_1k"`
	PriceOutputPer1K    float64 `json:"price_output_per_1k"`
	PriceAudioPerSecond float64 `json:"price_audio_per_second"`
}

// DefaultModel is the cheapest model.
const DefaultModel = "gemini-2.5-flash"

// Models lists the allow-listed models in display order.
var Models = []Model{
	{
		ID:                  "gemini-2.5-flash",
		Name:                "Gemini 2.5 Flash",
		MaxOutputTokens:     65536,
		PriceInputPer1K:     0.000075,
		PriceOutputPer1K:    0.0003,
		PriceAudioPerSecond: 0.000015,
	},
	{
		ID:                  "gemini-2.5-pro",
		Name:                "Gemini 2.5 Pro",
		MaxOutputTokens:     65536,
		PriceInputPer1K:     0.00125,
		PriceOutputPer1K:    0.005,
		PriceAudioPerSecond: 0.00025,
	},
	{
		// Preview pricing is an estimate.
		ID:                  "gemini-3-pro-preview",
		Name:                "Gemini 3 Pro Preview",
		MaxOutputTokens:     65536,
		PriceInputPer1K:     0.00025,
		PriceOutputPer1K:    0.0005,
		PriceAudioPerSecond: 0.000625,
	},
}

// LookupModel finds an allow-listed model by id.
func LookupModel(id string) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ResolveModel returns the named model, or the default for unknown names.
// The boolean reports whether the name was known.
func ResolveModel(id string) (Model, bool) {
	if m, ok := LookupModel(id); ok {
		return m, true
	}
	m, _ := LookupModel(DefaultModel)
	return m, false
}

// PriceSummary renders a model's prices the way the CLI lists them.
func (m Model) PriceSummary() string {
	return fmt.Sprintf("Audio: ~$%.2f/hour, Input: $%.4f/1M tokens, Output: $%.4f/1M tokens",
		m.PriceAudioPerSecond*3600, m.PriceInputPer1K*1000, m.PriceOutputPer1K*1000)
}
