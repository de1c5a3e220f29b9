package transcribe

// Usage is the token and audio accounting of one or more model calls.
type Usage struct {
	Model         string  `json:"model"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	AudioSeconds  float64 `json:"audio_seconds"`
	TextInputCost float64 `json:"text_input_cost"`
	OutputCost    float64 `json:"output_cost"`
	AudioCost     float64 `json:"audio_cost"`
	TotalCost     float64 `json:"total_cost"`
}

// EstimateCost prices one call. Unknown models are priced as the default.
func EstimateCost(model string, inputTokens, outputTokens int, audioSeconds float64) Usage {
	m, _ := ResolveModel(model)
	u := Usage{
		Model:         model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		AudioSeconds:  audioSeconds,
		TextInputCost: float64(inputTokens) / 1000 * m.PriceInputPer1K,
		OutputCost:    float64(outputTokens) / 1000 * m.PriceOutputPer1K,
		AudioCost:     audioSeconds * m.PriceAudioPerSecond,
	}
	u.TotalCost = u.TextInputCost + u.OutputCost + u.AudioCost
	return u
}

// Add sums two usages.
func (u Usage) Add(o Usage) Usage {
	if u.Model == "" {
		u.Model = o.Model
	}
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.AudioSeconds += o.AudioSeconds
	u.TextInputCost += o.TextInputCost
	u.OutputCost += o.OutputCost
	u.AudioCost += o.AudioCost
	u.TotalCost += o.TotalCost
	return u
}
