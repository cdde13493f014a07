package agentrun

// ModelPrice holds per-model pricing in USD per million tokens. Cache reads
// and writes are priced as multipliers of the input rate.
type ModelPrice struct {
	InputPerM      float64 `json:"input_per_m" yaml:"input_per_m"`
	OutputPerM     float64 `json:"output_per_m" yaml:"output_per_m"`
	CacheReadMult  float64 `json:"cache_read_mult,omitempty" yaml:"cache_read_mult,omitempty"`
	CacheWriteMult float64 `json:"cache_write_mult,omitempty" yaml:"cache_write_mult,omitempty"`
}

// PriceTable maps model names to prices. Unknown models cost zero; spend
// limits still apply through the token budget.
type PriceTable map[string]ModelPrice

// DefaultPrices returns the built-in price table.
func DefaultPrices() PriceTable {
	return PriceTable{
		"claude-sonnet-4-5":  {InputPerM: 3.00, OutputPerM: 15.00, CacheReadMult: 0.1, CacheWriteMult: 1.25},
		"claude-haiku-4-5":   {InputPerM: 1.00, OutputPerM: 5.00, CacheReadMult: 0.1, CacheWriteMult: 1.25},
		"gpt-4o":             {InputPerM: 2.50, OutputPerM: 10.00},
		"gpt-4o-mini":        {InputPerM: 0.15, OutputPerM: 0.60},
		"deepseek-chat":      {InputPerM: 0.27, OutputPerM: 1.10},
		"gemini-2.5-pro":     {InputPerM: 1.25, OutputPerM: 10.00},
	}
}

// Estimate computes the cost of the given usage for a model. Unknown
// models return 0.
func (t PriceTable) Estimate(model string, u Usage) float64 {
	p, ok := t[model]
	if !ok {
		return 0
	}

	const m = 1_000_000.0
	cost := float64(u.InputTokens)/m*p.InputPerM + float64(u.OutputTokens)/m*p.OutputPerM

	if p.CacheReadMult > 0 {
		cost += float64(u.CacheReadTokens) / m * p.InputPerM * p.CacheReadMult
	}
	if p.CacheWriteMult > 0 {
		cost += float64(u.CacheCreationTokens) / m * p.InputPerM * p.CacheWriteMult
	}
	return cost
}
