package types

// ToolChoiceMode selects how a model should choose among available tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceByName   ToolChoiceMode = "by-name"
)

// ToolChoice selects how the model should choose tools.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // used when Mode == ToolChoiceByName
}

// GenerateConfig carries per-request generation parameters. Values are
// clamped on assignment where the domain is bounded (temperature, topP).
// Config is immutable once built; With* methods return an updated copy.
type GenerateConfig struct {
	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string
	Seed             *int
	Tools            []Tool
	ToolChoice       ToolChoice
	Schema           interface{} // *schema.GenerationSchema, kept as interface{} to avoid an import cycle
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WithTemperature returns a copy of the config with temperature clamped to
// [0, 2].
func (c GenerateConfig) WithTemperature(t float64) GenerateConfig {
	t = clampF(t, 0, 2)
	c.Temperature = &t
	return c
}

// WithTopP returns a copy of the config with topP clamped to (0, 1].
// A non-positive input is clamped up to a small epsilon rather than zero,
// since zero would make sampling undefined.
func (c GenerateConfig) WithTopP(p float64) GenerateConfig {
	if p <= 0 {
		p = 0.0001
	}
	if p > 1 {
		p = 1
	}
	c.TopP = &p
	return c
}

// WithMaxTokens returns a copy with MaxTokens set (clamped to non-negative).
func (c GenerateConfig) WithMaxTokens(n int) GenerateConfig {
	if n < 0 {
		n = 0
	}
	c.MaxTokens = &n
	return c
}

// WithTopK returns a copy with TopK set (zero or a negative value clears it).
func (c GenerateConfig) WithTopK(k int) GenerateConfig {
	if k <= 0 {
		c.TopK = nil
		return c
	}
	c.TopK = &k
	return c
}

// WithStopSequences returns a copy with the given stop sequences.
func (c GenerateConfig) WithStopSequences(seqs ...string) GenerateConfig {
	c.StopSequences = seqs
	return c
}

// WithSeed returns a copy with the seed set.
func (c GenerateConfig) WithSeed(seed int) GenerateConfig {
	c.Seed = &seed
	return c
}

// WithTools returns a copy with the given tools and tool choice.
func (c GenerateConfig) WithTools(choice ToolChoice, tools ...Tool) GenerateConfig {
	c.Tools = tools
	c.ToolChoice = choice
	return c
}

// WithSchema returns a copy with a structured-output schema attached.
func (c GenerateConfig) WithSchema(s interface{}) GenerateConfig {
	c.Schema = s
	return c
}

func ptrF(v float64) *float64 { return &v }

// DefaultConfig is the baseline preset: balanced temperature and nucleus
// sampling suitable for general-purpose chat.
func DefaultConfig() GenerateConfig {
	return GenerateConfig{Temperature: ptrF(0.7), TopP: ptrF(0.9)}
}

// CreativeConfig favors varied, higher-entropy output.
func CreativeConfig() GenerateConfig {
	return GenerateConfig{Temperature: ptrF(1.0), TopP: ptrF(0.9)}
}

// PreciseConfig favors deterministic, focused output.
func PreciseConfig() GenerateConfig {
	return GenerateConfig{Temperature: ptrF(0.3), TopP: ptrF(0.9)}
}

// CodeConfig is tuned for code generation: low temperature, near-greedy.
func CodeConfig() GenerateConfig {
	return GenerateConfig{Temperature: ptrF(0.2), TopP: ptrF(0.9)}
}
