package llmtool

// PromptPreset is a bundle of constraints and rules shared by several agents.
type PromptPreset struct {
	Constraints []string
	Rules       []string
}

// ApplyPresets puts preset lines ahead of the spec's own, in preset order.
func ApplyPresets(spec StructuredPromptSpec, presets ...PromptPreset) StructuredPromptSpec {
	var cons, rules []string
	for _, p := range presets {
		cons = append(cons, p.Constraints...)
		rules = append(rules, p.Rules...)
	}
	spec.Constraints = append(cons, spec.Constraints...)
	spec.Rules = append(rules, spec.Rules...)
	return spec
}

func PresetStrictJSON() PromptPreset {
	return PromptPreset{Constraints: []string{
		"Answer with one JSON object and nothing else: no markdown fences, no commentary.",
		"Use exactly the keys listed under OUTPUT.",
	}}
}

// PresetNoInvent forbids references the input does not contain.
func PresetNoInvent() PromptPreset {
	return PromptPreset{Constraints: []string{
		"Use only layout indexes, placeholder indexes and asset references present in the input.",
	}}
}

func PresetAudience() PromptPreset {
	return PromptPreset{Rules: []string{
		"Write for the target audience given in the input; prefer short, concrete phrases over paragraphs.",
	}}
}

// PresetCautious asks for gaps to be left visible instead of filled in.
func PresetCautious() PromptPreset {
	return PromptPreset{Rules: []string{
		"When the input does not support a value, leave it empty or mention the gap in notes rather than guessing.",
	}}
}
