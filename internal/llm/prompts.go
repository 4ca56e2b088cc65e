package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You are an investment education assistant for retail savers in India.\n" +
	"You choose ONE strategy from a closed list for a single pipeline stage.\n" +
	"You never name individual securities and never promise returns.\n"

var stageInstructions = map[string]string{
	"equity": "Stage: equity specialist.\n" +
		"Pick the equity strategy that fits the profile and the selected paths.\n" +
		"Prefer index funds; aggressive strategies only when the paths allow them.\n",
	"fund": "Stage: fund specialist.\n" +
		"Pick the mutual fund / ETF strategy that fits the profile.\n" +
		"You may suggest a monthly SIP amount no larger than the monthly surplus.\n",
}

const outputRules = "Output rules:\n" +
	"- Output STRICT JSON only: a single object, no comments, no trailing commas.\n" +
	"- Required fields: \"strategy\" (one of allowed_strategies), \"confidence\" (number between 0 and 1).\n" +
	"- Optional fields: \"focus\" (array of strings), \"educational_points\" (array of strings), " +
	"\"allocation\" (string), \"approach\" (string), \"monthly_contribution\" (number).\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// BuildPrompt renders the prompt for stage with input serialized as JSON.
func BuildPrompt(stage string, input any) (string, error) {
	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: marshal input: %w", err)
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n")
	if instr, ok := stageInstructions[stage]; ok {
		b.WriteString(instr)
	} else {
		b.WriteString("Stage: " + stage + ".\n")
	}
	b.WriteString("\nInput:\n")
	b.Write(payload)
	b.WriteString("\n\n")
	b.WriteString(outputRules)
	return b.String(), nil
}
