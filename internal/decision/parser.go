package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// adviceSchema constrains the shape of an advisory payload before any field
// is trusted. Action synonyms are resolved after this gate, so the schema
// only pins types and ranges.
const adviceSchema = `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100},
    "entry_price": {"type": "number", "minimum": 0},
    "stop_loss": {"type": "number", "minimum": 0},
    "take_profit": {"type": "number", "minimum": 0},
    "size_pct": {"type": "number", "minimum": 0, "maximum": 100},
    "leverage": {"type": "number", "minimum": 0},
    "reasoning": {"type": "string"}
  }
}`

var compiledAdviceSchema = mustCompileSchema(adviceSchema)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("advice.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("advice.json")
}

// Parse normalizes one raw advisory payload into a Decision. Models wrap
// JSON in code fences or prose often enough that extraction comes first.
func Parse(raw, symbol, source string, at time.Time) (Decision, error) {
	payload, ok := extractJSONObject(raw)
	if !ok {
		return Decision{}, fmt.Errorf("no JSON object in advisory output")
	}
	if !gjson.Valid(payload) {
		return Decision{}, fmt.Errorf("invalid JSON in advisory output")
	}
	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return Decision{}, err
	}
	if err := compiledAdviceSchema.Validate(doc); err != nil {
		return Decision{}, fmt.Errorf("advisory payload rejected by schema: %w", err)
	}

	parsed := gjson.Parse(payload)
	d := Decision{
		ID:         uuid.NewString(),
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Action:     NormalizeAction(parsed.Get("action").String()),
		Confidence: int(parsed.Get("confidence").Float()),
		EntryPrice: parsed.Get("entry_price").Float(),
		StopLoss:   parsed.Get("stop_loss").Float(),
		TakeProfit: parsed.Get("take_profit").Float(),
		SizePct:    parsed.Get("size_pct").Float(),
		Leverage:   parsed.Get("leverage").Float(),
		Reasoning:  strings.TrimSpace(parsed.Get("reasoning").String()),
		Source:     source,
		DecidedAt:  at,
	}
	return d, nil
}

const codeFence = "```"

// extractJSONObject pulls the first balanced {...} out of raw, skipping an
// optional code fence and its language tag.
func extractJSONObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if start := strings.Index(raw, codeFence); start != -1 {
		rest := raw[start+len(codeFence):]
		if end := strings.Index(rest, codeFence); end != -1 {
			raw = rest[:end]
		}
	}
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
