package generator

import (
	"encoding/json"
	"strings"

	"github.com/stewardhq/steward/internal/plan"
)

// ExtractPlan pulls the first complete JSON object out of free-form model
// text and decodes it as an ActionPlan. Prose before the object and any
// trailing text (including further objects) are ignored: the first
// complete object wins.
func ExtractPlan(raw string) (*plan.ActionPlan, error) {
	var p plan.ActionPlan
	if err := ExtractObject(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ExtractObject decodes the first complete JSON object in free-form
// model text into v, tolerating surrounding prose and markdown fences.
// Isolation and decoding are separate steps: only a syntactically
// broken brace (a prose fragment) moves the scan forward, while a type
// mismatch inside the first complete object is terminal, so a
// schema-invalid object cannot be salvaged from its nested braces.
func ExtractObject(raw string, v any) error {
	normalized := stripFences(raw)

	obj, ok := firstObject(normalized)
	if !ok {
		return &GenerationError{Reason: "no JSON object in model output", Raw: raw}
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return &GenerationError{Reason: "model output does not match the expected schema", Raw: raw, Err: err}
	}
	return nil
}

// firstObject isolates the first syntactically complete JSON object in
// s. An incremental decode into RawMessage finds the exact end of the
// object without scanning braces inside strings by hand.
func firstObject(s string) (json.RawMessage, bool) {
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			return nil, false
		}
		s = s[start:]

		var obj json.RawMessage
		if json.NewDecoder(strings.NewReader(s)).Decode(&obj) == nil {
			return obj, true
		}
		s = s[1:]
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
