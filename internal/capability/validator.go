package capability

import (
	"fmt"

	"github.com/stewardhq/steward/internal/plan"
)

// Violation is one concrete reason a plan cannot run.
type Violation struct {
	CallIndex  int
	ToolID     string
	Capability string
	Reason     string
}

func (v Violation) String() string {
	return fmt.Sprintf("call %d (%s.%s): %s", v.CallIndex+1, v.ToolID, v.Capability, v.Reason)
}

// ValidationResult collects every violation found, not just the first.
type ValidationResult struct {
	Violations   []Violation
	MissingTools []string
}

func (r ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// Validator checks plans against the registry. It never invokes a tool.
type Validator struct {
	registry *Registry
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate is pure: it inspects the plan against loaded manifests and reports
// every unknown tool, unknown capability, and missing required parameter.
func (v *Validator) Validate(p *plan.ActionPlan) ValidationResult {
	var result ValidationResult
	missing := make(map[string]struct{})

	for i, call := range p.ToolCalls {
		tool, ok := v.registry.Get(call.ToolID)
		if !ok {
			result.Violations = append(result.Violations, Violation{
				CallIndex: i, ToolID: call.ToolID, Capability: call.Capability,
				Reason: fmt.Sprintf("unknown tool %q", call.ToolID),
			})
			if _, seen := missing[call.ToolID]; !seen {
				missing[call.ToolID] = struct{}{}
				result.MissingTools = append(result.MissingTools, call.ToolID)
			}
			continue
		}

		spec, ok := tool.Manifest().Capability(call.Capability)
		if !ok {
			result.Violations = append(result.Violations, Violation{
				CallIndex: i, ToolID: call.ToolID, Capability: call.Capability,
				Reason: fmt.Sprintf("tool %q has no capability %q", call.ToolID, call.Capability),
			})
			continue
		}

		if err := ValidateInput(spec.Parameters, call.Parameters); err != nil {
			result.Violations = append(result.Violations, Violation{
				CallIndex: i, ToolID: call.ToolID, Capability: call.Capability,
				Reason: err.Error(),
			})
		}
	}
	return result
}

// ValidateInput checks parameters against a capability's schema. This is a
// lightweight subset of JSON Schema: required fields and primitive types.
func ValidateInput(schema map[string]any, input map[string]any) error {
	if schema == nil {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}
	return validateObject(schema, input)
}

func validateObject(schema map[string]any, input map[string]any) error {
	for field := range requiredFields(schema) {
		if _, exists := input[field]; !exists {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	for key, value := range input {
		propSchema, defined := properties[key]
		if !defined {
			continue
		}
		propSchemaMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}
		if err := validateType(key, propSchemaMap, value); err != nil {
			return err
		}
	}
	return nil
}

func validateType(fieldName string, schema map[string]any, value any) error {
	expectedType, ok := schema["type"].(string)
	if !ok {
		return nil
	}

	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' expected string, got %T", fieldName, value)
		}
	case "number", "integer":
		switch value.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("field '%s' expected number, got %T", fieldName, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' expected boolean, got %T", fieldName, value)
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("field '%s' expected array, got %T", fieldName, value)
		}
		if itemsSchema, ok := schema["items"].(map[string]any); ok {
			for i, item := range arr {
				if err := validateType(fmt.Sprintf("%s[%d]", fieldName, i), itemsSchema, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("field '%s' expected object, got %T", fieldName, value)
		}
		return validateObject(schema, obj)
	}
	return nil
}
