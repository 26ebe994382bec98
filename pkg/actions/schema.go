package actions

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema builds a JSON schema for a list of fields. Text fields accept any
// string so variable expressions survive; select fields without variables
// are restricted to their options.
func Schema(fields []Field) map[string]any {
	properties := map[string]any{}
	required := []string{}

	for _, f := range fields {
		prop := map[string]any{"title": f.Title}

		if f.Description != "" {
			prop["description"] = f.Description
		}

		switch f.Type {
		case FieldNumber:
			prop["type"] = []string{"number", "string"}
		case FieldCheckbox:
			prop["type"] = []string{"boolean", "string"}
		case FieldSelect:
			prop["type"] = "string"
			if len(f.Options) > 0 && !f.ProcessVariables {
				prop["enum"] = f.Options
			}
		default:
			prop["type"] = "string"
		}

		if f.Required {
			required = append(required, f.Name)

			if prop["type"] == "string" {
				prop["minLength"] = 1
			}
		}

		properties[f.Name] = prop
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidateOptions checks raw workflow options against the action's fields.
func ValidateOptions(action Action, options map[string]any) error {
	return ValidateFields(action.Name(), action.Fields(), options)
}

// ValidateFields checks options against a field schema.
func ValidateFields(owner string, fields []Field, options map[string]any) error {
	if options == nil {
		options = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(Schema(fields)),
		gojsonschema.NewGoLoader(options),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s options: %w", owner, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			messages = append(messages, e.String())
		}

		return fmt.Errorf("%w for %s: %s", ErrInvalidOptions, owner, strings.Join(messages, "; "))
	}

	return nil
}
