package toolmgr

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/memento/pkg/errs"
)

// generateSchema reflects a Go struct type into the JSON Schema shape the
// tool contract expects: a flat {type: object, properties, required}
// rather than a full schema document with $schema/$id/definitions.
//
// Supported struct tags:
//
//	json:"name"                         - parameter name
//	json:",omitempty"                   - optional parameter
//	jsonschema:"required"                - explicitly mark as required
//	jsonschema:"description=..."         - parameter description
//	jsonschema:"enum=a|b|c"              - allowed values
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal generated schema").WithComponent("toolmgr")
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "unmarshal generated schema").WithComponent("toolmgr")
	}

	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")

	if schemaMap["type"] != "object" {
		return schemaMap, nil
	}

	result := map[string]any{
		"type":       "object",
		"properties": schemaMap["properties"],
	}
	if required, ok := schemaMap["required"]; ok {
		result["required"] = required
	}
	if additional, ok := schemaMap["additionalProperties"]; ok {
		result["additionalProperties"] = additional
	}
	return result, nil
}
