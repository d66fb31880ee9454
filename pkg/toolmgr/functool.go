package toolmgr

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/memento/pkg/errs"
)

// Func creates a Tool from a typed Go function. The argument struct's json
// and jsonschema tags drive both argument decoding and schema generation.
func Func[Args any](name, description string, fn func(ctx context.Context, args Args, sessionID string) (Result, error)) (Tool, error) {
	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, fmt.Sprintf("generate schema for tool %q", name)).WithComponent("toolmgr")
	}

	return &funcTool[Args]{name: name, description: description, schema: schema, fn: fn}, nil
}

type funcTool[Args any] struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args Args, sessionID string) (Result, error)
}

func (t *funcTool[Args]) Name() string          { return t.name }
func (t *funcTool[Args]) Description() string   { return t.description }
func (t *funcTool[Args]) Schema() map[string]any { return t.schema }

func (t *funcTool[Args]) Execute(ctx context.Context, args map[string]any, sessionID string) (Result, error) {
	var typedArgs Args
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return Result{Success: false, Error: "failed to encode arguments"}, nil
		}
		if err := json.Unmarshal(data, &typedArgs); err != nil {
			return Result{Success: false, Error: "failed to parse arguments"}, nil
		}
	}
	return t.fn(ctx, typedArgs, sessionID)
}

var _ Tool = (*funcTool[struct{}])(nil)
