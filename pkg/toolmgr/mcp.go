package toolmgr

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/memento/pkg/errs"
)

// MCPSourceConfig configures a connection to an external tool server reached
// over the Model Context Protocol.
type MCPSourceConfig struct {
	// Name identifies the source; tools register with this as their Source
	// and, under ConflictPrefix, as their name prefix.
	Name string
	// Command and Args launch the MCP server as a subprocess communicating
	// over stdio.
	Command string
	Args    []string
	Env     map[string]string
	// Filter limits which tools are exposed, if non-empty.
	Filter []string
}

// MCPSource discovers and executes tools exposed by a single MCP server
// reached over stdio.
type MCPSource struct {
	cfg       MCPSourceConfig
	client    *client.Client
	filterSet map[string]bool
}

// NewMCPSource connects to the configured MCP server and lists its tools.
// The returned Tools should be handed to Registry.RegisterSource.
func NewMCPSource(ctx context.Context, cfg MCPSourceConfig) (*MCPSource, []Tool, error) {
	if cfg.Command == "" {
		return nil, nil, errs.New(errs.Validation, "mcp source requires a command").WithComponent("toolmgr")
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Backend, err, "start mcp server").WithComponent("toolmgr")
	}

	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return nil, nil, errs.Wrap(errs.Backend, err, "start mcp client").WithComponent("toolmgr")
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "memento", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, nil, errs.Wrap(errs.Backend, err, "initialize mcp session").WithComponent("toolmgr")
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, nil, errs.Wrap(errs.Backend, err, "list mcp tools").WithComponent("toolmgr")
	}

	src := &MCPSource{cfg: cfg, client: mcpClient, filterSet: filterSet}

	var tools []Tool
	for _, t := range listResp.Tools {
		if filterSet != nil && !filterSet[t.Name] {
			continue
		}
		tools = append(tools, &mcpTool{
			source: src,
			name:   t.Name,
			desc:   t.Description,
			schema: convertMCPSchema(t.InputSchema),
		})
	}

	return src, tools, nil
}

// Close shuts down the underlying MCP subprocess.
func (s *MCPSource) Close() error {
	return s.client.Close()
}

type mcpTool struct {
	source *MCPSource
	name   string
	desc   string
	schema map[string]any
}

func (t *mcpTool) Name() string           { return t.name }
func (t *mcpTool) Description() string    { return t.desc }
func (t *mcpTool) Schema() map[string]any { return t.schema }

func (t *mcpTool) Execute(ctx context.Context, args map[string]any, sessionID string) (Result, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := t.source.client.CallTool(ctx, req)
	if err != nil {
		return Result{}, errs.Wrap(errs.Backend, err, "call mcp tool").WithComponent("toolmgr")
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	content := ""
	if len(texts) > 0 {
		content = texts[0]
		for _, extra := range texts[1:] {
			content += "\n" + extra
		}
	}

	if resp.IsError {
		return Result{Success: false, Error: content}, nil
	}
	return Result{Success: true, Content: content}, nil
}

func convertMCPSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

var _ Tool = (*mcpTool)(nil)
