package conductor

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// Catalogue returns the tool schemas advertised to the completion engine.
// It is derived from the same action table the Dispatcher executes, so
// every advertised tool is executable and vice versa.
func Catalogue() []anthropic.ToolUnionParam {
	defs := actionTable()
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.name,
				Description: anthropic.String(def.description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: def.properties,
					Required:   def.required,
				},
			},
		})
	}
	return tools
}
