package api

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/climmo/pkg/kit"
	"github.com/hazyhaar/climmo/pkg/report"
)

// NewMCPServer returns an MCP server exposing the Climmo tools.
func NewMCPServer(d Deps, version string) *server.MCPServer {
	srv := server.NewMCPServer("climmo", version, server.WithToolCapabilities(false))
	RegisterMCPTools(srv, d)
	return srv
}

// RegisterMCPTools registers the classification, report and query tools.
func RegisterMCPTools(srv *server.MCPServer, d Deps) {
	kit.RegisterMCPTools(srv, mcpTools(newEndpoints(d))...)
}

func mcpTools(ep *endpoints) []kit.MCPTool {
	return []kit.MCPTool{
		{
			Tool: mcp.NewTool("classify_departement",
				mcp.WithDescription("Map French department codes (\"92\", \"2A\", \"1.0\") to their name, region and climate zone."),
				mcp.WithString("codes", mcp.Required(), mcp.Description("Comma-separated department codes")),
			),
			Endpoint: ep.classifyBatch,
			Decode: func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				return &kit.MCPDecodeResult{Request: &classifyBatchReq{Codes: kit.ListArg(req.GetArguments(), "codes")}}, nil
			},
		},
		{
			Tool: mcp.NewTool("list_departements",
				mcp.WithDescription("List the departments of the reference table with their region and zone."),
			),
			Endpoint: ep.departements,
			Decode: func(mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				return &kit.MCPDecodeResult{}, nil
			},
		},
		{
			Tool: mcp.NewTool("filter_options", withFilter(
				mcp.WithDescription("List the zones, regions, departments, communes, property types and years selectable under the given filter."),
				mcp.WithString("dataset", mcp.Description("transactions (default) or risques")),
			)...),
			Endpoint: ep.filters,
			Decode: func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				args := req.GetArguments()
				flt, err := filterArgs(args)
				if err != nil {
					return nil, err
				}
				return &kit.MCPDecodeResult{Request: &filtersReq{Dataset: kit.StringArg(args, "dataset"), Filter: flt}}, nil
			},
		},
		{
			Tool: mcp.NewTool("report_immobilier", withFilter(
				mcp.WithDescription("Property price report: KPIs, department ranking, yearly evolution with forecast, top and bottom communes."),
			)...),
			Endpoint: ep.immobilier,
			Decode:   decodeFilter,
		},
		{
			Tool: mcp.NewTool("report_climat", withFilter(
				mcp.WithDescription("Climate risk report: exposed population, risk profile per zone, most exposed communes and forecasts."),
				mcp.WithString("risque", mcp.Description("Risk index column, e.g. risque_inondation (default risque_global)")),
				mcp.WithNumber("top", mcp.Description("Number of communes ranked by exposure")),
			)...),
			Endpoint: ep.climat,
			Decode: func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				args := req.GetArguments()
				flt, err := filterArgs(args)
				if err != nil {
					return nil, err
				}
				top, err := kit.NumberArg(args, "top")
				if err != nil {
					return nil, err
				}
				return &kit.MCPDecodeResult{Request: &report.ClimatParams{
					Filter: flt,
					Risk:   kit.StringArg(args, "risque"),
					Top:    int(top),
				}}, nil
			},
		},
		{
			Tool: mcp.NewTool("report_conclusion", withFilter(
				mcp.WithDescription("Position the selection against the national price and risk averages."),
			)...),
			Endpoint: ep.conclusion,
			Decode:   decodeFilter,
		},
		{
			Tool: mcp.NewTool("aggregate", withFilter(
				mcp.WithDescription("Group a dataset by columns and return count, mean, median, min and max of a metric."),
				mcp.WithString("dataset", mcp.Description("transactions (default) or risques")),
				mcp.WithString("by", mcp.Required(), mcp.Description("Comma-separated grouping columns")),
				mcp.WithString("metric", mcp.Description("Numeric column (default prix_m2 or risque_global)")),
				mcp.WithNumber("min_count", mcp.Description("Drop groups with fewer rows")),
			)...),
			Endpoint: ep.aggregate,
			Decode: func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				args := req.GetArguments()
				flt, err := filterArgs(args)
				if err != nil {
					return nil, err
				}
				minCount, err := kit.NumberArg(args, "min_count")
				if err != nil {
					return nil, err
				}
				return &kit.MCPDecodeResult{Request: &report.AggregateQuery{
					Dataset:  kit.StringArg(args, "dataset"),
					By:       kit.ListArg(args, "by"),
					Metric:   kit.StringArg(args, "metric"),
					MinCount: int(minCount),
					Filter:   flt,
				}}, nil
			},
		},
		{
			Tool: mcp.NewTool("compare_periods", withFilter(
				mcp.WithDescription("Compare the mean metric per key between two periods."),
				mcp.WithString("dataset", mcp.Description("transactions (default) or risques")),
				mcp.WithString("by", mcp.Required(), mcp.Description("Comma-separated key columns")),
				mcp.WithString("metric", mcp.Description("Numeric column")),
				mcp.WithString("period", mcp.Description("Period column (default annee)")),
				mcp.WithString("from", mcp.Required(), mcp.Description("Reference period value")),
				mcp.WithString("to", mcp.Required(), mcp.Description("Compared period value")),
			)...),
			Endpoint: ep.compare,
			Decode: func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				args := req.GetArguments()
				flt, err := filterArgs(args)
				if err != nil {
					return nil, err
				}
				return &kit.MCPDecodeResult{Request: &report.CompareQuery{
					Dataset: kit.StringArg(args, "dataset"),
					By:      kit.ListArg(args, "by"),
					Metric:  kit.StringArg(args, "metric"),
					Period:  kit.StringArg(args, "period"),
					From:    kit.StringArg(args, "from"),
					To:      kit.StringArg(args, "to"),
					Filter:  flt,
				}}, nil
			},
		},
		{
			Tool: mcp.NewTool("project_trend", withFilter(
				mcp.WithDescription("Fit a linear trend on the yearly mean of a metric and project it forward."),
				mcp.WithString("dataset", mcp.Description("transactions (default) or risques")),
				mcp.WithString("metric", mcp.Description("Numeric column")),
				mcp.WithString("by", mcp.Description("Optional grouping column, one projection per value")),
				mcp.WithNumber("horizon", mcp.Description("Years to project")),
				mcp.WithNumber("min_count", mcp.Description("Ignore years with fewer rows")),
			)...),
			Endpoint: ep.trend,
			Decode: func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				args := req.GetArguments()
				flt, err := filterArgs(args)
				if err != nil {
					return nil, err
				}
				q := &report.TrendQuery{
					Dataset: kit.StringArg(args, "dataset"),
					Metric:  kit.StringArg(args, "metric"),
					By:      kit.StringArg(args, "by"),
					Filter:  flt,
				}
				horizon, err := kit.NumberArg(args, "horizon")
				if err != nil {
					return nil, err
				}
				minCount, err := kit.NumberArg(args, "min_count")
				if err != nil {
					return nil, err
				}
				q.Horizon, q.MinCount = int(horizon), int(minCount)
				return &kit.MCPDecodeResult{Request: q}, nil
			},
		},
	}
}

func withFilter(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts,
		mcp.WithString("zone", mcp.Description("Climate zone")),
		mcp.WithString("region", mcp.Description("Region name")),
		mcp.WithString("departement", mcp.Description("Department code or name")),
		mcp.WithString("commune", mcp.Description("Commune name or INSEE code")),
		mcp.WithString("type", mcp.Description("Property type (Appartement, Maison)")),
		mcp.WithNumber("annee", mcp.Description("Year")),
		mcp.WithNumber("prix_min", mcp.Description("Lowest price per m²")),
		mcp.WithNumber("prix_max", mcp.Description("Highest price per m²")),
	)
}

func decodeFilter(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	flt, err := filterArgs(req.GetArguments())
	if err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &flt}, nil
}

func filterArgs(args map[string]any) (report.Filter, error) {
	flt := report.Filter{
		Zone:        kit.StringArg(args, "zone"),
		Region:      kit.StringArg(args, "region"),
		Departement: kit.StringArg(args, "departement"),
		Commune:     kit.StringArg(args, "commune"),
		Type:        kit.StringArg(args, "type"),
	}
	annee, err := kit.NumberArg(args, "annee")
	if err != nil {
		return flt, err
	}
	flt.Annee = int(annee)
	if flt.PrixMin, err = kit.NumberArg(args, "prix_min"); err != nil {
		return flt, err
	}
	if flt.PrixMax, err = kit.NumberArg(args, "prix_max"); err != nil {
		return flt, err
	}
	return flt, nil
}
