package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/llvmlines/internal/observability"
	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
	"github.com/Sumatoshi-tech/llvmlines/pkg/report"
)

// ToolNameCount is the name of the line counting tool.
const ToolNameCount = "llvm_lines_count"

// Sentinel errors for tool input validation.
var (
	// ErrNoInput indicates neither ir nor paths was given.
	ErrNoInput = errors.New("one of ir or paths is required")
	// ErrBothInputs indicates ir and paths were both given.
	ErrBothInputs = errors.New("ir and paths are mutually exclusive")
	// ErrPathNotAbsolute indicates a relative path in paths.
	ErrPathNotAbsolute = errors.New("paths must be absolute")
	// ErrInvalidFilter indicates a filter that is not a valid regular expression.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidLimit indicates a negative limit.
	ErrInvalidLimit = errors.New("limit must be non-negative")
)

// CountInput is the input schema for the llvm_lines_count tool.
type CountInput struct {
	IR     string   `json:"ir,omitempty"     jsonschema:"textual LLVM IR to analyze"`
	Paths  []string `json:"paths,omitempty"  jsonschema:"absolute paths of .ll or .ll.lz4 files to analyze"`
	Sort   string   `json:"sort,omitempty"   jsonschema:"row order: lines (default), copies or name"`
	Filter string   `json:"filter,omitempty" jsonschema:"regular expression; only matching functions are listed"`
	Limit  int      `json:"limit,omitempty"  jsonschema:"maximum number of rows (0 for all)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// counter serves llvm_lines_count.
type counter struct {
	read llvmir.ReadOptions
	runs *observability.RunMetrics
}

func (c *counter) handle(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CountInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	start := time.Now()

	opts, err := reportOptions(input)
	if err != nil {
		return errorResult(err)
	}

	agg := llvmir.NewAggregate()

	stats, err := c.count(agg, input)
	if err != nil {
		c.record(ctx, observability.StatusError, start, agg, stats)

		return errorResult(err)
	}

	c.record(ctx, observability.StatusOK, start, agg, stats)

	return documentResult(report.BuildDocument(agg, opts))
}

func (c *counter) count(agg *llvmir.Aggregate, input CountInput) (llvmir.FileStats, error) {
	switch {
	case input.IR == "" && len(input.Paths) == 0:
		return llvmir.FileStats{}, ErrNoInput
	case input.IR != "" && len(input.Paths) > 0:
		return llvmir.FileStats{}, ErrBothInputs
	case input.IR != "":
		if c.read.MaxSize > 0 && uint64(len(input.IR)) > c.read.MaxSize {
			return llvmir.FileStats{}, fmt.Errorf("%w (%d bytes)", llvmir.ErrInputTooLarge, c.read.MaxSize)
		}

		stats := llvmir.Count(agg, []byte(input.IR))

		return llvmir.FileStats{Stats: stats, InputBytes: len(input.IR)}, nil
	}

	for _, path := range input.Paths {
		if !filepath.IsAbs(path) {
			return llvmir.FileStats{}, fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
		}
	}

	return llvmir.CountFiles(agg, input.Paths, c.read)
}

func (c *counter) record(ctx context.Context, status string, start time.Time, agg *llvmir.Aggregate, stats llvmir.FileStats) {
	if c.runs == nil {
		return
	}

	c.runs.RecordRun(ctx, observability.RunStats{
		Source:     "mcp",
		Status:     status,
		Duration:   time.Since(start),
		Functions:  stats.Functions,
		Distinct:   agg.Len(),
		Lines:      agg.Total().TotalLines,
		InputBytes: stats.InputBytes,
		InputLines: stats.InputLines,
		Anonymous:  stats.Anonymous,
		Files:      stats.Files,
	})
}

func reportOptions(input CountInput) (report.Options, error) {
	opts := report.Options{Format: report.FormatJSON, Limit: input.Limit}

	if input.Limit < 0 {
		return opts, ErrInvalidLimit
	}

	if input.Sort != "" {
		order, err := report.ParseSortOrder(input.Sort)
		if err != nil {
			return opts, err
		}

		opts.Sort = order
	}

	if input.Filter != "" {
		re, err := regexp.Compile(input.Filter)
		if err != nil {
			return opts, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}

		opts.Filter = re
	}

	return opts, nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// documentResult encodes doc as JSON content. A document that fails the
// report schema is returned as an error result rather than sent to the client.
func documentResult(doc report.Document) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	err = report.ValidateJSON(data)
	if err != nil {
		return errorResult(err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: doc}, nil
}
