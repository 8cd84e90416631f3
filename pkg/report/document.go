package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
)

const yamlIndent = 2

// ErrInvalidDocument indicates JSON that does not match the report schema.
var ErrInvalidDocument = errors.New("invalid report document")

//go:embed schema.json
var documentSchema []byte

// Document is the structured form of a report, used by the json and yaml
// formats and by the MCP tool.
type Document struct {
	Sort   string                `json:"sort"             yaml:"sort"`
	Filter string                `json:"filter,omitempty" yaml:"filter,omitempty"`
	Total  llvmir.Instantiations `json:"total"            yaml:"total"`
	Rows   []Row                 `json:"rows"             yaml:"rows"`
}

// NewDocument assembles a document from selected rows.
func NewDocument(total llvmir.Instantiations, rows []Row, opts Options) Document {
	doc := Document{
		Sort:  opts.Sort.String(),
		Total: total,
		Rows:  rows,
	}

	if doc.Rows == nil {
		doc.Rows = []Row{}
	}

	if opts.Filter != nil {
		doc.Filter = opts.Filter.String()
	}

	return doc
}

// BuildDocument selects rows from agg and wraps them in a document.
func BuildDocument(agg *llvmir.Aggregate, opts Options) Document {
	total := agg.Total()

	return NewDocument(total, Select(agg, total, opts), opts)
}

func writeJSON(buf *bytes.Buffer, doc Document) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func writeYAML(buf *bytes.Buffer, doc Document) error {
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}

// ValidateJSON checks data against the report document schema.
func ValidateJSON(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(documentSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}
