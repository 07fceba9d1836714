package engine

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/samcharles93/tracebench/internal/model"
)

// GraphVersion is bumped whenever the exported document changes shape.
const GraphVersion = 1

//go:embed graph.schema.json
var graphSchema []byte

// Graph is the exported snapshot of one Decode. Shapes are innermost first.
type Graph struct {
	Version int      `json:"version"`
	Arch    string   `json:"arch"`
	Vocab   int      `json:"n_vocab"`
	Hidden  int      `json:"n_embd"`
	NPast   int      `json:"n_past"`
	NTokens int      `json:"n_tokens"`
	Threads int      `json:"n_threads"`
	Leafs   []Tensor `json:"leafs"`
	Nodes   []Node   `json:"nodes"`
}

type Tensor struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

type Node struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Op     string   `json:"op"`
	Shape  []int    `json:"shape"`
	Src    []string `json:"src"`
	TimeUS int64    `json:"time_us"`
}

// Elapsed sums the node timings.
func (g *Graph) Elapsed() time.Duration {
	var us int64
	for _, n := range g.Nodes {
		us += n.TimeUS
	}
	return time.Duration(us) * time.Microsecond
}

func newGraph(m *model.Model, nPast, nTokens, threads int) *Graph {
	g := &Graph{
		Version: GraphVersion,
		Arch:    model.Arch,
		Vocab:   m.VocabSize(),
		Hidden:  m.Hidden,
		NPast:   nPast,
		NTokens: nTokens,
		Threads: threads,
		Leafs: []Tensor{
			{Name: "inp_tokens", Shape: []int{nTokens}},
			{Name: model.TensorTokenEmbd, Shape: []int{m.Hidden, m.VocabSize()}},
			{Name: model.TensorOutputNorm, Shape: []int{m.Hidden}},
		},
	}
	if !m.Tied {
		g.Leafs = append(g.Leafs, Tensor{Name: model.TensorOutput, Shape: []int{m.Hidden, m.VocabSize()}})
	}
	return g
}

func (g *Graph) node(name, op string, shape []int, src []string, d time.Duration) {
	g.Nodes = append(g.Nodes, Node{
		Index:  len(g.Nodes),
		Name:   name,
		Op:     op,
		Shape:  shape,
		Src:    src,
		TimeUS: d.Microseconds(),
	})
}

var compiledGraphSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(graphSchema))
})

// ValidateGraph checks an encoded graph document against the embedded schema.
func ValidateGraph(data []byte) error {
	schema, err := compiledGraphSchema()
	if err != nil {
		return fmt.Errorf("compile graph schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("graph schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		issues = append(issues, issue.String())
	}
	return fmt.Errorf("graph failed schema validation: %s", strings.Join(issues, "; "))
}

// ReadGraph loads and validates an exported graph.
func ReadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateGraph(data); err != nil {
		return nil, err
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return &g, nil
}

func exportGraph(path string, g *Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := ValidateGraph(data); err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}
