// Package symbols is an illustrative textDocument/documentSymbol
// implementation: it parses a buffer's flat content with the Go grammar
// and returns its top-level function and type declarations. It does no
// semantic analysis -- it exists to give the server shell one request
// handler that parses a document's full buffer content.
package symbols

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Kind mirrors the small subset of LSP's SymbolKind this package reports.
type Kind int

const (
	KindFunction Kind = 12
	KindStruct   Kind = 23
)

// Symbol is one top-level declaration found in a document.
type Symbol struct {
	Name string
	Kind Kind

	// StartLine/EndLine are zero-based, inclusive line numbers of the
	// declaration, as tree-sitter reports them.
	StartLine int
	EndLine   int
}

// Parser holds a tree-sitter parser configured for Go source. It is not
// safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// NewParser returns a Parser ready to parse Go source buffers.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &Parser{parser: p}
}

// DocumentSymbols parses content and returns its top-level function and
// type declarations, in source order.
func (p *Parser) DocumentSymbols(ctx context.Context, content []byte) ([]Symbol, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("symbols: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	symbols := make([]Symbol, 0, int(root.ChildCount()))
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		sym, ok := declarationSymbol(child, content)
		if !ok {
			continue
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

func declarationSymbol(node *sitter.Node, content []byte) (Symbol, bool) {
	switch node.Type() {
	case "function_declaration", "method_declaration":
		name := node.ChildByFieldName("name")
		if name == nil {
			return Symbol{}, false
		}
		return symbolFromNode(node, name, KindFunction, content), true

	case "type_declaration":
		// A type_declaration wraps one or more type_spec children; report
		// the first one, which covers the common "type Foo struct{...}"
		// case this illustrative handler targets.
		for i := 0; i < int(node.ChildCount()); i++ {
			spec := node.Child(i)
			if spec.Type() != "type_spec" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				continue
			}
			return symbolFromNode(node, name, KindStruct, content), true
		}
	}
	return Symbol{}, false
}

func symbolFromNode(declaration, name *sitter.Node, kind Kind, content []byte) Symbol {
	return Symbol{
		Name:      name.Content(content),
		Kind:      kind,
		StartLine: int(declaration.StartPoint().Row),
		EndLine:   int(declaration.EndPoint().Row),
	}
}
