package parser

import (
	"chunkmap/internal/core/errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// chunkPrefix and chunkSuffix turn an extracted module function into an
// expression statement so it parses as a standalone program.
const (
	chunkPrefix = "("
	chunkSuffix = ")"
)

type Option func(*Parser)

// WithPartialTrees accepts trees that contain syntax errors instead of
// reporting them as parse failures.
func WithPartialTrees(allow bool) Option {
	return func(p *Parser) {
		p.allowPartial = allow
	}
}

type Parser struct {
	loader       *GrammarLoader
	pools        map[string]*ParserPool
	allowPartial bool
}

func NewParser(loader *GrammarLoader, opts ...Option) *Parser {
	if loader == nil {
		loader = NewGrammarLoader()
	}
	p := &Parser{
		loader: loader,
		pools:  make(map[string]*ParserPool),
	}
	for _, id := range loader.Order() {
		lang, _ := loader.Language(id)
		p.pools[id] = NewParserPool(id, lang)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PoolStats reports usage of every grammar's parser pool, in fallback order.
func (p *Parser) PoolStats() []PoolStats {
	out := make([]PoolStats, 0, len(p.pools))
	for _, id := range p.loader.Order() {
		out = append(out, p.pools[id].Stats())
	}
	return out
}

// Parse parses a whole bundle file.
func (p *Parser) Parse(path string, content []byte) (*Source, error) {
	return p.parse(path, content, 0)
}

// ParseChunk parses the source text of one extracted module function.
func (p *Parser) ParseChunk(id, code string) (*Source, error) {
	wrapped := make([]byte, 0, len(code)+len(chunkPrefix)+len(chunkSuffix))
	wrapped = append(wrapped, chunkPrefix...)
	wrapped = append(wrapped, code...)
	wrapped = append(wrapped, chunkSuffix...)
	src, err := p.parse("chunk:"+id, wrapped, uint(len(chunkPrefix)))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxChunk, id)
	}
	return src, nil
}

func (p *Parser) parse(path string, content []byte, prefix uint) (*Source, error) {
	var lastErr error
	for _, id := range p.loader.Order() {
		tree := p.pools[id].Parse(content)
		if tree == nil {
			lastErr = errors.New(errors.CodeParse, fmt.Sprintf("%s parser returned no tree", id))
			continue
		}
		root := tree.RootNode()
		if root.HasError() && !p.allowPartial {
			tree.Close()
			lastErr = errors.New(errors.CodeParse, fmt.Sprintf("syntax errors under %s grammar", id))
			continue
		}
		return &Source{
			Path:     path,
			Language: id,
			Code:     content,
			Root:     root,
			tree:     tree,
			prefix:   prefix,
		}, nil
	}
	if lastErr == nil {
		lastErr = errors.New(errors.CodeParse, "no grammar available")
	}
	return nil, errors.AddContext(lastErr, errors.CtxPath, path)
}

// Source is one parsed unit: a bundle file or a wrapped chunk.
type Source struct {
	Path     string
	Language string
	Code     []byte
	Root     *sitter.Node

	tree   *sitter.Tree
	prefix uint
	scopes *Scopes
}

func (s *Source) Close() {
	if s == nil || s.tree == nil {
		return
	}
	s.tree.Close()
	s.tree = nil
}

func (s *Source) Text(node *sitter.Node) string {
	if s == nil || node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if end > uint(len(s.Code)) || start > end {
		return ""
	}
	return string(s.Code[start:end])
}

// Offset is the node's start offset in the unwrapped text.
func (s *Source) Offset(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	start := node.StartByte()
	if start < s.prefix {
		return 0
	}
	return int(start - s.prefix)
}

// Line is the 1-based line of the node within the parsed text.
func (s *Source) Line(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.StartPosition().Row) + 1
}

// Scopes returns the lazily built binding index for this source.
func (s *Source) Scopes() *Scopes {
	if s.scopes == nil {
		s.scopes = newScopes(s)
	}
	return s.scopes
}
