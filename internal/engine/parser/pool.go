package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool recycles tree-sitter parsers for one grammar. Bundles hold
// thousands of chunks and every analysis phase re-parses them, so parsers
// are leased per parse instead of allocated.
//
// Trees produced by a pooled parser stay valid after the parser is
// returned. Safe for concurrent use.
type ParserPool struct {
	grammar string
	lang    *sitter.Language
	pool    sync.Pool

	inUse  atomic.Int64
	parses atomic.Int64
}

// PoolStats is a point-in-time view of a pool.
type PoolStats struct {
	Grammar string
	InUse   int64
	Parses  int64
}

// NewParserPool creates a pool for the grammar registered under id. lang
// must stay valid for the lifetime of the pool.
func NewParserPool(id string, lang *sitter.Language) *ParserPool {
	p := &ParserPool{grammar: id, lang: lang}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			_ = sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

// Get leases a parser configured for the pool's grammar.
func (p *ParserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)
	p.inUse.Add(1)
	return sp
}

// Put returns a leased parser. Callers must not use sp afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.inUse.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// Parse parses content with a leased parser. It returns nil when
// tree-sitter gives up on the input.
func (p *ParserPool) Parse(content []byte) *sitter.Tree {
	sp := p.Get()
	defer p.Put(sp)
	p.parses.Add(1)
	return sp.Parse(content, nil)
}

func (p *ParserPool) Stats() PoolStats {
	return PoolStats{
		Grammar: p.grammar,
		InUse:   p.inUse.Load(),
		Parses:  p.parses.Load(),
	}
}
