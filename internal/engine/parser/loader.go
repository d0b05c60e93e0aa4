package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

const (
	LangJavaScript = "javascript"
	LangTSX        = "tsx"
)

// GrammarLoader owns the tree-sitter grammars used to read bundles. Bundles
// are tried as plain JavaScript (JSX included) first and as TSX second.
type GrammarLoader struct {
	languages map[string]*sitter.Language
	order     []string
}

func NewGrammarLoader() *GrammarLoader {
	return &GrammarLoader{
		languages: map[string]*sitter.Language{
			LangJavaScript: sitter.NewLanguage(tree_sitter_javascript.Language()),
			LangTSX:        sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		},
		order: []string{LangJavaScript, LangTSX},
	}
}

func (gl *GrammarLoader) Language(id string) (*sitter.Language, bool) {
	lang, ok := gl.languages[id]
	return lang, ok
}

// Order returns grammar ids in the order a parse should attempt them.
func (gl *GrammarLoader) Order() []string {
	out := make([]string, len(gl.order))
	copy(out, gl.order)
	return out
}
