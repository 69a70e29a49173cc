package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ErrIncomplete is reported by consumers refusing to write back a
// stylesheet parsed with content skipped (see Stylesheet.Incomplete).
var ErrIncomplete = errors.New("stylesheet was not parsed completely")

// Parser parses CSS stylesheets into an ordered, mutable tree.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet.
// The optional source parameter identifies what's being parsed, it is kept
// in Stylesheet.Source.
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Items:    make([]Item, 0),
		Warnings: make([]string, 0),
	}
	if len(source) > 0 && source[0] != "" {
		sheet.Source = source[0]
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	b := &builder{
		log:      p.log,
		parser:   css.NewParser(parse.NewInput(bytes.NewReader(data)), false),
		sheet:    sheet,
		comments: scanComments(data),
	}
	sheet.Items = b.parseItems()
	if sheet.Incomplete {
		p.log.Debug("CSS parsed with content skipped", zap.String("source", sheet.Source), zap.Strings("warnings", sheet.Warnings))
	}
	return sheet
}

// comment is a comment token and the input offset right after it.
type comment struct {
	text string
	end  int
}

// scanComments collects all comments of the input. Grammar parser drops
// comments inside blocks, they are put back by position.
func scanComments(data []byte) []comment {
	var (
		comments []comment
		pos      int
	)
	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	for {
		tt, text := l.Next()
		if tt == css.ErrorToken {
			return comments
		}
		pos += len(text)
		if tt == css.CommentToken {
			comments = append(comments, comment{text: string(text), end: pos})
		}
	}
}

// builder holds state of a single Parse call.
type builder struct {
	log      *zap.Logger
	parser   *css.Parser
	sheet    *Stylesheet
	comments []comment
}

// pending returns comments located before the current parser position
// which were not yet placed into the tree.
func (b *builder) pending() []string {
	off := b.parser.Offset()
	n := 0
	for n < len(b.comments) && b.comments[n].end <= off {
		n++
	}
	if n == 0 {
		return nil
	}
	texts := make([]string, n)
	for i := range n {
		texts[i] = b.comments[i].text
	}
	b.comments = b.comments[n:]
	return texts
}

// rest returns all comments not yet placed.
func (b *builder) rest() []string {
	texts := make([]string, 0, len(b.comments))
	for _, c := range b.comments {
		texts = append(texts, c.text)
	}
	b.comments = nil
	return texts
}

func (b *builder) warn(msg string) {
	b.sheet.Warnings = append(b.sheet.Warnings, msg)
	b.sheet.Incomplete = true
}

func commentItems(items []Item, texts []string) []Item {
	for _, text := range texts {
		items = append(items, Item{Comment: &text})
	}
	return items
}

func commentDeclarations(ds Declarations, texts []string) Declarations {
	for _, text := range texts {
		ds = append(ds, &Declaration{Comment: &text})
	}
	return ds
}

// parseItems collects top-level rules, at-rules and comments until the end
// of input.
func (b *builder) parseItems() []Item {
	items := make([]Item, 0)
	var selectors []string

	for {
		gt, _, data := b.parser.Next()
		items = commentItems(items, b.pending())

		switch gt {
		case css.ErrorGrammar:
			if err := b.parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				b.warn("parse error: " + err.Error())
				b.log.Debug("CSS parse error", zap.Error(err))
				continue
			}
			return commentItems(items, b.rest())

		case css.QualifiedRuleGrammar:
			// one member of a comma separated selector list
			selectors = append(selectors, selectorText(data, b.parser.Values()))

		case css.BeginRulesetGrammar:
			selectors = append(selectors, selectorText(data, b.parser.Values()))
			rule := &Rule{Selector: strings.Join(selectors, ", ")}
			rule.Declarations = b.parseDeclarations()
			items = append(items, Item{Rule: rule})
			selectors = nil

		case css.AtRuleGrammar:
			items = append(items, Item{AtRule: &AtRule{
				Name:   atRuleName(data),
				Params: paramsText(b.parser.Values()),
			}})

		case css.BeginAtRuleGrammar:
			items = append(items, Item{AtRule: b.parseAtRule(data)})

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			// declarations are only meaningful inside blocks
			b.warn("declaration outside of block: " + string(data))
		}
	}
}

// parseAtRule parses the block of at-rule which prelude was just reported.
func (b *builder) parseAtRule(name []byte) *AtRule {
	at := &AtRule{
		Name:   atRuleName(name),
		Params: paramsText(b.parser.Values()),
		Block:  true,
	}
	b.parseAtRuleBlock(at)
	b.log.Debug("Parsed at-rule", zap.String("name", at.Name), zap.String("params", at.Params),
		zap.Int("items", len(at.Items)), zap.Int("declarations", len(at.Declarations)))
	return at
}

// parseAtRuleBlock fills the at-rule body. Depending on the at-rule the
// tokenizer reports nested rules, declarations or raw tokens.
func (b *builder) parseAtRuleBlock(at *AtRule) {
	var (
		raw       strings.Builder
		selectors []string
	)
	defer func() {
		at.Raw = strings.TrimSpace(raw.String())
	}()

	for {
		gt, _, data := b.parser.Next()

		// comments go where the surrounding content goes
		if texts := b.pending(); len(texts) > 0 {
			switch {
			case gt == css.DeclarationGrammar || gt == css.CustomPropertyGrammar,
				gt == css.EndAtRuleGrammar && len(at.Items) == 0 && len(at.Declarations) > 0:
				at.Declarations = commentDeclarations(at.Declarations, texts)
			default:
				at.Items = commentItems(at.Items, texts)
			}
		}

		switch gt {
		case css.ErrorGrammar:
			if err := b.parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				b.warn("parse error in @" + at.Name + ": " + err.Error())
				continue
			}
			return

		case css.EndAtRuleGrammar:
			return

		case css.EndRulesetGrammar:
			// tokenizer lost track of nesting
			b.warn("unexpected end of rule in @" + at.Name)
			return

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if decl, ok := declaration(data, b.parser.Values()); ok {
				at.Declarations = append(at.Declarations, decl)
			}

		case css.QualifiedRuleGrammar:
			selectors = append(selectors, selectorText(data, b.parser.Values()))

		case css.BeginRulesetGrammar:
			selectors = append(selectors, selectorText(data, b.parser.Values()))
			rule := &Rule{Selector: strings.Join(selectors, ", ")}
			rule.Declarations = b.parseDeclarations()
			at.Items = append(at.Items, Item{Rule: rule})
			selectors = nil

		case css.AtRuleGrammar:
			at.Items = append(at.Items, Item{AtRule: &AtRule{
				Name:   atRuleName(data),
				Params: paramsText(b.parser.Values()),
			}})

		case css.BeginAtRuleGrammar:
			at.Items = append(at.Items, Item{AtRule: b.parseAtRule(data)})

		case css.TokenGrammar:
			// unknown at-rule content is preserved verbatim
			raw.Write(data)
		}
	}
}

// parseDeclarations parses declaration block until EndRulesetGrammar.
// Comments and nested rules keep their place among declarations.
func (b *builder) parseDeclarations() Declarations {
	decls := make(Declarations, 0)

	for {
		gt, _, data := b.parser.Next()
		decls = commentDeclarations(decls, b.pending())

		switch gt {
		case css.ErrorGrammar:
			if err := b.parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				b.warn("parse error in declaration block: " + err.Error())
				b.log.Debug("CSS parse error", zap.Error(err))
				continue
			}
			return decls

		case css.EndRulesetGrammar:
			return decls

		case css.EndAtRuleGrammar:
			b.warn("unexpected end of at-rule in declaration block")
			return decls

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if decl, ok := declaration(data, b.parser.Values()); ok {
				decls = append(decls, decl)
			}

		case css.BeginRulesetGrammar:
			// nested rule, selector is relative to the enclosing one
			rule := &Rule{Selector: selectorText(data, b.parser.Values())}
			rule.Declarations = b.parseDeclarations()
			decls = append(decls, &Declaration{Nested: &Item{Rule: rule}})

		case css.AtRuleGrammar:
			decls = append(decls, &Declaration{Nested: &Item{AtRule: &AtRule{
				Name:   atRuleName(data),
				Params: paramsText(b.parser.Values()),
			}}})

		case css.BeginAtRuleGrammar:
			decls = append(decls, &Declaration{Nested: &Item{AtRule: b.parseAtRule(data)}})
		}
	}
}

func declaration(name []byte, values []css.Token) (*Declaration, bool) {
	prop := strings.TrimSpace(string(name))
	if prop == "" {
		return nil, false
	}
	return &Declaration{Property: prop, Value: valueText(values)}, true
}

// valueText rebuilds value text from tokens, collapsing whitespace runs to a
// single space and dropping comments. Tokenizer swallows whitespace after
// commas and before "!", it is restored here.
func valueText(tokens []css.Token) string {
	return joinTokens(tokens, false)
}

// paramsText is valueText for at-rule preludes, "(min-width:500px)" becomes
// "(min-width: 500px)".
func paramsText(tokens []css.Token) string {
	return joinTokens(tokens, true)
}

func joinTokens(tokens []css.Token, colon bool) string {
	var sb strings.Builder
	space := false
	for _, t := range tokens {
		switch t.TokenType {
		case css.WhitespaceToken:
			space = true
			continue
		case css.CommentToken:
			continue
		case css.DelimToken:
			if len(t.Data) == 1 && t.Data[0] == '!' {
				space = true
			}
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = t.TokenType == css.CommaToken || colon && t.TokenType == css.ColonToken
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

// selectorText builds a selector string from grammar data and tokens.
// Selector list members are separated with ", " and top level combinators
// are surrounded by single spaces.
func selectorText(data []byte, values []css.Token) string {
	var sb strings.Builder
	if d := strings.TrimSpace(string(data)); d != "" && d != "{" && d != "," {
		sb.WriteString(d)
	}

	space, level := false, 0
	for _, t := range values {
		switch t.TokenType {
		case css.WhitespaceToken:
			space = true
			continue
		case css.CommentToken:
			continue
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			level++
		case css.RightParenthesisToken, css.RightBracketToken:
			level--
		}
		if level == 0 && (t.TokenType == css.CommaToken || isCombinator(t)) {
			if t.TokenType != css.CommaToken {
				sb.WriteByte(' ')
			}
			sb.Write(t.Data)
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

func isCombinator(t css.Token) bool {
	return t.TokenType == css.DelimToken && len(t.Data) == 1 &&
		(t.Data[0] == '>' || t.Data[0] == '+' || t.Data[0] == '~')
}

func atRuleName(data []byte) string {
	return strings.ToLower(strings.TrimPrefix(string(data), "@"))
}

// importURL extracts the URL from @import prelude.
// Handles: @import "url"; @import url("url"); @import url(url);
func importURL(params string) string {
	s := strings.TrimSpace(params)
	if rest, ok := strings.CutPrefix(s, "url("); ok {
		if end := strings.IndexByte(rest, ')'); end >= 0 {
			return unquote(strings.TrimSpace(rest[:end]))
		}
		return unquote(strings.TrimSpace(rest))
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		return unquote(fields[0])
	}
	return ""
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
