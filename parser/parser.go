// Package parser builds the M Language abstract syntax tree from a token
// stream using recursive descent.
//
// The parser fails fast: the first token mismatch aborts the whole parse with
// a ParseError carrying the expected construct and the offending token. There
// is no error recovery. Nested swarm bodies are parsed by recursive
// application of the swarm rule with a bounded depth so adversarial input
// cannot grow the stack without limit.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mlang-ai/mlang/ast"
	"github.com/mlang-ai/mlang/lexer"
)

// MaxNestingDepth bounds recursive swarm bodies inside agent definitions.
const MaxNestingDepth = 16

// ParseError reports the first token mismatch encountered.
type ParseError struct {
	Expected string
	Found    lexer.Token
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("expected %s, found %s at %s", e.Expected, e.Found, e.Found.Pos)
}

// Parse consumes a token stream (as produced by lexer.Tokenize) and returns
// the swarm definition it encodes.
func Parse(tokens []lexer.Token) (*ast.Swarm, error) {
	p := &parser{tokens: tokens}
	sw, err := p.parseSwarm(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(lexer.KindEOF, "end of input"); err != nil {
		return nil, err
	}
	return sw, nil
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func (p *parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *parser) advance() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) checkKeyword(name string) bool {
	tok := p.cur()
	return tok.Kind == lexer.KindKeyword && tok.Lexeme == name
}

func (p *parser) checkPunct(lexeme string) bool {
	tok := p.cur()
	return tok.Kind == lexer.KindPunct && tok.Lexeme == lexeme
}

func (p *parser) expectKind(kind lexer.Kind, what string) (lexer.Token, error) {
	if p.cur().Kind != kind {
		return lexer.Token{}, &ParseError{Expected: what, Found: p.cur()}
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(name string) (lexer.Token, error) {
	if !p.checkKeyword(name) {
		return lexer.Token{}, &ParseError{Expected: fmt.Sprintf("keyword %q", name), Found: p.cur()}
	}
	return p.advance(), nil
}

func (p *parser) expectPunct(lexeme string) (lexer.Token, error) {
	if !p.checkPunct(lexeme) {
		return lexer.Token{}, &ParseError{Expected: fmt.Sprintf("%q", lexeme), Found: p.cur()}
	}
	return p.advance(), nil
}

// parseSwarm implements: swarm := "swarm" IDENT "{" agent* workflow* "}".
// A swarm must declare at least one agent and at least one workflow.
func (p *parser) parseSwarm(depth int) (*ast.Swarm, error) {
	start, err := p.expectKeyword("swarm")
	if err != nil {
		return nil, err
	}
	if depth > MaxNestingDepth {
		return nil, &ParseError{
			Expected: fmt.Sprintf("swarm nesting no deeper than %d levels", MaxNestingDepth),
			Found:    start,
		}
	}

	name, err := p.expectKind(lexer.KindIdent, "swarm name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	sw := &ast.Swarm{Name: name.Lexeme, Pos: start.Pos}
	for !p.checkPunct("}") {
		switch {
		case p.checkKeyword("agent"):
			agent, err := p.parseAgent(depth)
			if err != nil {
				return nil, err
			}
			sw.Agents = append(sw.Agents, agent)
		case p.checkKeyword("workflow"):
			wf, err := p.parseWorkflow()
			if err != nil {
				return nil, err
			}
			sw.Workflows = append(sw.Workflows, wf)
		default:
			return nil, &ParseError{Expected: "agent or workflow definition", Found: p.cur()}
		}
	}
	closing, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}

	if len(sw.Agents) == 0 {
		return nil, &ParseError{Expected: "at least one agent definition", Found: closing}
	}
	if len(sw.Workflows) == 0 {
		return nil, &ParseError{Expected: "at least one workflow definition", Found: closing}
	}
	return sw, nil
}

// parseAgent implements: agent := "agent" IDENT "{" field* "}" where a field
// is one of role/capabilities/inputs/outputs/config, or a nested swarm body.
func (p *parser) parseAgent(depth int) (*ast.Agent, error) {
	start, err := p.expectKeyword("agent")
	if err != nil {
		return nil, err
	}
	name, err := p.expectKind(lexer.KindIdent, "agent name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	agent := &ast.Agent{Name: name.Lexeme, Pos: start.Pos}
	for !p.checkPunct("}") {
		switch {
		case p.checkKeyword("role"):
			p.advance()
			value, err := p.fieldValue()
			if err != nil {
				return nil, err
			}
			agent.Role = value
		case p.checkKeyword("capabilities"):
			p.advance()
			value, err := p.fieldValue()
			if err != nil {
				return nil, err
			}
			agent.Capabilities = splitList(value)
		case p.checkKeyword("inputs"):
			p.advance()
			value, err := p.fieldValue()
			if err != nil {
				return nil, err
			}
			agent.Inputs = splitList(value)
		case p.checkKeyword("outputs"):
			p.advance()
			value, err := p.fieldValue()
			if err != nil {
				return nil, err
			}
			agent.Outputs = splitList(value)
		case p.checkKeyword("config"):
			p.advance()
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			cfg, err := p.parseConfig()
			if err != nil {
				return nil, err
			}
			agent.Config = cfg
		case p.checkKeyword("swarm"):
			body, err := p.parseSwarm(depth + 1)
			if err != nil {
				return nil, err
			}
			agent.Body = body
		default:
			return nil, &ParseError{Expected: "agent field or nested swarm", Found: p.cur()}
		}
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return agent, nil
}

// fieldValue consumes ":" STRING and returns the literal.
func (p *parser) fieldValue() (string, error) {
	if _, err := p.expectPunct(":"); err != nil {
		return "", err
	}
	tok, err := p.expectKind(lexer.KindString, "string literal")
	if err != nil {
		return "", err
	}
	return tok.Lexeme, nil
}

// parseConfig implements the config block. Recognized keys get typed values;
// everything else is preserved verbatim in the Extra mapping.
func (p *parser) parseConfig() (ast.Config, error) {
	cfg := ast.Config{Extra: map[string]string{}}
	if _, err := p.expectPunct("{"); err != nil {
		return cfg, err
	}
	for !p.checkPunct("}") {
		key := p.cur()
		if key.Kind != lexer.KindIdent && key.Kind != lexer.KindKeyword {
			return cfg, &ParseError{Expected: "configuration key", Found: key}
		}
		p.advance()
		if _, err := p.expectPunct(":"); err != nil {
			return cfg, err
		}

		switch key.Lexeme {
		case "model":
			tok, err := p.expectKind(lexer.KindString, "model string")
			if err != nil {
				return cfg, err
			}
			cfg.Model = tok.Lexeme
		case "temperature":
			tok, err := p.expectKind(lexer.KindNumber, "temperature number")
			if err != nil {
				return cfg, err
			}
			value, err := strconv.ParseFloat(tok.Lexeme, 64)
			if err != nil {
				return cfg, &ParseError{Expected: "temperature number", Found: tok}
			}
			cfg.Temperature = value
			cfg.HasTemperature = true
		case "timeout":
			value, err := p.intValue("timeout seconds")
			if err != nil {
				return cfg, err
			}
			cfg.Timeout = value
			cfg.HasTimeout = true
		case "retry":
			value, err := p.intValue("retry count")
			if err != nil {
				return cfg, err
			}
			cfg.Retry = value
			cfg.HasRetry = true
		case "tools":
			tok, err := p.expectKind(lexer.KindString, "tools list")
			if err != nil {
				return cfg, err
			}
			cfg.Tools = splitList(tok.Lexeme)
		default:
			// Unknown keys are forward-compatible: keep the raw lexeme.
			tok := p.cur()
			switch tok.Kind {
			case lexer.KindString, lexer.KindNumber, lexer.KindIdent:
				cfg.Extra[key.Lexeme] = tok.Lexeme
				p.advance()
			default:
				return cfg, &ParseError{Expected: "configuration value", Found: tok}
			}
		}
	}
	_, err := p.expectPunct("}")
	return cfg, err
}

// parseWorkflow implements:
//
//	workflow := "workflow" kind "{" stepCall* kindExtra? "}"
//
// where kindExtra supplies conditional branch expressions, the loop bound, or
// the optional loop continue variable.
func (p *parser) parseWorkflow() (*ast.Workflow, error) {
	start, err := p.expectKeyword("workflow")
	if err != nil {
		return nil, err
	}

	kindTok := p.cur()
	var kind ast.WorkflowKind
	switch {
	case p.checkKeyword("sequential"):
		kind = ast.Sequential
	case p.checkKeyword("parallel"):
		kind = ast.Parallel
	case p.checkKeyword("conditional"):
		kind = ast.Conditional
	case p.checkKeyword("loop"):
		kind = ast.Loop
	default:
		return nil, &ParseError{Expected: "workflow kind (sequential, parallel, conditional or loop)", Found: kindTok}
	}
	p.advance()

	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	wf := &ast.Workflow{Kind: kind, Pos: start.Pos}
	for !p.checkPunct("}") {
		switch {
		case p.cur().Kind == lexer.KindIdent && p.peek().Kind == lexer.KindPunct && p.peek().Lexeme == "(":
			step, err := p.parseStep()
			if err != nil {
				return nil, err
			}
			wf.Steps = append(wf.Steps, step)
		case p.checkKeyword("conditional"):
			if kind != ast.Conditional {
				return nil, &ParseError{Expected: "branch conditions only inside a conditional workflow", Found: p.cur()}
			}
			p.advance()
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			conditions, err := p.parseConditions()
			if err != nil {
				return nil, err
			}
			wf.Conditions = conditions
		case p.checkKeyword("loop"):
			if kind != ast.Loop {
				return nil, &ParseError{Expected: "a loop bound only inside a loop workflow", Found: p.cur()}
			}
			p.advance()
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			bound, err := p.intValue("loop bound")
			if err != nil {
				return nil, err
			}
			wf.MaxIterations = bound
		case p.cur().Kind == lexer.KindIdent && p.cur().Lexeme == "continue":
			if kind != ast.Loop {
				return nil, &ParseError{Expected: "a continue variable only inside a loop workflow", Found: p.cur()}
			}
			p.advance()
			value, err := p.fieldValue()
			if err != nil {
				return nil, err
			}
			wf.ContinueVar = strings.TrimSpace(value)
		default:
			return nil, &ParseError{Expected: "step call or workflow extra", Found: p.cur()}
		}
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return wf, nil
}

// parseConditions implements: "[" STRING ("," STRING)* "]".
func (p *parser) parseConditions() ([]string, error) {
	if _, err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var conditions []string
	for {
		tok, err := p.expectKind(lexer.KindString, "condition expression")
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, tok.Lexeme)
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return conditions, nil
}

// parseStep implements: stepCall := IDENT "(" callArg ("," callArg)* ")".
func (p *parser) parseStep() (*ast.Step, error) {
	name, err := p.expectKind(lexer.KindIdent, "agent name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}

	step := &ast.Step{Agent: name.Lexeme, Pos: name.Pos}
	for {
		key := p.cur()
		if key.Kind != lexer.KindIdent {
			return nil, &ParseError{Expected: "call argument (input, output, transform, filter or error)", Found: key}
		}
		p.advance()
		value, err := p.fieldValue()
		if err != nil {
			return nil, err
		}

		switch key.Lexeme {
		case "input":
			step.Inputs = splitList(value)
		case "output":
			step.Outputs = splitList(value)
		case "transform":
			step.Transform = strings.TrimSpace(value)
		case "filter":
			step.Filter = strings.TrimSpace(value)
		case "error":
			step.OnError = ast.ErrorPolicy(strings.TrimSpace(value))
		default:
			return nil, &ParseError{Expected: "call argument (input, output, transform, filter or error)", Found: key}
		}

		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return step, nil
}

// intValue consumes a NUMBER token and rejects float literals.
func (p *parser) intValue(what string) (int, error) {
	tok, err := p.expectKind(lexer.KindNumber, what)
	if err != nil {
		return 0, err
	}
	value, convErr := strconv.Atoi(tok.Lexeme)
	if convErr != nil {
		return 0, &ParseError{Expected: "integer " + what, Found: tok}
	}
	return value, nil
}

// splitList splits a comma-separated string literal into trimmed, non-empty
// entries. Capabilities, inputs, outputs and tools are all encoded this way.
func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
