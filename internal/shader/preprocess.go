package shader

import (
	"fmt"
	"slices"
	"strings"
)

// maxIncludeDepth bounds nested #include directives.
const maxIncludeDepth = 8

// IncludeFunc resolves the source of an #include directive.
type IncludeFunc func(name string) (string, error)

// Preprocess expands the C-style directives supported in shader assets:
// #define, #undef, #ifdef, #ifndef, #if, #elif, #else, #endif, #include and
// #error. Conditions of #if and #elif are defined(NAME) terms, optionally
// negated with ! and combined with && or ||.
//
// defines hold #define or #undef lines applied before src. Macros
// are object-like and substituted on whole identifiers. Each include is
// expanded at most once.
func Preprocess(src string, defines []string, include IncludeFunc) (string, error) {
	p := &preprocessor{
		macros:   make(map[string]string),
		included: make(map[string]bool),
		include:  include,
	}
	for i, line := range defines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest := splitDirective(strings.TrimPrefix(line, "#"))
		if !strings.HasPrefix(line, "#") || (name != "define" && name != "undef") {
			return "", fmt.Errorf("shader: define %d: expected #define, got %q", i, line)
		}
		if err := p.directive(name, rest, 0); err != nil {
			return "", fmt.Errorf("shader: define %d: %w", i, err)
		}
	}
	if err := p.run("<source>", src, 0); err != nil {
		return "", err
	}
	return p.out.String(), nil
}

type condFrame struct {
	parentActive bool
	active       bool
	taken        bool
	seenElse     bool
}

type preprocessor struct {
	macros   map[string]string
	included map[string]bool
	include  IncludeFunc
	out      strings.Builder
}

func (p *preprocessor) run(file, src string, depth int) error {
	var stack []condFrame
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	for i, line := range strings.Split(src, "\n") {
		lineNo := i + 1
		errorf := func(format string, args ...any) error {
			return fmt.Errorf("shader: %s:%d: %s", file, lineNo, fmt.Sprintf(format, args...))
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				p.out.WriteString(p.expand(line))
				p.out.WriteByte('\n')
			}
			continue
		}

		directive, rest := splitDirective(trimmed[1:])
		switch directive {
		case "ifdef", "ifndef":
			name := strings.TrimSpace(rest)
			if !isIdent(name) {
				return errorf("#%s needs a macro name", directive)
			}
			_, ok := p.macros[name]
			cond := ok == (directive == "ifdef")
			stack = append(stack, condFrame{parentActive: active(), active: active() && cond, taken: cond})
		case "if":
			cond, err := p.eval(rest)
			if err != nil {
				return errorf("%v", err)
			}
			stack = append(stack, condFrame{parentActive: active(), active: active() && cond, taken: cond})
		case "elif":
			if len(stack) == 0 {
				return errorf("#elif without #if")
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return errorf("#elif after #else")
			}
			cond, err := p.eval(rest)
			if err != nil {
				return errorf("%v", err)
			}
			top.active = top.parentActive && !top.taken && cond
			top.taken = top.taken || cond
		case "else":
			if len(stack) == 0 {
				return errorf("#else without #if")
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return errorf("duplicate #else")
			}
			top.seenElse = true
			top.active = top.parentActive && !top.taken
			top.taken = true
		case "endif":
			if len(stack) == 0 {
				return errorf("#endif without #if")
			}
			stack = stack[:len(stack)-1]
		default:
			if !active() {
				continue
			}
			if err := p.directive(directive, rest, depth); err != nil {
				return errorf("%v", err)
			}
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("shader: %s: unterminated conditional", file)
	}
	return nil
}

// directive handles the directives that only apply in active regions.
func (p *preprocessor) directive(name, rest string, depth int) error {
	switch name {
	case "define":
		macro, value := splitDirective(rest)
		if !isIdent(macro) {
			return fmt.Errorf("invalid macro name %q", macro)
		}
		p.macros[macro] = value
	case "undef":
		delete(p.macros, strings.TrimSpace(rest))
	case "include":
		file := strings.Trim(strings.TrimSpace(rest), `"`)
		if file == "" {
			return fmt.Errorf("#include needs a file name")
		}
		if p.included[file] {
			return nil
		}
		if depth >= maxIncludeDepth {
			return fmt.Errorf("#include %q nested too deeply", file)
		}
		if p.include == nil {
			return fmt.Errorf("#include %q: no include resolver", file)
		}
		src, err := p.include(file)
		if err != nil {
			return fmt.Errorf("#include %q: %w", file, err)
		}
		p.included[file] = true
		return p.run(file, src, depth+1)
	case "error":
		return fmt.Errorf("#error %s", strings.Trim(rest, `" `))
	default:
		return fmt.Errorf("unknown directive #%s", name)
	}
	return nil
}

// eval evaluates an #if condition. && binds tighter than ||.
func (p *preprocessor) eval(expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("empty condition")
	}
	for _, alt := range strings.Split(expr, "||") {
		all := true
		for _, term := range strings.Split(alt, "&&") {
			v, err := p.term(strings.TrimSpace(term))
			if err != nil {
				return false, err
			}
			all = all && v
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func (p *preprocessor) term(t string) (bool, error) {
	negate := false
	for strings.HasPrefix(t, "!") {
		negate = !negate
		t = strings.TrimSpace(t[1:])
	}
	switch {
	case t == "1":
		return !negate, nil
	case t == "0":
		return negate, nil
	case strings.HasPrefix(t, "defined"):
		name := strings.TrimSpace(strings.TrimPrefix(t, "defined"))
		if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
			name = strings.TrimSpace(name[1 : len(name)-1])
		}
		if !isIdent(name) {
			return false, fmt.Errorf("invalid condition %q", t)
		}
		_, ok := p.macros[name]
		return ok != negate, nil
	default:
		return false, fmt.Errorf("unsupported condition %q", t)
	}
}

// expand substitutes macros on identifier boundaries. Expansion is
// repeated for nested macros; a macro is never expanded inside itself.
func (p *preprocessor) expand(line string) string {
	if len(p.macros) == 0 {
		return line
	}
	return p.expandWith(line, nil)
}

func (p *preprocessor) expandWith(line string, active []string) string {
	var b strings.Builder
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case isIdentStart(c):
			j := i + 1
			for j < len(line) && isIdentChar(line[j]) {
				j++
			}
			word := line[i:j]
			if value, ok := p.macros[word]; ok && !slices.Contains(active, word) {
				b.WriteString(p.expandWith(value, append(active, word)))
			} else {
				b.WriteString(word)
			}
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(line) && (isIdentChar(line[j]) || line[j] == '.') {
				j++
			}
			b.WriteString(line[i:j])
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func splitDirective(s string) (name, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
