// Package template implements the prompt template language: `{{ var }}`
// substitutions plus `{% if %}` and `{% for %}` control blocks. Rendering
// is deterministic and side-effect-free, so rendered prompts are safe to
// cache and compare.
package template

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"legalis/internal/domain"
)

var (
	varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)
	tagPattern = regexp.MustCompile(`\{%\s*(if|for|endif|endfor)(?:\s+([^%]*?))?\s*%\}`)
)

// MissingPolicy decides what happens when a referenced variable is absent.
type MissingPolicy int

const (
	// MissingEmpty substitutes missing variables with an empty string.
	MissingEmpty MissingPolicy = iota
	// MissingError fails the render on the first missing variable.
	MissingError
)

// Engine renders prompt templates against a variable map.
type Engine struct {
	policy MissingPolicy
}

// NewEngine creates an Engine with the given missing-variable policy.
func NewEngine(policy MissingPolicy) *Engine {
	return &Engine{policy: policy}
}

// Render substitutes variables and evaluates control blocks in body.
// Each literal template segment is substituted exactly once, so values
// that themselves contain {{ }} markers come out verbatim.
func (e *Engine) Render(body string, vars map[string]interface{}) (string, error) {
	return e.render(body, vars)
}

// Validate reports which variables referenced by body are missing from
// vars and which entries of vars are never referenced. Loop-bound names
// are not counted as missing inside their blocks.
func (e *Engine) Validate(body string, vars map[string]interface{}) (missing, unused []string) {
	referenced := map[string]bool{}
	loopBound := map[string]bool{}

	for _, m := range tagPattern.FindAllStringSubmatch(body, -1) {
		switch m[1] {
		case "if":
			referenced[rootName(strings.TrimSpace(m[2]))] = true
		case "for":
			item, coll, ok := parseForExpr(m[2])
			if ok {
				referenced[rootName(coll)] = true
				loopBound[item] = true
			}
		}
	}
	for _, m := range varPattern.FindAllStringSubmatch(body, -1) {
		referenced[rootName(m[1])] = true
	}

	for name := range referenced {
		if loopBound[name] {
			continue
		}
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range vars {
		if !referenced[name] {
			unused = append(unused, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(unused)
	return missing, unused
}

// render resolves if/for blocks outside-in and substitutes variables in
// the literal text between them. Block bodies recurse with their scope,
// so nesting and loop variables work; substituted output is never
// re-scanned.
func (e *Engine) render(body string, vars map[string]interface{}) (string, error) {
	var sb strings.Builder
	rest := body

	for {
		loc := tagPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			tail, err := e.substitute(rest, vars)
			if err != nil {
				return "", err
			}
			sb.WriteString(tail)
			return sb.String(), nil
		}

		tag := rest[loc[2]:loc[3]]
		expr := ""
		if loc[4] >= 0 {
			expr = strings.TrimSpace(rest[loc[4]:loc[5]])
		}
		head, err := e.substitute(rest[:loc[0]], vars)
		if err != nil {
			return "", err
		}
		sb.WriteString(head)

		switch tag {
		case "if", "for":
			inner, after, err := matchBlock(rest[loc[1]:], tag)
			if err != nil {
				return "", err
			}
			rendered, err := e.renderBlock(tag, expr, inner, vars)
			if err != nil {
				return "", err
			}
			sb.WriteString(rendered)
			rest = after
		default:
			// endif/endfor without an opener; leave it verbatim.
			sb.WriteString(rest[loc[0]:loc[1]])
			rest = rest[loc[1]:]
		}
	}
}

func (e *Engine) renderBlock(tag, expr, inner string, vars map[string]interface{}) (string, error) {
	if tag == "if" {
		if !truthy(resolve(vars, expr)) {
			return "", nil
		}
		return e.render(inner, vars)
	}

	item, collName, ok := parseForExpr(expr)
	if !ok {
		return "", fmt.Errorf("malformed for expression %q", expr)
	}
	coll, found := lookupPath(vars, collName)
	if !found {
		if e.policy == MissingError {
			return "", fmt.Errorf("%w: %s", domain.ErrMissingVariable, collName)
		}
		return "", nil
	}

	items, err := asSlice(coll)
	if err != nil {
		return "", fmt.Errorf("for %s in %s: %w", item, collName, err)
	}

	var sb strings.Builder
	for _, elem := range items {
		scoped := make(map[string]interface{}, len(vars)+1)
		for k, v := range vars {
			scoped[k] = v
		}
		scoped[item] = elem
		rendered, err := e.render(inner, scoped)
		if err != nil {
			return "", err
		}
		sb.WriteString(rendered)
	}
	return sb.String(), nil
}

// substitute replaces every {{ name }} marker. Dotted paths traverse
// nested maps.
func (e *Engine) substitute(body string, vars map[string]interface{}) (string, error) {
	var firstErr error
	out := varPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		val, ok := lookupPath(vars, name)
		if !ok {
			if e.policy == MissingError && firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", domain.ErrMissingVariable, name)
			}
			return ""
		}
		return stringify(val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// matchBlock finds the end tag matching an already-consumed open tag,
// counting nested blocks of the same kind. It returns the block interior
// and the remainder after the end tag.
func matchBlock(rest, tag string) (inner, after string, err error) {
	endTag := "end" + tag
	depth := 1
	offset := 0

	for {
		loc := tagPattern.FindStringSubmatchIndex(rest[offset:])
		if loc == nil {
			return "", "", fmt.Errorf("unclosed {%% %s %%} block", tag)
		}
		name := rest[offset+loc[2] : offset+loc[3]]
		switch name {
		case tag:
			depth++
		case endTag:
			depth--
			if depth == 0 {
				return rest[:offset+loc[0]], rest[offset+loc[1]:], nil
			}
		}
		offset += loc[1]
	}
}

func parseForExpr(expr string) (item, coll string, ok bool) {
	parts := strings.Fields(expr)
	if len(parts) != 3 || parts[1] != "in" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

func rootName(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

func resolve(vars map[string]interface{}, name string) interface{} {
	val, _ := lookupPath(vars, name)
	return val
}

// lookupPath resolves a possibly dotted name against vars, descending
// through nested maps.
func lookupPath(vars map[string]interface{}, name string) (interface{}, bool) {
	parts := strings.Split(name, ".")
	var current interface{} = vars
	for _, part := range parts {
		m, ok := asStringMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[string]string:
		out := make(map[string]interface{}, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asSlice(v interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("value of kind %s is not iterable", rv.Kind())
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// truthy mirrors the template language's notion of emptiness: nil, false,
// zero numbers, empty strings, and empty collections are falsy.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.TrimSpace(val) != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
