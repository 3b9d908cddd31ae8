package script

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// pyRepr renders s as a Python string literal the way repr() does: single
// quotes unless s contains a single quote and no double quote.
func pyRepr(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r):
			if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// pyString decodes a single- or double-quoted Python string literal.
func pyString(lit string) (string, bool) {
	lit = strings.TrimSpace(lit)
	if len(lit) < 2 {
		return "", false
	}
	q := lit[0]
	if (q != '\'' && q != '"') || lit[len(lit)-1] != q {
		return "", false
	}
	body := lit[1 : len(lit)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == q {
			return "", false
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", false
		}
		switch e := body[i]; e {
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+1+width > len(body) {
				return "", false
			}
			n, err := strconv.ParseUint(body[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", false
			}
			b.WriteRune(rune(n))
			i += width
		default:
			// unknown escapes are kept verbatim, as Python does
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), true
}

// pyValue decodes a literal: a quoted string is unquoted, anything else
// (numbers, None) is returned as its trimmed source text.
func pyValue(lit string) string {
	if s, ok := pyString(lit); ok {
		return s
	}
	return strings.Trim(strings.TrimSpace(lit), `'"`)
}

// splitArgs splits an argument list on top-level commas, respecting quotes
// and brackets.
func splitArgs(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// callArgs returns the text between the parentheses of the first call to fn
// in line.
func callArgs(line, fn string) (string, bool) {
	i := strings.Index(line, fn+"(")
	if i < 0 {
		return "", false
	}
	start := i + len(fn) + 1
	depth := 1
	var quote byte
	for j := start; j < len(line); j++ {
		c := line[j]
		if quote != 0 {
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return line[start:j], true
			}
		}
	}
	return "", false
}

// arguments is a parsed call: positional values and keyword values, both as
// source text.
type arguments struct {
	positional []string
	keywords   map[string]string
}

func parseArgs(s string) arguments {
	a := arguments{keywords: map[string]string{}}
	for _, part := range splitArgs(s) {
		if k, v, ok := strings.Cut(part, "="); ok && isIdent(strings.TrimSpace(k)) && !strings.HasPrefix(v, "=") {
			a.keywords[strings.TrimSpace(k)] = strings.TrimSpace(v)
			continue
		}
		a.positional = append(a.positional, part)
	}
	return a
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// pyList decodes a bracketed list of string literals.
func pyList(lit string) ([]string, bool) {
	lit = strings.TrimSpace(lit)
	if !strings.HasPrefix(lit, "[") || !strings.HasSuffix(lit, "]") {
		return nil, false
	}
	var out []string
	for _, item := range splitArgs(lit[1 : len(lit)-1]) {
		s, ok := pyString(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// pyFloat renders a float the way Python prints it, always with a decimal
// point.
func pyFloat(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
