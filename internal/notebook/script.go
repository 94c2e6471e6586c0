package notebook

import (
	"bytes"
	"strconv"
	"strings"
)

// ToScript renders nb the way `jupyter-nbconvert --to python` does:
// a coding header, markdown cells as "# " comments, code cells behind an
// "# In[n]:" prompt and IPython magics rewritten to get_ipython() calls.
// Raw cells are dropped.
func ToScript(nb *Notebook) []byte {
	var b bytes.Buffer
	b.WriteString("\n# coding: utf-8\n")

	for _, c := range nb.Cells {
		switch c.CellType {
		case CellMarkdown:
			b.WriteString("\n")
			for _, line := range splitLines(string(c.Source)) {
				b.WriteString("# ")
				b.WriteString(line)
				b.WriteString("\n")
			}
		case CellCode:
			b.WriteString("\n# In[")
			if c.ExecutionCount != nil {
				b.WriteString(strconv.Itoa(*c.ExecutionCount))
			} else {
				b.WriteString(" ")
			}
			b.WriteString("]:\n\n\n")
			b.WriteString(transformMagics(string(c.Source)))
			b.WriteString("\n\n")
		}
	}
	return b.Bytes()
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// transformMagics rewrites IPython syntax into plain Python.
func transformMagics(src string) string {
	lines := splitLines(src)
	if len(lines) == 0 {
		return ""
	}

	if first := lines[0]; strings.HasPrefix(first, "%%") {
		name, args := splitMagic(strings.TrimPrefix(first, "%%"))
		body := strings.Join(lines[1:], "\n")
		return "get_ipython().run_cell_magic(" + pyRepr(name) + ", " + pyRepr(args) + ", " + pyRepr(body) + ")"
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(trimmed)]
		switch {
		case strings.HasPrefix(trimmed, "!"):
			out[i] = indent + "get_ipython().system(" + pyRepr(strings.TrimPrefix(trimmed, "!")) + ")"
		case strings.HasPrefix(trimmed, "%") && !strings.HasPrefix(trimmed, "%%"):
			name, args := splitMagic(strings.TrimPrefix(trimmed, "%"))
			out[i] = indent + "get_ipython().run_line_magic(" + pyRepr(name) + ", " + pyRepr(args) + ")"
		default:
			out[i] = line
		}
	}
	return strings.Join(out, "\n")
}

func splitMagic(s string) (name, args string) {
	name, args, _ = strings.Cut(s, " ")
	return name, strings.TrimSpace(args)
}

// pyRepr quotes s like Python's repr() for str: single quotes unless s
// contains a single quote and no double quote.
func pyRepr(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
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
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
