package notebook

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Notebook markdown routinely embeds raw HTML (tables of contents, anchors),
// so the renderer passes it through like Jupyter does.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

type htmlOutput struct {
	Kind  string // stream, error, image, html, text
	Class string
	Text  string
	HTML  template.HTML
	Image template.URL
}

type htmlCell struct {
	Markdown bool
	HTML     template.HTML
	Prompt   string
	Source   string
	Language string
	Outputs  []htmlOutput
}

type htmlPage struct {
	Title string
	Cells []htmlCell
}

// ToHTML renders nb as a standalone page titled title.
func ToHTML(nb *Notebook, title string) ([]byte, error) {
	page := htmlPage{Title: title}
	lang := nb.Language()

	for i, c := range nb.Cells {
		switch c.CellType {
		case CellMarkdown:
			var buf bytes.Buffer
			if err := markdown.Convert([]byte(c.Source), &buf); err != nil {
				return nil, fmt.Errorf("cell %d: rendering markdown: %w", i, err)
			}
			page.Cells = append(page.Cells, htmlCell{Markdown: true, HTML: template.HTML(buf.String())})
		case CellCode:
			cell := htmlCell{Prompt: prompt(c.ExecutionCount), Source: string(c.Source), Language: lang}
			for _, o := range c.Outputs {
				if ho, ok := renderOutput(o); ok {
					cell.Outputs = append(cell.Outputs, ho)
				}
			}
			page.Cells = append(page.Cells, cell)
		}
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, page); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func prompt(n *int) string {
	if n == nil {
		return "In [ ]:"
	}
	return "In [" + strconv.Itoa(*n) + "]:"
}

// renderOutput picks the richest representation available, in the order
// Jupyter prefers them.
func renderOutput(o Output) (htmlOutput, bool) {
	switch o.OutputType {
	case OutputStream:
		return htmlOutput{Kind: "stream", Class: o.Name, Text: string(o.Text)}, true
	case OutputError:
		tb := ansiEscape.ReplaceAllString(strings.Join(o.Traceback, "\n"), "")
		if tb == "" {
			tb = o.EName + ": " + o.EValue
		}
		return htmlOutput{Kind: "error", Text: tb}, true
	case OutputExecuteResult, OutputDisplayData:
		if png, ok := o.Data["image/png"]; ok {
			data := strings.ReplaceAll(string(png), "\n", "")
			return htmlOutput{Kind: "image", Image: template.URL("data:image/png;base64," + data)}, true
		}
		if h, ok := o.Data["text/html"]; ok {
			return htmlOutput{Kind: "html", HTML: template.HTML(h)}, true
		}
		if txt, ok := o.Data["text/plain"]; ok {
			return htmlOutput{Kind: "text", Text: string(txt)}, true
		}
	}
	return htmlOutput{}, false
}

var pageTemplate = template.Must(template.New("notebook").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 60em; margin: 2em auto; font-family: sans-serif; line-height: 1.4; }
.cell { margin: 1em 0; }
.prompt { color: #303f9f; font-family: monospace; font-size: 0.9em; }
pre { background: #f7f7f7; padding: 0.5em; overflow-x: auto; }
.output pre { background: none; }
.output .stderr, .output .error { background: #fdd; }
img { max-width: 100%; }
</style>
</head>
<body>
{{- range .Cells}}
{{- if .Markdown}}
<div class="cell markdown">
{{.HTML}}</div>
{{- else}}
<div class="cell code">
<div class="prompt">{{.Prompt}}</div>
<pre><code class="language-{{.Language}}">{{.Source}}</code></pre>
{{- range .Outputs}}
<div class="output">
{{- if eq .Kind "image"}}<img src="{{.Image}}">
{{- else if eq .Kind "html"}}{{.HTML}}
{{- else if eq .Kind "error"}}<pre class="error">{{.Text}}</pre>
{{- else}}<pre class="{{.Class}}">{{.Text}}</pre>
{{- end}}</div>
{{- end}}
</div>
{{- end}}
{{- end}}
</body>
</html>
`))
