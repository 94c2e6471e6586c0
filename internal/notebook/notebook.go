package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Notebook is the subset of the nbformat 4 document smpybuild renders.
type Notebook struct {
	Cells         []Cell   `json:"cells"`
	Metadata      Metadata `json:"metadata"`
	NBFormat      int      `json:"nbformat"`
	NBFormatMinor int      `json:"nbformat_minor"`
}

// Metadata is the notebook-level metadata.
type Metadata struct {
	KernelSpec   *KernelSpec   `json:"kernelspec,omitempty"`
	LanguageInfo *LanguageInfo `json:"language_info,omitempty"`
}

type KernelSpec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language,omitempty"`
}

type LanguageInfo struct {
	Name          string `json:"name"`
	FileExtension string `json:"file_extension,omitempty"`
}

// Cell types.
const (
	CellCode     = "code"
	CellMarkdown = "markdown"
	CellRaw      = "raw"
)

// Cell is one notebook cell.
type Cell struct {
	CellType string    `json:"cell_type"`
	Source   Multiline `json:"source"`

	// Code cells only.
	ExecutionCount *int     `json:"execution_count,omitempty"`
	Outputs        []Output `json:"outputs,omitempty"`
}

// Output types.
const (
	OutputStream        = "stream"
	OutputExecuteResult = "execute_result"
	OutputDisplayData   = "display_data"
	OutputError         = "error"
)

// Output is one code cell output.
type Output struct {
	OutputType string `json:"output_type"`

	// stream
	Name string    `json:"name,omitempty"`
	Text Multiline `json:"text,omitempty"`

	// execute_result, display_data
	Data MimeBundle `json:"data,omitempty"`

	// error
	EName     string   `json:"ename,omitempty"`
	EValue    string   `json:"evalue,omitempty"`
	Traceback []string `json:"traceback,omitempty"`
}

// Multiline is nbformat's "multiline string": either a single string or a
// list of lines that are concatenated as-is.
type Multiline string

func (m *Multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = Multiline(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("multiline string: expected string or list of strings")
	}
	*m = Multiline(strings.Join(lines, ""))
	return nil
}

func (m Multiline) String() string { return string(m) }

// MimeBundle holds the textual representations of an output keyed by mime
// type. JSON-valued entries such as application/json or widget views are
// dropped; nothing renders them.
type MimeBundle map[string]Multiline

func (b *MimeBundle) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("mime bundle: %w", err)
	}
	out := make(MimeBundle, len(raw))
	for mime, v := range raw {
		var m Multiline
		if err := m.UnmarshalJSON(v); err != nil {
			continue
		}
		out[mime] = m
	}
	*b = out
	return nil
}

// Language returns the kernel language, "python" when unknown.
func (nb *Notebook) Language() string {
	if li := nb.Metadata.LanguageInfo; li != nil && li.Name != "" {
		return li.Name
	}
	if ks := nb.Metadata.KernelSpec; ks != nil && ks.Language != "" {
		return ks.Language
	}
	return "python"
}

// Parse decodes an .ipynb document. Only nbformat 4 is supported.
func Parse(data []byte) (*Notebook, error) {
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("invalid notebook: %w", err)
	}
	if nb.NBFormat != 4 {
		return nil, fmt.Errorf("unsupported nbformat %d (expected 4)", nb.NBFormat)
	}
	for i, c := range nb.Cells {
		switch c.CellType {
		case CellCode, CellMarkdown, CellRaw:
		default:
			return nil, fmt.Errorf("cell %d: unknown cell_type %q", i, c.CellType)
		}
	}
	return &nb, nil
}

// ReadFile parses the notebook at path.
func ReadFile(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	nb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nb, nil
}
