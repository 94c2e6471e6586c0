package notebook

import (
	"context"
	"fmt"
	"path"
	"strings"

	"smpybuild/internal/core"
)

// Format is a conversion target.
type Format string

const (
	FormatScript Format = "python"
	FormatHTML   Format = "html"
)

// Ext is the file extension produced for the format.
func (f Format) Ext() string {
	if f == FormatHTML {
		return ".html"
	}
	return ".py"
}

// Converter turns one notebook into one derived file next to it, named by
// DerivedName(src, to.Ext()).
type Converter interface {
	Name() string
	Convert(ctx context.Context, sc *core.StepContext, src string, to Format) error
}

// NewConverter returns the backend called name.
func NewConverter(name, nbconvert string) (Converter, error) {
	switch name {
	case "", "nbconvert":
		return Nbconvert{Command: nbconvert}, nil
	case "native":
		return Native{}, nil
	default:
		return nil, fmt.Errorf("unknown converter %q", name)
	}
}

// Nbconvert shells out to jupyter-nbconvert.
type Nbconvert struct {
	// Command defaults to jupyter-nbconvert.
	Command string
}

func (Nbconvert) Name() string { return "nbconvert" }

func (n Nbconvert) command(src string, to Format) string {
	cmd := n.Command
	if cmd == "" {
		cmd = "jupyter-nbconvert"
	}
	return fmt.Sprintf("%s --to %s %s", cmd, to, core.ShellQuote(src))
}

func (n Nbconvert) Convert(ctx context.Context, sc *core.StepContext, src string, to Format) error {
	return sc.Shell(ctx, n.command(src, to))
}

// Native converts in-process.
type Native struct{}

func (Native) Name() string { return "native" }

func (Native) Convert(ctx context.Context, sc *core.StepContext, src string, to Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nb, err := ReadFile(sc.Abs(src))
	if err != nil {
		return err
	}

	var out []byte
	switch to {
	case FormatScript:
		out = ToScript(nb)
	case FormatHTML:
		title := strings.TrimSuffix(path.Base(src), path.Ext(src))
		if out, err = ToHTML(nb, title); err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
	default:
		return fmt.Errorf("unsupported format %q", to)
	}

	dst := DerivedName(src, to.Ext())
	if err := core.WriteFileAtomic(sc.Abs(dst), out, 0o644); err != nil {
		return err
	}
	if sc.Logger != nil {
		sc.Logger.Debug("Converted notebook", "from", src, "to", dst)
	}
	return nil
}

// ConvertAction is the native step behind every X.py / X.html target.
type ConvertAction struct {
	Converter Converter
	Source    string
	To        Format
}

func (a ConvertAction) Describe() string {
	if nb, ok := a.Converter.(Nbconvert); ok {
		return nb.command(a.Source, a.To)
	}
	return fmt.Sprintf("convert --to %s %s", a.To, a.Source)
}

func (a ConvertAction) Do(ctx context.Context, sc *core.StepContext) error {
	if a.Converter == nil {
		return fmt.Errorf("no converter configured")
	}
	return a.Converter.Convert(ctx, sc, a.Source, a.To)
}
