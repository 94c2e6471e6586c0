package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTarget     = "target"
	KeyStep       = "step"
	KeyState      = "state"
	KeyReason     = "reason"
	KeyPath       = "path"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyRunID      = "run_id"
	KeyTrigger    = "trigger"
	KeyError      = "error"
)

func Target(name string) slog.Attr    { return slog.String(KeyTarget, name) }
func Step(desc string) slog.Attr      { return slog.String(KeyStep, desc) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
