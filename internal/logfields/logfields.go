package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyFlavor     = "flavor"
	KeyVersion    = "version"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyDurationMS = "duration_ms"
	KeyJobID      = "job_id"
	KeyPath       = "path"
	KeyTool       = "tool"
	KeyURL        = "url"
	KeyStatus     = "status"
	KeyExitCode   = "exit_code"
	KeyBytes      = "bytes"
	KeyCommand    = "command"
	KeyMethod     = "method"
	KeyRemoteAddr = "remote_addr"
	KeyRequestID  = "request_id"
	KeyAttempt    = "attempt"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr     { return slog.String(KeyRunID, id) }
func Flavor(f string) slog.Attr     { return slog.String(KeyFlavor, f) }
func Version(v string) slog.Attr    { return slog.String(KeyVersion, v) }
func Stage(name string) slog.Attr   { return slog.String(KeyStage, name) }
func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func JobID(id string) slog.Attr     { return slog.String(KeyJobID, id) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Tool(name string) slog.Attr    { return slog.String(KeyTool, name) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }
func Status(code int) slog.Attr     { return slog.Int(KeyStatus, code) }
func ExitCode(code int) slog.Attr   { return slog.Int(KeyExitCode, code) }
func Bytes(n int64) slog.Attr       { return slog.Int64(KeyBytes, n) }
func Command(line string) slog.Attr { return slog.String(KeyCommand, line) }
func Method(m string) slog.Attr     { return slog.String(KeyMethod, m) }
func RemoteAddr(a string) slog.Attr { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }
func Attempt(n int) slog.Attr       { return slog.Int(KeyAttempt, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
