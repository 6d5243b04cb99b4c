package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyStage       = "stage"
	KeyState       = "state"
	KeyDurationMS  = "duration_ms"
	KeyTheme       = "theme"
	KeyOrigin      = "origin"
	KeyURL         = "url"
	KeyPath        = "path"
	KeyContentType = "content_type"
	KeyBytes       = "bytes"
	KeyCount       = "count"
	KeyCategory    = "category"
	KeyVersion     = "version"
	KeyJob         = "job"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func State(name string) slog.Attr      { return slog.String(KeyState, name) }
func Theme(id string) slog.Attr        { return slog.String(KeyTheme, id) }
func Origin(o string) slog.Attr        { return slog.String(KeyOrigin, o) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func ContentType(t string) slog.Attr   { return slog.String(KeyContentType, t) }
func Bytes(n int64) slog.Attr          { return slog.Int64(KeyBytes, n) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Category(c string) slog.Attr      { return slog.String(KeyCategory, c) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func Job(name string) slog.Attr        { return slog.String(KeyJob, name) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
