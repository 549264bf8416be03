package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every process so log queries stay uniform.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldEmail     = "email"
	FieldRole      = "role"
	FieldRoute     = "route"
	FieldUpstream  = "upstream"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

func Email(email string) slog.Attr {
	return slog.String(FieldEmail, email)
}

func Role(role string) slog.Attr {
	return slog.String(FieldRole, role)
}

// Route returns a slog attribute for a route table entry name.
func Route(name string) slog.Attr {
	return slog.String(FieldRoute, name)
}

// Upstream returns a slog attribute for an upstream base URL.
func Upstream(target string) slog.Attr {
	return slog.String(FieldUpstream, target)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for an elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error. A nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
