package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/morgue/morgue/internal/platform/auth"
)

// AuditEntry captures who touched which case record, when, from where,
// and what they did. Every mutation of a mortuary case must leave a
// trail for legal retention.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	CaseID     string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. Decoupled from the middleware so
// tests can supply a mock.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that logs every /api/v1 access with the
// authenticated actor, the touched resource, and the case id when one
// appears in the path or query string. Falls back to structured zerolog
// output when no recorder is provided.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}
			entry.Action = methodToAction(req.Method)
			entry.Resource = resourceFromPath(path)
			entry.CaseID = caseIDFrom(c)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "case_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("case_id", entry.CaseID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("case_access")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath extracts the first path segment under /api/v1
// (e.g. /api/v1/cases/123 -> cases).
func resourceFromPath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// caseIDFrom finds a case identifier in /api/v1/cases/<uuid> paths or a
// case_id query parameter.
func caseIDFrom(c echo.Context) string {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/v1/cases/") {
		segments := strings.Split(strings.TrimPrefix(path, "/api/v1/cases/"), "/")
		if len(segments) > 0 {
			if _, err := uuid.Parse(segments[0]); err == nil {
				return segments[0]
			}
		}
	}
	return c.QueryParam("case_id")
}
