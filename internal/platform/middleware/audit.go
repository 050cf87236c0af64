package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ivf/ivf/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// Audit logs every access to clinical API routes: who touched which cycle,
// embryo or patient record, how, and with what result. Entries go to the
// given logger so they can be routed separately from request logs.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			// Errors have not been written yet; the outer Logger does that.
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			ctx := req.Context()
			rid, _ := c.Get("request_id").(string)
			evt := logger.Info()
			if status == http.StatusForbidden || status == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			evt.
				Str("type", "clinical_audit").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Strs("user_roles", auth.RolesFromContext(ctx)).
				Str("action", actionFor(req.Method)).
				Str("resource_type", resourceType(req.URL.Path)).
				Str("resource_id", resourceID(c)).
				Str("patient_id", patientID(c)).
				Str("route", c.Path()).
				Int("status", status).
				Str("remote_ip", c.RealIP()).
				Msg("record_access")

			return err
		}
	}
}

func actionFor(method string) string {
	switch method {
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

// resourceType is the first path segment after the API prefix, e.g.
// "cycles" for /api/v1/cycles/{id}/embryos.
func resourceType(path string) string {
	rest := strings.TrimPrefix(path, apiPrefix)
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

func resourceID(c echo.Context) string {
	if id := c.Param("id"); isUUID(id) {
		return id
	}
	return ""
}

func patientID(c echo.Context) string {
	if id := c.Param("patient_id"); isUUID(id) {
		return id
	}
	if id := c.QueryParam("patient"); isUUID(id) {
		return id
	}
	return ""
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
