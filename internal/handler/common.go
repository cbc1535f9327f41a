package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// fieldError is one entry of a validation failure body.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validation collects field errors for one request body.
type validation []fieldError

func (v *validation) add(field, msg string) { *v = append(*v, fieldError{Field: field, Message: msg}) }

func (v *validation) email(field, value string) {
	if _, err := mail.ParseAddress(value); err != nil || !strings.Contains(value, "@") {
		v.add(field, "must be a valid email address")
	}
}

func (v *validation) minLen(field, value string, n int) {
	if len([]rune(strings.TrimSpace(value))) < n {
		v.add(field, "must be at least "+strconv.Itoa(n)+" characters")
	}
}

// respond writes a 400 with every collected error, or returns nil when the
// body passed.
func (v validation) respond(c echo.Context) error {
	if len(v) == 0 {
		return nil
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"message": "Validation failed", "errors": v})
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"message": msg})
}

func badRequest(c echo.Context, msg string) error { return message(c, http.StatusBadRequest, msg) }
func notFound(c echo.Context, msg string) error   { return message(c, http.StatusNotFound, msg) }
func conflict(c echo.Context, msg string) error   { return message(c, http.StatusConflict, msg) }

// internalError logs err and answers with a generic 500.  The error text
// never reaches the client.
func internalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "err", err)
	return message(c, http.StatusInternalServerError, "Internal server error")
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// timeLayouts are accepted for date query parameters and request bodies,
// most specific first.  Inputs without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime parses an ISO 8601 timestamp.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid timestamp " + strconv.Quote(s))
}

// HTTPErrorHandler renders errors that escape handlers, including the
// router's own 404 and 405, as {"message": ...}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch {
		case status == http.StatusNotFound:
			msg = "Route not found"
		case status < 500:
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(status)
			}
		}
	}
	if status >= 500 {
		slog.ErrorContext(c.Request().Context(), "unhandled error", "path", c.Request().URL.Path, "err", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, echo.Map{"message": msg})
	}
	if err != nil {
		slog.Error("write error response", "err", err)
	}
}
