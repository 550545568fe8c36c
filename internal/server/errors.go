package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"knowledge-scout/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Int("status", status).Msg("Request failed")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, errorResponse{Error: body})
	}
	if writeErr != nil {
		log.Error().Err(writeErr).Msg("Error writing error response")
	}
}

// classify maps err to an HTTP status and the error envelope.
func classify(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, errorBody{Code: codeFor(he.Code), Message: msg}
	}

	switch models.KindOf(err) {
	case models.KindInput:
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, models.ErrUnsupportedFormat):
			status = http.StatusUnsupportedMediaType
		case errors.Is(err, models.ErrCorruptDocument),
			errors.Is(err, models.ErrUndecodableText),
			errors.Is(err, models.ErrNoExtractableText):
			status = http.StatusUnprocessableEntity
		}
		return status, errorBody{Code: codeFor(status), Message: err.Error()}
	case models.KindUpstream:
		return http.StatusBadGateway, errorBody{Code: "upstream_error", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal server error"}
	}
}

// codeFor turns a status into a snake_case code, e.g. 415 -> "unsupported_media_type".
func codeFor(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("status_%d", status)
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}
