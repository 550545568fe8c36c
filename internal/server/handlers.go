package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"knowledge-scout/internal/models"

	"github.com/labstack/echo/v4"
)

type questionRequest struct {
	Question string `json:"question" form:"question"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type queryResponse struct {
	Answers []string `json:"answers"`
}

type healthResponse struct {
	OK       bool `json:"ok"`
	HasIndex bool `json:"has_index"`
}

func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			return he
		case errors.Is(err, http.ErrMissingFile):
			return models.InputError("upload", models.ErrMissingFile)
		default:
			return models.InputError("upload", fmt.Errorf("invalid multipart form: %w", err))
		}
	}

	f, err := fh.Open()
	if err != nil {
		return models.InputError("upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.InputError("upload", fmt.Errorf("failed to read file: %w", err))
	}

	if _, err := s.svc.Ingest(c.Request().Context(), fh.Filename, data); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: models.UploadSuccessMessage})
}

// ask reads the question from the query string first, then from a JSON or
// form body.
func (s *Server) ask(c echo.Context) error {
	question := c.QueryParam("question")
	if strings.TrimSpace(question) == "" {
		var req questionRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		question = req.Question
	}

	answer, err := s.svc.Ask(c.Request().Context(), question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) query(c echo.Context) error {
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Question == "" {
		req.Question = c.QueryParam("question")
	}

	matches, err := s.svc.Query(c.Request().Context(), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, queryResponse{Answers: matches})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{OK: true, HasIndex: s.svc.HasIndex()})
}
