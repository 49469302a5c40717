// Package server exposes question answering and semantic search over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"mufashe-rag/internal/models"
	"mufashe-rag/internal/rag"
)

const (
	// AppName is reported by the health endpoint
	AppName = "mufashe-rag"

	// DefaultRequestTimeout bounds a single ask or search request
	DefaultRequestTimeout = 60 * time.Second

	// SnippetChars is the length of the source preview returned with an answer
	SnippetChars = 220
)

// QA is the question answering surface served over HTTP
type QA interface {
	Ask(ctx context.Context, question string, opts rag.RetrieveOptions) (*models.Answer, error)
	Search(ctx context.Context, question string, opts rag.RetrieveOptions) ([]models.RetrievedSource, error)
	Sources(ctx context.Context) ([]string, error)
	// TopK reports the number of chunks actually retrieved for a requested top_k
	TopK(requested int) int
}

var errInvalidBody = fmt.Errorf("%w: request body must be a JSON object", models.ErrInvalidInput)

// Options configures the HTTP application
type Options struct {
	RequestTimeout time.Duration
	AllowOrigins   []string
	// AccessLog enables the per-request fiber logger
	AccessLog bool
	// MinQuestionChars is reported in validation errors
	MinQuestionChars int
	Logger           *slog.Logger
}

type handler struct {
	qa               QA
	timeout          time.Duration
	minQuestionChars int
	logger           *slog.Logger
}

type questionRequest struct {
	Question   string `json:"question"`
	TopK       int    `json:"top_k"`
	SourceFile string `json:"source_file"`
}

// New builds the fiber application with every route registered
func New(qa QA, opts Options) *fiber.App {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MinQuestionChars <= 0 {
		opts.MinQuestionChars = rag.DefaultMinQuestionChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:      AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: opts.RequestTimeout + 5*time.Second,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New())
	}
	if len(opts.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{AllowOrigins: opts.AllowOrigins}))
	} else {
		app.Use(cors.New())
	}

	h := &handler{
		qa:               qa,
		timeout:          opts.RequestTimeout,
		minQuestionChars: opts.MinQuestionChars,
		logger:           opts.Logger,
	}
	h.Register(app)
	return app
}

// Register sets up the API routes
func (h *handler) Register(router fiber.Router) {
	api := router.Group("/api")
	api.Get("/health", h.Health)
	api.Get("/sources", h.Sources)

	qa := api.Group("/qa")
	qa.Get("/ping", h.Ping)
	qa.Post("/ping", h.Ping)
	qa.Post("/ask", h.Ask)

	api.Post("/search/semantic", h.Search)
}

// Health reports liveness
func (h *handler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"app":    AppName,
	})
}

// Ping echoes the route and method so clients can check reachability
func (h *handler) Ping(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":     true,
		"route":  "/api/qa",
		"method": c.Method(),
	})
}

// Ask answers a question from the ingested corpus
func (h *handler) Ask(c fiber.Ctx) error {
	var body questionRequest
	if err := c.Bind().JSON(&body); err != nil {
		return h.fail(c, "ask", errInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	answer, err := h.qa.Ask(ctx, body.Question, rag.RetrieveOptions{TopK: body.TopK, SourceFile: body.SourceFile})
	if err != nil {
		return h.fail(c, "ask", err)
	}

	sources := make([]fiber.Map, len(answer.Sources))
	for i, src := range answer.Sources {
		sources[i] = fiber.Map{
			"n":           i + 1,
			"source_file": src.SourceFile,
			"chunk_index": src.ChunkIndex,
			"snippet":     Snippet(src.Text, SnippetChars),
		}
	}

	return c.JSON(fiber.Map{
		"ok":        true,
		"question":  answer.Question,
		"answer":    answer.Answer,
		"sources":   sources,
		"model":     answer.Model,
		"timestamp": answer.Timestamp,
	})
}

// Search returns the retrieved sources without generating an answer
func (h *handler) Search(c fiber.Ctx) error {
	var body questionRequest
	if err := c.Bind().JSON(&body); err != nil {
		return h.fail(c, "search", errInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	opts := rag.RetrieveOptions{TopK: body.TopK, SourceFile: body.SourceFile}
	results, err := h.qa.Search(ctx, body.Question, opts)
	if err != nil {
		return h.fail(c, "search", err)
	}

	return c.JSON(fiber.Map{
		"ok":       true,
		"question": strings.TrimSpace(body.Question),
		"top_k":    h.qa.TopK(body.TopK),
		"results":  results,
	})
}

// Sources lists the ingested source files
func (h *handler) Sources(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	sources, err := h.qa.Sources(ctx)
	if err != nil {
		return h.fail(c, "sources", err)
	}
	if sources == nil {
		sources = []string{}
	}
	return c.JSON(fiber.Map{"ok": true, "sources": sources})
}

// fail maps an error kind to a status and a client-safe message. The raw error is only logged.
func (h *handler) fail(c fiber.Ctx, op string, err error) error {
	status, message := h.statusFor(err)
	h.logger.Error("request failed", "op", op, "status", status, "error", err)
	return c.Status(status).JSON(fiber.Map{
		"ok":         false,
		"error":      message,
		"error_kind": errorKind(err),
	})
}

func errorKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "upstream"
	}
	return models.ErrorKind(err)
}

func (h *handler) statusFor(err error) (int, string) {
	if errors.Is(err, errInvalidBody) {
		return fiber.StatusBadRequest, "request body must be a JSON object"
	}
	switch errorKind(err) {
	case "invalid_input":
		return fiber.StatusBadRequest, fmt.Sprintf("question is required (min %d chars)", h.minQuestionChars)
	case "not_initialized":
		return fiber.StatusServiceUnavailable, "corpus has not been ingested yet"
	case "configuration":
		return fiber.StatusServiceUnavailable, "answer service is not configured"
	case "upstream":
		return fiber.StatusBadGateway, "upstream service failed, try again later"
	default:
		return fiber.StatusInternalServerError, "failed to answer"
	}
}

// Snippet returns text collapsed to one line and cut to at most n runes
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
