// Package server exposes the import preview and confirm flow over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/chrisrogers37/really-personal-finance/internal/buildinfo"
	"github.com/chrisrogers37/really-personal-finance/internal/importer"
	"github.com/chrisrogers37/really-personal-finance/internal/importlog"
	"github.com/chrisrogers37/really-personal-finance/internal/imports"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
	"github.com/chrisrogers37/really-personal-finance/internal/workspace"
)

// Server serves the workspace API.
type Server struct {
	app    *fiber.App
	ws     *workspace.Workspace
	logger *log.Logger
}

// New builds a Server over ws. A nil logger uses the workspace logger.
func New(ws *workspace.Workspace, logger *log.Logger) *Server {
	if logger == nil {
		logger = ws.Logger
	}
	s := &Server{ws: ws, logger: logger}

	s.app = fiber.New(fiber.Config{
		// Leave room for multipart framing; the file size itself is checked in handlePreview.
		BodyLimit:             int(ws.Config.Import.MaxFileBytes) + 1<<20,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger(logger))

	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/accounts", s.handleAccounts)
	api.Post("/import/preview", s.handlePreview)
	api.Post("/import/confirm", s.handleConfirm)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is canceled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return <-errc
	}
}

func requestLogger(logger *log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		logger.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
		)
		return err
	}
}

type errorResponse struct {
	Error       string   `json:"error"`
	ParseErrors []string `json:"parseErrors,omitempty"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.logger.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(errorResponse{Error: msg})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleAccounts(c *fiber.Ctx) error {
	accts := s.ws.Accounts.All()
	if accts == nil {
		accts = []model.Account{}
	}
	return c.JSON(fiber.Map{"accounts": accts})
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file provided")
	}
	if limit := s.ws.Config.Import.MaxFileBytes; fh.Size > limit {
		return fiber.NewError(fiber.StatusBadRequest, "File too large (max "+humanSize(limit)+")")
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	p, err := s.ws.Imports.Preview(c.UserContext(), imports.File{
		Name:    fh.Filename,
		Content: string(data),
		Format:  c.FormValue("format"),
	})
	if errors.Is(err, imports.ErrNoTransactions) {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
			Error:       "No transactions found in file",
			ParseErrors: p.ParseErrors,
		})
	}
	if errors.Is(err, importer.ErrUnknownFormat) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(p)
}

type confirmResponse struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
	Skipped  int  `json:"skipped"`
}

func (s *Server) handleConfirm(c *fiber.Ctx) error {
	in, err := imports.ParseConfirmInput(c.Body())
	var verr *imports.ValidationError
	if errors.As(err, &verr) {
		return fiber.NewError(fiber.StatusBadRequest, verr.Message)
	}
	if err != nil {
		return err
	}

	res, err := s.ws.Imports.Confirm(c.UserContext(), in)
	if errors.Is(err, imports.ErrAccountNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Account not found")
	}
	if err != nil {
		return err
	}

	hash, err := s.ws.Record(c.UserContext(), importlog.Entry{
		Timestamp: time.Now(),
		File:      in.FileName,
		Format:    in.Format,
		AccountID: in.AccountID,
		Total:     len(in.Transactions),
		Imported:  res.Imported,
		Skipped:   res.Skipped,
	})
	if err != nil {
		// The rows are already in the ledger; a failed log or commit is not a failed import.
		s.logger.Error("recording import", "err", err)
	} else if hash != "" {
		s.logger.Info("import committed", "hash", hash)
	}

	return c.JSON(confirmResponse{Success: true, Imported: res.Imported, Skipped: res.Skipped})
}

func humanSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
