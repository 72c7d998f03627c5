package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/tabtitle/internal/cdptab"
	"github.com/dgnsrekt/tabtitle/internal/controller"
	"github.com/dgnsrekt/tabtitle/internal/eventloop"
	"github.com/dgnsrekt/tabtitle/internal/shell"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	ListTabs(ctx context.Context) ([]shell.State, error)
	GetTab(ctx context.Context, tabID string) (shell.State, error)
	SetFormat(ctx context.Context, tabID, format string) (shell.State, error)
	PromptFormat(ctx context.Context, tabID string) (controller.PromptResult, error)
	ApplyVariables(ctx context.Context, u shell.VariableUpdate) (controller.Delivery, error)
	MatchVariables(ctx context.Context, names, value, pattern, titleTabID string) (controller.Delivery, error)
	Render(ctx context.Context, format, realTitle string, vars titlefmt.Variables) (string, error)
}

// Streams are the long-lived endpoints mounted next to the JSON API.
type Streams struct {
	// Events serves the SSE feed at /api/v1/events.
	Events http.Handler
	// Bus serves the WebSocket broadcast channel at /bus.
	Bus http.Handler
}

type tabIDInput struct {
	TabID string `path:"tab_id" doc:"CDP target ID of the tab"`
}

type tabOutput struct {
	Body shell.State
}

func NewServer(svc Service, streams Streams) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tab Title API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/streams", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(streamsDocsHTML)); err != nil {
			slog.Debug("stream docs response write failed", "error", err)
		}
	})

	if streams.Events != nil {
		router.Method(http.MethodGet, "/api/v1/events", streams.Events)
	}
	if streams.Bus != nil {
		router.Method(http.MethodGet, "/bus", streams.Bus)
	}

	registerMiscHandlers(api, svc)
	registerTabHandlers(api, svc)
	registerVariableHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, eventloop.ErrStopped) {
		return huma.Error409Conflict("tab is reloading")
	}
	if errors.Is(err, shell.ErrNoPrompter) {
		return huma.Error409Conflict(err.Error())
	}
	var coded *cdptab.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdptab.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdptab.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdptab.CodeTabNotReady:
			return huma.Error409Conflict(coded.Message)
		case cdptab.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdptab.CodeEvalFailure, cdptab.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
