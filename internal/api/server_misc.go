package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type renderInput struct {
		Body struct {
			Format    string             `json:"format" doc:"Title format with %title% and %name% placeholders"`
			Title     string             `json:"title,omitempty" doc:"Real page title substituted for %title%"`
			Variables titlefmt.Variables `json:"variables,omitempty"`
		}
	}
	type renderOutput struct {
		Body struct {
			Title string `json:"title"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "render-title", Method: http.MethodPost, Path: "/api/v1/render", Summary: "Preview a title format", Tags: []string{"Format"}},
		func(ctx context.Context, input *renderInput) (*renderOutput, error) {
			rendered, err := svc.Render(ctx, input.Body.Format, input.Body.Title, input.Body.Variables)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &renderOutput{}
			out.Body.Title = rendered
			return out, nil
		})
}
