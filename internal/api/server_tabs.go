package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabtitle/internal/controller"
	"github.com/dgnsrekt/tabtitle/internal/shell"
)

func registerTabHandlers(api huma.API, svc Service) {
	type listTabsOutput struct {
		Body struct {
			Tabs []shell.State `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List managed tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = tabs
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-tab", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}", Summary: "Get one tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*tabOutput, error) {
			st, err := svc.GetTab(ctx, input.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &tabOutput{Body: st}, nil
		})

	type setFormatInput struct {
		TabID string `path:"tab_id"`
		Body  struct {
			Format string `json:"format" doc:"New title format; empty restores the page title"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-format", Method: http.MethodPut, Path: "/api/v1/tabs/{tab_id}/format", Summary: "Set the title format", Tags: []string{"Format"}},
		func(ctx context.Context, input *setFormatInput) (*tabOutput, error) {
			st, err := svc.SetFormat(ctx, input.TabID, input.Body.Format)
			if err != nil {
				return nil, mapErr(err)
			}
			return &tabOutput{Body: st}, nil
		})

	type promptOutput struct {
		Body controller.PromptResult
	}
	huma.Register(api, huma.Operation{OperationID: "prompt-format", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/format/prompt", Summary: "Ask for a title format in the page", Tags: []string{"Format"}},
		func(ctx context.Context, input *tabIDInput) (*promptOutput, error) {
			res, err := svc.PromptFormat(ctx, input.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &promptOutput{Body: res}, nil
		})
}
