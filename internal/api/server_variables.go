package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabtitle/internal/controller"
	"github.com/dgnsrekt/tabtitle/internal/shell"
)

type deliveryOutput struct {
	Body controller.Delivery
}

func registerVariableHandlers(api huma.API, svc Service) {
	type variablesInput struct {
		Body struct {
			TitleTabID *string        `json:"title_tab_id,omitempty" nullable:"true" doc:"Identity of the tab that should apply the update; omit the key for the untagged form, null matches no tab"`
			Variables  map[string]any `json:"variables" doc:"Values keyed by variable name; non-strings keep their JSON text"`
		}
		RawBody []byte
	}
	huma.Register(api, huma.Operation{OperationID: "apply-variables", Method: http.MethodPost, Path: "/api/v1/variables", Summary: "Send title variables to the tabs", Tags: []string{"Variables"}},
		func(ctx context.Context, input *variablesInput) (*deliveryOutput, error) {
			u, err := shell.DecodeVariableUpdate(input.RawBody)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid variables", err)
			}
			d, err := svc.ApplyVariables(ctx, u)
			if err != nil {
				return nil, mapErr(err)
			}
			return &deliveryOutput{Body: d}, nil
		})

	type matchInput struct {
		Body struct {
			Name       string `json:"name" doc:"Comma separated variable names, one per capture group"`
			Value      string `json:"value"`
			Regex      string `json:"regex,omitempty" doc:"Regular expression searched in value; empty binds value to name"`
			TitleTabID string `json:"title_tab_id"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "match-variables", Method: http.MethodPost, Path: "/api/v1/variables/match", Summary: "Extract variables with a regular expression and send them", Tags: []string{"Variables"}},
		func(ctx context.Context, input *matchInput) (*deliveryOutput, error) {
			d, err := svc.MatchVariables(ctx, input.Body.Name, input.Body.Value, input.Body.Regex, input.Body.TitleTabID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &deliveryOutput{Body: d}, nil
		})
}
