package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/colorbook/colorbook-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the shared envelope:
// {"v":1,"success":true,"data":...} or {"v":1,"success":false,"error":...,"code":...}.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		return response.Envelope{
			V:       response.Version,
			Success: false,
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil
	}

	if err, ok := v.(error); ok {
		return response.Envelope{
			V:       response.Version,
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	return response.Envelope{
		V:       response.Version,
		Success: strings.HasPrefix(status, "2") || strings.HasPrefix(status, "3"),
		Data:    v,
	}, nil
}
