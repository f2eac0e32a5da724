package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the response envelope format version. Clients check it
// before decoding.
const EnvelopeVersion = 1

// Envelope wraps successful responses.
type Envelope struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorEnvelope wraps error responses.
type ErrorEnvelope struct {
	Version int       `json:"v"`
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// EnvelopeTransformer wraps every huma response body in the versioned
// envelope. Errors keep their code, message and details under "error".
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return ErrorEnvelope{Version: EnvelopeVersion, Success: false, Error: body}, nil
	case Envelope, ErrorEnvelope:
		return v, nil
	}
	return Envelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
}
