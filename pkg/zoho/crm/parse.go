package zohocrm

import (
	"bytes"
	"encoding/json"
)

// OutcomeKind tags the shape a response body matched.
type OutcomeKind int

const (
	OutcomeEmpty OutcomeKind = iota
	OutcomeSuccess
	OutcomeAPIError
	OutcomeAuthError
	OutcomeNoToken
	OutcomeUnexpected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEmpty:
		return "empty"
	case OutcomeSuccess:
		return "success"
	case OutcomeAPIError:
		return "api_error"
	case OutcomeAuthError:
		return "auth_error"
	case OutcomeNoToken:
		return "no_token"
	case OutcomeUnexpected:
		return "unexpected"
	}
	return "unknown"
}

// Outcome is the result of matching one raw body against the known shapes.
// Exactly one of Value, APIError, AuthError or Raw is meaningful, as
// selected by Kind.
type Outcome[T any] struct {
	Kind      OutcomeKind
	Value     *T
	APIError  *APIError
	AuthError *AuthError
	Raw       string
}

// Err maps a non-success outcome to the error returned to callers.
func (o Outcome[T]) Err() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeEmpty:
		return ErrEmptyResponse
	case OutcomeAPIError:
		return o.APIError
	case OutcomeAuthError:
		return o.AuthError
	case OutcomeNoToken:
		return ErrNoTokenReceived
	}
	return &UnexpectedResponseError{Body: o.Raw}
}

// candidate tries one shape against raw and reports whether it matched.
type candidate[T any] func(raw []byte) (Outcome[T], bool)

// parseResponse runs the candidates in order and returns the first match.
// An empty body short-circuits; a body nothing matches is kept verbatim.
func parseResponse[T any](raw []byte, candidates ...candidate[T]) Outcome[T] {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Outcome[T]{Kind: OutcomeEmpty}
	}
	for _, try := range candidates {
		if outcome, ok := try(raw); ok {
			return outcome
		}
	}
	return Outcome[T]{Kind: OutcomeUnexpected, Raw: string(raw)}
}

// parseDataResponse is the precedence used by every data endpoint:
// success envelope, then API error, then auth error, then raw text.
func parseDataResponse[T any](raw []byte, success candidate[T]) Outcome[T] {
	return parseResponse[T](raw, success, apiErrorShape[T], authErrorShape[T])
}

// parseTokenResponse is the precedence used by the token endpoint.
func parseTokenResponse(raw []byte) Outcome[TokenRecord] {
	return parseResponse[TokenRecord](raw, func(raw []byte) (Outcome[TokenRecord], bool) {
		var record TokenRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return Outcome[TokenRecord]{}, false
		}
		switch {
		case record.Error != nil:
			return Outcome[TokenRecord]{Kind: OutcomeAuthError, AuthError: &AuthError{Message: *record.Error}}, true
		case record.AccessToken == nil:
			return Outcome[TokenRecord]{Kind: OutcomeNoToken}, true
		}
		return Outcome[TokenRecord]{Kind: OutcomeSuccess, Value: &record}, true
	})
}

func getShape[T any](raw []byte) (Outcome[GetResponse[T]], bool) {
	var env struct {
		Data *[]T `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		return Outcome[GetResponse[T]]{}, false
	}
	return Outcome[GetResponse[T]]{Kind: OutcomeSuccess, Value: &GetResponse[T]{Data: *env.Data}}, true
}

func pageShape[T any](raw []byte) (Outcome[PageResponse[T]], bool) {
	var env struct {
		Data *[]T      `json:"data"`
		Info *PageInfo `json:"info"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil || env.Info == nil {
		return Outcome[PageResponse[T]]{}, false
	}
	return Outcome[PageResponse[T]]{Kind: OutcomeSuccess, Value: &PageResponse[T]{Data: *env.Data, Info: *env.Info}}, true
}

func recordResultsShape(raw []byte) (Outcome[[]RecordResult], bool) {
	var env struct {
		Data *[]RecordResult `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		return Outcome[[]RecordResult]{}, false
	}
	return Outcome[[]RecordResult]{Kind: OutcomeSuccess, Value: env.Data}, true
}

func apiErrorShape[T any](raw []byte) (Outcome[T], bool) {
	var env struct {
		Code    *string `json:"code"`
		Message *string `json:"message"`
		Status  *string `json:"status"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Outcome[T]{}, false
	}
	if env.Code == nil || env.Message == nil || env.Status == nil {
		return Outcome[T]{}, false
	}
	return Outcome[T]{Kind: OutcomeAPIError, APIError: &APIError{
		Code:    *env.Code,
		Message: *env.Message,
		Status:  *env.Status,
	}}, true
}

func authErrorShape[T any](raw []byte) (Outcome[T], bool) {
	var env struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == nil {
		return Outcome[T]{}, false
	}
	return Outcome[T]{Kind: OutcomeAuthError, AuthError: &AuthError{Message: *env.Error}}, true
}
