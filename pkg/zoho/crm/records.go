package zohocrm

import (
	"context"
	"fmt"
	"net/http"

	httpclient "github.com/natserract/zoho/pkg/http"
	"go.uber.org/zap"
)

// Request is one authenticated call against {api_domain}{api_path}/{Module}[/{ID}].
type Request struct {
	Method string
	Module string
	ID     string
	Query  string
	Body   interface{}
}

// Call ensures a token is cached, sends req with it and returns the raw
// response body. Status codes are not inspected; the body decides.
func (c *Client) Call(ctx context.Context, req Request) ([]byte, error) {
	if req.Module == "" {
		return nil, fmt.Errorf("module is required")
	}

	sess, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.apiDomain == "" {
		return nil, fmt.Errorf("no API domain for the access token; set ZOHO_API_DOMAIN")
	}

	endpoint, err := httpclient.JoinURL(sess.apiDomain, req.Query, c.apiPath, req.Module, req.ID)
	if err != nil {
		c.logger.Error("Failed to build URL", zap.Error(err))
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	headers := map[string]string{
		"Authorization": authScheme + " " + sess.accessToken,
	}

	c.logger.Debug("Calling Zoho CRM",
		zap.String("method", req.Method),
		zap.String("module", req.Module),
		zap.String("record_id", req.ID))

	resp, err := c.httpClient.Do(httpclient.RequestOptions{
		Method:  req.Method,
		URL:     endpoint,
		Headers: headers,
		Body:    req.Body,
		Context: ctx,
	})
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", req.Method, req.Module), Err: err}
	}

	return resp.Body, nil
}

// GetOne reads a single record by id.
func GetOne[T any](ctx context.Context, c CRMClient, module, id string) (*T, error) {
	if id == "" {
		return nil, fmt.Errorf("record id is required")
	}

	body, err := c.Call(ctx, Request{Method: http.MethodGet, Module: module, ID: id})
	if err != nil {
		return nil, err
	}

	outcome := parseDataResponse[GetResponse[T]](body, getShape[T])
	if err := outcome.Err(); err != nil {
		logOutcome(c.Logger(), "get record", module, outcome.Kind, err)
		return nil, err
	}
	if len(outcome.Value.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	return &outcome.Value.Data[0], nil
}

// GetPage reads one page of a module. query is an already URL-encoded
// query string (see PageParams and EncodeParams); pass "" for defaults.
// Callers page by re-issuing with a higher page while Info.MoreRecords.
func GetPage[T any](ctx context.Context, c CRMClient, module, query string) (*PageResponse[T], error) {
	body, err := c.Call(ctx, Request{Method: http.MethodGet, Module: module, Query: query})
	if err != nil {
		return nil, err
	}

	outcome := parseDataResponse[PageResponse[T]](body, pageShape[T])
	if err := outcome.Err(); err != nil {
		logOutcome(c.Logger(), "get page", module, outcome.Kind, err)
		return nil, err
	}

	c.Logger().Debug("Fetched page",
		zap.String("module", module),
		zap.Int("page", outcome.Value.Info.Page),
		zap.Int("count", outcome.Value.Info.Count),
		zap.Bool("more_records", outcome.Value.Info.MoreRecords))

	return outcome.Value, nil
}

// InsertMany creates records and returns one result per record, in order.
// Failed items come back as results, not as an error.
func InsertMany[T any](ctx context.Context, c CRMClient, module string, records []T) ([]RecordResult, error) {
	return writeMany(ctx, c, http.MethodPost, module, records)
}

// UpdateMany updates records (each must carry its id) and returns one
// result per record, in order.
func UpdateMany[T any](ctx context.Context, c CRMClient, module string, records []T) ([]RecordResult, error) {
	return writeMany(ctx, c, http.MethodPut, module, records)
}

func writeMany[T any](ctx context.Context, c CRMClient, method, module string, records []T) ([]RecordResult, error) {
	if records == nil {
		records = []T{}
	}

	body, err := c.Call(ctx, Request{
		Method: method,
		Module: module,
		Body:   GetResponse[T]{Data: records},
	})
	if err != nil {
		return nil, err
	}

	outcome := parseDataResponse[[]RecordResult](body, recordResultsShape)
	if err := outcome.Err(); err != nil {
		logOutcome(c.Logger(), "write records", module, outcome.Kind, err)
		return nil, err
	}

	results := *outcome.Value
	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
	}
	c.Logger().Info("Wrote records",
		zap.String("method", method),
		zap.String("module", module),
		zap.Int("sent", len(records)),
		zap.Int("failed", failed))

	return results, nil
}

func logOutcome(logger *zap.Logger, op, module string, kind OutcomeKind, err error) {
	logger.Error("Zoho CRM request failed",
		zap.String("operation", op),
		zap.String("module", module),
		zap.Stringer("outcome", kind),
		zap.Error(err))
}
