package zohocrm

import (
	"encoding/json"
	"fmt"
	"time"
)

// APITime handles the timestamp formats Zoho returns
// (e.g. "2019-05-02T11:17:33+05:30").
type APITime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler for APITime
func (t *APITime) UnmarshalJSON(data []byte) error {
	var timeStr string
	if err := json.Unmarshal(data, &timeStr); err != nil {
		return err
	}

	if timeStr == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := parseAPITime(timeStr)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

var apiTimeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseAPITime(s string) (time.Time, error) {
	for _, format := range apiTimeFormats {
		if parsed, err := time.Parse(format, s); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time string: %s", s)
}

// MarshalJSON implements json.Marshaler for APITime
func (t APITime) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// flexString accepts a JSON string or number. Zoho reports the failing
// record index either way depending on the endpoint.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// TokenRecord is the token endpoint reply. Every field is optional because
// success and failure share the same shape; a missing AccessToken means
// the exchange failed.
type TokenRecord struct {
	AccessToken  *string `json:"access_token,omitempty"`
	APIDomain    *string `json:"api_domain,omitempty"`
	Error        *string `json:"error,omitempty"`
	ExpiresInSec *int64  `json:"expires_in_sec,omitempty"`
	ExpiresIn    *int64  `json:"expires_in,omitempty"`
	TokenType    *string `json:"token_type,omitempty"`
}

// Copy returns a deep copy so callers cannot alias the client's fields.
func (r *TokenRecord) Copy() *TokenRecord {
	if r == nil {
		return nil
	}
	return &TokenRecord{
		AccessToken:  copyPtr(r.AccessToken),
		APIDomain:    copyPtr(r.APIDomain),
		Error:        copyPtr(r.Error),
		ExpiresInSec: copyPtr(r.ExpiresInSec),
		ExpiresIn:    copyPtr(r.ExpiresIn),
		TokenType:    copyPtr(r.TokenType),
	}
}

// Lifetime returns the token lifetime reported by the endpoint, or zero.
// Responses that carry expires_in_sec report expires_in in milliseconds,
// so expires_in_sec wins when present.
func (r *TokenRecord) Lifetime() time.Duration {
	switch {
	case r.ExpiresInSec != nil:
		return time.Duration(*r.ExpiresInSec) * time.Second
	case r.ExpiresIn != nil:
		return time.Duration(*r.ExpiresIn) * time.Second
	}
	return 0
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// GetResponse is the envelope returned when reading a single record.
type GetResponse[T any] struct {
	Data []T `json:"data"`
}

// PageResponse is the envelope returned when listing a module. Zoho keeps
// returning the last page once the end is reached, so stop on
// Info.MoreRecords rather than on an empty page.
type PageResponse[T any] struct {
	Data []T      `json:"data"`
	Info PageInfo `json:"info"`
}

type PageInfo struct {
	Count       int  `json:"count"`
	MoreRecords bool `json:"more_records"`
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
}

// RecordResult is the per-record outcome of an insert or update. A 200
// response may still carry failed items; check Code or Details.
type RecordResult struct {
	Code    string        `json:"code"`
	Details RecordDetails `json:"details"`
	Message string        `json:"message"`
	Status  string        `json:"status"`
}

func (r RecordResult) Succeeded() bool {
	return r.Code == "SUCCESS" && r.Details.Success != nil
}

// RecordDetails holds exactly one of Success or Error. The wire format does
// not tag the variant, so the success shape is tried first.
type RecordDetails struct {
	Success *SuccessDetails
	Error   *ErrorDetails
}

type SuccessDetails struct {
	ID           string  `json:"id"`
	CreatedTime  APITime `json:"Created_Time"`
	ModifiedTime APITime `json:"Modified_Time"`
}

type ErrorDetails struct {
	APIName          string `json:"api_name,omitempty"`
	ExpectedDataType string `json:"expected_data_type,omitempty"`
	Index            string `json:"index,omitempty"`
}

func (d *RecordDetails) UnmarshalJSON(data []byte) error {
	if success, ok := parseSuccessDetails(data); ok {
		d.Success = success
		d.Error = nil
		return nil
	}

	var raw struct {
		APIName          string     `json:"api_name"`
		ExpectedDataType string     `json:"expected_data_type"`
		Index            flexString `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("details match neither success nor error shape: %w", err)
	}
	d.Success = nil
	d.Error = &ErrorDetails{
		APIName:          raw.APIName,
		ExpectedDataType: raw.ExpectedDataType,
		Index:            string(raw.Index),
	}
	return nil
}

func (d RecordDetails) MarshalJSON() ([]byte, error) {
	if d.Success != nil {
		return json.Marshal(d.Success)
	}
	if d.Error != nil {
		return json.Marshal(d.Error)
	}
	return []byte("{}"), nil
}

// parseSuccessDetails classifies by key presence. The timestamps are
// decoded best-effort: a format APITime does not know leaves a zero time
// and the item still counts as a success.
func parseSuccessDetails(data []byte) (*SuccessDetails, bool) {
	var raw struct {
		ID           *string          `json:"id"`
		CreatedTime  *json.RawMessage `json:"Created_Time"`
		ModifiedTime *json.RawMessage `json:"Modified_Time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	if raw.ID == nil || raw.CreatedTime == nil || raw.ModifiedTime == nil {
		return nil, false
	}

	details := &SuccessDetails{ID: *raw.ID}
	_ = json.Unmarshal(*raw.CreatedTime, &details.CreatedTime)
	_ = json.Unmarshal(*raw.ModifiedTime, &details.ModifiedTime)
	return details, true
}

// ID extracts the id field of a raw record, for callers that keep records
// as json.RawMessage.
func ID(record json.RawMessage) (string, error) {
	var r struct {
		ID flexString `json:"id"`
	}
	if err := json.Unmarshal(record, &r); err != nil {
		return "", fmt.Errorf("failed to read record id: %w", err)
	}
	if r.ID == "" {
		return "", fmt.Errorf("record has no id")
	}
	return string(r.ID), nil
}
