// Package moderation screens outbound message text.
//
// The actual policy lives in an external service; this package is the thin
// client plus an allow-all implementation for offline use and tests.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"kindred/internal/domain"
)

// HTTPValidator calls the external moderation service.
type HTTPValidator struct {
	Base string
	HTTP *http.Client
}

func NewHTTP(base string, client *http.Client) *HTTPValidator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPValidator{Base: base, HTTP: client}
}

type validateRequest struct {
	Text string `json:"text"`
}

type validateResponse struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

func (v *HTTPValidator) Validate(ctx context.Context, text string) (domain.ValidationResult, error) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(validateRequest{Text: text}); err != nil {
		return domain.ValidationResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Base+"/validate", buf)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTP.Do(req)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return domain.ValidationResult{}, fmt.Errorf("moderation post /validate: %s", resp.Status)
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ValidationResult{}, err
	}
	return domain.ValidationResult{OK: out.IsValid, Reason: out.Reason}, nil
}

// AllowAll approves everything. Used when no moderation endpoint is
// configured, and by tests.
type AllowAll struct{}

func (AllowAll) Validate(context.Context, string) (domain.ValidationResult, error) {
	return domain.ValidationResult{OK: true}, nil
}

// Compile-time assertions.
var (
	_ domain.Validator = (*HTTPValidator)(nil)
	_ domain.Validator = AllowAll{}
)
