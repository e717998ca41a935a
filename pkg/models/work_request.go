package models

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "pokeagent/pkg/errors"
)

// WorkRequest asks for one domain's HTTP and HTTPS reachability to be
// checked. URL is the bare domain, without a scheme.
type WorkRequest struct {
	URL    string            `json:"url"`
	Labels map[string]string `json:"labels"`
	Checks Checks            `json:"checks"`
}

type Checks struct {
	Status  CheckSpec `json:"status"`
	Latency CheckSpec `json:"latency"`
}

// CheckSpec names the metric class of one reading and the labels added to
// it on top of the request's labels.
type CheckSpec struct {
	ClassName string            `json:"class_name"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// DecodeWorkRequest parses a queue payload. The result must name a domain
// and a class for both checks. Every error is an ErrDecode.
func DecodeWorkRequest(body []byte) (WorkRequest, error) {
	var req WorkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return WorkRequest{}, apperrors.ErrDecode.WithCause(fmt.Errorf("invalid work request json: %w", err))
	}

	if err := req.Validate(); err != nil {
		return WorkRequest{}, apperrors.ErrDecode.WithCause(err)
	}

	return req, nil
}

func (r WorkRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("work request has no url")
	}
	if strings.Contains(r.URL, "://") {
		return fmt.Errorf("work request url %q must be a domain, not a url", r.URL)
	}
	if r.Checks.Status.ClassName == "" {
		return fmt.Errorf("work request has no status class_name")
	}
	if r.Checks.Latency.ClassName == "" {
		return fmt.Errorf("work request has no latency class_name")
	}
	return nil
}

// NewDomainRequest builds the request used by the one-shot mode: the domain
// as the only label and the given class names.
func NewDomainRequest(domain, statusClass, latencyClass string) WorkRequest {
	return WorkRequest{
		URL:    domain,
		Labels: map[string]string{"domain": domain},
		Checks: Checks{
			Status:  CheckSpec{ClassName: statusClass},
			Latency: CheckSpec{ClassName: latencyClass},
		},
	}
}
