package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"attendpanel/internal/domain/activity"
	"attendpanel/internal/domain/registration"
)

// Failure taxonomy for upstream calls. ErrServerRejected wraps the
// human-readable message from the response body; ErrNetworkError covers
// transport failures where no message exists.
var (
	ErrServerRejected = errors.New("server rejected the request")
	ErrNetworkError   = errors.New("network error")
)

// GenericFailureMessage is shown when the upstream gives no better one.
const GenericFailureMessage = "No se pudo completar la operación"

const defaultTimeout = 15 * time.Second

// ConfirmRequest is the attendance confirm payload.
type ConfirmRequest struct {
	RecordID         string `json:"recordId"`
	Confirm          bool   `json:"confirm"`
	CreateAttendance bool   `json:"createAttendance"`
}

// deleteRequest is the attendance delete payload. Deletion is expressed
// upstream as an unconfirm without attendance creation.
type deleteRequest struct {
	RecordID string `json:"recordId"`
	Confirm  bool   `json:"confirm"`
}

// activityDTO mirrors the upstream activity wire shape.
type activityDTO struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Type                 string     `json:"type"`
	StartDatetime        time.Time  `json:"start_datetime"`
	EndDatetime          time.Time  `json:"end_datetime"`
	Capacity             *int       `json:"capacity"`
	RegisteredCount      int        `json:"registered_count"`
	RegistrationStart    *time.Time `json:"registration_start_datetime"`
	RegistrationDeadline *time.Time `json:"registration_deadline_datetime"`
}

// Client talks to the upstream attendance API, the source of truth for
// all final state.
type Client struct {
	baseURL string
	http    *http.Client

	// OnTiming, when set, receives the duration and status of every
	// upstream call. status is 0 when no response arrived.
	OnTiming func(op string, d time.Duration, status int)
}

// NewClient creates a Client for the given base URL.
// PRE: baseURL is a valid absolute URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchActivities loads all activities from upstream.
// POST: Returns domain activities; sessions are expanded by the caller,
// never server-side
func (c *Client) FetchActivities(ctx context.Context) ([]activity.Activity, error) {
	var dtos []activityDTO
	if err := c.getJSON(ctx, "FetchActivities", "/api/activities", &dtos); err != nil {
		return nil, err
	}
	out := make([]activity.Activity, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, activity.Activity{
			ID:                   d.ID,
			Name:                 d.Name,
			Type:                 d.Type,
			Start:                d.StartDatetime,
			End:                  d.EndDatetime,
			Capacity:             d.Capacity,
			RegisteredCount:      d.RegisteredCount,
			RegistrationStart:    d.RegistrationStart,
			RegistrationDeadline: d.RegistrationDeadline,
		})
	}
	return out, nil
}

// FetchRegistrations loads the registrations of one activity.
func (c *Client) FetchRegistrations(ctx context.Context, activityID string) ([]registration.Registration, error) {
	var regs []registration.Registration
	if err := c.getJSON(ctx, "FetchRegistrations", "/api/activities/"+activityID+"/registrations", &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// ConfirmAttendance issues the confirming call for an attendance toggle.
// POST: On success returns the updated record if the response carried
// one, nil otherwise. Failures are ErrServerRejected (message from the
// body) or ErrNetworkError.
func (c *Client) ConfirmAttendance(ctx context.Context, req ConfirmRequest) (*registration.Registration, error) {
	var envelope struct {
		Registration *registration.Registration `json:"registration"`
	}
	if err := c.postJSON(ctx, "ConfirmAttendance", "/api/attendance/confirm", req, &envelope); err != nil {
		return nil, err
	}
	return envelope.Registration, nil
}

// DeleteAttendance issues the authoritative deletion for a record.
func (c *Client) DeleteAttendance(ctx context.Context, recordID string) error {
	return c.postJSON(ctx, "DeleteAttendance", "/api/attendance/delete", deleteRequest{RecordID: recordID, Confirm: false}, nil)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return c.do(op, req, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordTiming(op, start, 0)
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()
	c.recordTiming(op, start, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrServerRejected, rejectionMessage(resp.Body))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return nil
}

func (c *Client) recordTiming(op string, start time.Time, status int) {
	if c.OnTiming != nil {
		c.OnTiming(op, time.Since(start), status)
	}
}

// rejectionMessage extracts the upstream `message` field, falling back to
// a generic phrase when the body carries none.
func rejectionMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Message == "" {
		return GenericFailureMessage
	}
	return payload.Message
}
