/*
Package clients holds the concrete collaborator implementations: the
timesheet service HTTP client, the chat platform HTTP client, and the SMTP
mailer. The engine only depends on the interfaces these satisfy, so tests
swap in fakes without touching a socket.
*/
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/compliance-engine/compliance"
)

// TimesheetClient fetches raw timesheet entries over the service's REST API.
// Implements compliance.TimesheetSource.
type TimesheetClient struct {
	BaseURL  string
	APIToken string
	HTTP     *http.Client
}

func NewTimesheetClient(baseURL, apiToken string) *TimesheetClient {
	return &TimesheetClient{
		BaseURL:  baseURL,
		APIToken: apiToken,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type timesheetEntryDTO struct {
	UserID    string          `json:"userId"`
	Status    string          `json:"status"`
	Hours     decimal.Decimal `json:"totalHours"`
	StartDate string          `json:"startDate"` // YYYY-MM-DD
}

// FetchByStatus returns entries with the given status starting in [from, to).
func (c *TimesheetClient) FetchByStatus(ctx context.Context, from, to compliance.TimePoint, status string) ([]compliance.RawEntry, error) {
	q := url.Values{}
	q.Set("from", from.String())
	q.Set("to", to.String())
	q.Set("status", status)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/entries?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timesheet service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("timesheet service returned status %d", resp.StatusCode)
	}

	var dtos []timesheetEntryDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode timesheet entries: %w", err)
	}

	entries := make([]compliance.RawEntry, 0, len(dtos))
	for _, dto := range dtos {
		start, err := time.Parse("2006-01-02", dto.StartDate)
		if err != nil {
			return nil, fmt.Errorf("entry for %s: bad start date %q: %w", dto.UserID, dto.StartDate, err)
		}
		entries = append(entries, compliance.RawEntry{
			UserID:    dto.UserID,
			Status:    dto.Status,
			Hours:     dto.Hours,
			StartDate: compliance.DateOf(start),
		})
	}
	return entries, nil
}
