/*
directory.go - User directory HTTP client

PURPOSE:
  Implements compliance.Directory over the directory service maintained by
  the external sync process. The engine is strictly read-only here; quota,
  manager, and department data arrive as the sync produced them, flaws
  included (see compliance/chain.go for the cycle guard).
*/
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/compliance-engine/compliance"
)

// DirectoryClient fetches the active-user directory.
// Implements compliance.Directory.
type DirectoryClient struct {
	BaseURL  string
	APIToken string
	HTTP     *http.Client
}

func NewDirectoryClient(baseURL, apiToken string) *DirectoryClient {
	return &DirectoryClient{
		BaseURL:  baseURL,
		APIToken: apiToken,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type userRefDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type userDTO struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	DisplayName     string      `json:"displayName"`
	WeeklyHourQuota int         `json:"weeklyHourQuota"`
	EmploymentStart string      `json:"employmentStartDate"` // YYYY-MM-DD, may be empty
	Manager         *userRefDTO `json:"manager"`
	Department      struct {
		Name  string      `json:"name"`
		Owner *userRefDTO `json:"owner"`
	} `json:"department"`
	Customers []string `json:"customers"`
	Active    bool     `json:"active"`
}

// FetchActiveUsers returns every active directory user.
func (c *DirectoryClient) FetchActiveUsers(ctx context.Context) ([]compliance.UserRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/users?active=true", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("directory service returned status %d", resp.StatusCode)
	}

	var dtos []userDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode directory users: %w", err)
	}

	users := make([]compliance.UserRecord, 0, len(dtos))
	for _, dto := range dtos {
		user := compliance.UserRecord{
			ID:              dto.ID,
			Email:           dto.Email,
			DisplayName:     dto.DisplayName,
			WeeklyHourQuota: dto.WeeklyHourQuota,
			Manager:         toUserRef(dto.Manager),
			Customers:       dto.Customers,
			Active:          dto.Active,
		}
		user.Department = compliance.DepartmentRef{
			Name:  dto.Department.Name,
			Owner: toUserRef(dto.Department.Owner),
		}
		if dto.EmploymentStart != "" {
			start, err := time.Parse("2006-01-02", dto.EmploymentStart)
			if err != nil {
				return nil, fmt.Errorf("user %s: bad employment start %q: %w", dto.ID, dto.EmploymentStart, err)
			}
			tp := compliance.DateOf(start)
			user.EmploymentStart = &tp
		}
		users = append(users, user)
	}
	return users, nil
}

func toUserRef(dto *userRefDTO) *compliance.UserRef {
	if dto == nil {
		return nil
	}
	return &compliance.UserRef{ID: dto.ID, Email: dto.Email, Name: dto.Name}
}
