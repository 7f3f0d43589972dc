/*
chat.go - Chat platform HTTP client

PURPOSE:
  Implements notify.ChatPlatform over the chat service's JSON API. Space
  names are the platform's fully-qualified "spaces/<id>" form throughout.

REVERSE LOOKUP:
  The platform can enumerate the direct-message spaces the bot is a member
  of, but membership records expose only a user id and display name - no
  email. ReverseLookupBySpaceNames filters out the space names the caller
  already has cached, so the expensive enumeration shrinks as the address
  book fills in.
*/
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/compliance-engine/notify"
)

// ChatClient talks to the chat platform. Implements notify.ChatPlatform.
type ChatClient struct {
	BaseURL  string
	APIToken string
	HTTP     *http.Client
}

func NewChatClient(baseURL, apiToken string) *ChatClient {
	return &ChatClient{
		BaseURL:  baseURL,
		APIToken: apiToken,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type spaceDTO struct {
	Name        string `json:"name"` // "spaces/<id>"
	DisplayName string `json:"displayName"`
	Type        string `json:"type"` // "DIRECT_MESSAGE" or "ROOM"
	Member      struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	} `json:"member"`
}

// ReverseLookupBySpaceNames enumerates the bot's direct-message spaces,
// skipping those whose names are already known, and returns one email-less
// address per remaining space.
func (c *ChatClient) ReverseLookupBySpaceNames(ctx context.Context, knownSpaceNames []string) ([]notify.ChatAddress, error) {
	known := make(map[string]bool, len(knownSpaceNames))
	for _, name := range knownSpaceNames {
		known[name] = true
	}

	var spaces []spaceDTO
	if err := c.getJSON(ctx, "/v1/spaces?type=DIRECT_MESSAGE", &spaces); err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}

	var addresses []notify.ChatAddress
	for _, space := range spaces {
		if known[space.Name] {
			continue
		}
		addresses = append(addresses, notify.ChatAddress{
			SpaceID:     space.Name,
			UserID:      space.Member.UserID,
			DisplayName: space.Member.DisplayName,
		})
	}
	return addresses, nil
}

// SendDirectMessage posts a text message into the user's DM space.
func (c *ChatClient) SendDirectMessage(ctx context.Context, text string, to notify.ChatAddress) error {
	return c.postMessage(ctx, to.SpaceID, text)
}

// SendToSpace posts a text message into a shared space.
func (c *ChatClient) SendToSpace(ctx context.Context, text string, target notify.ChatTarget) error {
	return c.postMessage(ctx, target.SpaceID, text)
}

// ResolveSpaceByName looks a space up by its fully-qualified name. Returns
// (nil, nil) when the space does not exist; the caller skips it.
func (c *ChatClient) ResolveSpaceByName(ctx context.Context, name string) (*notify.ChatTarget, error) {
	var space spaceDTO
	// name is the resource form "spaces/<id>"; the slash is part of the path.
	err := c.getJSON(ctx, "/v1/"+name, &space)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve space %s: %w", name, err)
	}
	return &notify.ChatTarget{SpaceID: space.Name, Name: space.DisplayName}, nil
}

// =============================================================================
// HTTP plumbing
// =============================================================================

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("chat platform returned status %d", e.code) }

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *ChatClient) postMessage(ctx context.Context, spaceID, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/"+spaceID+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("chat platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func (c *ChatClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("chat platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
