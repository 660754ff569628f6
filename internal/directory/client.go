package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"courier/internal/platform/config"
	"courier/pkg/platform/sentinel"
)

// Client talks to the directory service over HTTP. It implements both
// ProfileGetter and OrganisationGetter.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a directory client from configuration.
func NewClient(cfg config.DirectoryConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, fmt.Sprintf("/v1/profiles/%s", userID), &profile); err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return &profile, nil
}

func (c *Client) GetOrganisation(ctx context.Context, organisationID uuid.UUID) (*Organisation, error) {
	var org Organisation
	if err := c.get(ctx, fmt.Sprintf("/v1/organisations/%s", organisationID), &org); err != nil {
		return nil, fmt.Errorf("get organisation %s: %w", organisationID, err)
	}
	return &org, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return sentinel.ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
