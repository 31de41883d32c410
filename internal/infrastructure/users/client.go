package users

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

// Client looks users up in the user management service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type userResponse struct {
	ID json.Number `json:"id"`
}

// FindUserIDByEmail resolves an email to a user id. A 404 from the service
// maps to domain.ErrUserNotFound.
func (c *Client) FindUserIDByEmail(ctx context.Context, email string) (int64, error) {
	endpoint := c.baseURL + "/api/users/by-email?email=" + url.QueryEscape(email)
	c.log.Debug("Looking up user by email", "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build user lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("user lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read user lookup response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.log.Debug("User lookup returned not found", "status", resp.StatusCode, "body", string(body))
		return 0, domain.ErrUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, fmt.Errorf("user lookup: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return 0, fmt.Errorf("decode user lookup response: %w", err)
	}
	if user.ID == "" {
		return 0, domain.ErrUserNotFound
	}

	id, err := strconv.ParseInt(user.ID.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user lookup: invalid id %q: %w", user.ID, err)
	}
	return id, nil
}
