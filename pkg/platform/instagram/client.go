package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/retry"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/session"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Client performs authenticated requests against Instagram's web API.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retrier    *retry.Retrier
	logger     logger.Logger
}

// storageState is the captured browser state a session carries.
type storageState struct {
	Cookies []struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Domain string `json:"domain"`
	} `json:"cookies"`
}

// NewClient builds a client from a stored session. The session's
// cookies authenticate requests; its csrftoken doubles as the header
// Instagram checks. Zero fields on retryCfg fall back to defaults.
func NewClient(state *session.State, retryCfg retry.Config, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if state == nil || len(state.StorageState) == 0 {
		return nil, apperrors.ErrSessionMissing
	}

	var stored storageState
	if err := json.Unmarshal(state.StorageState, &stored); err != nil {
		return nil, apperrors.Newf(apperrors.ErrorTypeParsing, "invalid storage state: %v", err)
	}

	userAgent := state.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	headers := map[string]string{
		"User-Agent":       userAgent,
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.9",
		"X-IG-App-ID":      "936619743392459",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          BaseURL + "/",
	}

	var cookiePairs []string
	for _, c := range stored.Cookies {
		if c.Domain != "" && !strings.Contains(c.Domain, "instagram.com") {
			continue
		}
		cookiePairs = append(cookiePairs, c.Name+"="+c.Value)
		if c.Name == "csrftoken" {
			headers["X-CSRFToken"] = c.Value
		}
	}
	if len(cookiePairs) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeAuth, "storage state has no instagram cookies")
	}
	headers["Cookie"] = strings.Join(cookiePairs, "; ")

	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    headers,
		retrier:    retry.NewRetrier(retryCfg),
		logger:     log,
	}, nil
}

// GetJSON fetches the URL and decodes the JSON response into target,
// retrying transient failures.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	return c.retrier.Do(ctx, func() error {
		return c.getJSONOnce(ctx, url, target)
	})
}

func (c *Client) getJSONOnce(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Newf(apperrors.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return apperrors.Newf(apperrors.ErrorTypeNetwork, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Newf(apperrors.ErrorTypeNetwork, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return apperrors.Newf(apperrors.ErrorTypeParsing, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps HTTP status codes to typed errors.
func checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return &apperrors.Error{
			Type:    apperrors.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		return &apperrors.Error{
			Type:    apperrors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		return &apperrors.Error{
			Type:    apperrors.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &apperrors.Error{
			Type:    apperrors.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 400 {
			return &apperrors.Error{
				Type:    apperrors.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}
