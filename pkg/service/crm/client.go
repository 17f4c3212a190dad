package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"github.com/secmon-lab/crmsync/pkg/utils/safe"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"
	DefaultTimeout    = 20 * time.Second
	defaultPageSize   = 100
)

// client implements Service interface
type client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	userAgent  string
	pageSize   int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var _ Service = (*client)(nil)

type Option func(*client)

func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		if v := strings.TrimRight(strings.TrimSpace(baseURL), "/"); v != "" {
			c.baseURL = v
		}
	}
}

func WithAPIVersion(version string) Option {
	return func(c *client) {
		if v := strings.TrimSpace(version); v != "" {
			c.apiVersion = v
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *client) {
		c.userAgent = strings.TrimSpace(userAgent)
	}
}

// WithPageSize sets the number of users requested per page
func WithPageSize(size int) Option {
	return func(c *client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithRetry sets how many times a request is retried on 429/5xx or a
// transport error, and the bounds of the exponential backoff between tries.
func WithRetry(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(c *client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
	}
}

// New creates a CRM provider client
func New(opts ...Option) Service {
	c := &client{
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		pageSize:   defaultPageSize,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listUsersResponse struct {
	Users []*RemoteUser `json:"users"`
	Count *int          `json:"count"`
}

// maxUserPages bounds ListUsers against a server that keeps answering with
// new users forever.
const maxUserPages = 1000

// ListUsers collects every user of a location. The users endpoint may
// either page by skip/limit and report a count, or ignore both and return
// the whole list on every call. Paging stops on a short page, on a page that
// brings no new user, or once the reported count is reached.
func (c *client) ListUsers(ctx context.Context, token string, locationID types.LocationID) ([]*RemoteUser, error) {
	var users []*RemoteUser
	seen := make(map[string]struct{})

	for page := 0; ; page++ {
		if page >= maxUserPages {
			return nil, goerr.Wrap(ErrRemoteUnavailable, "too many user pages",
				goerr.V("location_id", locationID), goerr.V("pages", page))
		}

		skip := page * c.pageSize
		query := url.Values{}
		query.Set("locationId", string(locationID))
		query.Set("skip", strconv.Itoa(skip))
		query.Set("limit", strconv.Itoa(c.pageSize))

		var resp listUsersResponse
		if err := c.do(ctx, http.MethodGet, "/users/", query, token, nil, &resp); err != nil {
			return nil, goerr.Wrap(err, "failed to list users",
				goerr.V("location_id", locationID), goerr.V("skip", skip))
		}

		added := 0
		for _, u := range resp.Users {
			if u == nil {
				continue
			}
			if u.ID != "" {
				if _, ok := seen[u.ID]; ok {
					continue
				}
				seen[u.ID] = struct{}{}
				added++
			}
			users = append(users, u)
		}

		if len(resp.Users) < c.pageSize || added == 0 {
			break
		}
		if resp.Count != nil && len(users) >= *resp.Count {
			break
		}
	}

	logging.From(ctx).Debug("listed remote users", "location_id", locationID, "count", len(users))
	return users, nil
}

func (c *client) GetUser(ctx context.Context, token string, userID types.UserID) (*RemoteUser, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(string(userID)), nil, token, nil, &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("user_id", userID))
	}

	// Some API versions wrap the user in a "user" key, others return it bare
	var wrapped struct {
		User *RemoteUser `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	var user RemoteUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("user_id", userID))
	}
	return &user, nil
}

func (c *client) GetLocation(ctx context.Context, token string, locationID types.LocationID) (*Location, error) {
	var resp struct {
		Location *Location `json:"location"`
	}
	if err := c.do(ctx, http.MethodGet, "/locations/"+url.PathEscape(string(locationID)), nil, token, nil, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to get location", goerr.V("location_id", locationID))
	}
	if resp.Location == nil {
		return nil, goerr.Wrap(ErrRemoteUnavailable, "location missing in response", goerr.V("location_id", locationID))
	}
	return resp.Location, nil
}

type contactResponse struct {
	Contact *Contact `json:"contact"`
}

func (c *client) SearchContactByEmail(ctx context.Context, token string, locationID types.LocationID, email string) (*Contact, error) {
	query := url.Values{}
	query.Set("locationId", string(locationID))
	query.Set("email", email)

	var resp contactResponse
	if err := c.do(ctx, http.MethodGet, "/contacts/search/duplicate", query, token, nil, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to search contact",
			goerr.V("location_id", locationID), goerr.V("email", email))
	}
	if resp.Contact == nil || resp.Contact.ID == "" {
		return nil, nil
	}
	return resp.Contact, nil
}

// CreateContact goes through the upsert endpoint, which matches an existing
// contact of the location by email, so concurrent creates converge on one
// contact.
func (c *client) CreateContact(ctx context.Context, token string, input *ContactInput) (*Contact, error) {
	var resp contactResponse
	if err := c.do(ctx, http.MethodPost, "/contacts/upsert", nil, token, input, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to create contact",
			goerr.V("location_id", input.LocationID), goerr.V("email", input.Email))
	}
	if resp.Contact == nil {
		return nil, goerr.Wrap(ErrRemoteUnavailable, "contact missing in create response", goerr.V("email", input.Email))
	}
	return resp.Contact, nil
}

func (c *client) UpdateContact(ctx context.Context, token string, contactID types.ContactID, input *ContactInput) (*Contact, error) {
	// The update endpoint rejects locationId in the body
	body := *input
	body.LocationID = ""
	body.Tags = nil

	var resp contactResponse
	if err := c.do(ctx, http.MethodPut, "/contacts/"+url.PathEscape(string(contactID)), nil, token, &body, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to update contact", goerr.V("contact_id", contactID))
	}
	return resp.Contact, nil
}

func (c *client) AddTags(ctx context.Context, token string, contactID types.ContactID, tags []string) error {
	body := struct {
		Tags []string `json:"tags"`
	}{Tags: tags}

	// A contact that already carries the tags gets a 2xx with nothing added,
	// which do treats as success like any other 2xx.
	if err := c.do(ctx, http.MethodPost, "/contacts/"+url.PathEscape(string(contactID))+"/tags", nil, token, &body, nil); err != nil {
		return goerr.Wrap(err, "failed to add tags", goerr.V("contact_id", contactID), goerr.V("tags", tags))
	}
	return nil
}

// do sends one API request with retries and decodes a 2xx JSON response
// into out when out is not nil.
func (c *client) do(ctx context.Context, method, path string, query url.Values, token string, payload, out any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return goerr.New("access token is empty", goerr.V("path", path))
	}

	var bodyBytes []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return goerr.Wrap(err, "failed to encode request body", goerr.V("path", path))
		}
		bodyBytes = b
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return goerr.Wrap(err, "failed to build request", goerr.V("path", path))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Version", c.apiVersion)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return goerr.Wrap(ErrRemoteUnavailable, "request cancelled during retry", goerr.V("path", path), goerr.V("cause", waitErr.Error()))
				}
				continue
			}
			return goerr.Wrap(ErrRemoteUnavailable, "request failed",
				goerr.V("method", method), goerr.V("path", path), goerr.V("cause", err.Error()))
		}

		respBody, readErr := io.ReadAll(resp.Body)
		safe.Close(ctx, resp.Body)
		if readErr != nil {
			return goerr.Wrap(ErrRemoteUnavailable, "failed to read response",
				goerr.V("path", path), goerr.V("cause", readErr.Error()))
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
			}
			return nil
		}

		if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return goerr.Wrap(ErrRemoteUnavailable, "request cancelled during retry", goerr.V("path", path), goerr.V("cause", waitErr.Error()))
			}
			continue
		}

		return goerr.Wrap(ErrRemoteUnavailable, "CRM provider returned error status",
			goerr.V("method", method),
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("message", errorMessage(respBody)),
		)
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func errorMessage(body []byte) string {
	var parsed struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if s, ok := parsed.Message.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		if s, ok := parsed.Error.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func (c *client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return min(delay, c.maxDelay)
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
