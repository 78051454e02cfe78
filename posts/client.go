package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dse-portal/noticeboard/auth"
	"github.com/dse-portal/noticeboard/env"
	"github.com/dse-portal/noticeboard/types"
)

// MaxAttachmentSize is the largest attachment the client will send;
// larger files are rejected before any request is issued
const MaxAttachmentSize = int64(10 * datasize.MB)

const multipartPartKey string = "file"

// The deployment sits behind a tunnel that interposes a warning page
// unless this header is present
const (
	tunnelBypassHeader      = "ngrok-skip-browser-warning"
	tunnelBypassHeaderValue = "true"
)

// Client is the single point of contact with the portal API for all
// post-related reads and writes. Mutations never patch local state:
// callers replace their copy with the returned authoritative post
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *auth.Session
	logger     zerolog.Logger
}

// NewClient creates a client against the given base URL,
// attaching the session's token to every outgoing request
func NewClient(baseURL string, session *auth.Session, logger zerolog.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid portal base URL '%s'", baseURL)
	}

	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		session:    session,
		logger:     logger,
	}, nil
}

// NewClientFromEnv creates a client
// and loads the base URL from the environment
func NewClientFromEnv(session *auth.Session, logger zerolog.Logger) (*Client, error) {
	baseURL, err := env.GetEnv("portal base URL", "PORTAL_BASE_URL")
	if err != nil {
		return nil, err
	}

	return NewClient(baseURL, session, logger)
}

// WithHTTPClient swaps the underlying HTTP client,
// used to inject custom transports in tests
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// ListActive gets all posts in the active bucket,
// in the server-defined (reverse-chronological) order
func (c *Client) ListActive(ctx context.Context) ([]types.Post, error) {
	return c.list(ctx, "list active posts", "posts/active")
}

// ListArchived gets all posts that have aged past the retention window
func (c *Client) ListArchived(ctx context.Context) ([]types.Post, error) {
	return c.list(ctx, "list archived posts", "posts/archived")
}

// Get gets a single post by its ID
func (c *Client) Get(ctx context.Context, id int) (*types.Post, error) {
	return c.getPost(ctx, "get post", fmt.Sprintf("posts/%d", id), id)
}

// GetArchived gets a single archived post by its ID
func (c *Client) GetArchived(ctx context.Context, id int) (*types.Post, error) {
	return c.getPost(ctx, "get archived post", fmt.Sprintf("posts/archived/%d", id), id)
}

// Create creates a new post; the returned post carries the server-assigned
// ID and audit timestamps and an empty attachment list
func (c *Client) Create(ctx context.Context, payload types.PostCreate) (*types.Post, error) {
	operation := "create post"
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(operation, err.Error())
	}

	res, err := c.doJSON(ctx, operation, http.MethodPost, "posts", payload)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	return c.decodePost(operation, res.Body)
}

// Update replaces a post's fields wholesale (PUT semantics, not a patch)
func (c *Client) Update(ctx context.Context, id int, payload types.PostUpdate) (*types.Post, error) {
	operation := "update post"
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(operation, err.Error())
	}

	res, err := c.doJSON(ctx, operation, http.MethodPut, fmt.Sprintf("posts/%d", id), payload)
	if err != nil {
		return nil, c.mapIDError(err, id)
	}
	defer res.Body.Close()

	return c.decodePost(operation, res.Body)
}

// Remove deletes a post; the server cascades the delete to its attachments.
// This is irreversible from the client's perspective
func (c *Client) Remove(ctx context.Context, id int) error {
	operation := "delete post"
	res, err := c.do(ctx, operation, http.MethodDelete, fmt.Sprintf("posts/%d", id), "", nil)
	if err != nil {
		return c.mapIDError(err, id)
	}
	defer res.Body.Close()

	return nil
}

// AddAttachment uploads a file to the post via a multipart request and
// returns the entire updated post so the caller's view stays consistent.
// Files over the size limit are rejected without issuing a request
func (c *Client) AddAttachment(ctx context.Context, id int, filename string,
	size int64, file io.Reader) (*types.Post, error) {
	operation := "upload attachment"
	if size > MaxAttachmentSize {
		return nil, NewFileTooLargeError(filename, size, MaxAttachmentSize)
	}

	// Assemble the multipart body with the file under the expected part key
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(multipartPartKey, filename)
	if err != nil {
		return nil, errors.Wrap(err, "could not create multipart body")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Wrapf(err, "could not read file '%s'", filename)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finalize multipart body")
	}

	res, err := c.do(ctx, operation, http.MethodPost, fmt.Sprintf("posts/%d/attachments", id),
		writer.FormDataContentType(), &body)
	if err != nil {
		return nil, c.mapIDError(err, id)
	}
	defer res.Body.Close()

	return c.decodePost(operation, res.Body)
}

// RemoveAttachment deletes one attachment from the post and
// returns the entire updated post
func (c *Client) RemoveAttachment(ctx context.Context, postID int, attachmentID int) (*types.Post, error) {
	operation := "remove attachment"
	res, err := c.do(ctx, operation, http.MethodDelete,
		fmt.Sprintf("posts/%d/attachments/%d", postID, attachmentID), "", nil)
	if err != nil {
		return nil, c.mapIDError(err, postID)
	}
	defer res.Body.Close()

	return c.decodePost(operation, res.Body)
}

// ArchiveStats gets the dashboard summary of the active/archived partition
func (c *Client) ArchiveStats(ctx context.Context) (*types.ArchiveStats, error) {
	operation := "get archive stats"
	res, err := c.do(ctx, operation, http.MethodGet, "posts/stats/archive", "", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	stats := types.ArchiveStats{}
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		return nil, NewInvalidResponseError(operation, err.Error())
	}

	return &stats, nil
}

// Expected JSON shape of the list endpoints
type postListResponse struct {
	Posts []types.Post `json:"posts"`
}

func (c *Client) list(ctx context.Context, operation string, endpoint string) ([]types.Post, error) {
	res, err := c.do(ctx, operation, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	result := postListResponse{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, NewInvalidResponseError(operation, err.Error())
	}

	// Reject malformed entries instead of trusting the network response
	for i := range result.Posts {
		if err := result.Posts[i].Validate(); err != nil {
			return nil, NewInvalidResponseError(operation, err.Error())
		}
	}

	return result.Posts, nil
}

func (c *Client) getPost(ctx context.Context, operation string, endpoint string, id int) (*types.Post, error) {
	res, err := c.do(ctx, operation, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, c.mapIDError(err, id)
	}
	defer res.Body.Close()

	return c.decodePost(operation, res.Body)
}

func (c *Client) decodePost(operation string, body io.Reader) (*types.Post, error) {
	post := types.Post{}
	if err := json.NewDecoder(body).Decode(&post); err != nil {
		return nil, NewInvalidResponseError(operation, err.Error())
	}
	if err := post.Validate(); err != nil {
		return nil, NewInvalidResponseError(operation, err.Error())
	}
	if post.Attachments == nil {
		post.Attachments = []types.Attachment{}
	}

	return &post, nil
}

func (c *Client) doJSON(ctx context.Context, operation string, method string,
	endpoint string, payload interface{}) (*http.Response, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "could not serialize %s payload", operation)
	}

	return c.do(ctx, operation, method, endpoint, "application/json", bytes.NewReader(encoded))
}

// do performs a single request against the portal API, attaching the
// session's bearer token when one exists and mapping non-2xx responses
// to typed errors
func (c *Client) do(ctx context.Context, operation string, method string,
	endpoint string, contentType string, body io.Reader) (*http.Response, error) {
	requestURL, err := c.baseURL.Parse(path.Join(c.baseURL.Path, endpoint))
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve endpoint '%s'", endpoint)
	}

	req, err := http.NewRequest(method, requestURL.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "could not build %s request", operation)
	}
	req = req.WithContext(ctx)

	req.Header.Set("Accept", "application/json")
	req.Header.Set(tunnelBypassHeader, tunnelBypassHeaderValue)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session.HasToken() {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.session.Token()))
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not %s", operation)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		message := readErrorMessage(res.Body)
		c.logger.Debug().
			Str("operation", operation).
			Int("status", res.StatusCode).
			Str("message", message).
			Msg("portal API request failed")
		return nil, c.statusError(operation, res.StatusCode, message)
	}

	return res, nil
}

// statusError differentiates the interesting status codes into typed errors;
// everything else collapses into a generic StatusError
func (c *Client) statusError(operation string, statusCode int, message string) error {
	switch statusCode {
	case http.StatusNotFound:
		return NewNotFoundError(operation, 0)
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewUnauthorizedError(operation, statusCode)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return NewValidationError(operation, message)
	default:
		return NewStatusError(operation, statusCode, message)
	}
}

// mapIDError fills in the subject ID on not-found errors
// raised by ID-scoped operations
func (c *Client) mapIDError(err error, id int) error {
	if notFound, ok := err.(*NotFoundError); ok {
		notFound.ID = id
	}
	return err
}

// readErrorMessage tries to parse the standardized error JSON shape,
// tolerating bodies that are not JSON at all
func readErrorMessage(body io.Reader) string {
	raw, err := ioutil.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}

	response := types.ErrorResponse{}
	if err := json.Unmarshal(raw, &response); err != nil {
		return ""
	}

	return response.Message
}
