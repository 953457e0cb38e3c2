package omeka

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

	"go.uber.org/zap"

	"github.com/teranos/omekalink/am"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/internal/httpclient"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/version"
)

// maxResponseBytes bounds any single API response read into memory
const maxResponseBytes = 32 << 20

// Client talks to one Omeka S instance
type Client struct {
	apiURL string
	http   *httpclient.Client
	logger *zap.SugaredLogger
}

// Config holds configuration for the Omeka S client
type Config struct {
	APIURL        string // e.g. "https://example.org/api"
	KeyIdentity   string
	KeyCredential string
	Timeout       time.Duration // Default: 30s

	RequestsPerSecond float64 // 0 = unlimited
	BlockPrivateIP    bool

	// Transport overrides the base HTTP transport, mainly for tests
	Transport http.RoundTripper

	Logger *zap.SugaredLogger
}

// NewClient creates a client for the instance at cfg.APIURL
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = am.DefaultTimeoutSeconds * time.Second
	}
	log := logger.OrNop(cfg.Logger)

	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		http: httpclient.New(httpclient.Options{
			Timeout:           timeout,
			KeyIdentity:       cfg.KeyIdentity,
			KeyCredential:     cfg.KeyCredential,
			RequestsPerSecond: cfg.RequestsPerSecond,
			BlockPrivateIP:    cfg.BlockPrivateIP,
			Transport:         cfg.Transport,
			Logger:            log.Named("http"),
		}),
		logger: log,
	}
}

// NewClientFromConfig creates a client from an [omeka] or [instances.*] section
func NewClientFromConfig(cfg am.OmekaConfig, log *zap.SugaredLogger) (*Client, error) {
	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}
	return NewClient(Config{
		APIURL:            cfg.APIURL,
		KeyIdentity:       cfg.KeyIdentity,
		KeyCredential:     cfg.KeyCredential,
		Timeout:           time.Duration(cfg.GetTimeoutSeconds()) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		BlockPrivateIP:    cfg.BlockPrivateIP,
		Logger:            log,
	}), nil
}

// APIURL returns the API root this client talks to
func (c *Client) APIURL() string {
	return c.apiURL
}

// ItemQuery selects one page of items
type ItemQuery struct {
	Page      int    // 1-based
	PerPage   int
	ItemSetID *int64 // nil = whole repository
}

func (q ItemQuery) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("per_page", strconv.Itoa(q.PerPage))
	if q.ItemSetID != nil {
		v.Set("item_set_id", strconv.FormatInt(*q.ItemSetID, 10))
	}
	return v
}

// ListItems returns one page of items. An empty slice means the page is past the end.
func (c *Client) ListItems(ctx context.Context, q ItemQuery) ([]Resource, error) {
	var items []Resource
	if err := c.do(ctx, http.MethodGet, "/items?"+q.values().Encode(), nil, &items); err != nil {
		return nil, errors.Wrapf(err, "failed to list items page %d", q.Page)
	}
	return items, nil
}

// GetItem fetches one item
func (c *Client) GetItem(ctx context.Context, id int64) (Resource, error) {
	var item Resource
	if err := c.do(ctx, http.MethodGet, itemPath(id), nil, &item); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch item %d", id)
	}
	return item, nil
}

// ReplaceItem replaces an item with a full-replace PUT.
// The payload is stripped of read-only fields before sending.
func (c *Client) ReplaceItem(ctx context.Context, id int64, item Resource) (Resource, error) {
	var updated Resource
	if err := c.do(ctx, http.MethodPut, itemPath(id), StripReadOnly(item), &updated); err != nil {
		return nil, errors.Wrapf(err, "failed to update item %d", id)
	}
	return updated, nil
}

// ItemSetExists probes an item set. 404 means absent; any other failure is an error.
func (c *Client) ItemSetExists(ctx context.Context, id int64) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/item_sets/"+strconv.FormatInt(id, 10), nil, nil)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to probe item set %d", id)
}

// ItemSetRef returns the membership entry for an item set on this instance
func (c *Client) ItemSetRef(id int64) Reference {
	return Reference{AtID: c.apiURL + "/item_sets/" + strconv.FormatInt(id, 10), ID: id}
}

// GetMedia fetches one media resource
func (c *Client) GetMedia(ctx context.Context, id int64) (Resource, error) {
	var media Resource
	if err := c.do(ctx, http.MethodGet, "/media/"+strconv.FormatInt(id, 10), nil, &media); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch media %d", id)
	}
	return media, nil
}

// CreateMedia creates a media resource. The payload must carry o:item.
func (c *Client) CreateMedia(ctx context.Context, media Resource) (Resource, error) {
	var created Resource
	if err := c.do(ctx, http.MethodPost, "/media", media, &created); err != nil {
		return nil, errors.Wrap(err, "failed to create media")
	}
	return created, nil
}

func itemPath(id int64) string {
	return "/items/" + strconv.FormatInt(id, 10)
}

// do performs one request. out may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, method, path string, in interface{}, out interface{}) error {
	endpoint := c.apiURL + path

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.Get().UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "failed to read response from %s %s", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(method, endpoint, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s %s", method, path)
	}
	return nil
}
