package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jingkaihe/skillfetch/pkg/logger"
)

const (
	defaultBaseURL  = "https://skillsmp.com/api/v1"
	defaultPageSize = 50
	requestTimeout  = 30 * time.Second

	// allPagesQuery is the broad query used for full and top-N listings; the
	// marketplace search endpoint requires a non-empty term.
	allPagesQuery = "a"
)

// ErrUnauthorized indicates the API token was rejected. Listing errors are
// startup errors: the run aborts before any fetch begins.
var ErrUnauthorized = errors.New("marketplace rejected the API token")

// Client is an authenticated SkillsMP API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageDelay  time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the marketplace API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithPageDelay overrides the delay between pagination requests
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pageDelay = d
	}
}

// NewClient creates a marketplace client authenticated with the given bearer
// token. An empty token is a startup error.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("marketplace API token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = requestTimeout

	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		pageDelay:  300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type pagination struct {
	HasNext bool `json:"hasNext"`
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Skills     []Skill    `json:"skills"`
		Pagination pagination `json:"pagination"`
	} `json:"data"`
}

// List queries the marketplace according to the request mode and returns the
// ordered candidate skills with the star floor already applied. Any error here
// is fatal to the run; no fetch has started yet.
func (c *Client) List(ctx context.Context, req ListRequest) ([]Skill, error) {
	switch req.Mode {
	case ModeSearch:
		return c.listSearch(ctx, req)
	case ModeTop:
		return c.listTop(ctx, req)
	case ModeAll:
		return c.listAll(ctx, req)
	default:
		return nil, errors.Errorf("unknown listing mode %q", req.Mode)
	}
}

func (c *Client) listSearch(ctx context.Context, req ListRequest) ([]Skill, error) {
	if req.Query == "" {
		return nil, errors.New("search mode requires a query")
	}

	skills, _, err := c.searchPage(ctx, req.Query, 1)
	if err != nil {
		return nil, err
	}
	return FilterByMinStars(skills, req.MinStars), nil
}

func (c *Client) listAll(ctx context.Context, req ListRequest) ([]Skill, error) {
	var all []Skill
	for page := 1; ; page++ {
		skills, pg, err := c.searchPage(ctx, allPagesQuery, page)
		if err != nil {
			return nil, err
		}
		if len(skills) == 0 {
			break
		}

		all = append(all, FilterByMinStars(skills, req.MinStars)...)
		logger.G(ctx).WithField("page", page).WithField("total", len(all)).Debug("fetched marketplace page")

		if !pg.HasNext {
			break
		}
		if err := c.waitBetweenPages(ctx); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (c *Client) listTop(ctx context.Context, req ListRequest) ([]Skill, error) {
	if req.TopN <= 0 {
		return nil, errors.Errorf("top mode requires a positive count, got %d", req.TopN)
	}

	var all []Skill
	for page := 1; len(all) < req.TopN; page++ {
		skills, pg, err := c.searchPage(ctx, allPagesQuery, page)
		if err != nil {
			return nil, err
		}
		if len(skills) == 0 {
			break
		}

		all = append(all, skills...)
		logger.G(ctx).WithField("page", page).WithField("total", len(all)).Debug("fetched marketplace page")

		if !pg.HasNext {
			break
		}
		if err := c.waitBetweenPages(ctx); err != nil {
			return nil, err
		}
	}

	if len(all) > req.TopN {
		all = all[:req.TopN]
	}
	return FilterByMinStars(all, req.MinStars), nil
}

// searchPage fetches one page of results, sorted by descending stars so page
// order is the candidate order.
func (c *Client) searchPage(ctx context.Context, query string, page int) ([]Skill, pagination, error) {
	endpoint := fmt.Sprintf("%s/skills/search", c.baseURL)

	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(defaultPageSize))
	params.Set("sortBy", "stars")
	params.Set("order", "desc")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, pagination{}, errors.Wrap(err, "failed to build search request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pagination{}, errors.Wrap(err, "marketplace request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, pagination{}, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, pagination{}, errors.New("marketplace rate limit hit while listing")
	case resp.StatusCode != http.StatusOK:
		return nil, pagination{}, errors.Errorf("marketplace returned HTTP %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, pagination{}, errors.Wrap(err, "failed to decode marketplace response")
	}
	if !parsed.Success {
		return nil, pagination{}, errors.New("marketplace returned an unsuccessful response")
	}

	return parsed.Data.Skills, parsed.Data.Pagination, nil
}

func (c *Client) waitBetweenPages(ctx context.Context) error {
	if c.pageDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(c.pageDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
