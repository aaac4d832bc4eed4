package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
)

var _ port.ProductCatalog = (*DummyJSON)(nil)

const (
	DefaultBaseURL   = "https://dummyjson.com"
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
	defaultTimeout   = 5 * time.Second
	fetchAttempts    = 3
	fetchDelay       = 100 * time.Millisecond
)

// errUpstream marks responses worth retrying.
var errUpstream = errors.New("upstream unavailable")

type (
	productDTO struct {
		ID                 any      `json:"id"`
		Title              string   `json:"title"`
		Description        string   `json:"description"`
		Category           string   `json:"category"`
		Brand              string   `json:"brand"`
		Price              any      `json:"price"`
		DiscountPercentage float64  `json:"discountPercentage"`
		Rating             float64  `json:"rating"`
		Stock              int      `json:"stock"`
		Tags               []string `json:"tags"`
		Thumbnail          string   `json:"thumbnail"`
		Images             []string `json:"images"`
	}

	productsDTO struct {
		Products []productDTO `json:"products"`
	}

	categoryDTO struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}

	cacheEntry struct {
		value     any
		expiresAt time.Time
	}
)

type Opt func(*DummyJSON) error

func BaseURLOpt(baseURL string) Opt {
	return func(c *DummyJSON) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return err
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base url %q", baseURL)
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

func HTTPClientOpt(cl *http.Client) Opt {
	return func(c *DummyJSON) error {
		if cl == nil {
			return errors.New("http client is nil")
		}
		c.client = cl
		return nil
	}
}

// CacheOpt sets the number of cached responses and how long they stay
// fresh. A zero ttl disables caching.
func CacheOpt(size int, ttl time.Duration) Opt {
	return func(c *DummyJSON) error {
		if size <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", size)
		}
		cache, err := lru.New(size)
		if err != nil {
			return err
		}
		c.cache = cache
		c.ttl = ttl
		return nil
	}
}

func RetryOpt(cfg retry.RetryConfig) Opt {
	return func(c *DummyJSON) error {
		c.retryCfg = cfg
		return nil
	}
}

// DummyJSON reads products from the dummyjson.com products API.
type DummyJSON struct {
	baseURL  string
	client   *http.Client
	cache    *lru.Cache
	ttl      time.Duration
	retryCfg retry.RetryConfig
	now      func() time.Time
}

func NewDummyJSON(opts ...Opt) (*DummyJSON, error) {
	const op = "NewDummyJSON"

	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := &DummyJSON{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		cache:   cache,
		ttl:     defaultCacheTTL,
		retryCfg: retry.RetryConfig{
			MaxAttempts: fetchAttempts,
			Backoff:     retry.ExponentialBackoff(fetchDelay),
			ShouldRetry: func(err error) bool {
				return errors.Is(err, errUpstream)
			},
		},
		now: time.Now,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return c, nil
}

func (c *DummyJSON) ListProducts(
	ctx context.Context, q domain.ProductQuery,
) ([]domain.Product, error) {
	const op = "DummyJSON.ListProducts"

	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var path string
	switch {
	case q.Search != "":
		path = "/products/search"
		params.Set("q", q.Search)
	case q.Category != "":
		path = "/products/category/" + url.PathEscape(q.Category)
	default:
		path = "/products"
	}

	v, err := c.cached(ctx, path, params, func(data []byte) (any, error) {
		var dto productsDTO
		if err := decodeJSON(data, &dto); err != nil {
			return nil, err
		}
		ps := make([]domain.Product, 0, len(dto.Products))
		for _, p := range dto.Products {
			ps = append(ps, p.toDomain())
		}
		return ps, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ps := slices.Clone(v.([]domain.Product))
	if q.Search != "" && q.Category != "" {
		ps = slices.DeleteFunc(ps, func(p domain.Product) bool {
			return !strings.EqualFold(p.Category, q.Category)
		})
	}
	return ps, nil
}

func (c *DummyJSON) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	const op = "DummyJSON.ReadProduct"

	if productID == "" {
		return domain.Product{}, fmt.Errorf("%s: %w", op, domain.ErrProductNotFound)
	}

	path := "/products/" + url.PathEscape(productID)
	v, err := c.cached(ctx, path, nil, func(data []byte) (any, error) {
		var dto productDTO
		if err := decodeJSON(data, &dto); err != nil {
			return nil, err
		}
		return dto.toDomain(), nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return v.(domain.Product), nil
}

func (c *DummyJSON) ListCategories(
	ctx context.Context,
) ([]domain.Category, error) {
	const op = "DummyJSON.ListCategories"

	v, err := c.cached(ctx, "/products/categories", nil, func(data []byte) (any, error) {
		var dto []categoryDTO
		if err := decodeJSON(data, &dto); err != nil {
			return nil, err
		}
		cs := make([]domain.Category, 0, len(dto))
		for _, d := range dto {
			cs = append(cs, domain.Category{Slug: d.Slug, Name: d.Name})
		}
		return cs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slices.Clone(v.([]domain.Category)), nil
}

// cached serves path from the cache or fetches and decodes it.
func (c *DummyJSON) cached(
	ctx context.Context,
	path string,
	params url.Values,
	decode func([]byte) (any, error),
) (any, error) {
	key := path
	if len(params) != 0 {
		key += "?" + params.Encode()
	}

	if e, ok := c.cache.Get(key); ok {
		entry := e.(cacheEntry)
		if c.now().Before(entry.expiresAt) {
			return entry.value, nil
		}
		c.cache.Remove(key)
	}

	data, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]byte, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	v, err := decode(data)
	if err != nil {
		return nil, err
	}

	if c.ttl > 0 {
		c.cache.Add(key, cacheEntry{value: v, expiresAt: c.now().Add(c.ttl)})
	}
	return v, nil
}

func (c *DummyJSON) fetch(ctx context.Context, pathQuery string) ([]byte, error) {
	const op = "DummyJSON.fetch"
	log := slog.With("op", op, "path", pathQuery)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+pathQuery, nil,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Warn("request failed", "err", err)
		return nil, fmt.Errorf("%w: %w", errUpstream, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			log.Error("failed to close response body", "err", err)
		}
	}()

	data, err := readBody(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUpstream, err)
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, domain.ErrProductNotFound
	case res.StatusCode == http.StatusTooManyRequests,
		res.StatusCode >= http.StatusInternalServerError:
		log.Warn("upstream error", "status", res.StatusCode)
		return nil, fmt.Errorf("%w: status %d", errUpstream, res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return data, nil
}

func (d productDTO) toDomain() domain.Product {
	return domain.Product{
		ProductID:          domain.CoerceID(d.ID),
		Title:              d.Title,
		Description:        d.Description,
		Category:           d.Category,
		Brand:              d.Brand,
		Price:              domain.CoercePrice(d.Price),
		DiscountPercentage: d.DiscountPercentage,
		Rating:             d.Rating,
		Stock:              d.Stock,
		Tags:               d.Tags,
		Thumbnail:          d.Thumbnail,
		Images:             d.Images,
	}
}

// maxBodySize guards against unbounded upstream responses.
const maxBodySize = 4 << 20

func readBody(res *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(res.Body, maxBodySize))
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
