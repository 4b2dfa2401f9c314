package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public product search endpoint.
const DefaultBaseURL = "https://api-extern.systembolaget.se/sb-api-ecommerce/v1/productsearch/search"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.Code, e.URL)
}

// retryable reports whether another attempt could succeed.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTPSourceOptions configures an HTTPSource.
type HTTPSourceOptions struct {
	BaseURL           string
	APIKey            string
	PageSize          int
	MaxRetries        int           // retries after the first attempt
	RetryDelay        time.Duration // fixed delay between attempts
	Timeout           time.Duration // per request
	RequestsPerSecond float64       // <= 0 disables limiting
	UserAgent         string
	Client            *http.Client
	Logger            *slog.Logger
}

// HTTPSource fetches catalog pages from the product search API.
// Requests are sequential; each one waits on the rate limiter and failed
// attempts are retried with a constant delay.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	pageSize   int
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewHTTPSource validates opts and builds a source.
func NewHTTPSource(opts HTTPSourceOptions) (*HTTPSource, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 30
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "systemet-price-tracker/1.0"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		pageSize:   opts.PageSize,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		userAgent:  ua,
		client:     client,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// FetchPage implements Source.
func (s *HTTPSource) FetchPage(ctx context.Context, page int) (Page, error) {
	u, err := s.pageURL(page)
	if err != nil {
		return Page{}, err
	}

	attempt := 0
	payload, err := backoff.Retry(ctx, func() (apiPage, error) {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return apiPage{}, backoff.Permanent(err)
		}
		body, err := s.doGET(ctx, u)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.retryable() {
				return apiPage{}, backoff.Permanent(err)
			}
			return apiPage{}, err
		}
		// A truncated or garbled body is treated like a dropped connection.
		var p apiPage
		if err := json.Unmarshal(body, &p); err != nil {
			return apiPage{}, fmt.Errorf("decode page %d: %w", page, err)
		}
		return p, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(uint(s.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("catalog fetch failed, retrying",
				"page", page, "attempt", attempt, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page %d after %d attempt(s): %w", page, attempt, err)
	}

	return payload.toPage(page), nil
}

func (s *HTTPSource) pageURL(page int) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(s.pageSize))
	q.Set("sortBy", "Score")
	q.Set("sortDirection", "Ascending")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *HTTPSource) doGET(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if s.apiKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, URL: u}
	}
	return body, nil
}

type apiPage struct {
	Metadata struct {
		TotalPages int `json:"totalPages"`
	} `json:"metadata"`
	Products []apiProduct `json:"products"`
}

type apiProduct struct {
	ProductID              string  `json:"productId"`
	ProductNumber          string  `json:"productNumber"`
	ProductNumberShort     string  `json:"productNumberShort"`
	ProductNameBold        string  `json:"productNameBold"`
	ProductNameThin        string  `json:"productNameThin"`
	ProducerName           string  `json:"producerName"`
	SupplierName           string  `json:"supplierName"`
	CategoryLevel1         string  `json:"categoryLevel1"`
	CategoryLevel2         string  `json:"categoryLevel2"`
	CategoryLevel3         string  `json:"categoryLevel3"`
	Country                string  `json:"country"`
	ProductLaunchDate      string  `json:"productLaunchDate"`
	IsTemporaryOutOfStock  bool    `json:"isTemporaryOutOfStock"`
	IsCompletelyOutOfStock bool    `json:"isCompletelyOutOfStock"`
	Price                  float64 `json:"price"`
	Volume                 float64 `json:"volume"`
	AlcoholPercentage      float64 `json:"alcoholPercentage"`
}

func (p apiPage) toPage(number int) Page {
	out := Page{
		Number:     number,
		TotalPages: p.Metadata.TotalPages,
		Products:   make([]ProductSnapshot, 0, len(p.Products)),
	}
	for _, ap := range p.Products {
		out.Products = append(out.Products, ProductSnapshot{
			ID:                    strings.TrimSpace(ap.ProductID),
			ProductNumber:         ap.ProductNumber,
			ProductNumberShort:    ap.ProductNumberShort,
			NameBold:              ap.ProductNameBold,
			NameThin:              ap.ProductNameThin,
			Producer:              ap.ProducerName,
			Supplier:              ap.SupplierName,
			Category:              [3]string{ap.CategoryLevel1, ap.CategoryLevel2, ap.CategoryLevel3},
			Country:               ap.Country,
			LaunchDate:            NormalizeLaunchDate(ap.ProductLaunchDate),
			TemporarilyOutOfStock: ap.IsTemporaryOutOfStock,
			CompletelyOutOfStock:  ap.IsCompletelyOutOfStock,
			Price:                 ap.Price,
			VolumeML:              ap.Volume,
			AlcoholPercent:        ap.AlcoholPercentage,
		})
	}
	return out
}
