package cropapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
)

const (
	pathDetect  = "/api/detect"
	pathStats   = "/api/stats"
	pathHistory = "/api/detections/history"
	pathAddCrop = "/api/add-crop"
)

// BreakerOperations lists the executor operations the client runs calls under.
var BreakerOperations = []string{"cropapi.detect", "cropapi.stats", "cropapi.history", "cropapi.add_crop"}

// Observer receives one record per backend call.
type Observer interface {
	ObserveUpstream(endpoint, outcome string, duration time.Duration)
}

type Options struct {
	// Cookie is forwarded verbatim on every request when set.
	Cookie string
	// DetectTimeout bounds a detect call; zero leaves it to the caller's context.
	DetectTimeout time.Duration
	FetchTimeout  time.Duration
	Executor      *resilience.Executor
	Contract      *Contract
	Observer      Observer
	HTTPClient    *http.Client
}

// Client talks to the CropGuard backend. It implements ports.Detector,
// ports.DashboardSource and ports.CropRegistrar.
type Client struct {
	baseURL       string
	cookie        string
	detectTimeout time.Duration
	fetchTimeout  time.Duration
	httpClient    *http.Client
	executor      *resilience.Executor
	contract      *Contract
	observer      Observer
	now           func() time.Time
}

func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		cookie:        strings.TrimSpace(opts.Cookie),
		detectTimeout: opts.DetectTimeout,
		fetchTimeout:  opts.FetchTimeout,
		httpClient:    httpClient,
		executor:      opts.Executor,
		contract:      opts.Contract,
		observer:      opts.Observer,
		now:           time.Now,
	}
}

// Detect uploads the image once. Any failure is reported as RequestFailed.
func (c *Client) Detect(ctx context.Context, image domain.SelectedImage) (*domain.DetectionResult, error) {
	if len(image.Data) == 0 {
		return nil, domain.WrapError(domain.ErrNoImageSelected, "detect", fmt.Errorf("image has no content"))
	}

	var result domain.DetectionResult
	err := c.call(ctx, "detect", c.detectTimeout, func(ctx context.Context) error {
		return c.postImage(ctx, pathDetect, image, &result, "detect")
	})
	if err != nil {
		return nil, detectError(err)
	}
	if result.DiseaseInfo.Treatment == nil {
		result.DiseaseInfo.Treatment = []string{}
	}
	if result.DiseaseInfo.Prevention == nil {
		result.DiseaseInfo.Prevention = []string{}
	}
	return &result, nil
}

func (c *Client) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := c.call(ctx, "stats", c.fetchTimeout, func(ctx context.Context) error {
		return c.getJSON(ctx, pathStats, &stats, "stats")
	})
	if err != nil {
		return nil, fetchError("load stats", err)
	}
	if stats.DiseaseDistribution == nil {
		stats.DiseaseDistribution = map[string]int{}
	}
	return &stats, nil
}

func (c *Client) History(ctx context.Context) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := c.call(ctx, "history", c.fetchTimeout, func(ctx context.Context) error {
		return c.getJSON(ctx, pathHistory, &entries, "history")
	})
	if err != nil {
		return nil, fetchError("load history", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (c *Client) AddCrop(ctx context.Context, form domain.CropForm) (*domain.CropReceipt, error) {
	payload := make(map[string]string, len(form))
	for key, value := range form {
		payload[key] = value
	}

	var receipt domain.CropReceipt
	err := c.call(ctx, "add_crop", c.fetchTimeout, func(ctx context.Context) error {
		return c.postJSON(ctx, pathAddCrop, payload, &receipt, "add_crop")
	})
	if err != nil {
		return nil, fetchError("add crop", err)
	}
	return &receipt, nil
}

func (c *Client) call(ctx context.Context, endpoint string, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := c.now()
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "cropapi."+endpoint, fn, classifyBackendError)
	} else {
		err = fn(ctx)
	}
	if c.observer != nil {
		c.observer.ObserveUpstream(endpoint, outcomeOf(err), c.now().Sub(start))
	}
	return err
}
