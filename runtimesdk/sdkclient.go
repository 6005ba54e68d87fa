package runtimesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/modelservice"
	"github.com/contenox/modelrouter/selectorservice"
	"github.com/contenox/modelrouter/taskrunservice"
)

// Client is the SDK client that provides access to all services over HTTP.
type Client struct {
	ModelService    modelservice.Service
	TaskRunService  taskrunservice.Service
	BenchService    benchservice.Service
	SelectorService selectorservice.Service
	ConfigService   *HTTPConfigService
}

// Config holds configuration for the SDK client.
type Config struct {
	BaseURL string
	Token   string
}

func createClient(config Config, httpClient *http.Client) (*Client, error) {
	return &Client{
		ModelService:    NewHTTPModelService(config.BaseURL, config.Token, httpClient),
		TaskRunService:  NewHTTPTaskRunService(config.BaseURL, config.Token, httpClient),
		BenchService:    NewHTTPBenchService(config.BaseURL, config.Token, httpClient),
		SelectorService: NewHTTPSelectorService(config.BaseURL, config.Token, httpClient),
		ConfigService:   NewHTTPConfigService(config.BaseURL, config.Token, httpClient),
	}, nil
}

// NewClient validates version compatibility against the server and
// returns a ready client.
func NewClient(ctx context.Context, config Config, httpClient *http.Client) (*Client, error) {
	about, err := fetchServerVersion(ctx, config, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to validate server version: %w", err)
	}

	sdkVersion := apiframework.GetVersion()

	// Development builds skip the exact-match check.
	if about.Version == "unknown" || strings.Contains(about.Version, "dev") {
		return createClient(config, httpClient)
	}

	if sdkVersion != about.Version {
		return nil, fmt.Errorf(
			"version mismatch: server=%q, sdk=%q (must be identical)\n"+
				"Hint: Run 'go get github.com/contenox/modelrouter@%s' to fix",
			about.Version,
			sdkVersion,
			about.Version,
		)
	}

	return createClient(config, httpClient)
}

func fetchServerVersion(ctx context.Context, config Config, httpClient *http.Client) (apiframework.AboutServer, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/version", nil)
	if err != nil {
		return apiframework.AboutServer{}, err
	}
	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return apiframework.AboutServer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiframework.AboutServer{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var about apiframework.AboutServer
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		return apiframework.AboutServer{}, err
	}
	return about, nil
}

// httpService carries the shared plumbing for one HTTP-backed service.
type httpService struct {
	client  *http.Client
	baseURL string
	token   string
}

func newHTTPService(baseURL, token string, client *http.Client) httpService {
	if client == nil {
		client = http.DefaultClient
	}
	return httpService{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

// doJSON issues one request with an optional JSON body and decodes the
// response into out when out is non-nil.
func (s httpService) doJSON(ctx context.Context, method, path string, in, out any, wantStatus int) error {
	var body *bytes.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiframework.HandleAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
