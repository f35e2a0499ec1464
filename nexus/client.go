package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultUserAgent = "nxrm-staging-client"
	DefaultRetryMax  = 3

	statusPath       = "service/rest/wonderland/status"
	repositoriesPath = "service/rest/v1/repositories"
	componentsPath   = "service/rest/v1/components"
	searchPath       = "service/rest/v1/search"
	tagsPath         = "service/rest/v1/tags"
	associatePath    = "service/rest/v1/tags/associate"
	movePath         = "service/rest/v1/staging/move"
	deletePath       = "service/rest/v1/staging/delete"
)

// RepositoryManager is the set of NXRM3 operations the staging goals rely on.
type RepositoryManager interface {
	GetVersion(ctx context.Context) (*NxrmVersion, error)
	GetRepositories(ctx context.Context) ([]Repository, error)
	// Upload posts component to repository. An empty tag uploads untagged.
	Upload(ctx context.Context, repository string, component *Component, tag string) error
	// GetTag reports found=false when the server has no tag called name.
	GetTag(ctx context.Context, name string) (tag *Tag, found bool, err error)
	CreateTag(ctx context.Context, name string, attributes map[string]interface{}) (*Tag, error)
	Associate(ctx context.Context, tag string, search map[string]string) ([]ComponentInfo, error)
	Disassociate(ctx context.Context, tag string, search map[string]string) ([]ComponentInfo, error)
	Move(ctx context.Context, destination string, search map[string]string) ([]ComponentInfo, error)
	MoveByTag(ctx context.Context, destination, tag string) ([]ComponentInfo, error)
	Delete(ctx context.Context, search map[string]string) ([]ComponentInfo, error)
	DeleteByTag(ctx context.Context, tag string) ([]ComponentInfo, error)
	Search(ctx context.Context, search map[string]string) ([]SearchItem, error)
}

type V3Client struct {
	server    *ServerConfig
	http      *retryablehttp.Client
	userAgent string
}

var _ RepositoryManager = (*V3Client)(nil)

type request struct {
	name        string
	method      string
	url         string
	body        []byte
	contentType string
}

func (c *V3Client) GetVersion(ctx context.Context) (*NxrmVersion, error) {
	return execute(ctx, c, request{
		name:   "Get server version",
		method: http.MethodGet,
		url:    c.server.resolve(statusPath),
	}, versionHandler)
}

func (c *V3Client) GetRepositories(ctx context.Context) ([]Repository, error) {
	return execute(ctx, c, request{
		name:   "Get repositories",
		method: http.MethodGet,
		url:    c.server.resolve(repositoriesPath),
	}, repositoriesHandler)
}

func (c *V3Client) Upload(ctx context.Context, repository string, component *Component, tag string) error {
	if err := checkArgument(!isBlank(repository), "repository name is required"); err != nil {
		return err
	}
	if err := checkArgument(component != nil, "component is required"); err != nil {
		return err
	}
	if err := checkArgument(len(component.Assets) > 0, "component must have at least one asset"); err != nil {
		return err
	}
	form, err := newUploadForm(component, tag)
	if err != nil {
		return unableToComplete("Upload component", err)
	}
	log.WithFields(log.Fields{
		"repository": repository,
		"assets":     len(component.Assets),
		"tag":        tag,
	}).Debug("uploading component")
	_, err = execute(ctx, c, request{
		name:        "Upload component",
		method:      http.MethodPost,
		url:         c.server.resolve(componentsPath) + "?" + url.Values{"repository": {repository}}.Encode(),
		body:        form.body.Bytes(),
		contentType: form.contentType,
	}, noopHandler)
	return err
}

func (c *V3Client) GetTag(ctx context.Context, name string) (*Tag, bool, error) {
	if err := checkArgument(!isBlank(name), "tag name is required"); err != nil {
		return nil, false, err
	}
	result, err := execute(ctx, c, request{
		name:   "Get tag",
		method: http.MethodGet,
		url:    c.server.resolve(tagsPath + "/" + name),
	}, getTagHandler)
	if err != nil {
		return nil, false, err
	}
	return result.tag, result.found, nil
}

func (c *V3Client) CreateTag(ctx context.Context, name string, attributes map[string]interface{}) (*Tag, error) {
	tag, err := NewTag(name, attributes)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(tag)
	if err != nil {
		return nil, unableToComplete("Create tag", err)
	}
	return execute(ctx, c, request{
		name:        "Create tag",
		method:      http.MethodPost,
		url:         c.server.resolve(tagsPath),
		body:        body,
		contentType: "application/json",
	}, createTagHandler)
}

func (c *V3Client) Associate(ctx context.Context, tag string, search map[string]string) ([]ComponentInfo, error) {
	return c.tagRequest(ctx, "Associate tag", http.MethodPost, tag, search, associatedKey)
}

func (c *V3Client) Disassociate(ctx context.Context, tag string, search map[string]string) ([]ComponentInfo, error) {
	return c.tagRequest(ctx, "Disassociate tag", http.MethodDelete, tag, search, disassociatedKey)
}

func (c *V3Client) tagRequest(ctx context.Context, name, method, tag string, search map[string]string, key string) ([]ComponentInfo, error) {
	if err := checkArgument(!isBlank(tag), "tag name is required"); err != nil {
		return nil, err
	}
	if err := checkSearch(search); err != nil {
		return nil, err
	}
	return execute(ctx, c, request{
		name:   name,
		method: method,
		url:    c.server.resolve(associatePath+"/"+tag) + "?" + encodeSearch(search),
	}, componentInfoHandler(key))
}

func (c *V3Client) Move(ctx context.Context, destination string, search map[string]string) ([]ComponentInfo, error) {
	if err := checkArgument(!isBlank(destination), "destination repository is required"); err != nil {
		return nil, err
	}
	if err := checkSearch(search); err != nil {
		return nil, err
	}
	return execute(ctx, c, request{
		name:   "Move components",
		method: http.MethodPost,
		url:    c.server.resolve(movePath+"/"+destination) + "?" + encodeSearch(search),
	}, componentInfoHandler(movedKey))
}

func (c *V3Client) MoveByTag(ctx context.Context, destination, tag string) ([]ComponentInfo, error) {
	if err := checkArgument(!isBlank(tag), "tag name is required"); err != nil {
		return nil, err
	}
	return c.Move(ctx, destination, map[string]string{SearchTag: tag})
}

func (c *V3Client) Delete(ctx context.Context, search map[string]string) ([]ComponentInfo, error) {
	if err := checkSearch(search); err != nil {
		return nil, err
	}
	return execute(ctx, c, request{
		name:   "Delete components",
		method: http.MethodPost,
		url:    c.server.resolve(deletePath) + "?" + encodeSearch(search),
	}, componentInfoHandler(deletedKey))
}

func (c *V3Client) DeleteByTag(ctx context.Context, tag string) ([]ComponentInfo, error) {
	if err := checkArgument(!isBlank(tag), "tag name is required"); err != nil {
		return nil, err
	}
	return c.Delete(ctx, map[string]string{SearchTag: tag})
}

// Search follows continuation tokens until every page has been read.
func (c *V3Client) Search(ctx context.Context, search map[string]string) ([]SearchItem, error) {
	if err := checkSearch(search); err != nil {
		return nil, err
	}
	items := []SearchItem{}
	var token string
	for {
		values, _ := url.ParseQuery(encodeSearch(search))
		if token != "" {
			values.Set("continuationToken", token)
		}
		page, err := execute(ctx, c, request{
			name:   "Search components",
			method: http.MethodGet,
			url:    c.server.resolve(searchPath) + "?" + values.Encode(),
		}, searchHandler)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.ContinuationToken == nil || *page.ContinuationToken == "" {
			return items, nil
		}
		token = *page.ContinuationToken
	}
}

func checkSearch(search map[string]string) error {
	if err := checkArgument(len(search) > 0, "search parameters are required"); err != nil {
		return err
	}
	for name, value := range search {
		if err := checkArgument(!isBlank(name) && !isBlank(value), "search parameter '%s' must have a name and a value", name); err != nil {
			return err
		}
	}
	return nil
}

func execute[T any](ctx context.Context, c *V3Client, r request, handler responseHandler[T]) (T, error) {
	var zero T
	var body interface{}
	if r.body != nil {
		body = r.body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return zero, unableToComplete(r.name, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if auth := c.server.Authentication; auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, unableToComplete(r.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, unableToComplete(r.name, err)
	}

	log.WithFields(log.Fields{
		"request": r.name,
		"method":  r.method,
		"url":     r.url,
		"status":  resp.StatusCode,
	}).Debug("nexus responded")

	if !handler.statusAllowed(resp.StatusCode) {
		return zero, unsuccessful(r.name, resp.StatusCode, responseMessage(respBody))
	}
	result, err := handler.handle(resp.StatusCode, respBody)
	if err != nil {
		return zero, unableToComplete(r.name, fmt.Errorf("failed to decode response: %w", err))
	}
	return result, nil
}

// ClientBuilder assembles a V3Client.
type ClientBuilder struct {
	server             *ServerConfig
	proxy              *ProxyConfig
	httpClient         *http.Client
	userAgent          string
	retryMax           int
	insecureSkipVerify bool
}

func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{userAgent: DefaultUserAgent, retryMax: DefaultRetryMax}
}

func (b *ClientBuilder) WithServerConfig(server *ServerConfig) *ClientBuilder {
	b.server = server
	return b
}

func (b *ClientBuilder) WithProxyConfig(proxy *ProxyConfig) *ClientBuilder {
	b.proxy = proxy
	return b
}

// WithHTTPClient replaces the pooled client; proxy and TLS settings are then left to the caller.
func (b *ClientBuilder) WithHTTPClient(httpClient *http.Client) *ClientBuilder {
	b.httpClient = httpClient
	return b
}

func (b *ClientBuilder) WithUserAgent(userAgent string) *ClientBuilder {
	if userAgent != "" {
		b.userAgent = userAgent
	}
	return b
}

func (b *ClientBuilder) WithRetryMax(retryMax int) *ClientBuilder {
	b.retryMax = retryMax
	return b
}

func (b *ClientBuilder) WithInsecureSkipVerify(insecure bool) *ClientBuilder {
	b.insecureSkipVerify = insecure
	return b
}

func (b *ClientBuilder) Build() (*V3Client, error) {
	if err := checkArgument(b.server != nil, "server configuration is required"); err != nil {
		return nil, err
	}

	httpClient := b.httpClient
	if httpClient == nil {
		transport := cleanhttp.DefaultPooledTransport()
		tlsConfig, err := b.server.tlsConfig(b.insecureSkipVerify)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
		if b.proxy != nil {
			transport.Proxy = b.proxy.proxyFunc()
		}
		httpClient = &http.Client{Transport: transport}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = b.retryMax
	retryClient.CheckRetry = retryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = retryLogger{entry: log.WithField("component", "nexus-client")}

	return &V3Client{server: b.server, http: retryClient, userAgent: b.userAgent}, nil
}

// retryPolicy retries transport failures and gateway errors. NXRM answers everything else deterministically.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

type retryLogger struct {
	entry *log.Entry
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Trace(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Warn(msg)
}

func toFields(keysAndValues []interface{}) log.Fields {
	fields := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
