package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

// StoredComponent is a component held by FakeNexus.
type StoredComponent struct {
	Repository string
	Format     string
	Group      string
	Name       string
	Version    string
	Tags       []string
	// Fields holds every non-file form field of the upload.
	Fields map[string]string
	// Files maps form field name to uploaded filename and content.
	Files map[string]UploadedFile
}

type UploadedFile struct {
	Filename string
	Content  []byte
}

type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

type cannedResponse struct {
	status  int
	message string
}

// FakeNexus is an in-memory NXRM3 serving the endpoints the client talks to.
type FakeNexus struct {
	Server *httptest.Server
	// Username and Password, when set, are required as basic credentials on every request.
	Username string
	Password string
	// PageSize limits search results per page so continuation tokens get exercised.
	PageSize int

	mu         sync.Mutex
	requests   []RecordedRequest
	tags       map[string]map[string]interface{}
	components []*StoredComponent
	failures   map[string]cannedResponse
}

func NewFakeNexus() *FakeNexus {
	f := &FakeNexus{
		PageSize: 50,
		tags:     map[string]map[string]interface{}{},
		failures: map[string]cannedResponse{},
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(f.record, f.authenticate, f.fail)

	e.GET("/service/rest/wonderland/status", f.status)
	e.GET("/service/rest/v1/repositories", f.repositories)
	e.POST("/service/rest/v1/components", f.upload)
	e.GET("/service/rest/v1/search", f.search)
	e.POST("/service/rest/v1/tags", f.createTag)
	e.GET("/service/rest/v1/tags/:name", f.getTag)
	e.POST("/service/rest/v1/tags/associate/:tag", f.associate)
	e.DELETE("/service/rest/v1/tags/associate/:tag", f.disassociate)
	e.POST("/service/rest/v1/staging/move/:destination", f.move)
	e.POST("/service/rest/v1/staging/delete", f.delete)

	f.Server = httptest.NewServer(e)
	return f
}

func (f *FakeNexus) URL() string {
	return f.Server.URL
}

func (f *FakeNexus) Close() {
	f.Server.Close()
}

// Fail makes every request to method and path answer with status and an NXRM style message body.
func (f *FakeNexus) Fail(method, path string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = cannedResponse{status: status, message: message}
}

func (f *FakeNexus) AddTag(name string, attributes map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[name] = attributes
}

func (f *FakeNexus) HasTag(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tags[name]
	return ok
}

func (f *FakeNexus) AddComponent(c *StoredComponent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.components = append(f.components, c)
}

func (f *FakeNexus) Components() []*StoredComponent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*StoredComponent, len(f.components))
	copy(out, f.components)
	return out
}

func (f *FakeNexus) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeNexus) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Header: req.Header.Clone(),
		})
		f.mu.Unlock()
		return next(c)
	}
}

func (f *FakeNexus) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if f.Username == "" {
			return next(c)
		}
		user, pass, ok := c.Request().BasicAuth()
		if !ok || user != f.Username || pass != f.Password {
			return c.NoContent(http.StatusUnauthorized)
		}
		return next(c)
	}
}

func (f *FakeNexus) fail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		f.mu.Lock()
		canned, ok := f.failures[c.Request().Method+" "+c.Request().URL.Path]
		f.mu.Unlock()
		if !ok {
			return next(c)
		}
		return c.JSON(canned.status, map[string]interface{}{
			"status":  canned.status,
			"message": canned.message,
		})
	}
}

func (f *FakeNexus) status(c echo.Context) error {
	return c.XMLBlob(http.StatusOK, []byte(`<status><edition>PRO</edition><version>3.61.0-02</version><apiVersion>1.0</apiVersion></status>`))
}

func (f *FakeNexus) repositories(c echo.Context) error {
	return c.JSON(http.StatusOK, []map[string]string{
		{"name": "maven-releases", "format": "maven2", "type": "hosted", "url": f.Server.URL + "/repository/maven-releases"},
		{"name": "maven-staging", "format": "maven2", "type": "hosted", "url": f.Server.URL + "/repository/maven-staging"},
	})
}

func (f *FakeNexus) upload(c echo.Context) error {
	repository := c.QueryParam("repository")
	form, err := c.MultipartForm()
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	stored := &StoredComponent{Repository: repository, Fields: map[string]string{}, Files: map[string]UploadedFile{}}
	for name, values := range form.Value {
		stored.Fields[name] = values[0]
	}
	for name, headers := range form.File {
		file, err := headers[0].Open()
		if err != nil {
			return err
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return err
		}
		stored.Files[name] = UploadedFile{Filename: headers[0].Filename, Content: content}
	}
	if len(stored.Files) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": 400, "message": "no assets"})
	}
	for name, value := range stored.Fields {
		switch {
		case strings.HasSuffix(name, ".groupId") && !strings.Contains(strings.TrimSuffix(name, ".groupId"), "."):
			stored.Group = value
			stored.Format = strings.TrimSuffix(name, ".groupId")
		case strings.HasSuffix(name, ".artifactId") && !strings.Contains(strings.TrimSuffix(name, ".artifactId"), "."):
			stored.Name = value
		case strings.HasSuffix(name, ".version") && !strings.Contains(strings.TrimSuffix(name, ".version"), "."):
			stored.Version = value
		case name == "tag" || strings.HasSuffix(name, ".tag"):
			f.mu.Lock()
			_, known := f.tags[value]
			f.mu.Unlock()
			if !known {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": 400, "message": "Tag " + value + " not found"})
			}
			stored.Tags = append(stored.Tags, value)
		}
	}
	f.AddComponent(stored)
	return c.NoContent(http.StatusNoContent)
}

func (f *FakeNexus) createTag(c echo.Context) error {
	var tag map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&tag); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	name, _ := tag["name"].(string)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tags[name]; exists {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": 400, "message": "Tag " + name + " already exists"})
	}
	attributes, _ := tag["attributes"].(map[string]interface{})
	f.tags[name] = attributes
	return c.JSON(http.StatusOK, tagBody(name, attributes))
}

func (f *FakeNexus) getTag(c echo.Context) error {
	name := c.Param("name")
	f.mu.Lock()
	attributes, ok := f.tags[name]
	f.mu.Unlock()
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, tagBody(name, attributes))
}

func tagBody(name string, attributes map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":         name,
		"attributes":   attributes,
		"firstCreated": "2024-03-01T10:15:30.123Z",
		"lastUpdated":  "2024-03-01T10:15:30.123+0000",
	}
}

func (f *FakeNexus) associate(c echo.Context) error {
	tag := c.Param("tag")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tags[tag]; !ok {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"status": 404, "message": "Tag " + tag + " not found"})
	}
	matched := f.matching(c.QueryParams())
	for _, component := range matched {
		if !contains(component.Tags, tag) {
			component.Tags = append(component.Tags, tag)
		}
	}
	return stagingResponse(c, "components associated", matched)
}

func (f *FakeNexus) disassociate(c echo.Context) error {
	tag := c.Param("tag")
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.matching(c.QueryParams())
	for _, component := range matched {
		var kept []string
		for _, t := range component.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		component.Tags = kept
	}
	return stagingResponse(c, "components disassociated", matched)
}

func (f *FakeNexus) move(c echo.Context) error {
	destination := c.Param("destination")
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.matching(c.QueryParams())
	if len(matched) == 0 {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"status": 404, "message": "No components found"})
	}
	for _, component := range matched {
		component.Repository = destination
	}
	return stagingResponse(c, "components moved", matched)
}

func (f *FakeNexus) delete(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.matching(c.QueryParams())
	if len(matched) == 0 {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"status": 404, "message": "No components found"})
	}
	var kept []*StoredComponent
	for _, component := range f.components {
		if !containsComponent(matched, component) {
			kept = append(kept, component)
		}
	}
	f.components = kept
	return stagingResponse(c, "components deleted", matched)
}

func (f *FakeNexus) search(c echo.Context) error {
	params := c.QueryParams()
	start := 0
	if token := params.Get("continuationToken"); token != "" {
		start, _ = strconv.Atoi(token)
	}
	params.Del("continuationToken")

	f.mu.Lock()
	matched := f.matching(params)
	f.mu.Unlock()

	end := start + f.PageSize
	var token interface{}
	if end < len(matched) {
		token = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	items := []map[string]interface{}{}
	for i := start; i < end; i++ {
		component := matched[i]
		assets := []map[string]interface{}{}
		for _, file := range component.Files {
			assets = append(assets, map[string]interface{}{
				"path":        file.Filename,
				"downloadUrl": fmt.Sprintf("%s/repository/%s/%s", f.Server.URL, component.Repository, file.Filename),
				"repository":  component.Repository,
				"format":      component.Format,
			})
		}
		items = append(items, map[string]interface{}{
			"id":         strconv.Itoa(i),
			"repository": component.Repository,
			"format":     component.Format,
			"group":      component.Group,
			"name":       component.Name,
			"version":    component.Version,
			"assets":     assets,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "continuationToken": token})
}

// matching must be called with f.mu held.
func (f *FakeNexus) matching(params url.Values) []*StoredComponent {
	var matched []*StoredComponent
	for _, component := range f.components {
		if matches(component, params) {
			matched = append(matched, component)
		}
	}
	return matched
}

func matches(component *StoredComponent, params url.Values) bool {
	for key := range params {
		value := params.Get(key)
		switch key {
		case "repository":
			if component.Repository != value {
				return false
			}
		case "group":
			if component.Group != value {
				return false
			}
		case "name":
			if component.Name != value {
				return false
			}
		case "version":
			if component.Version != value {
				return false
			}
		case "format":
			if component.Format != value {
				return false
			}
		case "tag":
			if !contains(component.Tags, value) {
				return false
			}
		case "q":
			if !strings.Contains(component.Name, value) {
				return false
			}
		}
	}
	return true
}

func stagingResponse(c echo.Context, key string, components []*StoredComponent) error {
	infos := []map[string]string{}
	for _, component := range components {
		infos = append(infos, map[string]string{
			"group":   component.Group,
			"name":    component.Name,
			"version": component.Version,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  200,
		"message": "Operation completed",
		"data":    map[string]interface{}{key: infos},
	})
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func containsComponent(components []*StoredComponent, component *StoredComponent) bool {
	for _, c := range components {
		if c == component {
			return true
		}
	}
	return false
}
