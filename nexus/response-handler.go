package nexus

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
)

const (
	associatedKey    = "components associated"
	disassociatedKey = "components disassociated"
	movedKey         = "components moved"
	deletedKey       = "components deleted"
)

// responseHandler turns a successful (or explicitly allowed 404) response into a value.
type responseHandler[T any] struct {
	allowNotFound bool
	handle        func(statusCode int, body []byte) (T, error)
}

func (h responseHandler[T]) statusAllowed(statusCode int) bool {
	return statusCode < 300 || (statusCode == http.StatusNotFound && h.allowNotFound)
}

var noopHandler = responseHandler[struct{}]{
	handle: func(int, []byte) (struct{}, error) { return struct{}{}, nil },
}

var versionHandler = responseHandler[*NxrmVersion]{
	handle: func(_ int, body []byte) (*NxrmVersion, error) {
		var status struct {
			Version string `xml:"version"`
			Edition string `xml:"edition"`
		}
		if err := xml.Unmarshal(body, &status); err != nil {
			return nil, err
		}
		return &NxrmVersion{Version: status.Version, Edition: status.Edition}, nil
	},
}

var repositoriesHandler = responseHandler[[]Repository]{
	handle: func(_ int, body []byte) ([]Repository, error) {
		var repositories []Repository
		err := json.Unmarshal(body, &repositories)
		return repositories, err
	},
}

// tagResult carries the tag and whether the server knew it.
type tagResult struct {
	tag   *Tag
	found bool
}

var getTagHandler = responseHandler[tagResult]{
	allowNotFound: true,
	handle: func(statusCode int, body []byte) (tagResult, error) {
		if statusCode == http.StatusNotFound {
			return tagResult{}, nil
		}
		tag := new(Tag)
		if err := json.Unmarshal(body, tag); err != nil {
			return tagResult{}, err
		}
		return tagResult{tag: tag, found: true}, nil
	},
}

var createTagHandler = responseHandler[*Tag]{
	handle: func(_ int, body []byte) (*Tag, error) {
		tag := new(Tag)
		err := json.Unmarshal(body, tag)
		return tag, err
	},
}

var searchHandler = responseHandler[*SearchResponse]{
	handle: func(_ int, body []byte) (*SearchResponse, error) {
		parsed := new(SearchResponse)
		err := json.Unmarshal(body, parsed)
		return parsed, err
	},
}

// componentInfoHandler reads the component list NXRM reports under key in the response data.
func componentInfoHandler(key string) responseHandler[[]ComponentInfo] {
	return responseHandler[[]ComponentInfo]{
		handle: func(_ int, body []byte) ([]ComponentInfo, error) {
			components := []ComponentInfo{}
			if len(body) == 0 {
				return components, nil
			}
			var response RestResponse
			if err := json.Unmarshal(body, &response); err != nil {
				return nil, err
			}
			raw, ok := response.Data[key]
			if !ok || string(raw) == "null" {
				return components, nil
			}
			if err := json.Unmarshal(raw, &components); err != nil {
				return nil, err
			}
			return components, nil
		},
	}
}

// responseMessage extracts the message of a RestResponse body, or "" when the body is not one.
func responseMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var response RestResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ""
	}
	return response.Message
}
