package staging

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/nexus"
)

// TagGoal adds a tag to, or removes it from, the components matching Search.
type TagGoal struct {
	Goal
	Tag    string
	Search map[string]string
	// Remove disassociates instead of associating.
	Remove bool
}

func (t *TagGoal) Execute(ctx context.Context) (*Result, error) {
	if err := t.failIfOffline(); err != nil {
		return nil, err
	}
	if t.Tag == "" {
		return nil, executionError("The parameter 'tag' is required")
	}
	builder := nexus.NewSearchBuilder()
	for name, value := range t.Search {
		builder.WithParameter(name, value)
	}
	search, err := builder.Build()
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	if len(search) == 0 {
		return nil, executionError("at least one search parameter is required")
	}

	client, err := t.Client()
	if err != nil {
		return nil, err
	}
	verb, call := "Associated", client.Associate
	if t.Remove {
		verb, call = "Disassociated", client.Disassociate
	}
	components, err := call(ctx, t.Tag, search)
	if err != nil {
		return nil, failure(errors.Wrapf(err, "failed to update tag '%s'", t.Tag))
	}
	for _, component := range components {
		log.Infof("%s %s with tag '%s'", verb, component, t.Tag)
	}
	return &Result{Tag: t.Tag, Components: components}, nil
}
