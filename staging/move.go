package staging

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/nexus"
)

// MoveGoal moves the components carrying a tag from one repository to another.
type MoveGoal struct {
	Goal
	DestinationRepository string
	// SourceRepository falls back to Repository.
	SourceRepository string
	Repository       string
	Tag              string
}

func (m *MoveGoal) Execute(ctx context.Context) (*Result, error) {
	if err := m.failIfOffline(); err != nil {
		return nil, err
	}
	if m.DestinationRepository == "" {
		return nil, failure(errors.New("The parameter 'destinationRepository' is required"))
	}
	source := m.SourceRepository
	if source == "" {
		source = m.Repository
		log.Warnf("No sourceRepository was provided. Will use the default repository: %s", source)
	}
	if source == "" {
		return nil, failure(errors.New("The parameter 'sourceRepository' or 'repository' is required"))
	}

	tag, err := m.tag()
	if err != nil {
		return nil, err
	}

	search, err := nexus.NewSearchBuilder().WithRepository(source).WithTag(tag).Build()
	if err != nil {
		return nil, failure(err)
	}
	client, err := m.Client()
	if err != nil {
		return nil, err
	}

	log.Infof("Moving components tagged '%s' from '%s' to '%s'", tag, source, m.DestinationRepository)
	moved, err := client.Move(ctx, m.DestinationRepository, search)
	if err != nil {
		log.WithError(err).Error("Move failed")
		return nil, failure(err)
	}
	for _, component := range moved {
		log.Infof("Moved %s", component)
	}
	log.Infof("Move completed with %d components moved", len(moved))
	return &Result{Tag: tag, Components: moved}, nil
}

func (m *MoveGoal) tag() (string, error) {
	if m.Tag != "" {
		return m.Tag, nil
	}
	tag, found, err := m.TagFromPropertiesFile()
	if err != nil {
		return "", failure(errors.Wrap(err, "failed to read staging properties"))
	}
	if !found || tag == "" {
		return "", failure(errors.Errorf("The parameter 'tag' is required or must be stored in %s", m.StagingPropertiesFile()))
	}
	log.Infof("Using tag '%s' from %s", tag, m.StagingPropertiesFile())
	return tag, nil
}
