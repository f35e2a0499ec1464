package staging

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// DeleteGoal deletes every component carrying the tag recorded by a previous deploy.
type DeleteGoal struct {
	Goal
	// Tag, when set, must equal the staged tag.
	Tag string
}

func (d *DeleteGoal) Execute(ctx context.Context) (*Result, error) {
	if err := d.failIfOffline(); err != nil {
		return nil, err
	}
	staged, found, err := d.TagFromPropertiesFile()
	if err != nil {
		return nil, wrapExecution(err, "failed to read staging properties")
	}
	if !found || staged == "" {
		return nil, executionError("%s does not exist or does not contain '%s'; nothing was staged by this build",
			d.StagingPropertiesFile(), TagProperty)
	}
	tag := staged
	if d.Tag != "" {
		if d.Tag != staged {
			return nil, executionError("The tag '%s' does not match the staged tag '%s'", d.Tag, staged)
		}
		tag = d.Tag
	}

	client, err := d.Client()
	if err != nil {
		return nil, err
	}
	log.Infof("Deleting components tagged '%s'", tag)
	deleted, err := client.DeleteByTag(ctx, tag)
	if err != nil {
		log.WithError(err).Error("Delete failed")
		return nil, failure(err)
	}
	for _, component := range deleted {
		log.Infof("Deleted %s", component)
	}
	return &Result{Tag: tag, Components: deleted}, nil
}
