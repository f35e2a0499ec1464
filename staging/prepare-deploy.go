package staging

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// PrepareDeployGoal records that the stock deploy step should be skipped for release versions.
type PrepareDeployGoal struct {
	Goal
	Project                Project
	DeploySkipPropertyName string
}

func (p *PrepareDeployGoal) Execute(_ context.Context) (*Result, error) {
	if p.Project.IsSnapshot() {
		log.Debugf("%s is a snapshot version; leaving deploy enabled", p.Project.Version)
		return &Result{}, nil
	}
	key := p.DeploySkipPropertyName
	if key == "" {
		key = defaultDeploySkipKey
	}
	log.Infof("Setting %s to true as %s is a release version", key, p.Project.Version)
	if err := p.SaveStagingProperties(map[string]string{key: "true"}); err != nil {
		return nil, wrapExecution(err, "failed to save staging properties")
	}
	return &Result{}, nil
}
