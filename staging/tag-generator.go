package staging

import (
	"fmt"
	"time"
)

// TagGenerator names tags for builds that did not supply one.
type TagGenerator struct {
	Now func() time.Time
}

func (g TagGenerator) Generate(artifactId, version string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return fmt.Sprintf("%s-%s-%d", artifactId, version, now().UnixMilli())
}
