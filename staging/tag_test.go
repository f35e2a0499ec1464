package staging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/testutil"
)

func TestTagGoalAssociateAndDisassociate(t *testing.T) {
	fake := newFake(t)
	fake.AddTag("qa-passed", nil)
	fake.AddComponent(&testutil.StoredComponent{Repository: "maven-releases", Group: "com.example", Name: "demo", Version: "1.0.0"})
	goal := newTestGoal(t, fake.URL())
	search := map[string]string{nexus.SearchRepository: "maven-releases", nexus.SearchName: "demo"}

	result, err := (&TagGoal{Goal: goal, Tag: "qa-passed", Search: search}).Execute(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Components, 1)
	assert.Equal(t, []string{"qa-passed"}, fake.Components()[0].Tags)

	_, err = (&TagGoal{Goal: goal, Tag: "qa-passed", Search: search, Remove: true}).Execute(context.Background())

	require.NoError(t, err)
	assert.Empty(t, fake.Components()[0].Tags)
}

func TestTagGoalUnknownTag(t *testing.T) {
	fake := newFake(t)
	goal := newTestGoal(t, fake.URL())

	_, err := (&TagGoal{Goal: goal, Tag: "nope", Search: map[string]string{nexus.SearchName: "demo"}}).Execute(context.Background())

	assert.True(t, IsFailure(err))
}

func TestTagGoalRequiresSearch(t *testing.T) {
	goal, client := newMockGoal(t)

	_, err := (&TagGoal{Goal: goal, Tag: "qa-passed"}).Execute(context.Background())

	assert.True(t, IsExecution(err))
	assert.Empty(t, client.Calls)
}
