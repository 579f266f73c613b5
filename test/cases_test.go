package test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTestCases(t *testing.T) {
	paths, err := TestCasePaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		testCase, err := LoadTestCase(path)
		require.NoError(t, err, "failed to load test case %s", path)
		assert.NotEmpty(t, testCase.Description, path)
		assert.NotEmpty(t, testCase.Operations, path)

		for _, op := range testCase.Operations {
			assert.NotEmpty(t, op.Params.Query, path)
			assert.NotEmpty(t, op.Response, path)
		}
	}
}

func TestRender(t *testing.T) {
	op := Operation{Response: `{"id": "{{ .put.id }}"}`}
	out, err := op.Expected(map[string]any{"put": map[string]any{"id": "n1"}})
	require.NoError(t, err)
	assert.Equal(t, `{"id": "n1"}`, out)

	_, err = op.Expected(map[string]any{})
	require.Error(t, err)
}
