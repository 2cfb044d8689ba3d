package httpaction

import (
	"context"
	"testing"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/rawhttp"
	"github.com/stretchr/testify/require"
)

func actionFromYAML(t *testing.T, yamlWith string) dsl.ActionDef {
	t.Helper()
	scenario, err := dsl.FromYAML([]byte(`
version: "1"
name: t
actions:
  actions:
    - id: get
      call: get
` + yamlWith))
	require.NoError(t, err)
	return scenario.Actions.Actions[0]
}

func TestDoActionSkipsUnresolvedTemplate(t *testing.T) {
	def := actionFromYAML(t, `      with:
        url: "http://{{host}}/x"
`)
	c := New(rawhttp.ClientOptions{})
	outcome, err := c.DoAction(context.Background(), def, nil)
	require.NoError(t, err)
	require.Contains(t, outcome.Detail, "skip unresolved template")
}

func TestDoActionMissingURLFails(t *testing.T) {
	def := actionFromYAML(t, `      with:
        method: get
`)
	c := New(rawhttp.ClientOptions{})
	outcome, err := c.DoAction(context.Background(), def, nil)
	require.NoError(t, err)
	require.Contains(t, outcome.Detail, "missing with.url")
}

func TestExtractHeadersAndBody(t *testing.T) {
	def := actionFromYAML(t, `      with:
        url: "http://example.com/x"
        headers:
          X-Test: "1"
        body:
          key: "value"
`)
	headers := extractHeaders(def)
	xTest, _ := headers.Get("X-Test")
	require.Equal(t, "1", xTest)

	body, err := extractBody(def)
	require.NoError(t, err)
	require.JSONEq(t, `{"key":"value"}`, body)
}
