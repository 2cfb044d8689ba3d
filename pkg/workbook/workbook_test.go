package workbook

import (
	"testing"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/stretchr/testify/require"
)

func TestBuildsResourceAndMetricIndexes(t *testing.T) {
	scenario, err := dsl.FromYAML([]byte(`
version: "1"
name: t
workbook:
  resources:
    - id: http_endpoint
      type: endpoint
      properties:
        host: "10.0.0.5"
    - id: pool-a
      type: ip_pool
actions:
  actions:
    - id: get
      call: http
      with:
        url: "http://{{http_endpoint.host}}/x"
      export:
        - type: number
          name: latency_ms
          scope: run
        - type: string
          name: status
          scope: user
          default: "unknown"
`))
	require.NoError(t, err)

	wb := FromScenario(scenario)
	require.Equal(t, 2, wb.ResourceCount())
	require.Equal(t, []string{"http_endpoint", "pool-a"}, wb.ResourceIDs())

	res, ok := wb.Resource("http_endpoint")
	require.True(t, ok)
	require.Equal(t, "endpoint", res.Spec.Type)

	require.Equal(t, 2, wb.MetricCount())
	metrics := wb.Metrics()
	require.Equal(t, "latency_ms", metrics[0].Name)
	require.Equal(t, "run", metrics[0].Scope)
	require.Equal(t, "status", metrics[1].Name)
	require.Equal(t, "unknown", metrics[1].Default)
}

func TestFromScenarioNilSafe(t *testing.T) {
	wb := FromScenario(nil)
	require.Equal(t, 0, wb.ResourceCount())
	require.Equal(t, 0, wb.MetricCount())
}
