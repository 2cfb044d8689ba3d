package dsl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleScenario = `
version: "1"
name: sample
workbook:
  resources:
    - id: http_endpoint
      type: endpoint
      properties:
        host: "10.0.0.5"
        port: 8080
actions:
  actions:
    - id: get
      call: http
      with:
        url: "http://{{http_endpoint.host}}:{{http_endpoint.port}}/x"
workflows:
  nodes:
    - id: start
      type: action
      action: get
      edges:
        - to: end
    - id: end
      type: end
`

func TestFromYAMLAndValidate(t *testing.T) {
	s, err := FromYAML([]byte(sampleScenario))
	require.NoError(t, err)
	require.Equal(t, "sample", s.Name)
	require.NoError(t, s.Validate())

	require.Len(t, s.Workbook.Resources, 1)
	host, ok := s.Workbook.Resources[0].PropertyValue("host")
	require.True(t, ok)
	require.Equal(t, "10.0.0.5", host.ToTemplateString())
}

func TestValidateUnknownAction(t *testing.T) {
	s, err := FromYAML([]byte(`
version: "1"
name: bad
workflows:
  nodes:
    - id: start
      type: action
      action: missing
`))
	require.NoError(t, err)
	err = s.Validate()
	require.Error(t, err)
	var unkAction *UnknownActionError
	require.ErrorAs(t, err, &unkAction)
	require.Equal(t, "missing", unkAction.Action)
	require.Equal(t, "start", unkAction.Node)
}

func TestValidateUnknownNode(t *testing.T) {
	s, err := FromYAML([]byte(`
version: "1"
name: bad
workflows:
  nodes:
    - id: start
      type: end
      edges:
        - to: unknown
`))
	require.NoError(t, err)
	err = s.Validate()
	require.Error(t, err)
	var unkNode *UnknownNodeError
	require.ErrorAs(t, err, &unkNode)
	require.Equal(t, "unknown", unkNode.Node)
}
