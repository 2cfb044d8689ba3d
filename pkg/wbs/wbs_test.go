package wbs

import (
	"errors"
	"testing"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) *Tree {
	t.Helper()
	scenario, err := dsl.FromYAML([]byte(`
version: "1"
name: sample
workbook:
  resources:
    - id: http_endpoint
      type: endpoint
actions:
  actions:
    - id: get
      call: http
workflows:
  nodes:
    - id: start
      type: action
      action: get
      edges:
        - to: check
          trigger:
            condition: "true"
          label: always
    - id: check
      type: action
      action: get
      edges:
        - to: finish
          label: done
    - id: finish
      type: end
`))
	require.NoError(t, err)
	return Build(scenario)
}

func TestBuildsTreeFromSample(t *testing.T) {
	tree := sampleTree(t)
	require.Equal(t, 3, tree.TaskCount())
	require.Equal(t, []string{"start", "check"}, tree.ActionTaskIds())

	finish, ok := tree.GetTask("finish")
	require.True(t, ok)
	require.Equal(t, TaskEnd, finish.Kind)

	_, ok = tree.GetAction("get")
	require.True(t, ok)
	require.Equal(t, []string{"http_endpoint"}, tree.ResourceIDs())
}

func TestPreservesEdgeConditionsAndLabels(t *testing.T) {
	tree := sampleTree(t)
	start, ok := tree.GetTask("start")
	require.True(t, ok)
	require.Len(t, start.Outgoing, 1)
	require.Equal(t, "check", start.Outgoing[0].Target)
	require.Equal(t, "true", start.Outgoing[0].Condition)
	require.Equal(t, "always", start.Outgoing[0].Label)

	check, ok := tree.GetTask("check")
	require.True(t, ok)
	require.Equal(t, "finish", check.Outgoing[0].Target)
	require.Empty(t, check.Outgoing[0].Condition)
}

func TestSupportsDynamicTaskMutations(t *testing.T) {
	tree := sampleTree(t)

	id := tree.InsertTask(&Task{ActionID: "get", Kind: TaskAction})
	require.NotEmpty(t, id)
	require.Equal(t, 4, tree.TaskCount())

	require.NoError(t, tree.InsertEdge("start", Edge{Target: id, Label: "extra"}))
	start, _ := tree.GetTask("start")
	require.Len(t, start.Outgoing, 2)

	require.NoError(t, tree.UpdateTask(id, &Task{ActionID: "get", Kind: TaskEnd}))
	updated, _ := tree.GetTask(id)
	require.Equal(t, TaskEnd, updated.Kind)
	require.Equal(t, id, updated.ID)

	require.NoError(t, tree.RemoveTask(id))
	require.Equal(t, 3, tree.TaskCount())
	start, _ = tree.GetTask("start")
	require.Len(t, start.Outgoing, 1)

	err := tree.RemoveTask("missing")
	var notFound *TaskNotFoundError
	require.True(t, errors.As(err, &notFound))
}
