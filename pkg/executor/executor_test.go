package executor

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/cuemby/loadforge/pkg/action"
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/template"
	"github.com/stretchr/testify/require"
)

type recordingComponent struct {
	seen []dsl.ActionDef
}

func (c *recordingComponent) Init() error    { return nil }
func (c *recordingComponent) Release() error { return nil }
func (c *recordingComponent) DoAction(_ context.Context, def dsl.ActionDef, _ *action.Context) (action.Outcome, error) {
	c.seen = append(c.seen, def)
	return action.Success("ok"), nil
}

func buildScenario(t *testing.T) *dsl.Scenario {
	t.Helper()
	scenario, err := dsl.FromYAML([]byte(`
version: "1"
name: t
actions:
  actions:
    - id: ping
      call: get
      with:
        url: "http://{{user.allocated_ip}}:8080/ping"
workflows:
  nodes:
    - id: start
      type: action
      action: ping
      edges:
        - to: finish
    - id: finish
      type: end
`))
	require.NoError(t, err)
	return scenario
}

func TestUserContextCreation(t *testing.T) {
	ip := netip.MustParseAddr("10.0.1.1")
	ctx := NewContext(1, "tenant-a", ip)
	require.Equal(t, 1, ctx.ID)
	require.Equal(t, "tenant-a", ctx.TenantID)
	require.True(t, ctx.AllocatedIP.IsValid())
}

func TestVariableResolution(t *testing.T) {
	scenario := buildScenario(t)
	exec := New(NewContext(1, "tenant-a", netip.MustParseAddr("10.0.1.1")), scenario.Workflows, scenario.Actions, 1, 0, template.New())
	component := &recordingComponent{}

	traces, err := exec.Run(context.Background(), component)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, "ping", traces[0].ActionID)
	require.Equal(t, action.StatusSuccess, traces[0].Status)

	require.Len(t, component.seen, 1)
	url, ok := component.seen[0].WithValue("url")
	require.True(t, ok)
	require.Equal(t, "http://10.0.1.1:8080/ping", url.Str)
}

func TestRunHonorsIterationsAsUpperBound(t *testing.T) {
	scenario := buildScenario(t)
	exec := New(NewContext(2, "tenant-a", netip.Addr{}), scenario.Workflows, scenario.Actions, 3, time.Millisecond, template.New())
	component := &recordingComponent{}

	traces, err := exec.Run(context.Background(), component)
	require.NoError(t, err)
	require.Len(t, traces, 3)
	require.Equal(t, 0, traces[0].Iteration)
	require.Equal(t, 2, traces[2].Iteration)
}

func TestRunUnboundedStopsOnContextCancellation(t *testing.T) {
	scenario := buildScenario(t)
	exec := New(NewContext(3, "tenant-a", netip.Addr{}), scenario.Workflows, scenario.Actions, 0, time.Millisecond, template.New())
	component := &recordingComponent{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	traces, err := exec.Run(ctx, component)
	require.NoError(t, err)
	require.NotEmpty(t, traces)
}
