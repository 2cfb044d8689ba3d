// Package workbook projects a Scenario's static resources and export
// declarations into queryable views, independent of the mutable WBS.
package workbook

import (
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/orderedmap"
)

// Resource wraps a resource's definition.
type Resource struct {
	Spec dsl.ResourceDef
}

// Metric is an exported value declared by an action.
type Metric struct {
	ActionID   string
	Name       string
	ExportType string
	Scope      string
	Default    string
}

// Workbook is the resource and metric index derived from a scenario.
type Workbook struct {
	resources *orderedmap.Map[*Resource]
	metrics   []Metric
}

// FromScenario builds a Workbook from a scenario's workbook and
// actions sections.
func FromScenario(scenario *dsl.Scenario) *Workbook {
	wb := &Workbook{resources: orderedmap.New[*Resource]()}
	if scenario == nil {
		return wb
	}

	if scenario.Workbook != nil {
		for _, r := range scenario.Workbook.Resources {
			wb.resources.Set(r.ID, &Resource{Spec: r})
		}
	}

	if scenario.Actions != nil {
		for _, action := range scenario.Actions.Actions {
			for _, export := range action.Export {
				wb.metrics = append(wb.metrics, Metric{
					ActionID:   action.ID,
					Name:       export.Name,
					ExportType: export.Type,
					Scope:      export.Scope,
					Default:    export.Default,
				})
			}
		}
	}

	return wb
}

// ResourceCount returns the number of indexed resources.
func (w *Workbook) ResourceCount() int { return w.resources.Len() }

// MetricCount returns the number of exported metrics.
func (w *Workbook) MetricCount() int { return len(w.metrics) }

// Resource looks up a resource by id.
func (w *Workbook) Resource(id string) (*Resource, bool) {
	return w.resources.Get(id)
}

// ResourceIDs returns resource ids in declaration order.
func (w *Workbook) ResourceIDs() []string {
	return w.resources.Keys()
}

// Metrics returns every exported metric, in declaration order.
func (w *Workbook) Metrics() []Metric {
	return append([]Metric(nil), w.metrics...)
}
