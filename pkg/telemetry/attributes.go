// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/jllopis/amethyst/pkg/core"
)

// Attribute keys used on runtime spans and metrics.
const (
	AttrRunID       = "amethyst.run.id"
	AttrAppID       = "amethyst.app.id"
	AttrFileIndex   = "amethyst.file.index"
	AttrUnit        = "amethyst.unit.name"
	AttrTaskID      = "amethyst.task.id"
	AttrTaskParent  = "amethyst.task.parent_id"
	AttrTaskType    = "amethyst.task.type"
	AttrTaskAsync   = "amethyst.task.async"
	AttrTaskStatus  = "amethyst.task.status"
	AttrResource    = "amethyst.resource.name"
	AttrProvider    = "amethyst.resource.provider"
	AttrErrorCode   = "error.code"
	AttrIteration   = "amethyst.interpret.iteration"
	AttrPlanTasks   = "amethyst.plan.tasks"
	AttrPlanSteps   = "amethyst.plan.steps"
	AttrAwaitedIDs  = "amethyst.await.task_ids"
	AttrEventType   = "amethyst.event.type"
	AttrResultBytes = "amethyst.task.result_bytes"
)

// TaskAttributes returns the attributes describing a task.
func TaskAttributes(t *core.Task) []attribute.KeyValue {
	if t == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrTaskID, t.ID),
		attribute.String(AttrTaskType, string(t.Type)),
		attribute.Bool(AttrTaskAsync, t.IsAsync),
	}
	if t.ParentTaskID != "" {
		attrs = append(attrs, attribute.String(AttrTaskParent, t.ParentTaskID))
	}
	if t.ResourceName != "" {
		attrs = append(attrs, attribute.String(AttrResource, t.ResourceName))
	}
	if t.Status != "" {
		attrs = append(attrs, attribute.String(AttrTaskStatus, string(t.Status)))
	}
	return attrs
}

// PlanAttributes summarizes an interpretation cycle.
func PlanAttributes(iteration, tasks, steps int, final bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrIteration, iteration),
		attribute.Int(AttrPlanTasks, tasks),
		attribute.Int(AttrPlanSteps, steps),
		attribute.Bool("amethyst.plan.final", final),
	}
}

// ResourceAttributes describes the resource behind a call.
func ResourceAttributes(r core.Resource) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrResource, r.Name),
		attribute.String(AttrProvider, r.Provider),
	}
}
