// Package sampledomain is a small task-list DomainSchema used as a
// shared fixture across this module's package tests: soft delete,
// intentId-keyed idempotent creation, and one computed field, standing
// in for a real domain the way a testdata flow would.
package sampledomain

import (
	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/schema"
)

// Schema returns a fresh task-list DomainSchema: `data.tasks` (an array
// of {id, title, deletedAt}) and `data.selectedTaskId`, with two
// actions: createTask and deleteTask.
func Schema() *schema.DomainSchema {
	return &schema.DomainSchema{
		ID:      "tasklist",
		Version: "0.1.0",
		Hash:    "sampledomain-tasklist-v1",
		State: &schema.FieldSpec{
			Type: schema.FieldObject,
			Fields: map[string]*schema.FieldSpec{
				"tasks": {Type: schema.FieldArray, Items: &schema.FieldSpec{
					Type: schema.FieldObject,
					Fields: map[string]*schema.FieldSpec{
						"id":        {Type: schema.FieldString},
						"title":     {Type: schema.FieldString},
						"deletedAt": {Type: schema.FieldAny, Optional: true},
					},
				}},
				"selectedTaskId": {Type: schema.FieldString, Optional: true},
			},
		},
		Computed: map[string]schema.ComputedField{
			"openTaskCount": {
				Deps: []string{"data.tasks"},
				Expr: expr.Collection{
					Op: expr.OpLen,
					Array: expr.Collection{
						Op:        expr.OpFilter,
						Array:     expr.Get{Path: "data.tasks"},
						Predicate: expr.Comparison{Op: expr.OpEq, Left: expr.Get{Path: "$item.deletedAt"}, Right: expr.Literal{Value: nil}},
					},
				},
			},
		},
		Actions: map[string]schema.Action{
			"createTask": {Flow: createTaskFlow()},
			"deleteTask": {Flow: deleteTaskFlow()},
		},
	}
}

// createTaskFlow appends {id: input.intentId, title: input.title,
// deletedAt: null} to data.tasks and selects it, unless a task with the
// same id already exists — re-dispatching the same intentId against the
// same base snapshot is then a no-op, leaving a single terminal task.
func createTaskFlow() flow.Node {
	alreadyExists := expr.Collection{
		Op:        expr.OpSome,
		Array:     expr.Get{Path: "data.tasks"},
		Predicate: expr.Comparison{Op: expr.OpEq, Left: expr.Get{Path: "$item.id"}, Right: expr.Get{Path: "input.intentId"}},
	}

	newTask := expr.ObjectExpr{Op: expr.OpObjectLit, Fields: map[string]expr.Node{
		"id":        expr.Get{Path: "input.intentId"},
		"title":     expr.Get{Path: "input.title"},
		"deletedAt": expr.Literal{Value: nil},
	}}

	return flow.If{
		Cond: alreadyExists,
		Then: flow.Halt{Reason: expr.Literal{Value: "task already created for this intentId"}},
		Else: flow.Seq{Steps: []flow.Node{
			flow.Patch{
				Op:   flow.PatchSet,
				Path: "data.tasks",
				Value: expr.Collection{
					Op:    expr.OpAppend,
					Array: expr.Get{Path: "data.tasks"},
					Args:  []expr.Node{newTask},
				},
			},
			flow.Patch{Op: flow.PatchSet, Path: "data.selectedTaskId", Value: expr.Get{Path: "input.intentId"}},
		}},
	}
}

// deleteTaskFlow soft-deletes the task matching input.taskId — stamping
// deletedAt from the frozen job clock rather than dropping it from the
// array, so the array length is unchanged — and clears
// data.selectedTaskId if it pointed at the deleted task.
func deleteTaskFlow() flow.Node {
	isTarget := expr.Comparison{Op: expr.OpEq, Left: expr.Get{Path: "$item.id"}, Right: expr.Get{Path: "input.taskId"}}

	softDeleted := expr.ObjectExpr{Op: expr.OpObjMerge, Args: []expr.Node{
		expr.Get{Path: "$item"},
		expr.ObjectExpr{Op: expr.OpObjectLit, Fields: map[string]expr.Node{
			"deletedAt": expr.Get{Path: "meta.timestamp"},
		}},
	}}

	updateTasks := flow.Patch{
		Op:   flow.PatchSet,
		Path: "data.tasks",
		Value: expr.Collection{
			Op:        expr.OpMap,
			Array:     expr.Get{Path: "data.tasks"},
			Predicate: expr.Conditional{Cond: isTarget, Then: softDeleted, Else: expr.Get{Path: "$item"}},
		},
	}

	clearSelection := flow.If{
		Cond: expr.Comparison{Op: expr.OpEq, Left: expr.Get{Path: "data.selectedTaskId"}, Right: expr.Get{Path: "input.taskId"}},
		Then: flow.Patch{Op: flow.PatchUnset, Path: "data.selectedTaskId"},
	}

	return flow.Seq{Steps: []flow.Node{updateTasks, clearSelection}}
}
