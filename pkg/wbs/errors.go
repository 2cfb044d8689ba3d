package wbs

import "fmt"

// TaskNotFoundError reports that a task id has no entry in the tree.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("wbs: task not found: %s", e.TaskID)
}

// ActionNotFoundError reports that an action id has no registered entry.
type ActionNotFoundError struct {
	ActionID string
}

func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("wbs: action not found: %s", e.ActionID)
}
