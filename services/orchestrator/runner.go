package orchestrator

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"haforge/pkg/bus"
	"haforge/services/semaphore"
)

// JobResult is the composite outcome of a template-and-run request. Upstream
// failures are embedded here rather than raised, so the caller always learns
// how far the workflow got.
type JobResult struct {
	Template  *semaphore.Template `json:"template,omitempty"`
	Task      *semaphore.Task     `json:"task,omitempty"`
	FinalTask *semaphore.Task     `json:"finalTask,omitempty"`
	State     string              `json:"state"`
	Polls     int                 `json:"polls,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// SubmitAndRun creates a template, starts a task from it, and polls that task
// to a terminal state. Each stage's failure is recorded in the result and
// stops the workflow; only context cancellation propagates as a Go error.
// After a terminal state the matching server record's status is updated.
func (o *Orchestrator) SubmitAndRun(ctx context.Context, projectID int, spec semaphore.TemplateSpec) (*JobResult, error) {
	result := &JobResult{State: "failed"}

	tpl, err := o.Jobs.CreateTemplate(ctx, projectID, spec)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Error = err.Error()
		o.Logger.Error().Err(err).Str("template", spec.Name).Msg("create template")
		return result, nil
	}
	result.Template = &tpl

	task, err := o.Jobs.StartTask(ctx, projectID, tpl.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Error = err.Error()
		o.Logger.Error().Err(err).Int("template_id", tpl.ID).Msg("start task")
		return result, nil
	}
	result.Task = &task

	polled, err := o.Poller.Run(ctx, projectID, task.ID)
	result.Polls = polled.Polls
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Error = err.Error()
		o.Logger.Error().Err(err).Int("task_id", task.ID).Msg("poll task")
		o.recordOutcome(ctx, spec.Name, result)
		return result, nil
	}

	result.FinalTask = &polled.Task
	result.State = polled.State.String()

	o.recordOutcome(ctx, spec.Name, result)
	return result, nil
}

// serverJob is the slice of the servers table touched by status writeback.
type serverJob struct {
	Status    string
	LastJob   datatypes.JSONMap `gorm:"column:last_job"`
	UpdatedAt time.Time
}

// serverStatus maps a poller state onto the record's status column.
func serverStatus(state string) string {
	switch state {
	case "succeeded":
		return "running"
	case "timed_out":
		return "timeout"
	default:
		return "failed"
	}
}

// recordOutcome writes the job outcome back onto the server row whose name
// matches the template, then announces it on the bus. Template names are the
// server names by convention; a miss just means nothing to update. Writeback
// failures are logged, never surfaced, since the job itself already ran.
func (o *Orchestrator) recordOutcome(ctx context.Context, name string, result *JobResult) {
	if o.ORM == nil || name == "" {
		return
	}

	lastJob := datatypes.JSONMap{
		"state":       result.State,
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if result.Template != nil {
		lastJob["template_id"] = result.Template.ID
	}
	if result.FinalTask != nil {
		lastJob["task_id"] = result.FinalTask.ID
		lastJob["task_status"] = result.FinalTask.Status
	}
	if result.Error != "" {
		lastJob["error"] = result.Error
	}

	err := o.ORM.WithContext(ctx).
		Table("servers").
		Where("new_vm_name = ?", name).
		Updates(serverJob{
			Status:    serverStatus(result.State),
			LastJob:   lastJob,
			UpdatedAt: time.Now().UTC(),
		}).Error
	if err != nil {
		o.Logger.Warn().Err(err).Str("server", name).Msg("record job outcome")
	}

	err = o.Bus.Publish(ctx, bus.SubjectJobFinished, map[string]any{
		"server": name,
		"state":  result.State,
	})
	if err != nil {
		o.Logger.Warn().Err(err).Str("server", name).Msg("publish job event")
	}
}
