package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
	"github.com/louisbranch/combatsim/internal/storage"
)

// Job lifecycle events.
const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventCancel  = "cancel"
)

var jobEvents = fsm.Events{
	{Name: eventStart, Src: []string{string(storage.JobQueued)}, Dst: string(storage.JobRunning)},
	{Name: eventSucceed, Src: []string{string(storage.JobRunning)}, Dst: string(storage.JobSucceeded)},
	{Name: eventFail, Src: []string{string(storage.JobQueued), string(storage.JobRunning)}, Dst: string(storage.JobFailed)},
	{Name: eventCancel, Src: []string{string(storage.JobQueued), string(storage.JobRunning)}, Dst: string(storage.JobCancelled)},
}

// jobLifecycle guards status changes of a single job.
type jobLifecycle struct {
	job     storage.JobRecord
	machine *fsm.FSM
}

func newJobLifecycle(job storage.JobRecord) *jobLifecycle {
	l := &jobLifecycle{job: job}
	initial := string(job.Status)
	if initial == "" {
		initial = string(storage.JobQueued)
	}
	l.machine = fsm.NewFSM(initial, jobEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			l.job.Status = storage.JobStatus(e.Dst)
		},
	})
	l.job.Status = storage.JobStatus(initial)
	return l
}

// fire applies event and returns the updated job.
func (l *jobLifecycle) fire(ctx context.Context, event string) (storage.JobRecord, error) {
	if err := l.machine.Event(ctx, event); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return l.job, apperrors.WithMetadata(apperrors.CodeJobNotRunning,
				fmt.Sprintf("job %s cannot %s from %s", l.job.ID, event, l.machine.Current()),
				map[string]string{"JobID": l.job.ID, "Status": l.machine.Current()})
		}
		return l.job, err
	}
	return l.job, nil
}

func (l *jobLifecycle) status() storage.JobStatus {
	return storage.JobStatus(l.machine.Current())
}
