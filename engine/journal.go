package engine

import "context"

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// journal records how to undo every external effect of an operation in flight
type journal struct {
	op    string
	steps []compensation
}

func newJournal(op string) *journal {
	return &journal{op: op}
}

func (j *journal) add(name string, undo func(ctx context.Context) error) {
	j.steps = append(j.steps, compensation{name: name, undo: undo})
}

// rollback undoes the recorded effects in reverse order
func (j *journal) rollback(ctx context.Context) {
	for i := len(j.steps) - 1; i >= 0; i-- {
		step := j.steps[i]
		if err := step.undo(ctx); err != nil {
			log.Error("compensation failed", "operation", j.op, "step", step.name, "error", err)
			continue
		}
		log.Debug("compensated", "operation", j.op, "step", step.name)
	}
	j.steps = nil
}

// abort rolls back and returns err so call sites stay one line
func (j *journal) abort(ctx context.Context, err error) error {
	j.rollback(ctx)

	return err
}
