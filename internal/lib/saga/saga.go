// Package saga выполняет упорядоченную последовательность шагов,
// затрагивающих несколько нетранзакционных систем.
//
// Каждый шаг состоит из прямого действия и необязательной компенсации.
// При ошибке компенсации выполняются в обратном порядке только для
// завершённых шагов. Компенсация выполняется по возможности: её ошибка логируется,
// повторно не выполняется и не подменяет исходную ошибку.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/payflow/internal/lib/sl"
)

// Step — шаг саги.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
	// UndoOnFailure включает компенсацию и для самого упавшего шага,
	// если Do мог оставить частичный результат.
	UndoOnFailure bool
}

// StepError описывает упавший шаг и результат компенсаций.
type StepError struct {
	Step string
	Err  error
	// Compensated содержит имена шагов с успешной компенсацией.
	Compensated []string
	// CompensationErr объединяет ошибки компенсаций, nil если их не было.
	CompensationErr error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga исполняет шаги по порядку.
type Saga struct {
	name  string
	log   *slog.Logger
	steps []Step
}

// New создаёт сагу с именем name.
func New(name string, log *slog.Logger, steps ...Step) *Saga {
	return &Saga{
		name:  name,
		log:   log,
		steps: steps,
	}
}

// Run выполняет шаги. При ошибке возвращает *StepError.
func (s *Saga) Run(ctx context.Context) error {
	log := s.log.With(slog.String("saga", s.name))

	for i, step := range s.steps {
		if err := step.Do(ctx); err != nil {
			log.Warn("saga step failed", slog.String("step", step.Name), sl.Err(err))

			last := i - 1
			if step.UndoOnFailure {
				last = i
			}
			compensated, cErr := s.compensate(ctx, log, last)
			return &StepError{
				Step:            step.Name,
				Err:             err,
				Compensated:     compensated,
				CompensationErr: cErr,
			}
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, log *slog.Logger, last int) ([]string, error) {
	// компенсация должна отработать даже при отменённом запросе
	ctx = context.WithoutCancel(ctx)

	var (
		done []string
		errs []error
	)
	for i := last; i >= 0; i-- {
		step := s.steps[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(ctx); err != nil {
			log.Error("saga compensation failed", slog.String("step", step.Name), sl.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		log.Info("saga step compensated", slog.String("step", step.Name))
		done = append(done, step.Name)
	}
	return done, errors.Join(errs...)
}
