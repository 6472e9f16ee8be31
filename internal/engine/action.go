package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// executionPolicy collects every execution-mode branch in one place:
// whether allocations mutate pod balances and whether suggestion
// actions persist tasks. Adding a mode is a change here, not in the
// action cases.
type executionPolicy struct {
	mode             string // Mode recorded in the trace.
	applyAllocations bool   // Mutate pod balances.
	createTasks      bool   // Persist suggested tasks.
}

// policyFor resolves the effective policy. Dry runs never touch
// external state regardless of the configured mode.
func policyFor(mode string, dryRun bool) executionPolicy {
	if dryRun {
		return executionPolicy{mode: models.ModeSuggestOnly}
	}
	if mode == "" {
		mode = models.ModeSuggestOnly
	}
	return executionPolicy{
		mode:             mode,
		applyAllocations: mode == models.ModeAutoApply,
		createTasks:      mode == models.ModeAutoCreateTasks || mode == models.ModeAutoApply,
	}
}

// actionOutcome is the in-memory result of one attempted action,
// persisted as an ActionResult row.
type actionOutcome struct {
	Index   int
	Action  Action
	Status  string
	Message string
	Payload ActionPayload
}

// executionResult carries everything the run writer needs to commit
// atomically: outcomes, pod balance deltas and tasks to create.
type executionResult struct {
	Status    string
	Outcomes  []actionOutcome
	PodDeltas map[uint64]float64
	Tasks     []models.Task
}

// executeActions runs the action list strictly in order, accumulating
// the allocated-so-far total, and stops at the first failed action.
// Nothing is written here; side effects are collected for the single
// atomic commit alongside the Run row.
func (r *Runner) executeActions(
	ctx context.Context,
	actions []Action,
	tx *models.Transaction,
	latestBalance *float64,
	pol executionPolicy,
	minCheckingFloor float64,
) (executionResult, error) {
	res := executionResult{
		Status:    models.RunCompleted,
		PodDeltas: map[uint64]float64{},
	}
	balance := 0.0
	if latestBalance != nil {
		balance = *latestBalance
	}
	allocated := 0.0

	for idx, action := range actions {
		outcome := actionOutcome{Index: idx, Action: action, Status: models.ActionSuccess}

		switch action.Type {
		case ActAllocateFixed:
			availableTotal := balance - minCheckingFloor
			if availableTotal < 0 {
				availableTotal = 0
			}
			available := availableTotal - allocated
			actual := action.Amount
			if action.UpToAvailable {
				if available < 0 {
					available = 0
				}
				if actual > available {
					actual = available
				}
			}
			if action.UpToAvailable && actual <= 0 {
				outcome.Status = models.ActionFailed
				outcome.Message = "No available funds above floor"
				break
			}
			// Fixed allocations without the clamp must still respect
			// the floor before committing in apply mode.
			projected := balance - (allocated + actual)
			if pol.applyAllocations && projected < minCheckingFloor {
				outcome.Status = models.ActionFailed
				outcome.Message = "Guardrail blocked: minimum checking floor would be breached"
				break
			}
			allocated += actual
			if pol.applyAllocations && action.PodID != 0 {
				res.PodDeltas[action.PodID] += actual
			}
			outcome.Message = fmt.Sprintf("Allocated %s to pod %d", fnum(actual), action.PodID)
			outcome.Payload = ActionPayload{Allocated: float64Ptr(actual), PodID: action.PodID}

		case ActAllocatePercent:
			base := 0.0
			if tx != nil {
				base = tx.Amount
				if base < 0 {
					base = -base
				}
			}
			amount := round2(base * action.Percent / 100)
			projected := balance - (allocated + amount)
			if pol.applyAllocations && projected < minCheckingFloor {
				outcome.Status = models.ActionFailed
				outcome.Message = "Guardrail blocked: minimum checking floor would be breached"
				break
			}
			allocated += amount
			leftover := round2(base - amount)
			if pol.applyAllocations && action.PodID != 0 {
				res.PodDeltas[action.PodID] += amount
			}
			outcome.Message = fmt.Sprintf("Allocated %s (%s%%), leftover %s", fnum(amount), fnum(action.Percent), fnum(leftover))
			outcome.Payload = ActionPayload{Allocated: float64Ptr(amount), Leftover: float64Ptr(leftover), PodID: action.PodID}

		case ActTopUpPod:
			current := 0.0
			podFound := false
			var pod models.Pod
			if action.PodID != 0 {
				errFind := r.db.WithContext(ctx).First(&pod, action.PodID).Error
				switch {
				case errFind == nil:
					current = pod.CurrentBalance
					podFound = true
				case errors.Is(errFind, gorm.ErrRecordNotFound):
					// Missing pod suggests a zero-base top up, same as
					// a freshly created empty pod.
				default:
					return executionResult{}, fmt.Errorf("engine: load pod %d: %w", action.PodID, errFind)
				}
			}
			need := action.Target - current
			if need < 0 {
				need = 0
			}
			projected := balance - (allocated + need)
			if pol.applyAllocations && projected < minCheckingFloor {
				outcome.Status = models.ActionFailed
				outcome.Message = "Guardrail blocked: minimum checking floor would be breached"
				break
			}
			allocated += need
			if pol.applyAllocations && podFound {
				res.PodDeltas[action.PodID] += need
			}
			outcome.Message = fmt.Sprintf("Top up suggestion %s", fnum(need))
			outcome.Payload = ActionPayload{Allocated: float64Ptr(need), PodID: action.PodID}

		case ActLiabilitySuggestion:
			title := action.Title
			if title == "" {
				title = "Pay liability"
			}
			outcome.Message = "Task suggested"
			outcome.Payload = ActionPayload{TaskTitle: title, TaskNote: action.Note}
			if pol.createTasks {
				res.Tasks = append(res.Tasks, models.Task{
					Title:    title,
					TaskType: models.TaskTypeLiabilityPayment,
					Note:     action.Note,
					Status:   models.TaskOpen,
				})
			}

		default:
			outcome.Status = models.ActionFailed
			outcome.Message = fmt.Sprintf("Unsupported action %s", action.Type)
		}

		res.Outcomes = append(res.Outcomes, outcome)
		if outcome.Status == models.ActionFailed {
			res.Status = models.RunActionFailed
			break
		}
	}

	return res, nil
}

func float64Ptr(v float64) *float64 { return &v }
