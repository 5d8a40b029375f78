package workflow

import (
	"fmt"

	"github.com/clearpath/claims/internal/models"
)

// Env is the decision environment a guard evaluates: the runtime-configurable
// approval mode and the org-chart facts for the claim's employee.
type Env struct {
	ApprovalMode   models.ApprovalMode
	HasSupervisor1 bool
	HasSupervisor2 bool
}

// GuardFunc evaluates whether a guarded transition applies in the environment
type GuardFunc func(env Env) bool

// StateMachine tracks a claim's status and validates transitions against it
type StateMachine interface {
	// State returns the current status
	State() models.Status

	// CanFire returns true if the trigger has any transition from the current status
	CanFire(trigger Trigger) bool

	// Fire attempts the trigger, moving to the new status if a transition's
	// guard passes. On error the status is unchanged.
	Fire(trigger Trigger, env Env) error

	// PermittedTriggers returns all triggers configured for the current status
	PermittedTriggers() []Trigger
}

type transition struct {
	toState models.Status
	guard   GuardFunc
}

type stateConfig struct {
	transitions map[Trigger][]transition
}

// Builder assembles the transition table before a machine is instantiated
type Builder struct {
	configurations map[models.Status]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() *Builder {
	return &Builder{
		configurations: make(map[models.Status]*stateConfig),
	}
}

// Configure returns the configuration entry for a status, creating it if needed
func (b *Builder) Configure(state models.Status) *StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configurations[state] = config
	}

	return &StateConfiguration{config: config}
}

// Build creates a machine positioned at the given status
func (b *Builder) Build(initial models.Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}

	return &stateMachine{
		currentState:   initial,
		configurations: b.configurations,
	}
}

// StateConfiguration configures transitions out of one status
type StateConfiguration struct {
	config *stateConfig
}

// Permit allows a trigger to transition to the target status unconditionally
func (c *StateConfiguration) Permit(trigger Trigger, toState models.Status) *StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows a trigger to transition to the target status when the guard
// passes. Guarded transitions are tried in registration order, so a guarded
// promotion registered before an unguarded fallback wins when its guard holds.
func (c *StateConfiguration) PermitIf(trigger Trigger, toState models.Status, guard GuardFunc) *StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.config.transitions[trigger] = append(c.config.transitions[trigger], transition{
		toState: toState,
		guard:   guard,
	})

	return c
}

type stateMachine struct {
	currentState   models.Status
	configurations map[models.Status]*stateConfig
}

func (m *stateMachine) State() models.Status {
	return m.currentState
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}

	transitions := config.transitions[trigger]
	return len(transitions) > 0
}

func (m *stateMachine) Fire(trigger Trigger, env Env) error {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.currentState)
	}

	transitions, exists := config.transitions[trigger]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(env) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.currentState)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}

	return triggers
}
