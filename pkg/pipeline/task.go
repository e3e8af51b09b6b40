package pipeline

import (
	"fmt"
)

// Binding declares that a bronze topic carries the CDC events of one source table.
type Binding struct {
	Topic string
	Table string
}

// Task binds the topics of one source system.
type Task interface {
	// Source is a short id of the source system, e.g. "oracle-esw".
	Source() string
	// Bindings lists every topic the task can bind, enabled or not.
	Bindings() []Binding
	// Configure registers a handler on t for every enabled binding.
	Configure(t *Topology, c *Context) error
}

// BindingTask is a Task defined by its bindings alone. Every enabled binding
// gets the same bronze to silver handler.
type BindingTask struct {
	ID     string
	Tables []Binding
}

func (b *BindingTask) Source() string {
	return b.ID
}

func (b *BindingTask) Bindings() []Binding {
	return b.Tables
}

func (b *BindingTask) Configure(t *Topology, c *Context) error {
	for _, binding := range b.Tables {
		if !c.Enabled(binding.Topic) {
			continue
		}
		if err := t.Handle(binding.Topic, c.Handler(b.ID, binding)); err != nil {
			return fmt.Errorf("task %s: %w", b.ID, err)
		}
	}
	return nil
}
