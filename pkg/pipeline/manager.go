package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/edgeflare/silver/pkg/config"
	"github.com/edgeflare/silver/pkg/pipeline/route"
	"github.com/edgeflare/silver/pkg/pipeline/transform"
	"github.com/edgeflare/silver/pkg/serde"
	"go.uber.org/zap"
)

// GenericTaskID is the source id of the task binding unclaimed topics.
const GenericTaskID = "generic"

var ErrEmptyTopology = errors.New("no enabled topic is bound by any task")

// PlanEntry is one binding that would be started.
type PlanEntry struct {
	Task        string
	Source      string
	Destination string
	Table       string
}

// Resources are the collaborators a running pipeline needs. They are only
// built once the plan is approved.
type Resources struct {
	Runtime      Runtime
	Deserializer serde.Deserializer
	Serializer   serde.Serializer
	Sink         Connector
	SinkName     string
}

// Wiring builds the Resources. Called at most once per Run.
type Wiring func(ctx context.Context) (*Resources, error)

// Manager holds the source tasks, the approval gate and the schema cache
// shared by every handler.
type Manager struct {
	tasks         []Task
	topics        []string
	opts          Options
	approved      bool
	bindUnclaimed bool
	schemas       *transform.SchemaCache
	logger        *zap.Logger
	out           io.Writer
}

// NewManager returns a Manager for cfg running the given tasks.
func NewManager(cfg *config.Config, logger *zap.Logger, tasks ...Task) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tasks:         tasks,
		topics:        cfg.Bronze.Topics,
		opts:          OptionsFromConfig(cfg),
		approved:      cfg.Silver.Approved,
		bindUnclaimed: cfg.Silver.BindUnclaimed,
		schemas:       transform.NewSchemaCache(),
		logger:        logger,
		out:           os.Stdout,
	}
}

// SetOutput sets where the plan is printed. Defaults to stdout.
func (m *Manager) SetOutput(w io.Writer) {
	m.out = w
}

// Schemas returns the schema cache handlers derive silver schemas from.
func (m *Manager) Schemas() *transform.SchemaCache {
	return m.schemas
}

// Unclaimed returns the enabled topics no task declares, in configuration order.
func (m *Manager) Unclaimed() []string {
	claimed := map[string]bool{}
	for _, t := range m.tasks {
		for _, b := range t.Bindings() {
			claimed[b.Topic] = true
		}
	}

	var unclaimed []string
	for _, topic := range m.topics {
		if !claimed[topic] {
			unclaimed = append(unclaimed, topic)
		}
	}
	return unclaimed
}

// Tasks returns the configured tasks plus, when unclaimed topics are bound,
// the generic task binding them.
func (m *Manager) Tasks() []Task {
	tasks := append([]Task(nil), m.tasks...)
	if !m.bindUnclaimed {
		return tasks
	}

	unclaimed := m.Unclaimed()
	if len(unclaimed) == 0 {
		return tasks
	}
	generic := &BindingTask{ID: GenericTaskID}
	for _, topic := range unclaimed {
		generic.Tables = append(generic.Tables, Binding{
			Topic: topic,
			Table: route.DeriveTableName(topic, m.opts.StripPrefix),
		})
	}
	return append(tasks, generic)
}

// Plan returns every binding that is enabled, in task then declaration order.
func (m *Manager) Plan() []PlanEntry {
	enabled := map[string]bool{}
	for _, t := range m.topics {
		enabled[t] = true
	}

	var plan []PlanEntry
	for _, t := range m.Tasks() {
		for _, b := range t.Bindings() {
			if !enabled[b.Topic] {
				continue
			}
			dest, table := m.opts.Destination(b)
			plan = append(plan, PlanEntry{
				Task:        t.Source(),
				Source:      b.Topic,
				Destination: dest,
				Table:       table,
			})
		}
	}
	return plan
}

// PrintPlan writes the plan as a table to w.
func (m *Manager) PrintPlan(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSOURCE\tDESTINATION\tTABLE")
	for _, e := range m.Plan() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Task, e.Source, e.Destination, e.Table)
	}
	if unclaimed := m.Unclaimed(); len(unclaimed) > 0 && !m.bindUnclaimed {
		fmt.Fprintf(tw, "\nunclaimed topics (not bound): %v\n", unclaimed)
	}
	return tw.Flush()
}

// Topology configures every task into a new Topology.
func (m *Manager) Topology(c *Context) (*Topology, error) {
	t := NewTopology()
	for _, task := range m.Tasks() {
		if err := task.Configure(t, c); err != nil {
			return nil, fmt.Errorf("configure %s: %w", task.Source(), err)
		}
	}
	return t, nil
}

// Run starts the pipeline. Without approval it prints the plan and blocks
// until ctx is done without consuming anything. With approval it builds the
// resources, configures every task and runs the runtime until ctx is done or
// a handler fails.
func (m *Manager) Run(ctx context.Context, wire Wiring) error {
	for _, topic := range m.Unclaimed() {
		if m.bindUnclaimed {
			m.logger.Info("binding unclaimed topic with the generic task", zap.String("topic", topic))
		} else {
			m.logger.Warn("enabled topic is not bound by any task", zap.String("topic", topic))
		}
	}

	if !m.approved {
		if err := m.PrintPlan(m.out); err != nil {
			return err
		}
		m.logger.Warn("silver writes are not approved, awaiting approval: set SILVER_APPROVED=true and restart",
			zap.Int("bindings", len(m.Plan())))
		<-ctx.Done()
		m.logger.Info("shutting down while awaiting approval")
		return nil
	}

	res, err := wire(ctx)
	if err != nil {
		return fmt.Errorf("wire pipeline: %w", err)
	}
	defer func() {
		if res.Sink == nil {
			return
		}
		if err := res.Sink.Disconnect(); err != nil {
			m.logger.Warn("failed to disconnect sink", zap.String("sink", res.SinkName), zap.Error(err))
		}
	}()

	c := NewContext(m.opts, m.topics, m.schemas)
	c.Deserializer = res.Deserializer
	c.Serializer = res.Serializer
	c.Sink = res.Sink
	c.SinkName = res.SinkName
	c.Logger = m.logger

	t, err := m.Topology(c)
	if err != nil {
		return err
	}
	if len(t.Topics()) == 0 {
		return ErrEmptyTopology
	}

	for _, e := range m.Plan() {
		m.logger.Info("binding",
			zap.String("task", e.Task),
			zap.String("source", e.Source),
			zap.String("destination", e.Destination),
			zap.String("table", e.Table))
	}

	return res.Runtime.Run(ctx, t)
}
