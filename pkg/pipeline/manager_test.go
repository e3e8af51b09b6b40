package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edgeflare/silver/internal/testutil"
	"github.com/edgeflare/silver/pkg/pipeline/transform"
	"github.com/edgeflare/silver/pkg/serde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func lpcoTask() *BindingTask {
	return &BindingTask{ID: "oracle-esw", Tables: []Binding{
		{Topic: "raw-TB_CB_LPCO", Table: "TB_CB_LPCO"},
		{Topic: "raw-TB_CB_LPCO_CMDT", Table: "TB_CB_LPCO_CMDT"},
	}}
}

func TestManagerPlan(t *testing.T) {
	m := NewManager(testConfig("raw-TB_CB_LPCO", "bronze.orders"), nil, lpcoTask())

	assert.Equal(t, []PlanEntry{{
		Task:        "oracle-esw",
		Source:      "raw-TB_CB_LPCO",
		Destination: "silver.raw-TB_CB_LPCO",
		Table:       "silver.tb_cb_lpco",
	}}, m.Plan())
	assert.Equal(t, []string{"bronze.orders"}, m.Unclaimed())
	assert.Len(t, m.Tasks(), 1)

	var out bytes.Buffer
	require.NoError(t, m.PrintPlan(&out))
	assert.Contains(t, out.String(), "TASK")
	assert.Contains(t, out.String(), "silver.raw-TB_CB_LPCO")
	assert.Contains(t, out.String(), "unclaimed topics (not bound): [bronze.orders]")
}

func TestManagerBindUnclaimed(t *testing.T) {
	cfg := testConfig("raw-TB_CB_LPCO", "bronze.raw-ORDERS")
	cfg.Silver.StripPrefix = "bronze."
	cfg.Silver.BindUnclaimed = true
	m := NewManager(cfg, nil, lpcoTask())

	tasks := m.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, GenericTaskID, tasks[1].Source())
	assert.Equal(t, []Binding{{Topic: "bronze.raw-ORDERS", Table: "ORDERS"}}, tasks[1].Bindings())

	plan := m.Plan()
	require.Len(t, plan, 2)
	assert.Equal(t, PlanEntry{
		Task:        GenericTaskID,
		Source:      "bronze.raw-ORDERS",
		Destination: "silver.raw-ORDERS",
		Table:       "silver.orders",
	}, plan[1])
}

func TestManagerRunAwaitingApproval(t *testing.T) {
	cfg := testConfig("raw-TB_CB_LPCO", "unknown")
	cfg.Silver.Approved = false

	core, logs := observer.New(zapcore.InfoLevel)
	m := NewManager(cfg, zap.New(core), lpcoTask())
	var out bytes.Buffer
	m.SetOutput(&out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	wired := false
	go func() {
		done <- m.Run(ctx, func(context.Context) (*Resources, error) {
			wired = true
			return nil, errors.New("must not be called")
		})
	}()

	select {
	case err := <-done:
		t.Fatalf("Run returned before shutdown: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.False(t, wired)
	assert.Contains(t, out.String(), "silver.raw-TB_CB_LPCO")
	assert.Equal(t, 1, logs.FilterMessageSnippet("not approved").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("not bound by any task").Len())
}

func TestManagerRunEmptyTopology(t *testing.T) {
	m := NewManager(testConfig("unknown"), nil, lpcoTask())
	sink := &memorySink{}
	err := m.Run(context.Background(), func(context.Context) (*Resources, error) {
		return &Resources{
			Runtime:      &replayRuntime{},
			Deserializer: serde.JSONDeserializer{},
			Serializer:   serde.JSONSerializer{},
			Sink:         sink,
		}, nil
	})
	assert.ErrorIs(t, err, ErrEmptyTopology)
	assert.True(t, sink.disconnected)
}

func runJSON(t *testing.T, sink *memorySink, msgs ...Message) (*replayRuntime, error) {
	t.Helper()
	m := NewManager(testConfig("raw-TB_CB_LPCO"), nil, lpcoTask())
	rt := &replayRuntime{msgs: msgs}
	err := m.Run(context.Background(), func(context.Context) (*Resources, error) {
		return &Resources{
			Runtime:      rt,
			Deserializer: serde.JSONDeserializer{},
			Serializer:   serde.JSONSerializer{},
			Sink:         sink,
			SinkName:     "memory",
		}, nil
	})
	return rt, err
}

func TestEndToEndJSON(t *testing.T) {
	sink := &memorySink{}
	rt, err := runJSON(t, sink,
		Message{Topic: "raw-TB_CB_LPCO", Key: []byte("k1"), Value: []byte(`{"before":null,"after":{"ID":1,"NAME":"x"},"op":"c"}`)},
		Message{Topic: "raw-TB_CB_LPCO", Key: []byte("k1"), Value: []byte(`{"payload":{"before":{"ID":1,"NAME":"x"},"after":null,"op":"d"}}`)},
		Message{Topic: "raw-TB_CB_LPCO", Key: []byte("k1"), Value: nil},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"raw-TB_CB_LPCO"}, rt.topics)

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "silver.raw-TB_CB_LPCO", msgs[0].Topic)
	assert.Equal(t, []byte("k1"), msgs[0].Key)
	assert.Equal(t, `{"__iceberg_table":"silver.tb_cb_lpco","id":1,"name":"x"}`, string(msgs[0].Value))
}

func TestEndToEndFailuresStopTheRuntime(t *testing.T) {
	sink := &memorySink{}
	_, err := runJSON(t, sink,
		Message{Topic: "raw-TB_CB_LPCO", Value: []byte(`not json`)},
		Message{Topic: "raw-TB_CB_LPCO", Value: []byte(`{"after":{"ID":2}}`)},
	)
	require.Error(t, err)
	assert.Empty(t, sink.messages())

	sink = &memorySink{err: errors.New("broker unavailable")}
	_, err = runJSON(t, sink, Message{Topic: "raw-TB_CB_LPCO", Value: []byte(`{"after":{"ID":2}}`)})
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestEndToEndAvro(t *testing.T) {
	registry := testutil.NewSchemaRegistry()
	defer registry.Close()

	envelope, err := testutil.LoadFile("envelope.avsc")
	require.NoError(t, err)
	id := registry.Add(string(envelope))

	create, err := testutil.EncodeAvro(string(envelope), id,
		testutil.Envelope("c", nil, map[string]any{"ID": int64(1), "NAME": "x"}))
	require.NoError(t, err)
	update, err := testutil.EncodeAvro(string(envelope), id,
		testutil.Envelope("u", map[string]any{"ID": int64(1), "NAME": "x"}, map[string]any{"ID": int64(1), "NAME": "y"}))
	require.NoError(t, err)
	del, err := testutil.EncodeAvro(string(envelope), id,
		testutil.Envelope("d", map[string]any{"ID": int64(1), "NAME": "y"}, nil))
	require.NoError(t, err)

	bronze, err := serde.NewRegistry(serde.RegistryConfig{URL: registry.URL(), GroupID: "debezium"})
	require.NoError(t, err)
	silver, err := serde.NewRegistry(serde.RegistryConfig{URL: registry.URL(), GroupID: "debezium-silver"})
	require.NoError(t, err)
	deser, ser, err := serde.New(serde.FormatAvro, bronze, silver)
	require.NoError(t, err)

	m := NewManager(testConfig("raw-TB_CB_LPCO"), nil, lpcoTask())
	sink := &memorySink{}
	rt := &replayRuntime{msgs: []Message{
		{Topic: "raw-TB_CB_LPCO", Key: []byte("1"), Value: create},
		{Topic: "raw-TB_CB_LPCO", Key: []byte("1"), Value: update},
		{Topic: "raw-TB_CB_LPCO", Key: []byte("1"), Value: del},
	}}
	err = m.Run(context.Background(), func(context.Context) (*Resources, error) {
		return &Resources{Runtime: rt, Deserializer: deser, Serializer: ser, Sink: sink, SinkName: "memory"}, nil
	})
	require.NoError(t, err)

	msgs := sink.messages()
	require.Len(t, msgs, 2)
	ids := registry.Subject("silver.raw-TB_CB_LPCO-value")
	require.Len(t, ids, 1, "silver schema is registered once")
	text, _ := registry.Schema(ids[0])

	wantNames := []string{"x", "y"}
	for i, msg := range msgs {
		assert.Equal(t, "silver.raw-TB_CB_LPCO", msg.Topic)
		assert.Equal(t, []byte("1"), msg.Key)

		native, err := testutil.DecodeAvro(text, msg.Value)
		require.NoError(t, err)
		assert.Equal(t, "silver.tb_cb_lpco", native[transform.RoutingField])
		assert.Equal(t, int64(1), native["id"])
		assert.Equal(t, wantNames[i], native["name"])
		assert.Nil(t, native["issued_at"])
	}

	assert.Equal(t, 1, m.Schemas().Len())
}
