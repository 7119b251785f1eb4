package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingModule struct {
	name    string
	initErr error
	stopErr error
	events  *[]string
}

func (m *recordingModule) Initialize(context.Context) error {
	if m.initErr != nil {
		return m.initErr
	}
	*m.events = append(*m.events, "init:"+m.name)
	return nil
}

func (m *recordingModule) Shutdown(context.Context) error {
	*m.events = append(*m.events, "stop:"+m.name)
	return m.stopErr
}

func TestInitializeOrdersByDependency(t *testing.T) {
	var events []string
	c := New()

	// Registered out of order on purpose.
	c.Register("c", TypeTool, &recordingModule{name: "c", events: &events}, []string{"b"})
	c.Register("a", TypeCore, &recordingModule{name: "a", events: &events}, nil)
	c.Register("b", TypeStore, &recordingModule{name: "b", events: &events}, []string{"a"})

	require.NoError(t, c.InitializeAll(context.Background()))
	assert.Equal(t, []string{"init:a", "init:b", "init:c"}, events)

	health := c.Health()
	assert.Equal(t, HealthInitialized, health["a"])
	assert.Equal(t, HealthInitialized, health["c"])
}

func TestInitializeReportsCycle(t *testing.T) {
	var events []string
	c := New()
	c.Register("a", TypeCore, &recordingModule{name: "a", events: &events}, []string{"b"})
	c.Register("b", TypeCore, &recordingModule{name: "b", events: &events}, []string{"a"})

	err := c.InitializeAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a (waiting on b)")
	assert.Contains(t, err.Error(), "b (waiting on a)")
	assert.Empty(t, events)
}

func TestInitializeReportsMissingDependency(t *testing.T) {
	var events []string
	c := New()
	c.Register("a", TypeCore, &recordingModule{name: "a", events: &events}, []string{"ghost"})

	err := c.InitializeAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestInitializeStopsOnModuleFailure(t *testing.T) {
	var events []string
	c := New()
	c.Register("a", TypeCore, &recordingModule{name: "a", events: &events}, nil)
	c.Register("b", TypeCore, &recordingModule{name: "b", initErr: errors.New("boom"), events: &events}, []string{"a"})

	err := c.InitializeAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize module b")
	assert.Equal(t, HealthFailed, c.Health()["b"])
}

func TestShutdownReversesInitOrder(t *testing.T) {
	var events []string
	c := New()
	c.Register("a", TypeCore, &recordingModule{name: "a", events: &events}, nil)
	c.Register("b", TypeStore, &recordingModule{name: "b", events: &events}, []string{"a"})

	require.NoError(t, c.InitializeAll(context.Background()))
	c.ShutdownAll(context.Background())

	assert.Equal(t, []string{"init:a", "init:b", "stop:b", "stop:a"}, events)
	assert.Equal(t, HealthStopped, c.Health()["a"])
}

func TestShutdownContinuesPastErrors(t *testing.T) {
	var events []string
	c := New()
	c.Register("a", TypeCore, &recordingModule{name: "a", events: &events}, nil)
	c.Register("b", TypeStore, &recordingModule{name: "b", stopErr: errors.New("stuck"), events: &events}, []string{"a"})

	require.NoError(t, c.InitializeAll(context.Background()))
	c.ShutdownAll(context.Background())

	// b's failure must not prevent a's shutdown.
	assert.Contains(t, events, "stop:a")
}

func TestDuplicateRegistrationOverwrites(t *testing.T) {
	var events []string
	c := New()
	c.Register("a", TypeCore, &recordingModule{name: "first", events: &events}, nil)
	c.Register("a", TypeCore, &recordingModule{name: "second", events: &events}, nil)

	require.NoError(t, c.InitializeAll(context.Background()))
	assert.Equal(t, []string{"init:second"}, events)
}
