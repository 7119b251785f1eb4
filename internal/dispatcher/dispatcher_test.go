package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/assembler"
	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/gateway"
	"github.com/stewardhq/steward/internal/generator"
	"github.com/stewardhq/steward/internal/history"
	"github.com/stewardhq/steward/internal/narrator"
	"github.com/stewardhq/steward/internal/plan"
	"github.com/stewardhq/steward/internal/tool/builtin"
)

type fakeGateway struct{ responses []string }

func (f *fakeGateway) Generate(context.Context, gateway.GenerationRequest) (string, error) {
	if len(f.responses) == 0 {
		return "", context.DeadlineExceeded
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next, nil
}

type echoTool struct {
	connected bool
	invoked   []string
}

func (e *echoTool) ToolID() string { return "notes" }

func (e *echoTool) Manifest() capability.Manifest {
	return capability.Manifest{
		ToolID:   "notes",
		Name:     "Notes",
		Category: capability.CategoryProductivity,
		Capabilities: []capability.CapabilitySpec{
			{
				Name:      "save_note",
				RiskLevel: plan.RiskSafe,
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"text": map[string]any{"type": "string"}},
					"required":   []any{"text"},
				},
			},
		},
	}
}

func (e *echoTool) Connected() bool                                  { return e.connected }
func (e *echoTool) Connect(context.Context, map[string]string) error { e.connected = true; return nil }
func (e *echoTool) Disconnect(context.Context) error                 { e.connected = false; return nil }

func (e *echoTool) Invoke(_ context.Context, cap string, params map[string]any, _ capability.InvocationContext) (*capability.Invocation, error) {
	e.invoked = append(e.invoked, cap)
	return &capability.Invocation{Success: true, Data: params["text"]}, nil
}

func (e *echoTool) ValidateParameters(cap string, params map[string]any) error {
	spec, _ := e.Manifest().Capability(cap)
	return capability.ValidateInput(spec.Parameters, params)
}

func newTestDispatcher(t *testing.T, gw gateway.Gateway, tool capability.Tool) (*Dispatcher, *history.Store) {
	t.Helper()

	registry := capability.NewRegistry()
	require.NoError(t, registry.Register(tool))

	hist := history.NewStore(10)
	asm := assembler.New(config.AssemblerConfig{Persona: "You are Steward.", HistoryTurns: 5}, registry, hist, nil, nil)

	gen, err := generator.New(config.ModelsConfig{GenerationTimeout: "5s", MaxTokens: 512}, gw)
	require.NoError(t, err)

	exec, err := executor.New(config.ExecutorConfig{CallTimeout: "5s", DefaultUser: "default"}, registry, nil, nil, nil)
	require.NoError(t, err)

	d := New(asm, gen, capability.NewValidator(registry), exec, narrator.New(gw), hist)
	return d, hist
}

func TestHandleExecutesPlanAndNarrates(t *testing.T) {
	tool := &echoTool{}
	gw := &fakeGateway{responses: []string{
		`{"intent": "system_action", "confidence": 0.9,
		  "tool_calls": [{"tool_id": "notes", "capability": "save_note",
		    "parameters": {"text": "buy milk"}, "risk_level": "safe"}],
		  "narration_message": "Saved your note."}`,
		"Done, I saved your note about milk.",
	}}

	d, hist := newTestDispatcher(t, gw, tool)
	turn := d.Handle(context.Background(), "alice", "note that I need to buy milk")

	assert.Equal(t, "Done, I saved your note about milk.", turn.Response)
	assert.Equal(t, []string{"save_note"}, tool.invoked)
	require.NotNil(t, turn.Summary)
	assert.True(t, turn.Summary.Success())

	turns := hist.Recent("alice", 0)
	require.Len(t, turns, 1)
	assert.Equal(t, "note that I need to buy milk", turns[0].Utterance)
	assert.Equal(t, "system_action", turns[0].Intent)
}

func TestHandleCreatesFileOnDisk(t *testing.T) {
	root := t.TempDir()
	fs, err := builtin.NewFilesystemTool(config.ToolsConfig{FilesystemRoot: root})
	require.NoError(t, err)

	gw := &fakeGateway{responses: []string{
		`{"intent": "system_action", "confidence": 0.9,
		  "tool_calls": [{"tool_id": "filesystem", "capability": "write_file",
		    "parameters": {"path": "notes/todo.txt", "content": "buy milk"}, "risk_level": "medium"}],
		  "narration_message": "Created the file."}`,
		"Done, todo.txt is in place.",
	}}

	d, _ := newTestDispatcher(t, gw, fs)
	turn := d.Handle(context.Background(), "alice", "create notes/todo.txt saying buy milk")

	require.NotNil(t, turn.Summary)
	assert.True(t, turn.Summary.Success())

	data, err := os.ReadFile(filepath.Join(root, "notes", "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "buy milk", string(data))
}

func TestHandleConversationalTurn(t *testing.T) {
	gw := &fakeGateway{responses: []string{
		`{"intent": "question", "confidence": 0.95, "tool_calls": [],
		  "narration_message": "You have nothing scheduled today."}`,
	}}

	d, _ := newTestDispatcher(t, gw, &echoTool{})
	turn := d.Handle(context.Background(), "alice", "what's on my calendar")

	assert.Equal(t, "You have nothing scheduled today.", turn.Response)
	assert.Nil(t, turn.Summary)
	assert.Empty(t, turn.Plan.ToolCalls)
}

func TestHandleGenerationFailureFallsBack(t *testing.T) {
	gw := &fakeGateway{responses: []string{"I have no idea what JSON is."}}

	d, hist := newTestDispatcher(t, gw, &echoTool{})
	turn := d.Handle(context.Background(), "alice", "do something")

	assert.Equal(t, fallbackResponse, turn.Response)
	assert.Nil(t, turn.Plan)

	// The failed turn still lands in history.
	assert.Len(t, hist.Recent("alice", 0), 1)
}

func TestHandleRefusesInvalidPlan(t *testing.T) {
	gw := &fakeGateway{responses: []string{
		`{"intent": "system_action", "confidence": 0.9,
		  "tool_calls": [{"tool_id": "teleporter", "capability": "beam",
		    "parameters": {}, "risk_level": "safe"}],
		  "narration_message": "Beaming."}`,
	}}

	tool := &echoTool{}
	d, _ := newTestDispatcher(t, gw, tool)
	turn := d.Handle(context.Background(), "alice", "beam me up")

	assert.Contains(t, turn.Response, "teleporter")
	assert.Empty(t, tool.invoked)
	assert.Nil(t, turn.Summary)
}

func TestHandleNarratesMissingParameterFailure(t *testing.T) {
	gw := &fakeGateway{responses: []string{
		`{"intent": "system_action", "confidence": 0.9,
		  "tool_calls": [{"tool_id": "notes", "capability": "save_note",
		    "parameters": {}, "risk_level": "safe"}],
		  "narration_message": "Saving."}`,
	}}

	tool := &echoTool{}
	d, _ := newTestDispatcher(t, gw, tool)
	turn := d.Handle(context.Background(), "alice", "save a note")

	// The validator catches the missing required parameter before execution.
	assert.Contains(t, turn.Response, "text")
	assert.Empty(t, tool.invoked)
}
