package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/config"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/provider/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingPacer struct {
	waits atomic.Int32
	err   error
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits.Add(1)
	return p.err
}

func writePromptFile(t *testing.T, corrections []string, mutate func(m map[string]any)) string {
	t.Helper()
	m := map[string]any{
		"systemMessageProgTxt":          "SYS ",
		"systemLanguageDescription":     "LANG ",
		"functionsListTxt":              "FUNCS ",
		"existingVarsPromptTxt":         "VARS: ",
		"existingVarsProgTxt":           "",
		"userPromptProgTxt":             "build a counter",
		"systemMessageCorrectionTxt":    "CSYS ",
		"userCorrectionPromptProgArray": corrections,
		"correctionProgBaseMsgTxt":      "FIX: ",
		"ProgToJsonConvertSysTxt":       "JSYS ",
		"progToJsonUsrPromptTxt":        "TOJSON ",
	}
	if mutate != nil {
		mutate(m)
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "promt-config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func newTestOrchestrator(t *testing.T, mock *testutil.MockProvider, pacer *countingPacer, promptPath string) *Orchestrator {
	t.Helper()
	return NewOrchestrator(mock, pacer, promptPath, zap.NewNop())
}

func TestRunWithoutCorrections(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	mock.ChatFunc = testutil.ChatBySystemPrefix(map[string]string{
		"SYS ":  "counter = 0",
		"JSYS ": `{"blocks":["counter"]}`,
	}, "")
	pacer := &countingPacer{}

	o := newTestOrchestrator(t, mock, pacer, writePromptFile(t, []string{}, nil))
	reply, err := o.Run(context.Background(), []byte("build a counter"))
	require.NoError(t, err)
	assert.Equal(t, `{"blocks":["counter"]}`, reply)

	calls := mock.Calls()
	require.Len(t, calls, 2)

	assert.Equal(t, stripTimestamps([]model.Message{
		model.SystemMessage("SYS LANG FUNCS "),
		model.UserMessage("build a counter"),
	}), stripTimestamps(calls[0]))
	assert.Equal(t, stripTimestamps([]model.Message{
		model.SystemMessage("JSYS FUNCS "),
		model.UserMessage("TOJSON counter = 0"),
	}), stripTimestamps(calls[1]))

	assert.Equal(t, int32(2), pacer.waits.Load())
}

func TestRunEmptyCritiquesKeepOriginalCode(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	mock.ChatFunc = testutil.ChatBySystemPrefix(map[string]string{
		"SYS ":  "counter = 0",
		"CSYS ": "  \n\t",
		"JSYS ": "structured",
	}, "")
	pacer := &countingPacer{}

	o := newTestOrchestrator(t, mock, pacer, writePromptFile(t, []string{"syntax", "logic", "style"}, nil))
	res, err := o.RunDetailed(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "structured", res.Reply)
	assert.Equal(t, 5, res.Calls)
	assert.Equal(t, 3, res.Critiques)
	assert.Equal(t, 0, res.Regenerations)
	assert.Equal(t, int32(5), pacer.waits.Load())

	calls := mock.Calls()
	require.Len(t, calls, 5)
	for i, name := range []string{"syntax", "logic", "style"} {
		critique := calls[i+1]
		require.Len(t, critique, 2)
		assert.Equal(t, "CSYS LANG FUNCS ", critique[0].Content)
		assert.Equal(t, name+config.DefaultTaskHeader+"build a counter"+config.DefaultCodeHeader+"counter = 0", critique[1].Content)
	}
	assert.Equal(t, "TOJSON counter = 0", calls[4][1].Content)
}

func TestRunCritiquesTriggerRegeneration(t *testing.T) {
	var generated atomic.Int32
	var critiqued atomic.Int32

	mock := testutil.NewMockProvider("test-model")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message) (model.Message, error) {
		switch {
		case strings.HasPrefix(messages[0].Content, "SYS "):
			return model.AssistantMessage(fmt.Sprintf("code v%d", generated.Add(1))), nil
		case strings.HasPrefix(messages[0].Content, "CSYS "):
			return model.AssistantMessage(fmt.Sprintf("  issue %d\n", critiqued.Add(1))), nil
		default:
			return model.AssistantMessage("final"), nil
		}
	}

	o := newTestOrchestrator(t, mock, &countingPacer{}, writePromptFile(t, []string{"first", "second"}, nil))
	res, err := o.RunDetailed(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "final", res.Reply)
	assert.Equal(t, 6, res.Calls)
	assert.Equal(t, 2, res.Critiques)
	assert.Equal(t, 2, res.Regenerations)

	calls := mock.Calls()
	require.Len(t, calls, 6)

	// generation, critique 1, regeneration 1, critique 2, regeneration 2, finalization
	assert.Len(t, calls[0], 2)
	assert.True(t, strings.HasSuffix(calls[1][1].Content, "code v1"))

	regen1 := calls[2]
	require.Len(t, regen1, 4)
	assert.Equal(t, model.RoleAssistant, regen1[2].Role)
	assert.Equal(t, "code v1", regen1[2].Content)
	assert.Equal(t, "FIX: issue 1", regen1[3].Content)

	assert.True(t, strings.HasSuffix(calls[3][1].Content, "code v2"))
	assert.True(t, strings.HasPrefix(calls[3][1].Content, "second"))

	regen2 := calls[4]
	require.Len(t, regen2, 6)
	assert.Equal(t, stripTimestamps(regen1), stripTimestamps(regen2[:4]))
	assert.Equal(t, "code v2", regen2[4].Content)
	assert.Equal(t, "FIX: issue 2", regen2[5].Content)

	assert.Equal(t, "TOJSON code v3", calls[5][1].Content)
}

func TestRunExistingVarsSection(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	path := writePromptFile(t, []string{"check"}, func(m map[string]any) {
		m["existingVarsProgTxt"] = "counter: int"
	})

	o := newTestOrchestrator(t, mock, &countingPacer{}, path)
	_, err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	calls := mock.Calls()
	assert.Equal(t, "SYS LANG FUNCS VARS: counter: int", calls[0][0].Content)
	assert.Equal(t, "CSYS LANG FUNCS VARS: counter: int", calls[1][0].Content)
	assert.Equal(t, "JSYS FUNCS ", calls[len(calls)-1][0].Content)
}

func TestRunTaskText(t *testing.T) {
	tests := []struct {
		name     string
		useReq   bool
		payload  string
		wantTask string
	}{
		{"configured prompt", false, "draw a square", "build a counter"},
		{"payload as task", true, "  draw a square\n", "draw a square"},
		{"blank payload falls back", true, " \r\n", "build a counter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockProvider("test-model")
			path := writePromptFile(t, []string{}, func(m map[string]any) {
				m["useRequestAsTask"] = tt.useReq
			})

			o := newTestOrchestrator(t, mock, &countingPacer{}, path)
			_, err := o.Run(context.Background(), []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTask, mock.Calls()[0][1].Content)
		})
	}
}

func TestRunProviderErrorAbortsWithStage(t *testing.T) {
	wantErr := errors.New("rate limited")
	mock := testutil.NewMockProvider("test-model")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message) (model.Message, error) {
		if strings.HasPrefix(messages[0].Content, "CSYS ") {
			return model.Message{}, wantErr
		}
		return model.AssistantMessage("code"), nil
	}

	o := newTestOrchestrator(t, mock, &countingPacer{}, writePromptFile(t, []string{"a", "b"}, nil))
	res, err := o.RunDetailed(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))
	assert.Contains(t, err.Error(), "correction 1 critique")
	assert.Equal(t, 2, mock.CallCount())
	assert.Equal(t, 2, res.Calls)
	assert.Empty(t, res.Reply)
}

func TestRunPacerErrorStopsBeforeCall(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	pacer := &countingPacer{err: context.DeadlineExceeded}

	o := newTestOrchestrator(t, mock, pacer, writePromptFile(t, []string{}, nil))
	_, err := o.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), StageGeneration)
	assert.Equal(t, 0, mock.CallCount())
}

func TestRunPromptErrors(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")

	o := newTestOrchestrator(t, mock, &countingPacer{}, filepath.Join(t.TempDir(), "absent.json"))
	_, err := o.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := writePromptFile(t, []string{}, func(m map[string]any) { delete(m, "functionsListTxt") })
	o = newTestOrchestrator(t, mock, &countingPacer{}, path)
	_, err = o.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingPromptKey))

	assert.Equal(t, 0, mock.CallCount())
}

func TestRunPromptKeyPresence(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m map[string]any)
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "empty functions list runs",
			mutate:    func(m map[string]any) { m["functionsListTxt"] = "" },
			wantCalls: 2,
		},
		{
			name: "absent variables keys fail",
			mutate: func(m map[string]any) {
				delete(m, "existingVarsProgTxt")
				delete(m, "existingVarsPromptTxt")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockProvider("test-model")
			o := newTestOrchestrator(t, mock, &countingPacer{}, writePromptFile(t, []string{}, tt.mutate))

			_, err := o.Run(context.Background(), nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, config.ErrMissingPromptKey))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, mock.CallCount())
		})
	}
}

func TestRunReloadsPromptsPerRequest(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	path := writePromptFile(t, []string{}, nil)
	o := newTestOrchestrator(t, mock, &countingPacer{}, path)

	_, err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "build a counter", "build a timer", 1)), 0600))

	_, err = o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "build a timer", mock.Calls()[2][1].Content)
}

func stripTimestamps(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = model.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
