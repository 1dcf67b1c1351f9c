package capability_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string
}

func echo() capability.Capability {
	return capability.New("echo", "Lo siento",
		func(_ context.Context, call capability.Call) (echoArgs, error) {
			if call.Args.String("text") == "" {
				return echoArgs{}, capability.Failf("falta el texto")
			}
			return echoArgs{Text: call.Args.String("text")}, nil
		},
		func(_ context.Context, id string, a echoArgs) (*capability.Outcome, error) {
			return &capability.Outcome{Message: id + ":" + a.Text}, nil
		})
}

func TestTypedCapability_BindAndExecute(t *testing.T) {
	c := echo()
	assert.Equal(t, "echo", c.Name())

	inv, err := c.Bind(context.Background(), capability.Call{
		TaskExecutionID: "te-1",
		Args:            capability.Arguments{"text": "hola"},
	})
	require.NoError(t, err)

	out, err := inv.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "te-1:hola", out.Message)
}

func TestTypedCapability_BindFailure(t *testing.T) {
	_, err := echo().Bind(context.Background(), capability.Call{Args: capability.Arguments{"text": 42}})
	var f *capability.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "falta el texto", f.Reason)
	assert.Equal(t, f.Reason, f.Note)
}

func TestRegistry(t *testing.T) {
	r := capability.NewRegistry()
	require.NoError(t, r.Register(echo()))
	assert.Error(t, r.Register(echo()), "duplicate name")

	c, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", c.Name())

	_, ok = r.Get("enviarCohete")
	assert.False(t, ok)
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestArguments_DropWrongTypes(t *testing.T) {
	args := capability.Arguments{
		"s":   "x",
		"n":   3.0,
		"b":   true,
		"bad": []any{"x"},
		"nil": nil,
	}
	assert.Equal(t, "x", args.String("s"))
	assert.Equal(t, "", args.String("n"))
	assert.Equal(t, "", args.String("missing"))

	require.NotNil(t, args.Bool("b"))
	assert.True(t, *args.Bool("b"))
	assert.Nil(t, args.Bool("s"))

	n, ok := args.Number("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
	_, ok = args.Number("s")
	assert.False(t, ok)

	rest := args.Without("s", "b")
	assert.Equal(t, map[string]any{"n": 3.0, "bad": []any{"x"}}, rest)
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("db down")
	f := &capability.Failure{Reason: "no se pudo", Err: cause}
	assert.ErrorIs(t, f, cause)
	assert.Contains(t, f.Error(), "db down")
}

func TestMarkFailedOverwritesMetadata(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.CreateTaskExecution(ctx, &models.TaskExecution{
		ID: "te-1", Metadata: `{"funcionLlamada":"x"}`, Status: models.TaskPending,
	}))

	capability.MarkFailed(ctx, s, "te-1", capability.NoteError, "Formato de fecha/hora inválido.")

	te, err := s.GetTaskExecution(ctx, "te-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, te.Status)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(te.Metadata), &meta))
	assert.Equal(t, map[string]any{"error": "Formato de fecha/hora inválido."}, meta)
}

func TestMarkCompleted_MissingRecordIsLogged(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	// Must not panic or return anything.
	capability.MarkCompleted(context.Background(), s, "ghost", map[string]any{"ok": true})
}
