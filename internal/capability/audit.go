package capability

import (
	"context"
	"encoding/json"

	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// Metadata keys of the notes written over a task execution's call data.
const (
	NoteError      = "error"
	NoteDispatcher = "error_dispatcher"
	NoteHours      = "error_funcion_horario"
)

// MarkFailed replaces the task execution's metadata with {key: note} and
// sets status failed. The original call data is not kept. Best effort: a
// store error is logged, never returned.
func MarkFailed(ctx context.Context, s store.TaskExecutionStore, taskExecutionID, key, note string) {
	write(ctx, s, taskExecutionID, map[string]any{key: note}, models.TaskFailed)
}

// MarkCompleted replaces the metadata with the result payload and sets
// status completed. Best effort, like MarkFailed.
func MarkCompleted(ctx context.Context, s store.TaskExecutionStore, taskExecutionID string, result map[string]any) {
	write(ctx, s, taskExecutionID, result, models.TaskCompleted)
}

func write(ctx context.Context, s store.TaskExecutionStore, id string, payload map[string]any, status models.TaskStatus) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("task_execution", id).Msg("Cannot encode task execution note")
		return
	}
	if err := s.UpdateTaskExecutionMetadata(ctx, id, string(data), status); err != nil {
		log.Error().Err(err).Str("task_execution", id).Str("status", string(status)).
			Msg("Failed to update task execution")
	}
}
