package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandlePublishPostTask runs a queued publish. Publish failures live in
// post state, so the task never retries; only a malformed payload is an
// error worth surfacing to asynq.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	var err error
	if payload.Immediate {
		err = q.orch.ProcessNow(ctx, payload.PostID)
	} else {
		err = q.orch.ProcessScheduled(ctx, payload.PostID)
	}
	if err != nil {
		slog.Error("error publishing queued post", "post_id", payload.PostID, "error", err)
	}

	return nil
}
