package queue

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestHandlePublishPostTaskMalformedPayload(t *testing.T) {
	q := NewQueue(nil)

	task := asynq.NewTask(TaskTypePublishPost, []byte("not json"))
	err := q.HandlePublishPostTask(context.Background(), task)
	assert.Error(t, err)
}
