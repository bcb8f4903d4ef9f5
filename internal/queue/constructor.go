package queue

import (
	"github.com/socialpost/socialpost/internal/publish"
)

type Queue struct {
	orch *publish.Orchestrator
}

func NewQueue(orch *publish.Orchestrator) *Queue {
	return &Queue{orch: orch}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID    int64 `json:"post_id"`
	Immediate bool  `json:"immediate"`
}
