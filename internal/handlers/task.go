package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/services"
)

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks, err := h.tasks.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to list tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	completion, err := h.tasks.Complete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to complete task", err)
		return
	}
	metrics.RecordCoins("task", completion.Reward)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"completion": completion,
	})
}
