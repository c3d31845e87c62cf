package http

import (
	"net/http"
	"strconv"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ExecutionHandler 提供代码执行的 REST 接口:提交、轮询结果和查询历史。
type ExecutionHandler struct {
	executionService *service.ExecutionService
}

// NewExecutionHandler 创建 ExecutionHandler 实例
func NewExecutionHandler(executionService *service.ExecutionService) *ExecutionHandler {
	if executionService == nil {
		panic("ExecutionService cannot be nil for ExecutionHandler")
	}
	return &ExecutionHandler{executionService: executionService}
}

// SubmitRequest 定义提交执行请求的结构体
type SubmitRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin"`
}

// Submit 提交一次代码执行,language 和 code 缺省时使用房间的语言和当前文档内容
func (h *ExecutionHandler) Submit(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		return
	}
	roomID := c.Param("id")

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Submit: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	exec, err := h.executionService.Submit(c.Request.Context(), roomID, userID, dto.ExecuteCodePayload{
		RoomID:   roomID,
		Language: req.Language,
		Code:     req.Code,
		Stdin:    req.Stdin,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).
			WithError(err).Warn("Handler.Submit: Execution submit failed")
		HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, executionView(exec))
}

// Poll 查询一次执行的当前状态,未结束时触发对执行引擎的刷新
func (h *ExecutionHandler) Poll(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		return
	}
	executionID := c.Param("execution_id")

	exec, err := h.executionService.Poll(c.Request.Context(), executionID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, executionView(exec))
}

// History 分页返回房间的执行历史,按提交时间倒序
func (h *ExecutionHandler) History(c *gin.Context) {
	roomID := c.Param("id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	executions, total, err := h.executionService.History(c.Request.Context(), roomID, page, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	views := make([]dto.ExecutionResultView, 0, len(executions))
	for i := range executions {
		views = append(views, executionView(&executions[i]))
	}
	c.JSON(http.StatusOK, PagedResponse{
		Items:    views,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Languages 返回支持的执行语言列表
func (h *ExecutionHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": h.executionService.Languages()})
}

func executionView(exec *domain.Execution) dto.ExecutionResultView {
	return dto.ExecutionResultView{
		ExecutionID:   exec.ID,
		RoomID:        exec.RoomID,
		UserID:        exec.UserID,
		Language:      exec.Language,
		Status:        exec.Status,
		EngineStatus:  exec.EngineStatus,
		Stdout:        exec.Stdout,
		Stderr:        exec.Stderr,
		CompileOutput: exec.CompileOutput,
		ExitCode:      exec.ExitCode,
		TimeUsed:      exec.TimeUsed,
		MemoryUsed:    exec.MemoryUsed,
		ErrorMessage:  exec.ErrorMessage,
		SubmittedAt:   exec.SubmittedAt,
		StartedAt:     exec.StartedAt,
		FinishedAt:    exec.FinishedAt,
	}
}
