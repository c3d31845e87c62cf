package http

import (
	"net/http"
	"strconv"

	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler 提供聊天记录的 REST 查询接口。
// 消息的发送、编辑和删除走 WebSocket 通道。
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	if chatService == nil {
		panic("ChatService cannot be nil for ChatHandler")
	}
	return &ChatHandler{chatService: chatService}
}

// History 分页返回房间的历史消息,按时间倒序
func (h *ChatHandler) History(c *gin.Context) {
	roomID := c.Param("id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	messages, total, err := h.chatService.History(c.Request.Context(), roomID, page, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, PagedResponse{
		Items:    messages,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}
