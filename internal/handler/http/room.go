package http

import (
	"net/http"
	"strconv"

	"github.com/tanishk-sarode/codechill-v2/internal/repository"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
	presence    *service.PresenceService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, presence *service.PresenceService) *RoomHandler {
	if roomService == nil || presence == nil {
		panic("RoomService and PresenceService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, presence: presence}
}

// CreateRoomRequest 定义创建房间请求的结构体
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
	Language    string `json:"language"`
	Capacity    int    `json:"capacity"`
	IsPrivate   bool   `json:"is_private"`
	Password    string `json:"password"`
}

// CreateRoom 处理创建房间请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, service.CreateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		Capacity:    req.Capacity,
		IsPrivate:   req.IsPrivate,
		Password:    req.Password,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "name": req.Name}).
			WithError(err).Warn("Handler.CreateRoom: Failed to create room")
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": room.ID}).
		Info("Handler.CreateRoom: Room created successfully")
	c.JSON(http.StatusCreated, gin.H{
		"message": "Room created successfully",
		"room":    room,
	})
}

// ListRooms 处理房间列表查询,支持按名称和语言过滤,分页返回
func (h *RoomHandler) ListRooms(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	q := repository.RoomQuery{
		Search:   c.Query("search"),
		Language: c.Query("language"),
		Page:     page,
		PageSize: pageSize,
	}

	rooms, total, err := h.roomService.ListRooms(c.Request.Context(), q)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, PagedResponse{
		Items:    rooms,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
}

// GetRoom 返回单个房间的详细信息
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("id")

	room, err := h.roomService.FindRoomByID(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// UpdateRoomRequest 定义修改房间请求的结构体,nil 字段表示保持不变
type UpdateRoomRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Capacity    *int    `json:"capacity"`
	IsPrivate   *bool   `json:"is_private"`
	Password    *string `json:"password"`
}

// UpdateRoom 由房主修改房间属性
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		return
	}
	roomID := c.Param("id")

	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateRoom: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	room, err := h.roomService.UpdateRoom(c.Request.Context(), roomID, userID, service.UpdateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		Capacity:    req.Capacity,
		IsPrivate:   req.IsPrivate,
		Password:    req.Password,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).
			WithError(err).Warn("Handler.UpdateRoom: Failed to update room")
		HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Room updated successfully",
		"room":    room,
	})
}

// CloseRoom 由房主关闭房间
func (h *RoomHandler) CloseRoom(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		return
	}
	roomID := c.Param("id")

	if err := h.roomService.CloseRoom(c.Request.Context(), roomID, userID); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).
			WithError(err).Warn("Handler.CloseRoom: Failed to close room")
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).
		Info("Handler.CloseRoom: Room closed successfully")
	c.JSON(http.StatusOK, gin.H{"message": "Room closed successfully"})
}

// ListParticipants 返回房间当前的在线成员列表
func (h *RoomHandler) ListParticipants(c *gin.Context) {
	roomID := c.Param("id")

	participants, err := h.roomService.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	views := h.presence.RosterFor(c.Request.Context(), participants)
	c.JSON(http.StatusOK, gin.H{"participants": views})
}
