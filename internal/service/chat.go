package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"

	"github.com/sirupsen/logrus"
)

// ChatService 负责房间内聊天消息的发送、编辑、删除和历史查询。
// 消息先落库再广播，广播给房间内包括发送者在内的所有连接。
type ChatService struct {
	messageRepo     repository.MessageRepository
	participantRepo repository.ParticipantRepository
	roomRepo        repository.RoomRepository
	userRepo        repository.UserRepository

	broadcaster Broadcaster
}

// NewChatService 创建 ChatService 实例。
func NewChatService(
	messageRepo repository.MessageRepository,
	participantRepo repository.ParticipantRepository,
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
) *ChatService {
	if messageRepo == nil || participantRepo == nil || roomRepo == nil || userRepo == nil {
		panic("repositories cannot be nil for ChatService")
	}
	return &ChatService{
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		roomRepo:        roomRepo,
		userRepo:        userRepo,
	}
}

// SetBroadcaster 注入广播出口。必须在处理任何消息前调用一次。
func (s *ChatService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		panic("Broadcaster cannot be nil for ChatService")
	}
	s.broadcaster = b
}

// SendMessage 处理发送消息。
// 只有在线成员可以发言；回复目标必须是同一房间的消息。
func (s *ChatService) SendMessage(ctx context.Context, roomID, userID string, payload dto.SendMessagePayload) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	content := strings.TrimSpace(payload.Content)
	if content == "" || len(content) > domain.MaxMessageLength {
		return nil, ErrInvalidMessage
	}

	// system 类型保留给服务端，客户端只能发送已知类型
	msgType := payload.MsgType
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	switch msgType {
	case domain.MessageTypeText, domain.MessageTypeCode, domain.MessageTypeFile:
	default:
		logCtx.WithField("message_type", msgType).Warn("SendMessage rejected: unknown message type")
		return nil, ErrInvalidMessage
	}

	if err := s.requireActiveMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	// 回复校验：目标消息必须存在且属于同一房间
	if payload.ReplyToID != nil {
		target, err := s.messageRepo.FindByID(ctx, *payload.ReplyToID)
		if err != nil {
			if errors.Is(err, repository.ErrMessageNotFound) {
				return nil, ErrInvalidMessage
			}
			logCtx.WithError(err).Error("SendMessage: failed to load reply target")
			return nil, ErrInternalServer
		}
		if target.RoomID != roomID {
			logCtx.Warn("SendMessage rejected: reply target belongs to another room")
			return nil, ErrInvalidMessage
		}
	}

	msg := &domain.Message{
		RoomID:    roomID,
		UserID:    userID,
		Type:      msgType,
		Content:   content,
		ReplyToID: payload.ReplyToID,
	}
	if err := s.messageRepo.Save(ctx, msg); err != nil {
		logCtx.WithError(err).Error("SendMessage: failed to persist message")
		return nil, ErrInternalServer
	}

	// 聊天也算房间活动，闲置清理不应关掉还在说话的房间
	if err := s.roomRepo.TouchLastActive(ctx, roomID, time.Now()); err != nil {
		logCtx.WithError(err).Warn("SendMessage: failed to touch room last_active")
	}

	// 落库成功后才广播，发送者也收到广播作为投递确认
	s.broadcaster.BroadcastToRoom(roomID, dto.MessageEvent{
		Type:      dto.EventNewMessage,
		RoomID:    roomID,
		MessageID: msg.ID,
		UserID:    userID,
		Username:  s.authorName(ctx, userID),
		MsgType:   msg.Type,
		Content:   msg.Content,
		ReplyToID: msg.ReplyToID,
		CreatedAt: msg.CreatedAt,
	})

	logCtx.WithField("message_id", msg.ID).Debug("Message sent")
	return msg, nil
}

// EditMessage 处理编辑消息。只有作者本人可以编辑，已删除的消息不能编辑。
func (s *ChatService) EditMessage(ctx context.Context, roomID, userID string, payload dto.EditMessagePayload) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "message_id": payload.MessageID})

	content := strings.TrimSpace(payload.Content)
	if content == "" || len(content) > domain.MaxMessageLength {
		return nil, ErrInvalidMessage
	}

	if err := s.requireActiveMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	msg, err := s.loadRoomMessage(ctx, roomID, payload.MessageID, logCtx)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	if msg.UserID != userID {
		logCtx.Warn("EditMessage rejected: caller is not the author")
		return nil, ErrAccessDenied
	}

	msg.Content = content
	msg.IsEdited = true
	if err := s.messageRepo.Save(ctx, msg); err != nil {
		logCtx.WithError(err).Error("EditMessage: failed to persist message")
		return nil, ErrInternalServer
	}

	s.broadcaster.BroadcastToRoom(roomID, dto.MessageEvent{
		Type:      dto.EventMessageEdited,
		RoomID:    roomID,
		MessageID: msg.ID,
		UserID:    msg.UserID,
		Username:  s.authorName(ctx, msg.UserID),
		MsgType:   msg.Type,
		Content:   msg.Content,
		ReplyToID: msg.ReplyToID,
		IsEdited:  true,
		CreatedAt: msg.CreatedAt,
	})

	logCtx.Debug("Message edited")
	return msg, nil
}

// DeleteMessage 处理删除消息。
// 作者本人、房主和 moderator 可以删除。删除是软删除：
// 内容替换为占位符，类型改为 system，记录保留。
func (s *ChatService) DeleteMessage(ctx context.Context, roomID, userID string, payload dto.DeleteMessagePayload) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "message_id": payload.MessageID})

	caller, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAMember
		}
		logCtx.WithError(err).Error("DeleteMessage: failed to load caller participant")
		return ErrInternalServer
	}
	if !caller.IsActive {
		return ErrNotAMember
	}

	msg, err := s.loadRoomMessage(ctx, roomID, payload.MessageID, logCtx)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		// 幂等：重复删除不报错也不重复广播
		return nil
	}

	isPrivileged := caller.Role == domain.RoleOwner || caller.Role == domain.RoleModerator
	if msg.UserID != userID && !isPrivileged {
		logCtx.Warn("DeleteMessage rejected: insufficient permission")
		return ErrAccessDenied
	}

	msg.Content = domain.DeletedMessagePlaceholder
	msg.Type = domain.MessageTypeSystem
	msg.IsDeleted = true
	if err := s.messageRepo.Save(ctx, msg); err != nil {
		logCtx.WithError(err).Error("DeleteMessage: failed to persist message")
		return ErrInternalServer
	}

	s.broadcaster.BroadcastToRoom(roomID, dto.MessageEvent{
		Type:      dto.EventMessageDeleted,
		RoomID:    roomID,
		MessageID: msg.ID,
		UserID:    msg.UserID,
		MsgType:   msg.Type,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})

	logCtx.Debug("Message deleted")
	return nil
}

// History 分页查询房间的消息历史，供 REST 接口使用。
func (s *ChatService) History(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error) {
	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, 0, ErrRoomNotFound
		}
		return nil, 0, ErrInternalServer
	}
	messages, total, err := s.messageRepo.ListByRoom(ctx, roomID, page, pageSize)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to list message history")
		return nil, 0, ErrInternalServer
	}
	return messages, total, nil
}

// --- 私有辅助函数 ---

// authorName 解析作者用户名。解析失败不阻断广播，只留空。
func (s *ChatService) authorName(ctx context.Context, userID string) string {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Debug("Failed to resolve message author")
		return ""
	}
	return user.Username
}

func (s *ChatService) requireActiveMember(ctx context.Context, roomID, userID string) error {
	participant, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAMember
		}
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("Failed to load participant for membership check")
		return ErrInternalServer
	}
	if !participant.IsActive {
		return ErrNotAMember
	}
	return nil
}

func (s *ChatService) loadRoomMessage(ctx context.Context, roomID, messageID string, logCtx *logrus.Entry) (*domain.Message, error) {
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		logCtx.WithError(err).Error("Failed to load message")
		return nil, ErrInternalServer
	}
	if msg.RoomID != roomID {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}
