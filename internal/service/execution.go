package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/judge"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"

	"github.com/sirupsen/logrus"
)

// ExecutionEngine 是外部代码执行引擎的抽象，由 judge.Client 实现。
type ExecutionEngine interface {
	Submit(ctx context.Context, languageID int, sourceCode, stdin string) (string, error)
	Get(ctx context.Context, token string) (*judge.SubmissionResult, error)
}

// ExecutionService 协调代码执行的完整生命周期：
// pending -> submitted -> running -> completed/failed，状态只前进不回退。
type ExecutionService struct {
	executionRepo   repository.ExecutionRepository
	participantRepo repository.ParticipantRepository
	roomRepo        repository.RoomRepository
	engine          ExecutionEngine
	documents       *DocumentService

	broadcaster Broadcaster
}

// NewExecutionService 创建 ExecutionService 实例。
func NewExecutionService(
	executionRepo repository.ExecutionRepository,
	participantRepo repository.ParticipantRepository,
	roomRepo repository.RoomRepository,
	engine ExecutionEngine,
	documents *DocumentService,
) *ExecutionService {
	if executionRepo == nil || participantRepo == nil || roomRepo == nil {
		panic("repositories cannot be nil for ExecutionService")
	}
	if engine == nil {
		panic("ExecutionEngine cannot be nil for ExecutionService")
	}
	if documents == nil {
		panic("DocumentService cannot be nil for ExecutionService")
	}
	return &ExecutionService{
		executionRepo:   executionRepo,
		participantRepo: participantRepo,
		roomRepo:        roomRepo,
		engine:          engine,
		documents:       documents,
	}
}

// SetBroadcaster 注入广播出口。必须在处理任何提交前调用一次。
func (s *ExecutionService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		panic("Broadcaster cannot be nil for ExecutionService")
	}
	s.broadcaster = b
}

// Submit 处理一次代码执行提交。
// 记录先以 pending 状态落库并广播，随后同步提交给引擎：
// 成功则推进到 submitted 并再次广播，失败则标记 failed。
func (s *ExecutionService) Submit(ctx context.Context, roomID, userID string, payload dto.ExecuteCodePayload) (*domain.Execution, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	if err := s.requireActiveMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Submit: failed to load room")
		return nil, ErrInternalServer
	}

	// 语言缺省用房间语言，必须是引擎支持的语言
	language := payload.Language
	if language == "" {
		language = room.Language
	}
	languageID, ok := judge.LanguageID(language)
	if !ok {
		logCtx.WithField("language", language).Warn("Submit rejected: unsupported language")
		return nil, ErrInvalidLanguage
	}

	// 代码缺省执行房间当前文档内容
	source := payload.Code
	if source == "" {
		source, _, err = s.documents.Snapshot(ctx, roomID)
		if err != nil {
			return nil, err
		}
	}
	if len(source) > domain.MaxCodeLength {
		return nil, ErrInvalidInput
	}

	exec := &domain.Execution{
		RoomID:     roomID,
		UserID:     userID,
		Language:   language,
		SourceCode: source,
		Stdin:      payload.Stdin,
		Status:     domain.ExecutionStatusPending,
	}
	if err := s.executionRepo.Save(ctx, exec); err != nil {
		logCtx.WithError(err).Error("Submit: failed to persist execution record")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("execution_id", exec.ID)

	s.broadcastStatus(roomID, exec, dto.EventExecutionStarted)

	// 同步提交给引擎。Handler 层在独立 goroutine 中调用本方法，不会阻塞消息循环。
	token, err := s.engine.Submit(ctx, languageID, source, payload.Stdin)
	if err != nil {
		logCtx.WithError(err).Error("Submit: engine rejected submission")
		s.markFailed(ctx, exec, fmt.Sprintf("execution engine unavailable: %v", err))
		s.broadcastStatus(roomID, exec, dto.EventExecutionFinished)
		return exec, nil
	}

	now := time.Now()
	exec.EngineToken = token
	exec.Status = domain.ExecutionStatusSubmitted
	exec.StartedAt = &now
	if err := s.executionRepo.Save(ctx, exec); err != nil {
		logCtx.WithError(err).Error("Submit: failed to update execution record")
		return nil, ErrInternalServer
	}
	s.broadcastStatus(roomID, exec, dto.EventExecutionQueued)

	logCtx.Info("Execution submitted to engine")
	return exec, nil
}

// Poll 查询一次执行的当前状态。
// 终态记录是纯读操作；非终态记录会向引擎拉取一次最新结果，
// 每次拉取都把输出字段同步进记录，即使尚未到终态。
func (s *ExecutionService) Poll(ctx context.Context, executionID, userID string) (*domain.Execution, error) {
	logCtx := logrus.WithFields(logrus.Fields{"execution_id": executionID, "user_id": userID})

	exec, err := s.executionRepo.FindByID(ctx, executionID)
	if err != nil {
		if errors.Is(err, repository.ErrExecutionNotFound) {
			return nil, ErrExecutionNotFound
		}
		logCtx.WithError(err).Error("Poll: failed to load execution")
		return nil, ErrInternalServer
	}

	if err := s.requireActiveMember(ctx, exec.RoomID, userID); err != nil {
		return nil, err
	}

	if exec.IsTerminal() {
		return exec, nil
	}
	if exec.EngineToken == "" {
		// pending 状态还没有引擎 token，无从查询
		return exec, nil
	}

	result, err := s.engine.Get(ctx, exec.EngineToken)
	if err != nil {
		logCtx.WithError(err).Warn("Poll: engine query failed, returning stored state")
		return exec, nil
	}

	s.applyResult(exec, result)
	if err := s.executionRepo.Save(ctx, exec); err != nil {
		logCtx.WithError(err).Error("Poll: failed to persist execution update")
		return nil, ErrInternalServer
	}
	if exec.IsTerminal() {
		s.broadcastStatus(exec.RoomID, exec, dto.EventExecutionFinished)
	}
	return exec, nil
}

// History 分页查询房间的执行历史。
func (s *ExecutionService) History(ctx context.Context, roomID string, page, pageSize int) ([]domain.Execution, int64, error) {
	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, 0, ErrRoomNotFound
		}
		return nil, 0, ErrInternalServer
	}
	execs, total, err := s.executionRepo.ListByRoom(ctx, roomID, page, pageSize)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to list execution history")
		return nil, 0, ErrInternalServer
	}
	return execs, total, nil
}

// Languages 返回引擎支持的全部语言名。
func (s *ExecutionService) Languages() []string {
	return judge.SupportedLanguages()
}

// --- 私有辅助函数 ---

// applyResult 把引擎结果合并进执行记录。
// 输出字段每次都覆盖，状态只在引擎给出更晚阶段时前进。
// 引擎的任何终态都推进到 completed：编译错误、运行时错误等判定
// 记在 EngineStatus，输出字段里有完整细节。failed 保留给提交阶段失败。
func (s *ExecutionService) applyResult(exec *domain.Execution, result *judge.SubmissionResult) {
	exec.Stdout = result.Stdout
	exec.Stderr = result.Stderr
	exec.CompileOutput = result.CompileOutput
	exec.TimeUsed = result.Time
	exec.MemoryUsed = result.Memory
	exec.ExitCode = result.ExitCode
	exec.EngineStatus = result.Status.Description

	if judge.IsTerminalStatus(result.Status.ID) {
		now := time.Now()
		exec.FinishedAt = &now
		exec.Status = domain.ExecutionStatusCompleted
		return
	}
	exec.Status = domain.ExecutionStatusRunning
}

func (s *ExecutionService) markFailed(ctx context.Context, exec *domain.Execution, reason string) {
	now := time.Now()
	exec.Status = domain.ExecutionStatusFailed
	exec.ErrorMessage = reason
	exec.FinishedAt = &now
	if err := s.executionRepo.Save(ctx, exec); err != nil {
		logrus.WithError(err).WithField("execution_id", exec.ID).
			Error("Failed to persist failed execution")
	}
}

func (s *ExecutionService) broadcastStatus(roomID string, exec *domain.Execution, event string) {
	s.broadcaster.BroadcastToRoom(roomID, dto.ExecutionEvent{
		Type:        event,
		RoomID:      roomID,
		ExecutionID: exec.ID,
		UserID:      exec.UserID,
		Language:    exec.Language,
		Status:      exec.Status,
	})
}

func (s *ExecutionService) requireActiveMember(ctx context.Context, roomID, userID string) error {
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
