package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/judge"
	"github.com/tanishk-sarode/codechill-v2/internal/repository/mocks"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeEngine 是内存中的执行引擎替身。
type fakeEngine struct {
	submitToken string
	submitErr   error
	result      *judge.SubmissionResult
	getErr      error
	submissions int
}

func (e *fakeEngine) Submit(ctx context.Context, languageID int, sourceCode, stdin string) (string, error) {
	e.submissions++
	if e.submitErr != nil {
		return "", e.submitErr
	}
	return e.submitToken, nil
}

func (e *fakeEngine) Get(ctx context.Context, token string) (*judge.SubmissionResult, error) {
	if e.getErr != nil {
		return nil, e.getErr
	}
	return e.result, nil
}

func newExecutionService(t *testing.T, engine *fakeEngine) (*service.ExecutionService, *mocks.ExecutionRepository, *mocks.ParticipantRepository, *mocks.RoomRepository, *captureBroadcaster) {
	t.Helper()
	executionRepo := new(mocks.ExecutionRepository)
	participantRepo := new(mocks.ParticipantRepository)
	roomRepo := new(mocks.RoomRepository)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = asynqClient.Close() })
	documents := service.NewDocumentService(roomRepo, participantRepo, service.NewRoomLocks(), asynqClient)
	broadcaster := &captureBroadcaster{}
	documents.SetBroadcaster(broadcaster)

	svc := service.NewExecutionService(executionRepo, participantRepo, roomRepo, engine, documents)
	svc.SetBroadcaster(broadcaster)
	return svc, executionRepo, participantRepo, roomRepo, broadcaster
}

func TestExecutionService_Submit_QueuedOnEngineAccept(t *testing.T) {
	// Arrange
	engine := &fakeEngine{submitToken: "tok-1"}
	svc, executionRepo, participantRepo, roomRepo, broadcaster := newExecutionService(t, engine)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", Language: "python", IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()
	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	executionRepo.On("Save", ctx, mock.AnythingOfType("*domain.Execution")).
		Run(func(args mock.Arguments) {
			e := args.Get(1).(*domain.Execution)
			if e.ID == "" {
				e.ID = "exec-1"
			}
		}).Return(nil).Twice()

	// Act: 显式给出代码,语言缺省用房间语言
	exec, err := svc.Submit(ctx, "room-1", "user-1", dto.ExecuteCodePayload{
		RoomID: "room-1",
		Code:   "print('hi')",
		Stdin:  "42",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusSubmitted, exec.Status)
	assert.Equal(t, "tok-1", exec.EngineToken)
	assert.Equal(t, "python", exec.Language)
	assert.NotNil(t, exec.StartedAt, "引擎接受提交时记录开始时间")
	assert.Equal(t, 1, engine.submissions)

	// 广播序列: execution_started -> execution_queued
	events := broadcaster.all()
	require.Len(t, events, 2)
	assert.Equal(t, dto.EventExecutionStarted, events[0].payload.(dto.ExecutionEvent).Type)
	assert.Equal(t, dto.EventExecutionQueued, events[1].payload.(dto.ExecutionEvent).Type)
}

func TestExecutionService_Submit_EngineFailureMarksFailed(t *testing.T) {
	// Arrange: 引擎不可用时记录进入 failed 终态,调用本身不报错
	engine := &fakeEngine{submitErr: fmt.Errorf("connection refused")}
	svc, executionRepo, participantRepo, roomRepo, broadcaster := newExecutionService(t, engine)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", Language: "go", IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()
	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	executionRepo.On("Save", ctx, mock.AnythingOfType("*domain.Execution")).Return(nil).Twice()

	// Act
	exec, err := svc.Submit(ctx, "room-1", "user-1", dto.ExecuteCodePayload{
		RoomID: "room-1",
		Code:   "package main",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)
	assert.NotNil(t, exec.FinishedAt)
	assert.Nil(t, exec.StartedAt)
	assert.Contains(t, exec.ErrorMessage, "connection refused", "错误信息携带引擎报错原文")

	events := broadcaster.all()
	require.Len(t, events, 2)
	assert.Equal(t, dto.EventExecutionStarted, events[0].payload.(dto.ExecutionEvent).Type)
	assert.Equal(t, dto.EventExecutionFinished, events[1].payload.(dto.ExecutionEvent).Type)
}

func TestExecutionService_Submit_UnsupportedLanguage(t *testing.T) {
	// Arrange
	engine := &fakeEngine{submitToken: "tok-1"}
	svc, executionRepo, participantRepo, roomRepo, _ := newExecutionService(t, engine)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", Language: "python", IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()
	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()

	// Act
	_, err := svc.Submit(ctx, "room-1", "user-1", dto.ExecuteCodePayload{
		RoomID:   "room-1",
		Language: "cobol",
		Code:     "x",
	})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidLanguage))
	executionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 0, engine.submissions)
}

func TestExecutionService_Submit_DefaultsToDocumentContent(t *testing.T) {
	// Arrange: code 为空时执行房间当前文档内容
	engine := &fakeEngine{submitToken: "tok-1"}
	svc, executionRepo, participantRepo, roomRepo, _ := newExecutionService(t, engine)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", Language: "python", Content: "print('from doc')", ContentVersion: 4, IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()
	// Submit 读一次房间,文档 Snapshot 回落数据库再读一次
	roomRepo.On("FindByID", mock.Anything, "room-1").Return(room, nil).Twice()
	executionRepo.On("Save", ctx, mock.MatchedBy(func(e *domain.Execution) bool {
		return e.SourceCode == "print('from doc')"
	})).Return(nil).Twice()

	// Act
	exec, err := svc.Submit(ctx, "room-1", "user-1", dto.ExecuteCodePayload{RoomID: "room-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "print('from doc')", exec.SourceCode)
}

func TestExecutionService_Poll_TerminalIsReadOnly(t *testing.T) {
	// Arrange: 终态记录轮询不触发引擎查询和写库
	engine := &fakeEngine{}
	svc, executionRepo, participantRepo, _, broadcaster := newExecutionService(t, engine)
	ctx := context.Background()
	done := &domain.Execution{ID: "exec-1", RoomID: "room-1", UserID: "user-1",
		Status: domain.ExecutionStatusCompleted, Stdout: "42\n"}

	executionRepo.On("FindByID", ctx, "exec-1").Return(done, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()

	// Act
	exec, err := svc.Poll(ctx, "exec-1", "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "42\n", exec.Stdout)
	executionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Empty(t, broadcaster.all())
}

func TestExecutionService_Poll_AdvancesToCompleted(t *testing.T) {
	// Arrange: 引擎给出 Accepted 终态,记录推进到 completed 并广播
	exitCode := 0
	memory := 2048
	engine := &fakeEngine{result: &judge.SubmissionResult{
		Status:   judge.SubmissionStatus{ID: judge.StatusAccepted, Description: "Accepted"},
		Stdout:   "hello\n",
		Time:     "0.01",
		Memory:   &memory,
		ExitCode: &exitCode,
	}}
	svc, executionRepo, participantRepo, _, broadcaster := newExecutionService(t, engine)
	ctx := context.Background()
	running := &domain.Execution{ID: "exec-1", RoomID: "room-1", UserID: "user-1",
		Status: domain.ExecutionStatusRunning, EngineToken: "tok-1"}

	executionRepo.On("FindByID", ctx, "exec-1").Return(running, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()
	executionRepo.On("Save", ctx, mock.MatchedBy(func(e *domain.Execution) bool {
		return e.Status == domain.ExecutionStatusCompleted && e.FinishedAt != nil
	})).Return(nil).Once()

	// Act
	exec, err := svc.Poll(ctx, "exec-1", "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	assert.Equal(t, "Accepted", exec.EngineStatus)
	assert.Equal(t, "hello\n", exec.Stdout)
	assert.Equal(t, "0.01", exec.TimeUsed)
	require.NotNil(t, exec.MemoryUsed)
	assert.Equal(t, 2048, *exec.MemoryUsed)

	events := broadcaster.all()
	require.Len(t, events, 1)
	assert.Equal(t, dto.EventExecutionFinished, events[0].payload.(dto.ExecutionEvent).Type)
}

func TestExecutionService_Poll_NonAcceptedTerminalCompletes(t *testing.T) {
	// Arrange: 编译错误、运行时错误等引擎终态同样是 completed,
	// failed 只表示提交阶段失败。引擎判定留在 engine_status,输出字段保留细节。
	cases := []struct {
		name   string
		result judge.SubmissionResult
	}{
		{"compilation error", judge.SubmissionResult{
			Status:        judge.SubmissionStatus{ID: 6, Description: "Compilation Error"},
			CompileOutput: "main.go:3: syntax error",
		}},
		{"runtime error", judge.SubmissionResult{
			Status: judge.SubmissionStatus{ID: 11, Description: "Runtime Error (NZEC)"},
			Stderr: "Traceback ...",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{result: &tc.result}
			svc, executionRepo, participantRepo, _, broadcaster := newExecutionService(t, engine)
			ctx := context.Background()
			submitted := &domain.Execution{ID: "exec-1", RoomID: "room-1", UserID: "user-1",
				Status: domain.ExecutionStatusSubmitted, EngineToken: "tok-1"}

			executionRepo.On("FindByID", ctx, "exec-1").Return(submitted, nil).Once()
			participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()
			executionRepo.On("Save", ctx, mock.AnythingOfType("*domain.Execution")).Return(nil).Once()

			// Act
			exec, err := svc.Poll(ctx, "exec-1", "user-1")

			// Assert
			require.NoError(t, err)
			assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
			assert.Equal(t, tc.result.Status.Description, exec.EngineStatus)
			assert.Equal(t, tc.result.Stderr, exec.Stderr)
			assert.Equal(t, tc.result.CompileOutput, exec.CompileOutput)
			assert.Empty(t, exec.ErrorMessage)
			require.NotNil(t, exec.FinishedAt)

			events := broadcaster.all()
			require.Len(t, events, 1)
			assert.Equal(t, dto.EventExecutionFinished, events[0].payload.(dto.ExecutionEvent).Type)
		})
	}
}

func TestExecutionService_Poll_EngineErrorReturnsStoredState(t *testing.T) {
	// Arrange: 引擎查询失败时返回已存状态,不报错也不写库
	engine := &fakeEngine{getErr: fmt.Errorf("timeout")}
	svc, executionRepo, participantRepo, _, _ := newExecutionService(t, engine)
	ctx := context.Background()
	submitted := &domain.Execution{ID: "exec-1", RoomID: "room-1", UserID: "user-1",
		Status: domain.ExecutionStatusSubmitted, EngineToken: "tok-1"}

	executionRepo.On("FindByID", ctx, "exec-1").Return(submitted, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(activeMember(domain.RoleParticipant), nil).Once()

	// Act
	exec, err := svc.Poll(ctx, "exec-1", "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusSubmitted, exec.Status)
	executionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
