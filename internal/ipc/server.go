package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"reel/internal/api"
	"reel/internal/daemon"
	"reel/internal/logging"
	"reel/internal/logs"
	"reel/internal/queue"
	"reel/internal/services"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. A stale
// socket file is replaced.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until Close is called.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Connections still open
// are served until their clients hang up.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC", logging.EventType("daemon_stop_requested"))
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}

func (s *service) TaskAdd(req TaskAddRequest, resp *TaskResponse) error {
	task, err := s.daemon.AddTask(s.ctx, req)
	if err != nil {
		return err
	}
	resp.Task = *task
	return nil
}

func (s *service) TaskList(req TaskListRequest, resp *TaskListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return services.Wrap(services.ErrValidation, "ipc", "task list", fmt.Sprintf("unknown status %q", raw), nil)
		}
		statuses = append(statuses, status)
	}
	tasks, err := s.daemon.ListTasks(s.ctx, statuses, req.Limit)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []api.Task{}
	}
	resp.Tasks = tasks
	return nil
}

func (s *service) TaskDescribe(req TaskDescribeRequest, resp *TaskResponse) error {
	task, err := s.daemon.GetTask(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %d", queue.ErrNotFound, req.ID)
	}
	resp.Task = *task
	return nil
}

func (s *service) TaskReorder(req TaskReorderRequest, resp *TaskReorderResponse) error {
	updated, err := s.daemon.ReorderTasks(s.ctx, req)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) TaskRemove(req TaskRemoveRequest, resp *TaskRemoveResponse) error {
	if err := s.daemon.RemoveTask(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) WorkerPause(req WorkerRequest, resp *WorkerResponse) error {
	err := s.daemon.PauseWorker(req.ID)
	resp.OK = err == nil
	return err
}

func (s *service) WorkerResume(req WorkerRequest, resp *WorkerResponse) error {
	err := s.daemon.ResumeWorker(req.ID)
	resp.OK = err == nil
	return err
}

func (s *service) WorkerTerminate(req WorkerRequest, resp *WorkerResponse) error {
	err := s.daemon.TerminateWorker(req.ID)
	resp.OK = err == nil
	return err
}

func (s *service) WorkerCount(req WorkerCountRequest, resp *WorkerCountResponse) error {
	if err := s.daemon.SetWorkerCount(req.Count); err != nil {
		return err
	}
	resp.Count = req.Count
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx, cancel := context.WithTimeout(s.ctx, wait+500*time.Millisecond)
	defer cancel()
	result, err := logs.Tail(ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	*resp = QueueHealthResponse(health)
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	*resp = DatabaseHealthResponse(health)
	if err != nil && health.Error == "" {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
