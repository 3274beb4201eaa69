package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// TaskAdd enqueues a local file.
func (c *Client) TaskAdd(req TaskAddRequest) (*TaskResponse, error) {
	return call[TaskResponse](c, "TaskAdd", req)
}

// TaskList returns tasks filtered by status.
func (c *Client) TaskList(statuses []string, limit int) (*TaskListResponse, error) {
	return call[TaskListResponse](c, "TaskList", TaskListRequest{Statuses: statuses, Limit: limit})
}

// TaskDescribe returns one task including its log.
func (c *Client) TaskDescribe(id int64) (*TaskResponse, error) {
	return call[TaskResponse](c, "TaskDescribe", TaskDescribeRequest{ID: id})
}

// TaskReorder moves pending tasks to the top or bottom of the queue.
func (c *Client) TaskReorder(ids []int64, position string) (*TaskReorderResponse, error) {
	return call[TaskReorderResponse](c, "TaskReorder", TaskReorderRequest{IDs: ids, Position: position})
}

// TaskRemove deletes a processed task.
func (c *Client) TaskRemove(id int64) (*TaskRemoveResponse, error) {
	return call[TaskRemoveResponse](c, "TaskRemove", TaskRemoveRequest{ID: id})
}

// WorkerPause pauses a worker, or all workers when id is empty.
func (c *Client) WorkerPause(id string) (*WorkerResponse, error) {
	return call[WorkerResponse](c, "WorkerPause", WorkerRequest{ID: id})
}

// WorkerResume resumes a worker, or all workers when id is empty.
func (c *Client) WorkerResume(id string) (*WorkerResponse, error) {
	return call[WorkerResponse](c, "WorkerResume", WorkerRequest{ID: id})
}

// WorkerTerminate retires a worker, or all workers when id is empty.
func (c *Client) WorkerTerminate(id string) (*WorkerResponse, error) {
	return call[WorkerResponse](c, "WorkerTerminate", WorkerRequest{ID: id})
}

// WorkerCount sets the target pool size.
func (c *Client) WorkerCount(count int) (*WorkerCountResponse, error) {
	return call[WorkerCountResponse](c, "WorkerCount", WorkerCountRequest{Count: count})
}

// LogTail returns daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// QueueHealth returns aggregate task counts.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	return call[QueueHealthResponse](c, "QueueHealth", QueueHealthRequest{})
}

// DatabaseHealth retrieves database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}

// TestNotification triggers a webhook test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
