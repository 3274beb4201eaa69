package foreman

import (
	"reel/internal/logging"
)

// Pause suspends one worker. A paused worker takes no new tasks and its
// running subprocess is stopped until Resume.
func (f *Foreman) Pause(id string) error {
	s := f.lookup(id)
	if s == nil {
		return ErrUnknownWorker
	}
	s.setPaused(true)
	f.logger.Info("worker paused", logging.EventType("worker_paused"), logging.WorkerID(id))
	return nil
}

// Resume clears the pause flag of one worker.
func (f *Foreman) Resume(id string) error {
	s := f.lookup(id)
	if s == nil {
		return ErrUnknownWorker
	}
	s.setPaused(false)
	f.logger.Info("worker resumed", logging.EventType("worker_resumed"), logging.WorkerID(id))
	return nil
}

// PauseAll pauses every worker in the pool.
func (f *Foreman) PauseAll() {
	for _, s := range f.orderedSlots() {
		s.setPaused(true)
	}
	f.logger.Info("all workers paused", logging.EventType("workers_paused"))
}

// ResumeAll resumes every worker in the pool.
func (f *Foreman) ResumeAll() {
	for _, s := range f.orderedSlots() {
		s.setPaused(false)
	}
	f.logger.Info("all workers resumed", logging.EventType("workers_resumed"))
}

// Terminate asks one worker to exit at its next checkpoint. A task it has
// already claimed is not killed: the worker finishes it, then exits, and the
// pool refills to the target size on a later tick.
func (f *Foreman) Terminate(id string) error {
	s := f.lookup(id)
	if s == nil {
		return ErrUnknownWorker
	}
	s.w.MarkRedundant()
	f.logger.Info("worker terminate requested", logging.EventType("worker_terminate"), logging.WorkerID(id))
	return nil
}

// TerminateAll asks every worker to exit.
func (f *Foreman) TerminateAll() {
	for _, s := range f.orderedSlots() {
		s.w.MarkRedundant()
	}
	f.logger.Info("all workers terminate requested", logging.EventType("workers_terminate"))
}
