package schedule

import (
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// Dial connects to the Temporal server, routing SDK logs through the global
// zap logger.
func Dial(hostPort, namespace string) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    newLogAdapter(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "schedule: dial temporal")
	}
	return c, nil
}

// NewWorker returns a worker serving the collection task queue with the
// workflow and activities registered. The caller runs it with
// worker.InterruptCh or its own stop channel.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(CollectionWorkflow)
	w.RegisterActivity(acts)
	return w
}

// logAdapter bridges the Temporal SDK's logging interface onto zap.
type logAdapter struct {
	s *zap.SugaredLogger
}

func newLogAdapter() log.Logger {
	return &logAdapter{s: zap.L().Sugar().With("component", "temporal")}
}

func (l *logAdapter) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l *logAdapter) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l *logAdapter) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l *logAdapter) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }
