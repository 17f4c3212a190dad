package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/cli/config"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/service/worker"
	"github.com/secmon-lab/crmsync/pkg/usecase"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"github.com/secmon-lab/crmsync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// runtimeConfig groups the flags every command that touches storage needs
type runtimeConfig struct {
	repo  config.Repository
	crm   config.CRM
	queue config.Queue
}

func (x *runtimeConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.crm.Flags()...)
	flags = append(flags, x.queue.Flags()...)
	return flags
}

// runtime holds the wired dependencies of one command invocation
type runtime struct {
	repo   interfaces.Repository
	queue  interfaces.TaskQueue
	uc     *usecase.UseCases
	worker *worker.TaskWorker
}

func (x *runtimeConfig) build(ctx context.Context, version string) (*runtime, error) {
	logging.Default().Info("Runtime configuration",
		"repository", x.repo,
		"crm", x.crm,
		"queue", x.queue,
	)

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	q, err := x.queue.Configure(ctx)
	if err != nil {
		safe.Close(ctx, repo)
		return nil, err
	}

	oauth, err := x.crm.OAuth()
	if err != nil {
		safe.Close(ctx, q)
		safe.Close(ctx, repo)
		return nil, err
	}

	ucOpts := []usecase.Option{
		usecase.WithCRM(x.crm.Service(version)),
		usecase.WithTaskQueue(q),
		usecase.WithMarkerTag(x.crm.MarkerTag()),
	}
	if oauth != nil {
		ucOpts = append(ucOpts, usecase.WithOAuth(oauth))
		logging.Default().Info("CRM OAuth enabled")
	} else {
		logging.Default().Info("CRM OAuth client not configured, onboarding endpoints are disabled")
	}

	uc := usecase.New(repo, ucOpts...)

	return &runtime{
		repo:   repo,
		queue:  q,
		uc:     uc,
		worker: worker.NewTaskWorker(q, uc.Reactor, x.queue.WorkerOptions()...),
	}, nil
}

// drain runs every due task before a one-shot command exits
func (r *runtime) drain(ctx context.Context) (int, error) {
	n, err := r.worker.Drain(ctx)
	if err != nil {
		return n, goerr.Wrap(err, "failed to drain task queue")
	}
	return n, nil
}

func (r *runtime) Close(ctx context.Context) {
	safe.Close(ctx, r.queue)
	safe.Close(ctx, r.repo)
}
