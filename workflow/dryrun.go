package workflow

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/justinsantoro/warframesync/workspace"
)

//DryRun wraps b so that publishing only logs and then discards the changes
func DryRun(b Backend, log *zap.SugaredLogger) Backend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return dryRun{Backend: b, log: log}
}

type dryRun struct {
	Backend
	log *zap.SugaredLogger
}

func (d dryRun) CommitAndPush(ctx context.Context, desc workspace.Descriptor) (plumbing.Hash, error) {
	d.log.Infow("dry run: skipping commit and push", "repository", desc.Directory, "branch", desc.Branch)
	return plumbing.ZeroHash, d.ResetToUpstream(ctx, desc)
}
