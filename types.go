package main

import (
	"context"

	"github.com/justinsantoro/warframesync/workflow"
	"github.com/justinsantoro/warframesync/workspace"
)

//Job is a unit of work kept in sync with one repository
type Job struct {
	Repository workspace.Descriptor
	Task       workflow.Task
}

//Runner runs a job's task inside the repository workflow
type Runner interface {
	Run(ctx context.Context, d workspace.Descriptor, task workflow.Task) (bool, error)
}
