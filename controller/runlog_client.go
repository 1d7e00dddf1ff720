package controller

import (
	"context"
	"time"

	"github.com/calvinmclean/motorseq/runlog"
)

type runLogClient interface {
	CreateRun(ctx context.Context, name string, params runlog.Params) (string, error)
	AddStage(ctx context.Context, name string, now time.Time) error
	AddEvent(ctx context.Context, note string, now time.Time) error
	Done(ctx context.Context, outcome string, now time.Time) error
}

type noopRunLogClient struct{}

var _ runLogClient = noopRunLogClient{}

// CreateRun implements runLogClient.
func (n noopRunLogClient) CreateRun(ctx context.Context, name string, params runlog.Params) (string, error) {
	return "", nil
}

// AddStage implements runLogClient.
func (n noopRunLogClient) AddStage(ctx context.Context, name string, now time.Time) error {
	return nil
}

// AddEvent implements runLogClient.
func (n noopRunLogClient) AddEvent(ctx context.Context, note string, now time.Time) error {
	return nil
}

// Done implements runLogClient.
func (n noopRunLogClient) Done(ctx context.Context, outcome string, now time.Time) error {
	return nil
}
