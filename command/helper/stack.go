package helper

import (
	"fmt"

	"github.com/0xPolygon/txtrace/coverage"
	"github.com/0xPolygon/txtrace/registry"
	"github.com/0xPolygon/txtrace/rpc"
	"github.com/0xPolygon/txtrace/tracker"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

const registryCacheSize = 256

// Stack bundles the node client, contract registry, coverage store and
// tracker a command operates with
type Stack struct {
	Client   *rpc.Client
	Registry registry.Registry
	Coverage coverage.Store
	Tracker  *tracker.Tracker
}

// NewStack assembles the tracking stack. The artifacts directory is optional;
// without it traces are expanded without source resolution. The coverage
// database path is optional; without it no coverage is recorded.
func NewStack(rpcAddr, artifactsDir, coverageDB string) (*Stack, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "txtrace",
		Level: hclog.Info,
	})

	client, err := rpc.NewClient(rpc.WithAddr(rpcAddr))
	if err != nil {
		return nil, err
	}

	base := registry.NewMapRegistry()

	if artifactsDir != "" {
		base, err = registry.LoadDir(artifactsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load artifacts: %w", err)
		}
	}

	reg, err := registry.NewCached(base, registryCacheSize)
	if err != nil {
		return nil, err
	}

	stack := &Stack{
		Client:   client,
		Registry: reg,
	}

	opts := []tracker.Option{
		tracker.WithLogger(logger),
	}

	if coverageDB != "" {
		store, err := coverage.NewBoltStore(coverageDB, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open coverage store: %w", err)
		}

		stack.Coverage = store
		opts = append(opts, tracker.WithCoverageStore(store))
	}

	stack.Tracker = tracker.NewTracker(client, reg, opts...)

	return stack, nil
}

func (s *Stack) Close() error {
	var errs error

	if s.Coverage != nil {
		if err := s.Coverage.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := s.Client.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs
}
