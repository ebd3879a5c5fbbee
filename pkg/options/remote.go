package options

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/model"
)

// FetchRemote loads each key from its backend endpoint concurrently and
// merges the results with base. The returned dictionary is built once; any
// failed endpoint fails the whole load.
func FetchRemote(ctx context.Context, requester client.Requester, endpoints map[string]string, base *Dictionary) (*Dictionary, error) {
	entries := make(map[string][]model.Option)
	if base != nil {
		for _, key := range base.Keys() {
			list, _ := base.Lookup(key)
			entries[key] = list
		}
	}
	if len(endpoints) == 0 {
		return New(entries), nil
	}
	if requester == nil {
		return nil, fmt.Errorf("options: requester is required for remote keys")
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for key, endpoint := range endpoints {
		group.Go(func() error {
			envelope, err := requester.Get(groupCtx, endpoint, nil)
			if err != nil {
				return fmt.Errorf("options: fetch %q: %w", key, err)
			}
			if !envelope.Success {
				return fmt.Errorf("options: fetch %q: %s", key, envelope.FailureMessage())
			}
			var list []model.Option
			if err := envelope.Decode(&list); err != nil {
				return fmt.Errorf("options: fetch %q: %w", key, err)
			}
			mu.Lock()
			entries[key] = list
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return New(entries), nil
}
