package links_test

import (
	"context"
	"errors"

	"github.com/serroba/linkgate/internal/kv"
)

var errMock = errors.New("mock error")

// failingStore is a kv.Store whose every call fails.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errMock }
func (failingStore) GetWithMetadata(context.Context, string) (*kv.Entry, error) {
	return nil, errMock
}
func (failingStore) Put(context.Context, string, string, ...kv.PutOption) error { return errMock }
func (failingStore) Delete(context.Context, string) error                      { return errMock }
func (failingStore) List(context.Context, kv.ListOptions) (*kv.ListResult, error) {
	return nil, errMock
}

// sequence returns a generator that yields codes in order, then repeats the last.
func sequence(codes ...string) func() string {
	i := 0

	return func() string {
		code := codes[min(i, len(codes)-1)]
		i++

		return code
	}
}
