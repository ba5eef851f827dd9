// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package media

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
)

var errNotExist = errors.New("object does not exist")

type object struct {
	payload     []byte
	contentType string
	metadata    map[string]string
}

// memStore is an in-memory Store. Metadata for a URI may be seeded before
// the object is written to simulate an object which already existed.
type memStore struct {
	mu      sync.Mutex
	objects map[string]*object
	calls   atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]*object)}
}

func (s *memStore) seed(uri string, metadata map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[uri] = &object{metadata: maps.Clone(metadata)}
}

func (s *memStore) get(uri string) (object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[uri]
	if !ok {
		return object{}, false
	}
	return *o, true
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *memStore) WriteObject(ctx context.Context, uri, contentType string, payload []byte) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[uri]
	if !ok {
		o = &object{}
		s.objects[uri] = o
	}
	o.payload = append([]byte(nil), payload...)
	o.contentType = contentType
	return nil
}

func (s *memStore) ObjectMetadata(ctx context.Context, uri string) (map[string]string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[uri]
	if !ok {
		return nil, errNotExist
	}
	return maps.Clone(o.metadata), nil
}

func (s *memStore) UpdateObjectMetadata(ctx context.Context, uri string, metadata map[string]string) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[uri]
	if !ok {
		return errNotExist
	}
	o.metadata = maps.Clone(metadata)
	return nil
}

// storeFuncs overrides individual Store methods, falling back to the
// embedded memStore for the rest.
type storeFuncs struct {
	*memStore

	write          func(context.Context, string, string, []byte) error
	objectMetadata func(context.Context, string) (map[string]string, error)
	updateMetadata func(context.Context, string, map[string]string) error
}

func (s storeFuncs) WriteObject(ctx context.Context, uri, contentType string, payload []byte) error {
	if s.write != nil {
		return s.write(ctx, uri, contentType, payload)
	}
	return s.memStore.WriteObject(ctx, uri, contentType, payload)
}

func (s storeFuncs) ObjectMetadata(ctx context.Context, uri string) (map[string]string, error) {
	if s.objectMetadata != nil {
		return s.objectMetadata(ctx, uri)
	}
	return s.memStore.ObjectMetadata(ctx, uri)
}

func (s storeFuncs) UpdateObjectMetadata(ctx context.Context, uri string, metadata map[string]string) error {
	if s.updateMetadata != nil {
		return s.updateMetadata(ctx, uri, metadata)
	}
	return s.memStore.UpdateObjectMetadata(ctx, uri, metadata)
}
