package core

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	refs    map[string]int64
	users   map[string]int64
	objects map[ObjectCategory]map[string][]int64
	nextKey int64

	lookupErr error            // returned by every lookup when set
	userErrs  map[string]error // per login
	seedErr   error
	loadErr   error

	calls  []string
	loaded []ResolvedAssociation
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		refs:  map[string]int64{"J:12345": 501},
		users: map[string]int64{"jdoe": 1001},
		objects: map[ObjectCategory]map[string][]int64{
			CategoryMarker: {"MGI:98765": {7001}},
			CategoryStrain: {"MGI:22222": {8001}},
			CategoryAllele: {"MGI:33333": {9001}},
		},
		nextKey: 1000,
	}
}

func (f *fakeBackend) ReferenceKey(_ context.Context, id string) (int64, error) {
	f.calls = append(f.calls, "ref:"+id)
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	if k, ok := f.refs[id]; ok {
		return k, nil
	}
	return 0, ErrNotFound
}

func (f *fakeBackend) UserKey(_ context.Context, login string) (int64, error) {
	f.calls = append(f.calls, "user:"+login)
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	if err := f.userErrs[login]; err != nil {
		return 0, err
	}
	if k, ok := f.users[login]; ok {
		return k, nil
	}
	return 0, ErrNotFound
}

func (f *fakeBackend) FindObjects(_ context.Context, c ObjectCategory, id string) ([]int64, error) {
	f.calls = append(f.calls, "object:"+c.String()+":"+id)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.objects[c][id], nil
}

func (f *fakeBackend) NextAssocKey(context.Context) (int64, error) {
	if f.seedErr != nil {
		return 0, f.seedErr
	}
	return f.nextKey, nil
}

func (f *fakeBackend) LoadAssociations(_ context.Context, records []ResolvedAssociation) (int64, error) {
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	f.loaded = append(f.loaded, records...)
	return int64(len(records)), nil
}

func (f *fakeBackend) Describe() (string, string) { return "testhost", "mgd" }

// memorySink collects published artifacts.
type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memorySink) PutArtifact(_ context.Context, runID, name string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[runID+"/"+name] = buf.Bytes()
	return nil
}
