package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/Tomlord1122/todo-pics/internal/blobstore"
	"github.com/Tomlord1122/todo-pics/internal/config"
	"github.com/Tomlord1122/todo-pics/internal/service"
)

type todoServiceMock struct {
	mock.Mock
}

func (m *todoServiceMock) GetAllTodos(ctx context.Context) ([]service.TodoResponse, error) {
	args := m.Called(ctx)
	var todos []service.TodoResponse
	if v := args.Get(0); v != nil {
		todos = v.([]service.TodoResponse)
	}
	return todos, args.Error(1)
}

func (m *todoServiceMock) GetTodoByID(ctx context.Context, id int64) (*service.TodoResponse, error) {
	return m.one(m.Called(ctx, id))
}

func (m *todoServiceMock) CreateTodo(ctx context.Context, req service.CreateTodoRequest) (*service.TodoResponse, error) {
	return m.one(m.Called(ctx, req))
}

func (m *todoServiceMock) ReplaceTodo(ctx context.Context, id int64, req service.UpdateTodoRequest) (*service.TodoResponse, error) {
	return m.one(m.Called(ctx, id, req))
}

func (m *todoServiceMock) MergeTodo(ctx context.Context, id int64, req service.UpdateTodoRequest) (*service.TodoResponse, error) {
	return m.one(m.Called(ctx, id, req))
}

func (m *todoServiceMock) ToggleCompleted(ctx context.Context, id int64) (*service.TodoResponse, error) {
	return m.one(m.Called(ctx, id))
}

func (m *todoServiceMock) DeleteTodo(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *todoServiceMock) one(args mock.Arguments) (*service.TodoResponse, error) {
	var todo *service.TodoResponse
	if v := args.Get(0); v != nil {
		todo = v.(*service.TodoResponse)
	}
	return todo, args.Error(1)
}

type attachmentServiceMock struct {
	mock.Mock
}

func (m *attachmentServiceMock) Upload(ctx context.Context, filename string, data []byte) (*blobstore.Reference, error) {
	args := m.Called(ctx, filename, data)
	var ref *blobstore.Reference
	if v := args.Get(0); v != nil {
		ref = v.(*blobstore.Reference)
	}
	return ref, args.Error(1)
}

func (m *attachmentServiceMock) Fetch(ctx context.Context, filename string) (*blobstore.Object, error) {
	args := m.Called(ctx, filename)
	var obj *blobstore.Object
	if v := args.Get(0); v != nil {
		obj = v.(*blobstore.Object)
	}
	return obj, args.Error(1)
}

func (m *attachmentServiceMock) Delete(ctx context.Context, filename string) error {
	return m.Called(ctx, filename).Error(0)
}

type healthStub map[string]string

func (h healthStub) Health() map[string]string { return h }

type testEnv struct {
	todos       *todoServiceMock
	attachments *attachmentServiceMock
	handler     http.Handler
}

func newTestEnv(t *testing.T, health healthStub) *testEnv {
	t.Helper()
	env := &testEnv{
		todos:       new(todoServiceMock),
		attachments: new(attachmentServiceMock),
	}
	cfg := config.Config{
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"https://*", "http://*"},
			RequestTimeout: 5 * time.Second,
		},
		Storage: config.StorageConfig{MaxUploadBytes: 1 << 10},
	}
	if health == nil {
		health = healthStub{"status": "up", "message": "It's healthy"}
	}
	srv := New(cfg, Deps{
		Todos:       env.todos,
		Attachments: env.attachments,
		DB:          health,
		Logger:      zaptest.NewLogger(t),
	})
	env.handler = srv.RegisterRoutes()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
