package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tomlord1122/todo-pics/internal/service"
	"github.com/Tomlord1122/todo-pics/internal/validation"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.HelloWorldHandler)
	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", s.getAllTodosHandler)
			r.Post("/", s.createTodoHandler)
			r.Get("/{id}", s.getTodoByIDHandler)
			r.Put("/{id}", s.replaceTodoHandler)
			r.Patch("/{id}", s.mergeTodoHandler)
			r.Delete("/{id}", s.deleteTodoHandler)
			r.Post("/{id}/toggle", s.toggleTodoHandler)
		})

		r.Route("/attachments", func(r chi.Router) {
			r.Post("/", s.uploadAttachmentHandler)
			r.Get("/", s.downloadAttachmentHandler)
			r.Delete("/", s.deleteAttachmentHandler)
		})
	})

	return r
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Hello World from Todo Backend!"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

func (s *Server) getAllTodosHandler(w http.ResponseWriter, r *http.Request) {
	todos, err := s.todoService.GetAllTodos(r.Context())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todos)
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	todo, err := s.todoService.CreateTodo(r.Context(), req)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) getTodoByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	todo, err := s.todoService.GetTodoByID(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) replaceTodoHandler(w http.ResponseWriter, r *http.Request) {
	s.updateTodo(w, r, s.todoService.ReplaceTodo)
}

func (s *Server) mergeTodoHandler(w http.ResponseWriter, r *http.Request) {
	s.updateTodo(w, r, s.todoService.MergeTodo)
}

func (s *Server) updateTodo(w http.ResponseWriter, r *http.Request, update func(context.Context, int64, service.UpdateTodoRequest) (*service.TodoResponse, error)) {
	id, err := validation.ValidateID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req service.UpdateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	todo, err := update(r.Context(), id, req)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) toggleTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	todo, err := s.todoService.ToggleCompleted(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if err := s.todoService.DeleteTodo(r.Context(), id); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted successfully"})
}
