package web

import (
	"errors"
	"net/http"
	"strings"

	appLog "famboard/internal/log"
	"famboard/internal/todo"
)

func (s *Server) registerTodoRoutes() {
	s.mux.HandleFunc("GET /api/todos", s.handleTodoLists)
	s.mux.HandleFunc("GET /api/todos/{list}", s.handleTodoItems)
	s.mux.HandleFunc("POST /api/todos/{list}", s.handleTodoAdd)
	s.mux.HandleFunc("PATCH /api/todos/{list}/{id}", s.handleTodoUpdate)
	s.mux.HandleFunc("DELETE /api/todos/{list}/{id}", s.handleTodoRemove)
}

type todoListDTO struct {
	ID    string      `json:"id"`
	Items []todo.Item `json:"items"`
}

func (s *Server) handleTodoLists(w http.ResponseWriter, _ *http.Request) {
	store := s.board.Todos()
	out := make([]todoListDTO, 0)
	for _, id := range store.Lists() {
		out = append(out, todoListDTO{ID: id, Items: nonNil(store.Items(id))})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTodoItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("list")
	writeJSON(w, http.StatusOK, todoListDTO{ID: id, Items: nonNil(s.board.Todos().Items(id))})
}

// todoRequest is the body of add and update calls. Absent fields keep their
// current value on update. Due takes a date or a date-time; "" clears it.
type todoRequest struct {
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	Due         *string `json:"due"`
}

func (req todoRequest) apply(it *todo.Item, s *Server) error {
	if req.Summary != nil {
		it.Summary = strings.TrimSpace(*req.Summary)
	}
	if req.Description != nil {
		it.Description = *req.Description
	}
	if req.Completed != nil {
		it.Completed = *req.Completed
	}
	if req.Due != nil {
		due, err := todo.ParseDue(todo.RawItem{Due: *req.Due}, s.board.Location()).Get()
		if err != nil {
			return err
		}
		it.Due = due
	}
	return nil
}

// onlyCompletes reports whether the request just ticks an item off.
func (req todoRequest) onlyCompletes() bool {
	return req.Completed != nil && *req.Completed &&
		req.Summary == nil && req.Description == nil && req.Due == nil
}

func (s *Server) handleTodoAdd(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var it todo.Item
	if err := req.apply(&it, s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if it.Summary == "" {
		writeError(w, http.StatusBadRequest, "summary is required")
		return
	}
	s.mutate(w, r, todo.Mutation{Kind: todo.MutationAdd, ListID: r.PathValue("list"), Item: it}, http.StatusCreated)
}

func (s *Server) handleTodoUpdate(w http.ResponseWriter, r *http.Request) {
	listID, itemID := r.PathValue("list"), r.PathValue("id")
	var req todoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	it, err := s.board.Todos().Item(listID, itemID)
	if err != nil {
		writeError(w, http.StatusNotFound, "todo item not found")
		return
	}
	if req.onlyCompletes() {
		s.mutate(w, r, todo.Mutation{Kind: todo.MutationComplete, ListID: listID, Item: todo.Item{ID: itemID}}, http.StatusOK)
		return
	}
	if err := req.apply(&it, s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, r, todo.Mutation{Kind: todo.MutationUpdate, ListID: listID, Item: it}, http.StatusOK)
}

func (s *Server) handleTodoRemove(w http.ResponseWriter, r *http.Request) {
	m := todo.Mutation{Kind: todo.MutationRemove, ListID: r.PathValue("list"), Item: todo.Item{ID: r.PathValue("id")}}
	s.mutate(w, r, m, http.StatusOK)
}

// mutate runs m optimistically and reports the committed item, or the
// rolled-back failure.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, m todo.Mutation, okStatus int) {
	p, err := s.board.Todos().Do(r.Context(), m)
	switch {
	case errors.Is(err, todo.ErrNotFound):
		writeError(w, http.StatusNotFound, "todo item not found")
		return
	case errors.Is(err, todo.ErrDuplicate):
		writeError(w, http.StatusConflict, "todo item already exists")
		return
	case errors.Is(err, todo.ErrNoBackend):
		writeError(w, http.StatusServiceUnavailable, "todo lists are read-only")
		return
	case err != nil:
		appLog.Error("api todo mutation failed", err, "kind", m.Kind, "list", m.ListID)
		writeError(w, http.StatusBadGateway, "todo backend write failed; change rolled back")
		return
	}
	writeJSON(w, okStatus, p.Mutation.Item)
}

func nonNil(items []todo.Item) []todo.Item {
	if items == nil {
		return []todo.Item{}
	}
	return items
}
