package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/hq/internal/remote"
)

// Server exposes a remote.Store as JSON-RPC.
type Server struct {
	store  remote.Store
	logger *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(store remote.Store, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()

	srv := &Server{store: store, logger: logger}

	r.Get("/health", srv.handleHealth)
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Post("/rpc", srv.handleRPC)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		WriteError(w, nil, ErrInvalidReq, "invalid request", nil)
		return
	}

	ownerID, ok := OwnerFromContext(r.Context())
	if !ok || ownerID == "" {
		http.Error(w, "missing owner", http.StatusUnauthorized)
		return
	}

	params, err := ParseParams(req.Params)
	if err != nil {
		WriteError(w, req.ID, ErrInvalidParams, err.Error(), ErrorKind(err))
		return
	}

	result, err := s.Dispatch(r.Context(), ownerID, req.Method, params)
	if err != nil {
		if err == errMethodNotFound {
			WriteError(w, req.ID, ErrMethodNotFound, "method not found: "+req.Method, nil)
			return
		}
		code := ErrorCode(err)
		if code == ErrInternal {
			s.logger.Error("rpc failed", "method", req.Method, "collection", params.Collection, "error", err)
		} else {
			s.logger.Debug("rpc rejected", "method", req.Method, "collection", params.Collection, "error", err)
		}
		WriteError(w, req.ID, code, err.Error(), ErrorKind(err))
		return
	}

	WriteResult(w, req.ID, result)
}

var errMethodNotFound = fmt.Errorf("method not found")

// Dispatch runs one store method on behalf of ownerID. Owner-scoped
// collections only ever see rows belonging to ownerID, and child
// collections only rows whose parent belongs to ownerID.
func (s *Server) Dispatch(ctx context.Context, ownerID, method string, p Params) (any, error) {
	tbl, err := remote.Lookup(p.Collection)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodSelect:
		q := p.Query
		if tbl.OwnerScoped {
			q = scopeQuery(q, ownerID)
		}
		rows, err := s.store.Select(ctx, p.Collection, q)
		if err != nil {
			return nil, err
		}
		if tbl.Parent != nil {
			return s.ownedChildren(ctx, tbl, rows, ownerID)
		}
		return rows, nil

	case MethodInsert:
		if err := s.checkParent(ctx, tbl, p.Row, ownerID, true); err != nil {
			return nil, err
		}
		return s.store.Insert(ctx, p.Collection, scopeRow(tbl, p.Row, ownerID))

	case MethodUpsert:
		if err := s.checkParent(ctx, tbl, p.Row, ownerID, true); err != nil {
			return nil, err
		}
		return s.store.Upsert(ctx, p.Collection, scopeRow(tbl, p.Row, ownerID), p.OnConflict)

	case MethodUpdate:
		if _, ok := p.Row["owner_id"]; ok {
			return nil, fmt.Errorf("%w: owner_id is immutable", remote.ErrInvalidInput)
		}
		if err := s.checkOwner(ctx, tbl, p.ID, ownerID); err != nil {
			return nil, err
		}
		if err := s.checkParent(ctx, tbl, p.Row, ownerID, false); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, p.Collection, p.ID, p.Row); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil

	case MethodDelete:
		if err := s.checkOwner(ctx, tbl, p.ID, ownerID); err != nil {
			return nil, err
		}
		if err := s.store.Delete(ctx, p.Collection, p.ID); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	return nil, errMethodNotFound
}

// checkOwner reports ErrNotFound for rows of another owner, directly or
// through their parent.
func (s *Server) checkOwner(ctx context.Context, tbl remote.Table, id, ownerID string) error {
	if id == "" {
		return fmt.Errorf("%w: missing id", remote.ErrInvalidInput)
	}
	switch {
	case tbl.OwnerScoped:
		rows, err := s.store.Select(ctx, tbl.Name, remote.Query{}.Where("id", id).Where("owner_id", ownerID))
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return remote.ErrNotFound
		}
	case tbl.Parent != nil:
		rows, err := s.store.Select(ctx, tbl.Name, remote.Query{}.Where("id", id))
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return remote.ErrNotFound
		}
		return s.checkParent(ctx, tbl, rows[0], ownerID, true)
	}
	return nil
}

// checkParent verifies that the parent row referenced by row belongs to
// ownerID. A missing reference fails only when required is set.
func (s *Server) checkParent(ctx context.Context, tbl remote.Table, row remote.Row, ownerID string, required bool) error {
	if tbl.Parent == nil {
		return nil
	}
	v, ok := row[tbl.Parent.Field]
	if !ok && !required {
		return nil
	}
	parentID, _ := v.(string)
	if parentID == "" {
		return fmt.Errorf("%w: %s is required", remote.ErrInvalidInput, tbl.Parent.Field)
	}
	rows, err := s.store.Select(ctx, tbl.Parent.Collection, remote.Query{}.Where("id", parentID).Where("owner_id", ownerID))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// ownedChildren drops child rows whose parent belongs to another owner.
func (s *Server) ownedChildren(ctx context.Context, tbl remote.Table, rows []remote.Row, ownerID string) ([]remote.Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	parents, err := s.store.Select(ctx, tbl.Parent.Collection, remote.Query{}.Where("owner_id", ownerID))
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(parents))
	for _, p := range parents {
		if id, ok := p["id"].(string); ok {
			owned[id] = true
		}
	}
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		if id, _ := r[tbl.Parent.Field].(string); owned[id] {
			out = append(out, r)
		}
	}
	return out, nil
}

func scopeQuery(q remote.Query, ownerID string) remote.Query {
	scoped := remote.Query{Orders: q.Orders, Expand: q.Expand}
	for _, f := range q.Filters {
		if f.Field != "owner_id" {
			scoped.Filters = append(scoped.Filters, f)
		}
	}
	return scoped.Where("owner_id", ownerID)
}

func scopeRow(tbl remote.Table, row remote.Row, ownerID string) remote.Row {
	if !tbl.OwnerScoped {
		return row
	}
	out := make(remote.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	out["owner_id"] = ownerID
	return out
}
