package stubs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// Handler returns an http.Handler serving the backend's REST contract:
//
//	GET    /table
//	GET    /librarian
//	GET    /borrowing-readonly/{isTeacher}/{card}
//	GET    /{table}
//	POST   /{table}
//	PUT    /{table}/{key}
//	DELETE /{table}/{key}
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /table", func(w http.ResponseWriter, r *http.Request) {
		tables, err := b.ListTables(r.Context())
		reply(w, http.StatusOK, tables, err)
	})
	mux.HandleFunc("GET /borrowing-readonly/{teacher}/{card}", func(w http.ResponseWriter, r *http.Request) {
		isTeacher, err := strconv.ParseBool(r.PathValue("teacher"))
		if err != nil {
			http.Error(w, "bad owner kind", http.StatusBadRequest)
			return
		}
		card, err := strconv.ParseInt(r.PathValue("card"), 10, 64)
		if err != nil {
			http.Error(w, "bad card", http.StatusBadRequest)
			return
		}
		views, err := b.ListBorrowings(r.Context(), isTeacher, card)
		if views == nil {
			views = []types.BorrowingView{}
		}
		reply(w, http.StatusOK, views, err)
	})
	mux.HandleFunc("GET /{table}", func(w http.ResponseWriter, r *http.Request) {
		rows, err := b.List(r.Context(), r.PathValue("table"))
		reply(w, http.StatusOK, rows, err)
	})
	mux.HandleFunc("POST /{table}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		created, err := b.Create(r.Context(), r.PathValue("table"), rec)
		reply(w, http.StatusCreated, created, err)
	})
	mux.HandleFunc("PUT /{table}/{key}", func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r)
		if !ok {
			return
		}
		rec, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		updated, err := b.Update(r.Context(), r.PathValue("table"), key, rec)
		reply(w, http.StatusOK, updated, err)
	})
	mux.HandleFunc("DELETE /{table}/{key}", func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r)
		if !ok {
			return
		}
		deleted, err := b.remove(r.PathValue("table"), key)
		reply(w, http.StatusOK, deleted, err)
	})
	return mux
}

func pathKey(w http.ResponseWriter, r *http.Request) (any, bool) {
	s, err := types.Lookup(r.PathValue("table"))
	if err != nil {
		http.Error(w, "unknown table", http.StatusNotFound)
		return nil, false
	}
	key, err := s.KeyField().Parse(r.PathValue("key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return key, true
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (types.Record, bool) {
	s, err := types.Lookup(r.PathValue("table"))
	if err != nil {
		http.Error(w, "unknown table", http.StatusNotFound)
		return nil, false
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return nil, false
	}
	rec, err := s.Normalize(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return nil, false
	}
	return rec, true
}

func reply(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		var re *types.RequestError
		if errors.As(err, &re) && re.Status != 0 {
			http.Error(w, re.Body, re.Status)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
