package usage

import (
	"encoding/json"
	"net/http"
	"time"

	gmux "github.com/gorilla/mux"
)

// ConnectionInfo describes a connection that is currently open
type ConnectionInfo struct {
	ID         string
	RemoteAddr string
	Protocol   string
	Calls      int64
	Rx         int64
	Tx         int64
	Since      time.Time
}

type ConnectionLister interface {
	ListConnections() []ConnectionInfo
}

// APIRouter serves the admin API: live connections and the persisted usage of each host
type APIRouter struct {
	*gmux.Router
	store *Store
	conns ConnectionLister
}

func APIRouterOf(store *Store, conns ConnectionLister) *APIRouter {
	ret := &APIRouter{
		store: store,
		conns: conns,
	}
	ret.registerMux()
	return ret
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (ar *APIRouter) registerMux() {
	ar.Router = gmux.NewRouter()
	ar.HandleFunc("/admin/connections", ar.listConnectionsHlr).Methods("GET")
	ar.HandleFunc("/admin/usage", ar.withStore(ar.listUsageHlr)).Methods("GET")
	ar.HandleFunc("/admin/usage/{host}", ar.withStore(ar.getUsageHlr)).Methods("GET")
	ar.HandleFunc("/admin/usage/{host}", ar.withStore(ar.deleteUsageHlr)).Methods("DELETE")
	ar.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", "GET,DELETE,OPTIONS")
	})
	ar.Use(corsMiddleware)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}

// usage handlers are only useful if usage is being recorded
func (ar *APIRouter) withStore(hlr http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ar.store == nil {
			http.Error(w, "usage is not being recorded", http.StatusNotFound)
			return
		}
		hlr(w, r)
	}
}

func (ar *APIRouter) listConnectionsHlr(w http.ResponseWriter, r *http.Request) {
	conns := ar.conns.ListConnections()
	if conns == nil {
		conns = []ConnectionInfo{}
	}
	writeJSON(w, conns)
}

func (ar *APIRouter) listUsageHlr(w http.ResponseWriter, r *http.Request) {
	usages, err := ar.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, usages)
}

func (ar *APIRouter) getUsageHlr(w http.ResponseWriter, r *http.Request) {
	host := gmux.Vars(r)["host"]
	u, err := ar.store.Get(host)
	if err == ErrHostNotFound {
		http.Error(w, ErrHostNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, u)
}

func (ar *APIRouter) deleteUsageHlr(w http.ResponseWriter, r *http.Request) {
	host := gmux.Vars(r)["host"]
	err := ar.store.Delete(host)
	if err == ErrHostNotFound {
		http.Error(w, ErrHostNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
