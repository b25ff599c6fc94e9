package usage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedLister []ConnectionInfo

func (l fixedLister) ListConnections() []ConnectionInfo { return l }

func makeRouter(t *testing.T) (*APIRouter, *Store, func()) {
	store, cleaner := makeStore(t)
	router := APIRouterOf(store, fixedLister{{ID: "abc", RemoteAddr: "1.2.3.4:5678", Protocol: "line", Calls: 1}})
	return router, store, cleaner
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(rr, req)
	return rr
}

func TestListConnectionsHlr(t *testing.T) {
	router, _, cleaner := makeRouter(t)
	defer cleaner()

	rr := serve(router, "GET", "/admin/connections")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	var conns []ConnectionInfo
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conns))
	if assert.Len(t, conns, 1) {
		assert.Equal(t, "abc", conns[0].ID)
	}
}

func TestUsageHlrs(t *testing.T) {
	router, store, cleaner := makeRouter(t)
	defer cleaner()

	rr := serve(router, "GET", "/admin/usage/9.9.9.9")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	_ = store.Add("9.9.9.9", 4, 40, 400)

	rr = serve(router, "GET", "/admin/usage/9.9.9.9")
	assert.Equal(t, http.StatusOK, rr.Code)
	var u HostUsage
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &u))
	assert.EqualValues(t, 4, u.Calls)

	rr = serve(router, "GET", "/admin/usage")
	assert.Equal(t, http.StatusOK, rr.Code)
	var usages []HostUsage
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &usages))
	assert.Len(t, usages, 1)

	rr = serve(router, "DELETE", "/admin/usage/9.9.9.9")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = serve(router, "DELETE", "/admin/usage/9.9.9.9")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
