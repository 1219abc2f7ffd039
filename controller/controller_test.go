package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestraw/hrwlb/balancer"
	"github.com/onestraw/hrwlb/config"
)

func mockBalancer(t *testing.T) *balancer.Balancer {
	jsonBody := `{"virtual_server":[{"name":"web","address":"127.0.0.1:0","server_name":"localhost","hash":"xxh3","hash_key":"query:user","pool":[{"address":"127.0.0.1:10001"},{"address":"127.0.0.1:10002"}]}]}`
	c, err := config.LoadFromString(jsonBody)
	require.NoError(t, err)

	b, err := balancer.New(c.VServers)
	require.NoError(t, err)
	return b
}

func jsonBody(v interface{}) io.Reader {
	body, _ := json.Marshal(v)
	return bytes.NewReader(body)
}

func testCtrlSuit(t *testing.T, h http.Handler, req *http.Request, expectCode int, expectBody string) {
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	resp := rr.Result()
	if resp.StatusCode != expectCode {
		t.Errorf("Expect status code %d, but got %d", expectCode, resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("Read body err=%v", err)
		return
	}
	defer resp.Body.Close()

	if !bytes.Equal(body, []byte(expectBody)) {
		t.Errorf("Expect body '%s', but got '%s'", expectBody, string(body))
	}
}

func TestListAllVirtualServer(t *testing.T) {
	h := Handler(mockBalancer(t))
	req := httptest.NewRequest("GET", "/vs", nil)
	expect := "Name:web, Address:127.0.0.1:0, Status:stopped, Hash:xxh3, Key:query:user, Pool:\n127.0.0.1:10001, 127.0.0.1:10002\n\n"
	testCtrlSuit(t, h, req, 200, expect)
}

func TestListVirtualServer(t *testing.T) {
	h := Handler(mockBalancer(t))
	req := httptest.NewRequest("GET", "/vs/web", nil)
	testCtrlSuit(t, h, req, 200, "127.0.0.1:10001, 127.0.0.1:10002")

	req = httptest.NewRequest("GET", "/vs/db", nil)
	testCtrlSuit(t, h, req, 400, balancer.ErrVirtualServerNotFound.Error())
}

func TestStatsHandler(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)

	req := httptest.NewRequest("GET", "/stats", nil)
	testCtrlSuit(t, h, req, 200, "Pool-web")

	req = httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, 200, rr.Code)
	assert.Contains(t, rr.Body.String(), `hrwlb_pool_peers{state="available",vserver="web"} 2`)
	assert.Contains(t, rr.Body.String(), `hrwlb_pool_peers{state="total",vserver="web"} 2`)
}

func TestModifyVirtualServerStatus(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)

	// enable
	req := httptest.NewRequest("POST", "/vs/web", jsonBody(map[string]string{"action": "enable"}))
	testCtrlSuit(t, h, req, 200, "success")
	assert.Equal(t, balancer.STATUS_RUNNING, b.VServers[0].Status())

	// repeat enable
	req = httptest.NewRequest("POST", "/vs/web", jsonBody(map[string]string{"action": "enable"}))
	testCtrlSuit(t, h, req, 400, balancer.ErrVirtualServerRunning.Error())

	// disable
	req = httptest.NewRequest("POST", "/vs/web", jsonBody(map[string]string{"action": "disable"}))
	testCtrlSuit(t, h, req, 200, "success")
	assert.Equal(t, balancer.STATUS_STOPPED, b.VServers[0].Status())

	// repeat disable
	req = httptest.NewRequest("POST", "/vs/web", jsonBody(map[string]string{"action": "disable"}))
	testCtrlSuit(t, h, req, 400, balancer.ErrVirtualServerStopped.Error())

	// unknown action
	req = httptest.NewRequest("POST", "/vs/web", jsonBody(map[string]string{}))
	testCtrlSuit(t, h, req, 400, "Unknown action")

	// bad body
	req = httptest.NewRequest("POST", "/vs/web", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, 400, rr.Code)
}

func TestAddVirtualServer(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)
	req := httptest.NewRequest("POST", "/vs", jsonBody(map[string]string{"name": "redis", "address": "127.0.0.1:6379", "hash": "murmur3"}))

	testCtrlSuit(t, h, req, 200, "Add success")
	require.Len(t, b.VServers, 2)
	vs := b.VServers[1]
	assert.Equal(t, "redis", vs.Name)
	assert.Equal(t, "127.0.0.1:6379", vs.Address)
	assert.Equal(t, "murmur3", vs.Hash)

	req = httptest.NewRequest("POST", "/vs", jsonBody(map[string]string{"name": "redis", "address": "127.0.0.1:6380"}))
	testCtrlSuit(t, h, req, 400, balancer.ErrVirtualServerNameExisted.Error())

	req = httptest.NewRequest("POST", "/vs", jsonBody(map[string]string{"name": "mc", "address": "127.0.0.1:11211", "hash": "sha1"}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, 400, rr.Code)
	assert.Contains(t, rr.Body.String(), "sha1")
}

func TestAddPoolMember(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)
	body := map[string]string{"address": "127.0.0.1:10005"}

	req := httptest.NewRequest("POST", "/vs/web/pool", jsonBody(body))
	testCtrlSuit(t, h, req, 200, "Add peer success")
	assert.Equal(t, 3, b.VServers[0].Pool.Size())

	req = httptest.NewRequest("POST", "/vs/web/pool", jsonBody(body))
	testCtrlSuit(t, h, req, 400, ErrPeerExisted.ErrMsg)

	// missing address
	req = httptest.NewRequest("POST", "/vs/web/pool", jsonBody(map[string]string{"address": ""}))
	testCtrlSuit(t, h, req, 400, ErrAddressEmpty.ErrMsg)
	req = httptest.NewRequest("POST", "/vs/web/pool", jsonBody(map[string]string{}))
	testCtrlSuit(t, h, req, 400, ErrAddressEmpty.ErrMsg)
	assert.Equal(t, 3, b.VServers[0].Pool.Size())

	// pool not exist
	req = httptest.NewRequest("POST", "/vs/db/pool", jsonBody(body))
	testCtrlSuit(t, h, req, 400, balancer.ErrVirtualServerNotFound.Error())
}

func TestDeletePoolMember(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)
	body := map[string]string{"address": "127.0.0.1:10001"}

	req := httptest.NewRequest("DELETE", "/vs/web/pool", jsonBody(body))
	testCtrlSuit(t, h, req, 200, "Remove peer success")
	assert.Equal(t, 1, b.VServers[0].Pool.Size())

	req = httptest.NewRequest("DELETE", "/vs/web/pool", jsonBody(body))
	testCtrlSuit(t, h, req, 400, ErrPeerNotFound.ErrMsg)

	req = httptest.NewRequest("DELETE", "/vs/web/pool", jsonBody(map[string]string{}))
	testCtrlSuit(t, h, req, 400, ErrAddressEmpty.ErrMsg)

	req = httptest.NewRequest("DELETE", "/vs/db/pool", jsonBody(body))
	testCtrlSuit(t, h, req, 400, balancer.ErrVirtualServerNotFound.Error())
}

func TestModifyPoolMemberStatus(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)
	vs := b.VServers[0]

	req := httptest.NewRequest("POST", "/vs/web/pool/status", jsonBody(map[string]string{"address": "127.0.0.1:10001", "action": "down"}))
	testCtrlSuit(t, h, req, 200, "success")
	assert.Equal(t, 2, vs.Pool.Size())
	assert.Equal(t, 1, vs.Pool.Available())
	assert.Equal(t, "127.0.0.1:10001 (down), 127.0.0.1:10002", vs.Pool.String())

	req = httptest.NewRequest("POST", "/vs/web/pool/status", jsonBody(map[string]string{"address": "127.0.0.1:10001", "action": "down"}))
	testCtrlSuit(t, h, req, 400, ErrPeerUnchanged.ErrMsg)

	req = httptest.NewRequest("POST", "/vs/web/pool/status", jsonBody(map[string]string{"address": "127.0.0.1:10001", "action": "up"}))
	testCtrlSuit(t, h, req, 200, "success")
	assert.Equal(t, 2, vs.Pool.Available())

	req = httptest.NewRequest("POST", "/vs/web/pool/status", jsonBody(map[string]string{"address": "127.0.0.1:10009", "action": "up"}))
	testCtrlSuit(t, h, req, 400, ErrPeerUnchanged.ErrMsg)

	req = httptest.NewRequest("POST", "/vs/web/pool/status", jsonBody(map[string]string{"address": "127.0.0.1:10001", "action": "drain"}))
	testCtrlSuit(t, h, req, 400, ErrUnknownAction.ErrMsg)
}

func TestLookup(t *testing.T) {
	b := mockBalancer(t)
	h := Handler(b)
	vs := b.VServers[0]

	owner, err := vs.Lookup("alice", 1)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/vs/web/lookup?key=alice", nil)
	testCtrlSuit(t, h, req, 200, owner[0])

	ranked, err := vs.Lookup("alice", 5)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, owner[0], ranked[0])
	req = httptest.NewRequest("GET", "/vs/web/lookup?key=alice&n=5", nil)
	testCtrlSuit(t, h, req, 200, strings.Join(ranked, "\n"))

	req = httptest.NewRequest("GET", "/vs/web/lookup", nil)
	testCtrlSuit(t, h, req, 400, ErrKeyEmpty.ErrMsg)

	req = httptest.NewRequest("GET", "/vs/web/lookup?key=alice&n=zero", nil)
	testCtrlSuit(t, h, req, 400, ErrInvalidCount.ErrMsg)

	vs.RemovePeer("127.0.0.1:10001")
	vs.RemovePeer("127.0.0.1:10002")
	req = httptest.NewRequest("GET", "/vs/web/lookup?key=alice", nil)
	testCtrlSuit(t, h, req, 503, ErrNoPeerAvailable.ErrMsg)
}

func TestRunStop(t *testing.T) {
	b := mockBalancer(t)
	c := New(&config.Controller{
		Address: "127.0.0.1:0",
		Auth:    config.Authentication{Username: "admin", Password: "admin"},
	})
	require.NoError(t, c.Run(b))
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
}
