package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blehub/internal/adv"
	"github.com/srg/blehub/internal/clock"
	"github.com/srg/blehub/internal/manager"
	"github.com/srg/blehub/internal/scanner"
	"github.com/srg/blehub/internal/testutils"
)

func newTestServer(t *testing.T) (*Server, *scanner.RemoteScanner) {
	t.Helper()

	mgr := manager.New(nil, clock.NewFake())
	sc := scanner.NewRemoteScanner("hci0", mgr.AdvertisementCallback(), nil, true, nil, clock.NewFake())
	_, err := mgr.RegisterScanner(sc, 2)
	require.NoError(t, err)

	return NewServer("127.0.0.1:0", mgr, nil), sc
}

func TestHandleDiagnostics(t *testing.T) {
	srv, sc := newTestServer(t)
	sc.OnAdvertisement(testutils.NewObservation("AA:BB:CC:DD:EE:FF").WithName("Sensor1").Build())

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var diag manager.Diagnostics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &diag))
	require.Len(t, diag.Scanners, 1)
	assert.Equal(t, "hci0", diag.Scanners[0].Source)
	assert.Equal(t, manager.SlotDiagnostics{Total: 2, Free: 2}, diag.Slots["hci0"])
}

func TestHandleDevices(t *testing.T) {
	srv, sc := newTestServer(t)
	sc.OnAdvertisement(testutils.NewObservation("AA:BB:CC:DD:EE:FF").WithName("Sensor1").Build())

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var infos []adv.ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "Sensor1", infos[0].Name)
}

func TestHandleDevices_ConnectableFilter(t *testing.T) {
	mgr := manager.New(nil, clock.NewFake())
	broadcast := scanner.NewRemoteScanner("proxy-1", mgr.AdvertisementCallback(), nil, false, nil, clock.NewFake())
	_, err := mgr.RegisterScanner(broadcast, 0)
	require.NoError(t, err)
	srv := NewServer("127.0.0.1:0", mgr, nil)

	broadcast.OnAdvertisement(testutils.NewObservation("AA").Build())

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices?connectable=true", nil))

	var infos []adv.ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Empty(t, infos, "broadcast-only discovery MUST NOT appear in the connectable view")
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
