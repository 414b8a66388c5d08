package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

type fakeFire struct {
	cmd *l1wire.FireCommand
}

func (f *fakeFire) Fire() (l1wire.FireCommand, bool) {
	if f.cmd == nil {
		return l1wire.FireCommand{}, false
	}
	return *f.cmd, true
}

func (f *fakeFire) SetFire(cmd l1wire.FireCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	f.cmd = &cmd
	return nil
}

func post(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return w
}

func TestWebServer_FireSettings(t *testing.T) {
	def := l1wire.DefaultFireCommand()
	fire := &fakeFire{cmd: &def}
	h := NewWebServer(WebServerConfig{Fire: fire}).Handler()

	w := get(t, h, http.MethodGet, "/api/fire")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"master_mode":1,"ping_rate":1,"network_speed":255,"gamma":150,
		"range":10,"gain":60,"speed_of_sound":0,"salinity":0,"gain_assist":true,"use_512_beams":true}`, w.Body.String())

	tests := []struct {
		name     string
		body     string
		wantCode int
		check    func(t *testing.T, c l1wire.FireCommand)
	}{
		{"range only", `{"range":25}`, http.StatusOK, func(t *testing.T, c l1wire.FireCommand) {
			assert.Equal(t, 25.0, c.Range)
			assert.Equal(t, 60.0, c.Gain, "unset fields keep their value")
		}},
		{"sea water low frequency", `{"salinity":35,"master_mode":2,"gain_assist":false}`, http.StatusOK, func(t *testing.T, c l1wire.FireCommand) {
			assert.Equal(t, 35.0, c.Salinity)
			assert.Equal(t, uint8(2), c.MasterMode)
			assert.False(t, c.GainAssist)
			assert.Equal(t, 25.0, c.Range)
		}},
		{"bad mode", `{"master_mode":3}`, http.StatusBadRequest, nil},
		{"negative range", `{"range":-1}`, http.StatusBadRequest, nil},
		{"gain over 100", `{"gain":101}`, http.StatusBadRequest, nil},
		{"unknown field", `{"frequency":900}`, http.StatusBadRequest, nil},
		{"not json", `range=5`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := *fire.cmd
			w := post(t, h, "/api/fire", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.check == nil {
				assert.Equal(t, before, *fire.cmd, "rejected settings leave the command alone")
				return
			}
			tt.check(t, *fire.cmd)
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, h, http.MethodDelete, "/api/fire").Code)
}

func TestWebServer_FireSettingsWithoutCommand(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, NewWebServer(WebServerConfig{}).Handler(), http.MethodGet, "/api/fire").Code)

	fire := &fakeFire{}
	h := NewWebServer(WebServerConfig{Fire: fire}).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, http.MethodGet, "/api/fire").Code)

	w := post(t, h, "/api/fire", `{"range":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	want := l1wire.DefaultFireCommand()
	want.Range = 5
	assert.Equal(t, want, *fire.cmd)
}
