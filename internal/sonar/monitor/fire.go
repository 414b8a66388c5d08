package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

// FireControl reads and replaces the head's fire settings; *network.Client
// satisfies it.
type FireControl interface {
	Fire() (l1wire.FireCommand, bool)
	SetFire(cmd l1wire.FireCommand) error
}

// FireSettings is the JSON form of a fire command. In a POST body every
// field is optional and unset fields keep their current value.
type FireSettings struct {
	MasterMode   *uint8   `json:"master_mode,omitempty"`
	PingRate     *uint8   `json:"ping_rate,omitempty"`
	NetworkSpeed *uint8   `json:"network_speed,omitempty"`
	Gamma        *uint8   `json:"gamma,omitempty"`
	Range        *float64 `json:"range,omitempty"`
	Gain         *float64 `json:"gain,omitempty"`
	SpeedOfSound *float64 `json:"speed_of_sound,omitempty"`
	Salinity     *float64 `json:"salinity,omitempty"`
	GainAssist   *bool    `json:"gain_assist,omitempty"`
	Use512Beams  *bool    `json:"use_512_beams,omitempty"`
}

func fireSettings(c l1wire.FireCommand) FireSettings {
	rate := uint8(c.PingRate)
	return FireSettings{
		MasterMode:   &c.MasterMode,
		PingRate:     &rate,
		NetworkSpeed: &c.NetworkSpeed,
		Gamma:        &c.Gamma,
		Range:        &c.Range,
		Gain:         &c.Gain,
		SpeedOfSound: &c.SpeedOfSound,
		Salinity:     &c.Salinity,
		GainAssist:   &c.GainAssist,
		Use512Beams:  &c.Use512Beams,
	}
}

// apply overlays the set fields of s onto c.
func (s FireSettings) apply(c l1wire.FireCommand) l1wire.FireCommand {
	if s.MasterMode != nil {
		c.MasterMode = *s.MasterMode
	}
	if s.PingRate != nil {
		c.PingRate = l1wire.PingRate(*s.PingRate)
	}
	if s.NetworkSpeed != nil {
		c.NetworkSpeed = *s.NetworkSpeed
	}
	if s.Gamma != nil {
		c.Gamma = *s.Gamma
	}
	if s.Range != nil {
		c.Range = *s.Range
	}
	if s.Gain != nil {
		c.Gain = *s.Gain
	}
	if s.SpeedOfSound != nil {
		c.SpeedOfSound = *s.SpeedOfSound
	}
	if s.Salinity != nil {
		c.Salinity = *s.Salinity
	}
	if s.GainAssist != nil {
		c.GainAssist = *s.GainAssist
	}
	if s.Use512Beams != nil {
		c.Use512Beams = *s.Use512Beams
	}
	return c
}

// handleFire reports the fire settings, or with POST changes them. The new
// command is queued at once and then re-sent after every ping.
func (ws *WebServer) handleFire(w http.ResponseWriter, r *http.Request) {
	if ws.fire == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no fire control")
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var s FireSettings
		dec := json.NewDecoder(io.LimitReader(r.Body, 4096))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid fire settings: %v", err))
			return
		}
		current, ok := ws.fire.Fire()
		if !ok {
			current = l1wire.DefaultFireCommand()
		}
		if err := ws.fire.SetFire(s.apply(current)); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	cmd, ok := ws.fire.Fire()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "head not fired yet")
		return
	}
	ws.writeJSON(w, fireSettings(cmd))
}
