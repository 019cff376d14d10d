package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/ups"
)

const ctxKeyUPSName contextKey = "ups_name"

// upsDetail is the response of GET /ups/{name}.
type upsDetail struct {
	ups.DeviceEntry

	Commands          []nut.InstCmd `json:"commands"`
	CommandsStale     bool          `json:"commands_stale"`
	CommandsFetchedAt *time.Time    `json:"commands_fetched_at,omitempty"`
	PowerW            *float64      `json:"power_w"`
	PowerIsApprox     bool          `json:"power_is_approx"`

	// Descriptions of the device's variables and commands, by id.
	Descriptions map[string]string `json:"descriptions"`
}

// commandListing is the response of GET /ups/{name}/commands.
type commandListing struct {
	UPS      string        `json:"ups"`
	AsUser   string        `json:"as_user"`
	Count    int           `json:"count"`
	Commands []nut.InstCmd `json:"commands"`
}

type instCmdRequest struct {
	InstCmd string `json:"instcmd"`
}

type setVarRequest struct {
	Variable string     `json:"variable"`
	Value    *nut.Value `json:"value"`
}

// upsNameMiddleware decodes and checks the {name} path parameter. Names that
// could not be sent to upsd are rejected with 400 before any handler runs.
func (s *Server) upsNameMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := pathParam(r, "name")
		if err != nil || !validName(name) {
			writeBadRequest(w, "Invalid path", "Device name is empty or contains forbidden characters.")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUPSName, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// pathParam returns a decoded path parameter. chi matches against RawPath
// when the request has one, so only then is the value still escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func upsName(r *http.Request) string {
	name, _ := r.Context().Value(ctxKeyUPSName).(string)
	return name
}

// validName mirrors the identifier rules of the NUT protocol client.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch <= ' ' || ch == 0x7f || ch == '"' || ch == '\\' {
			return false
		}
	}
	return true
}

// handleListUPS returns all known devices sorted by name.
func (s *Server) handleListUPS(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListDevices())
}

// handleGetUPS returns a device snapshot with its instant commands and a
// power estimate. ?include=commands forces a command refresh; a failed
// refresh falls back to the cached list marked stale.
func (s *Server) handleGetUPS(w http.ResponseWriter, r *http.Request) {
	name := upsName(r)
	dev, ok := s.store.LookupDevice(name)
	if !ok {
		s.writeError(w, r, ups.ErrDeviceNotFound)
		return
	}

	cmds, stale := s.deviceCommands(r, name, r.URL.Query().Get("include") == "commands")
	if cmds == nil {
		cmds = []nut.InstCmd{}
	}

	resp := upsDetail{
		DeviceEntry:   *dev,
		Commands:      cmds,
		CommandsStale: stale,
		Descriptions:  s.store.Descriptions(descriptionKeys(dev, cmds)),
	}
	if at, ok := s.store.CommandsFetchedAt(name); ok {
		resp.CommandsFetchedAt = &at
	}
	if watts, approx, ok := ups.EstimatePower(dev.Variables); ok {
		resp.PowerW = &watts
		resp.PowerIsApprox = approx
	}

	writeJSON(w, http.StatusOK, resp)
}

// descriptionKeys lists the variable and command ids of a device, sorted.
func descriptionKeys(dev *ups.DeviceEntry, cmds []nut.InstCmd) []string {
	var keys []string
	for name := range dev.Variables {
		keys = append(keys, name)
	}
	for name := range dev.RWVariables {
		if _, ok := dev.Variables[name]; !ok {
			keys = append(keys, name)
		}
	}
	for _, cmd := range cmds {
		keys = append(keys, cmd.ID)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// deviceCommands is best effort: without credentials only the cached list is
// served, and refresh failures never fail the detail request.
func (s *Server) deviceCommands(r *http.Request, name string, force bool) ([]nut.InstCmd, bool) {
	if !s.upsdCfg.HasCredentials() {
		return s.store.ReadCommands(name)
	}

	if force {
		cmds, err := s.commands.Commands(r.Context(), name, true)
		if err != nil {
			s.logger.Warn("forced command refresh failed", "ups", name, "error", err)
			cached, _ := s.store.ReadCommands(name)
			return cached, true
		}
		return cmds, false
	}

	cmds, stale, _ := s.commands.Cached(r.Context(), name)
	return cmds, stale
}

// handleListCommands lists the instant commands straight from upsd. The
// endpoint is hidden unless upsd.allow_instcmds_list is set.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if !s.upsdCfg.AllowInstCmdsList {
		writeNotFound(w, "Target resource not found")
		return
	}

	name := upsName(r)
	cmds, err := s.dispatcher.ListCommands(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cmds == nil {
		cmds = []nut.InstCmd{}
	}

	writeJSON(w, http.StatusOK, commandListing{
		UPS:      name,
		AsUser:   s.dispatcher.Username(),
		Count:    len(cmds),
		Commands: cmds,
	})
}

// handleInstCmd runs an instant command listed on the device.
func (s *Server) handleInstCmd(w http.ResponseWriter, r *http.Request) {
	var req instCmdRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.InstCmd == "" {
		writeBadRequest(w, "Invalid request body", "Field 'instcmd' is required.")
		return
	}

	if err := s.dispatcher.RunInstCmd(r.Context(), upsName(r), req.InstCmd); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSetVar writes a writable variable after validating the value against
// its declared constraint.
func (s *Server) handleSetVar(w http.ResponseWriter, r *http.Request) {
	var req setVarRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Variable == "" {
		writeBadRequest(w, "Invalid request body", "Field 'variable' is required.")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "Invalid request body", "Field 'value' is required.")
		return
	}

	if err := s.dispatcher.SetVariable(r.Context(), upsName(r), req.Variable, *req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleFSD sets the forced shutdown flag on a device.
func (s *Server) handleFSD(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.ForcedShutdown(r.Context(), upsName(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
