package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	hostErrors "github.com/awake/host/internal/errors"
	"github.com/awake/host/internal/hotkey"
	"github.com/awake/host/internal/ipc"
	"github.com/awake/host/internal/keepawake"
)

// maxRequestBody bounds mutation request bodies.
const maxRequestBody = 16 * 1024

// mutation wraps a state-changing handler with the POST check and the
// shared rate limiter.
func (s *Server) mutation(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			s.writeError(w, http.StatusMethodNotAllowed, hostErrors.InvalidRequest("method not allowed"))
			return
		}
		if !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, hostErrors.RateLimited())
			return
		}
		h(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, http.StatusMethodNotAllowed, hostErrors.InvalidRequest("method not allowed"))
		return
	}

	now := s.clock.Now()
	settings := s.settings()
	st := s.coord.CurrentState()

	resp := ipc.StatusResponse{
		State:            st,
		RemainingSeconds: int64(st.Remaining(now) / time.Second),
		Features:         settings.Features,
		Version:          s.version,
		UptimeSeconds:    int64(now.Sub(s.started) / time.Second),
	}
	if s.battery != nil {
		if reading, ok := s.battery(); ok {
			resp.Battery = &ipc.BatteryStatus{
				Percent:          reading.Percent,
				OnBattery:        reading.OnBattery,
				GuardEnabled:     settings.Battery.Enabled,
				ThresholdPercent: settings.Battery.ThresholdPercent,
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req ipc.ActivateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	settings := s.settings()
	duration := settings.DefaultDuration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, hostErrors.InvalidRequest("duration must be a Go duration such as 45m or 2h"))
			return
		}
		duration = d
	}
	policy := settings.Policy
	if req.AllowDisplaySleep != nil {
		policy = keepawake.PolicyFor(*req.AllowDisplaySleep)
	}

	if err := s.coord.Activate(r.Context(), keepawake.Manual(), duration, policy); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.ChangeResponse{Changed: true, State: s.coord.CurrentState()})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ended := s.coord.DeactivateUnconditional(r.Context())
	s.writeJSON(w, http.StatusOK, ipc.ChangeResponse{Changed: ended, State: s.coord.CurrentState()})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if s.toggler == nil {
		s.writeError(w, http.StatusConflict, hostErrors.InvalidRequest(hotkey.ErrDisabled.Error()))
		return
	}
	_, err := s.toggler.Trigger(r.Context())
	switch {
	case errors.Is(err, hotkey.ErrDisabled):
		s.writeError(w, http.StatusConflict, hostErrors.InvalidRequest(err.Error()))
		return
	case errors.Is(err, hotkey.ErrDebounced):
		s.writeError(w, http.StatusTooManyRequests, hostErrors.New(hostErrors.CodeIPCRateLimited, err.Error()))
		return
	case err != nil:
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.ChangeResponse{Changed: true, State: s.coord.CurrentState()})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return hostErrors.InvalidRequest("malformed request body: " + err.Error())
	}
	return nil
}

// statusFor maps a coded error to an HTTP status.
func statusFor(err error) int {
	switch hostErrors.GetCode(err) {
	case hostErrors.CodeIPCInvalidRequest, hostErrors.CodeCoordinatorInvalidDuration:
		return http.StatusBadRequest
	case hostErrors.CodeIPCRateLimited:
		return http.StatusTooManyRequests
	case hostErrors.CodePowerUnsupportedEnvironment:
		return http.StatusNotImplemented
	case hostErrors.CodePowerAcquireFailed:
		return http.StatusBadGateway
	case hostErrors.CodeCoordinatorClosed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("control: failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	code, message := hostErrors.ToCodeAndMessage(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("code", code).Warn("control: request failed")
	}
	s.writeJSON(w, status, ipc.ErrorResponse{
		Code:       code,
		Message:    message,
		NextAction: hostErrors.GetNextAction(code),
	})
}
