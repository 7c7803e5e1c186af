// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

// apiServer exposes a session over HTTP
type apiServer struct {
	session *lnb.Session
}

type powerRequest struct {
	Enabled *bool `json:"enabled"`
}

type polarityRequest struct {
	Polarity string `json:"polarity"`
}

type bandRequest struct {
	Band string `json:"band"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// newAPIRouter builds the REST routes for s
func newAPIRouter(s *lnb.Session) *mux.Router {
	api := &apiServer{session: s}

	r := mux.NewRouter()
	r.Use(logRequests)

	// Full paths on the root router so a wrong method gets 405, not 404
	r.HandleFunc("/api/state", api.getState).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", api.getStats).Methods(http.MethodGet)
	r.HandleFunc("/api/power", api.putPower).Methods(http.MethodPut)
	r.HandleFunc("/api/channels/{ch}/polarity", api.putPolarity).Methods(http.MethodPut)
	r.HandleFunc("/api/channels/{ch}/band", api.putBand).Methods(http.MethodPut)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s (%v)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func (a *apiServer) getState(w http.ResponseWriter, r *http.Request) {
	state, err := a.session.ReadFullState()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *apiServer) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Statistics())
}

func (a *apiServer) putPower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, badRequest("missing field \"enabled\""))
		return
	}
	if err := a.session.SetPower(*req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) putPolarity(w http.ResponseWriter, r *http.Request) {
	ch, err := parseChannel(mux.Vars(r)["ch"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req polarityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := lnb.ParsePolarity(req.Polarity)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.session.SetChannelPolarity(ch, p); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) putBand(w http.ResponseWriter, r *http.Request) {
	ch, err := parseChannel(mux.Vars(r)["ch"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req bandRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := lnb.ParseBand(req.Band)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.session.SetChannelBand(ch, b); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errBadRequest marks malformed request bodies
var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

// statusFor maps session errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, lnb.ErrInvalidChannel):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, lnb.ErrInvalidPolarity),
		errors.Is(err, lnb.ErrInvalidBand):
		return http.StatusBadRequest
	case errors.Is(err, lnb.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, lnb.ErrProtocol), errors.Is(err, lnb.ErrIO):
		return http.StatusBadGateway
	case errors.Is(err, lnb.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	if k := lnb.KindOf(err); k != 0 {
		resp.Kind = k.String()
	}
	writeJSON(w, statusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("failed to write response: %v", err)
	}
}
