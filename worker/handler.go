/*
   elasticmv - Elastic coded distributed matrix-vector multiplication
   Copyright (C) 2017  The elasticmv Authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package worker

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"elasticmv/wire"
)

func httpError(w http.ResponseWriter, statusCode int, err error) {
	log.Errorf("HTTP %d: %+v", statusCode, err)
	http.Error(w, http.StatusText(statusCode), statusCode)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotAssigned):
		return http.StatusConflict
	case errors.Is(err, wire.ErrMalformedPayload):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Register(r *httprouter.Router) {
	r.GET(wire.AssignPath, h.Assign)
	r.GET(wire.ComputePath, h.Compute)
	r.GET(wire.StatusPath, h.Status)
}

// payload returns the payload parameter still escaped, exactly as the
// coordinator encoded it.
func payload(r *http.Request) (string, error) {
	for _, pair := range strings.Split(r.URL.RawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == wire.Param {
			return v, nil
		}
	}
	return "", errors.Wrapf(wire.ErrMalformedPayload, "missing %q parameter", wire.Param)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, err := payload(r)
	if err == nil {
		err = h.engine.Assign(p)
	}
	recordRequest("assign", err)
	if err != nil {
		httpError(w, statusCode(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Compute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, err := payload(r)
	var resp string
	if err == nil {
		resp, err = h.engine.Compute(p)
	}
	recordRequest("compute", err)
	if err != nil {
		httpError(w, statusCode(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, err = w.Write([]byte(resp))
	if err != nil {
		log.Warningf("failed to write response: %v", err)
	}
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	out, err := json.MarshalIndent(h.engine.Status(), "", "\t")
	if err != nil {
		httpError(w, http.StatusInternalServerError, errors.WithStack(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(out)
	if err != nil {
		log.Warningf("failed to write status: %v", err)
	}
}
