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

package coordinator

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"elasticmv/wire"
)

var ErrTransportFailure = fmt.Errorf("transport failure")

// Transport delivers encoded payloads to a worker address.
type Transport interface {
	Assign(ctx context.Context, addr, payload string) error
	Compute(ctx context.Context, addr, payload string) (string, error)
}

// HTTPTransport talks to workers with plain GET requests, the payload carried
// as a single query parameter.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport whose requests time out after
// timeout. A zero timeout waits indefinitely.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

func workerURL(addr, path, payload string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + path + "?" + wire.Param + "=" + payload
}

func (t *HTTPTransport) get(ctx context.Context, addr, path, payload string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", workerURL(addr, path, payload), nil)
	if err != nil {
		return "", errors.Wrapf(ErrTransportFailure, "%s: %v", addr, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(ErrTransportFailure, "%s: %v", addr, err)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrapf(ErrTransportFailure, "%s: reading response: %v", addr, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrTransportFailure, "%s: HTTP %d: %s",
			addr, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func (t *HTTPTransport) Assign(ctx context.Context, addr, payload string) error {
	_, err := t.get(ctx, addr, wire.AssignPath, payload)
	return err
}

func (t *HTTPTransport) Compute(ctx context.Context, addr, payload string) (string, error) {
	return t.get(ctx, addr, wire.ComputePath, payload)
}
