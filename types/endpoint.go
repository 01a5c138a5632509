package types

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Endpoint is one remote Repetier-Server instance. It is built once from
// discovery data (or config) and never mutated afterwards.
type Endpoint struct {
	ID       string
	Address  string
	Port     int
	Path     string
	Protocol string // "http" or "https"

	APIKey    string
	BasicAuth string // "basic <base64(user:pass)>" or empty

	baseURL string
	apiURL  string
	jobURL  string
	saveURL string
}

// NewEndpoint builds an immutable endpoint record. path gets a trailing
// slash, protocol is picked from useHTTPS, and the basic-auth header value is
// precomputed when both credentials are present.
func NewEndpoint(id, address string, port int, path string, useHTTPS bool, apiKey, username, password string) *Endpoint {
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	protocol := "http"
	if useHTTPS {
		protocol = "https"
	}
	e := &Endpoint{
		ID:       id,
		Address:  address,
		Port:     port,
		Path:     path,
		Protocol: protocol,
		APIKey:   apiKey,
	}
	if username != "" && password != "" {
		data := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		e.BasicAuth = "basic " + data
	}
	key := e.SanitizedID()
	e.baseURL = fmt.Sprintf("%s://%s:%d%s", protocol, address, port, path)
	e.apiURL = e.baseURL + "printer/api/" + key
	e.jobURL = e.baseURL + "printer/job/" + key
	e.saveURL = e.baseURL + "printer/model/" + key
	return e
}

// SanitizedID is the instance identifier as it appears in API paths and in
// stateList payload keys: quote and space characters removed.
func (e *Endpoint) SanitizedID() string {
	return SanitizeID(e.ID)
}

func SanitizeID(id string) string {
	id = strings.ReplaceAll(id, "'", "")
	return strings.ReplaceAll(id, " ", "")
}

// BaseURL is the absolute URL of the instance's web interface.
func (e *Endpoint) BaseURL() string { return e.baseURL }

// APIURL is the target for status and command requests.
func (e *Endpoint) APIURL() string { return e.apiURL }

// JobURL is the upload target when the file should print immediately.
func (e *Endpoint) JobURL() string { return e.jobURL }

// SaveURL is the upload target when the file is only stored (queued).
func (e *Endpoint) SaveURL() string { return e.saveURL }
