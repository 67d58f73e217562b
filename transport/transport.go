// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/signal-golang/registration/rootCa"

	log "github.com/sirupsen/logrus"
)

// Response is the outcome of a single request/response exchange with the
// identity service. Body is left unread so callers decode the payload they
// expect for the endpoint.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

func (r *Response) IsError() bool {
	return r.Status < 200 || r.Status >= 300
}

func (r *Response) Error() string {
	return fmt.Sprintf("status code %d\n", r.Status)
}

// Transporter is the single "send request, get typed response or error"
// surface the session client talks through. Every call is one exchange; the
// context cancels the request when the owning attempt is abandoned.
type Transporter interface {
	Get(ctx context.Context, url string) (*Response, error)
	Del(ctx context.Context, url string) (*Response, error)
	PostJSON(ctx context.Context, url string, body []byte) (*Response, error)
	PostJSONWithHeaders(ctx context.Context, url string, body []byte, header http.Header) (*Response, error)
	PutJSON(ctx context.Context, url string, body []byte) (*Response, error)
	PatchJSON(ctx context.Context, url string, body []byte) (*Response, error)
}

type httpTransporter struct {
	baseURL     string
	user        string
	pass        string
	userAgent   string
	proxyServer string
	client      *http.Client
}

// NewHTTPTransporter returns a Transporter authenticating every call with
// user/pass basic auth. For registration these are the phone number and the
// locally generated client password of one attempt, so a transporter is
// constructed once per attempt rather than per call.
func NewHTTPTransporter(baseURL, user, pass, userAgent, proxyServer string) Transporter {
	client := &http.Client{
		Timeout: 45 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{RootCAs: rootCa.RootCA},
			TLSHandshakeTimeout: 30 * time.Second,
			Proxy: func(req *http.Request) (*url.URL, error) {
				if proxyServer != "" {
					u, err := url.Parse(proxyServer)
					if err == nil {
						return u, nil
					}
				}
				return http.ProxyFromEnvironment(req)
			},
		},
	}

	return &httpTransporter{baseURL, user, pass, userAgent, proxyServer, client}
}

func (ht *httpTransporter) do(ctx context.Context, method, path string, body []byte, header http.Header) (*Response, error) {
	var br io.Reader
	if body != nil {
		br = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, ht.baseURL+path, br)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ht.userAgent != "" {
		req.Header.Set("X-Signal-Agent", ht.userAgent)
	}
	req.SetBasicAuth(ht.user, ht.pass)

	resp, err := ht.client.Do(req)
	if err != nil {
		return nil, err
	}
	r := &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
	}

	log.Debugf("[registration] %s %s %d\n", method, path, r.Status)

	return r, nil
}

func (ht *httpTransporter) Get(ctx context.Context, url string) (*Response, error) {
	return ht.do(ctx, "GET", url, nil, nil)
}

func (ht *httpTransporter) Del(ctx context.Context, url string) (*Response, error) {
	return ht.do(ctx, "DELETE", url, nil, nil)
}

func (ht *httpTransporter) PostJSON(ctx context.Context, url string, body []byte) (*Response, error) {
	return ht.do(ctx, "POST", url, body, nil)
}

func (ht *httpTransporter) PostJSONWithHeaders(ctx context.Context, url string, body []byte, header http.Header) (*Response, error) {
	return ht.do(ctx, "POST", url, body, header)
}

func (ht *httpTransporter) PutJSON(ctx context.Context, url string, body []byte) (*Response, error) {
	return ht.do(ctx, "PUT", url, body, nil)
}

func (ht *httpTransporter) PatchJSON(ctx context.Context, url string, body []byte) (*Response, error) {
	return ht.do(ctx, "PATCH", url, body, nil)
}
