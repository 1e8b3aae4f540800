/*-
 * Copyright (c) 2021-2023, F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bigiqclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
)

const bigIQClientPrefix = "[BIG-IQ Client]"

// TokenProvider supplies the X-F5-Auth-Token used on every request.
type TokenProvider interface {
	GetToken() string
}

// RestResponse carries the status code and decoded body of a BIG-IQ
// response. Raw holds the undecoded body for error reporting.
type RestResponse struct {
	Code     int
	Contents map[string]interface{}
	Raw      []byte
}

// Client is a thin wrapper over the BIG-IQ REST API.
type Client struct {
	ServerURL     string
	HttpClient    *http.Client
	tokenProvider TokenProvider
}

// New creates a BIG-IQ REST client. Paths passed to the request methods
// are appended to serverURL as-is.
func New(serverURL string, tp TokenProvider, httpClient *http.Client) *Client {
	return &Client{
		ServerURL:     serverURL,
		HttpClient:    httpClient,
		tokenProvider: tp,
	}
}

// Get performs a GET request against the given path.
func (c *Client) Get(path string) (*RestResponse, error) {
	return c.do("GET", path, nil)
}

// Post performs a POST request with a JSON body against the given path.
func (c *Client) Post(path string, body interface{}) (*RestResponse, error) {
	return c.do("POST", path, body)
}

// Delete performs a DELETE request against the given path. BIG-IQ
// expects a JSON body on some deletes, so body may be non-nil.
func (c *Client) Delete(path string, body interface{}) (*RestResponse, error) {
	return c.do("DELETE", path, body)
}

func (c *Client) do(method, path string, body interface{}) (*RestResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body failed: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.ServerURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating new HTTP request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokenProvider != nil {
		req.Header.Set("X-F5-Auth-Token", c.tokenProvider.GetToken())
	}

	log.Debugf("%s %s %s", bigIQClientPrefix, method, path)

	httpResp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("REST call error: %v", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("REST call response error: %v", err)
	}

	resp := &RestResponse{
		Code: httpResp.StatusCode,
		Raw:  raw,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &resp.Contents); err != nil {
			// Non-JSON bodies are kept raw; callers surface them in
			// error messages.
			log.Debugf("%s Response body is not a JSON object: %v", bigIQClientPrefix, err)
		}
	}
	return resp, nil
}
