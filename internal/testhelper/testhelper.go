// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper holds fakes shared by the package tests.
package testhelper

import (
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

// TestOnlineAPIURL is an endpoint that only online integration tests may reach.
const TestOnlineAPIURL = "https://example.com/"

// MockRoundTripper replaces the transport of an HTTP client with a function.
type MockRoundTripper struct {
	Fn func(*http.Request) (*http.Response, error)
}

// RoundTrip satisfies the http.RoundTripper interface.
func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// JSONResponder returns a MockRoundTripper function that answers every request with body.
func JSONResponder(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}
}

// PerformIntegrationTests skips the calling test unless PERFORM_INTEGRATION_TESTS is set.
func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if os.Getenv("PERFORM_INTEGRATION_TESTS") == "" {
		t.Skip("skipping online integration test, set PERFORM_INTEGRATION_TESTS to run it")
	}
}
