package ports

import "net/http"

// HTTPClient sends lobby requests. *http.Client satisfies it; tests swap in
// an httptest server's client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
