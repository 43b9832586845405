package http

// Response is what a test case is judged on: the final status code after
// redirects.
type Response struct {
	StatusCode int
}
