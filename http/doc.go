// Package http is the transport used by the identity SDK to talk to token,
// discovery and device-registration endpoints.
//
// Each call is one logical request. The client opens a fresh Connection per
// attempt through a ConnectionFactory and reads no more of the outcome than it
// needs: a successful exchange never touches the error stream or the date
// header, and a socket timeout reads nothing beyond the input stream.
//
// Retries
//   - At most one retry, controlled via Builder.WithRetry / WithoutRetry.
//   - Triggered by status 500, 503 or 504, or by a socket timeout, on the first attempt.
//   - Every other status is returned as a Response, never as an error.
//   - A retryable status on the second attempt is returned as an HTTPError
//     carrying the status and body.
//
// Backoff
//   - A fixed delay (DefaultRetryDelay unless set) separates the attempts.
//   - The wait ends early with a NetworkError when the context is canceled.
//
// Notes
//   - GET, HEAD and TRACE never write a body or a Content-Type header.
//   - The first connection is closed before the second is opened.
//   - Correlation headers, basic auth and interceptor output are computed once and sent on both attempts.
//   - Response interceptors run once, on the final Response only.
//   - Logged URLs and payloads have tokens, secrets and authorization codes masked.
package http
