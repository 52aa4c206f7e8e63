// Package httpclient is the resilient API client used by finbricks front ends.
//
// Every logical call runs through the same pipeline on each attempt:
//
//   - Auth: the current access token is attached as a bearer header.
//   - Dispatch: the request is sent through the configured transport.
//   - Refresh: a 401 on a request that has not been refresh-retried parks the
//     request behind a single in-flight token refresh. When the refresh
//     succeeds the parked requests are replayed with the new token in the
//     order they arrived; when it fails they are all rejected, the session is
//     logged out once and one "session expired" notification is pushed.
//   - Retry: 502, 503 and 504 responses are retried up to MaxRetries times with
//     linear backoff (BaseDelay * attempt). Only idempotent methods, or
//     requests that carry an Idempotency-Key header, are retried by default.
//   - Classify: every terminal failure becomes a *ClassifiedError with a fixed
//     user-facing message, pushed once to the notification sink.
//
// A request is refresh-retried at most once. A 401 on the replay is terminal
// and ends the session, since the refreshed credentials were rejected too.
package httpclient
