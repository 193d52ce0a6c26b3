// Package httputil provides the standard JSON response envelope for the
// admin API. Every endpoint responds with {"success": true, "data": ...}
// or {"success": false, "error": ...}; callers never see raw errors or
// stack traces.
package httputil
