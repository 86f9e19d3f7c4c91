// Package httputil provides HTTP utilities for standardized request/response handling.
//
// Every error leaves the service in the same envelope:
//
//	{"success":false,"error":{"code":"PERMISSION_DENIED","message":"..."},"timestamp":"...","requestId":"..."}
//
// and successful payloads are wrapped as {"success":true,"data":...,"meta":{...}}.
//
//	httputil.WriteData(w, namespaces)
//	httputil.WriteAPIError(w, r, http.StatusForbidden, "PERMISSION_DENIED", msg, nil)
//
// The middleware here (RequestID, Logging, Recovery, Chain) is composed by pkg/api.
package httputil
