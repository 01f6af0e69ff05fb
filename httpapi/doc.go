// Package httpapi serves the authentication endpoints over net/http.
//
//	POST /login          {username, password}   -> 200 {access_token, refresh_token}
//	POST /refresh-token  {refresh_token}        -> 200 {access_token, refresh_token}
//	POST /logout         {refresh_token?} + optional bearer -> 204
//	GET  /me             bearer required        -> 200 identity
//	GET  /healthz                               -> 200 | 503
//	GET  /metrics                               -> Prometheus text
//
// Every non-2xx response carries {"error": "<Code>", "message": "..."}.
// Application routes are added with [Server.Mount] and sit behind the
// same bearer guard as /me.
package httpapi
