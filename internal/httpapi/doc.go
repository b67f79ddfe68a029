// Package httpapi exposes the smart tools over HTTP with gin.
//
// Tool calls take the same JSON arguments as the MCP transport:
//
//	POST   /api/v1/tools/:name     run a tool, body = tool arguments
//	POST   /api/v1/sessions        open a session, body = {"tool": "grabcut"}
//	GET    /api/v1/sessions        list sessions
//	DELETE /api/v1/sessions/:id    close a session
//	GET    /health                 liveness
//	GET    /version                build information
//
// Every response is wrapped in Response. Request errors map to 400, unknown
// tools and sessions to 404, tool failures to 500.
package httpapi
