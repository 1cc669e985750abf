// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {"tags": ["health"], "summary": "Liveness probe", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.HealthResponse"}}}}
        },
        "/healthz/db": {
            "get": {"tags": ["health"], "summary": "Database readiness probe", "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.DBHealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.DBHealthResponse"}}}}
        },
        "/api/users/{user_id}/sync": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["sync"], "summary": "Sync mailbox",
                "description": "Fetches the most recent messages, summarizes them and extracts tasks. With fallback=sample, labeled sample data replaces an unreachable mailbox when the server allows it.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Set to sample to opt into sample data", "name": "fallback", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SyncResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.SyncResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.SyncResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/models.SyncResponse"}}}}
        },
        "/api/users/{user_id}/sync/last": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["sync"], "summary": "Last sync result", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SyncResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/api/users/{user_id}/sync/runs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["sync"], "summary": "Sync history", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "integer", "description": "Max runs (default 20, max 100)", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SyncRunsResponse"}}}}
        },
        "/api/users/{user_id}/sync/jobs": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["sync"], "summary": "Trigger sync job", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}, "500": {"description": "Internal Server Error"}}}
        },
        "/api/users/{user_id}/sync/jobs/{name}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["sync"], "summary": "Get sync job status", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Job name", "name": "name", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/api/users/{user_id}/settings/email": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Get email settings", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Save email settings",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"description": "Mailbox settings", "name": "settings", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.EmailSettings"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/api/users/{user_id}/settings/email/test": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Test email settings",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"description": "Mailbox settings", "name": "settings", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.EmailSettings"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ConnectionTestResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ConnectionTestResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/models.ConnectionTestResponse"}}}}
        },
        "/api/users/{user_id}/settings/ai": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Get AI settings", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Save AI settings",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"description": "AI settings", "name": "settings", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.AISettings"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/api/users/{user_id}/emails": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["emails"], "summary": "List emails", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Text match on subject, sender or body", "name": "q", "in": "query"},
                    {"type": "boolean", "description": "Only unread (true) or read (false) emails", "name": "unread", "in": "query"},
                    {"type": "boolean", "description": "Filter on the starred flag", "name": "starred", "in": "query"},
                    {"type": "integer", "description": "Page size (default 50, max 200)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Rows to skip", "name": "offset", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EmailListResponse"}}}}
        },
        "/api/users/{user_id}/emails/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["emails"], "summary": "Get email", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Email ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EmailDetailResponse"}}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["emails"], "summary": "Update email flags",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Email ID", "name": "id", "in": "path", "required": true},
                    {"description": "Flags to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdateEmailRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EmailDetailResponse"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["emails"], "summary": "Delete email",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Email ID", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/api/users/{user_id}/tasks": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["tasks"], "summary": "List tasks", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "boolean", "description": "Filter on completion", "name": "completed", "in": "query"},
                    {"type": "string", "description": "Only tasks of this email", "name": "email_id", "in": "query"},
                    {"type": "string", "description": "Due on or after (RFC 3339 or YYYY-MM-DD)", "name": "from", "in": "query"},
                    {"type": "string", "description": "Due before (RFC 3339 or YYYY-MM-DD)", "name": "to", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TaskListResponse"}}}}
        },
        "/api/users/{user_id}/tasks/{id}": {
            "patch": {"security": [{"BearerAuth": []}], "tags": ["tasks"], "summary": "Update task",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdateTaskRequest"}}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/api/users/{user_id}/stats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["stats"], "summary": "Dashboard statistics", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatsResponse"}}}}
        },
        "/api/users/{user_id}/search": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["search"], "summary": "Semantic email search", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "description": "Search text", "name": "q", "in": "query", "required": true},
                    {"type": "integer", "description": "Max results (default 10, max 50)", "name": "limit", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SearchResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        }
    },
    "definitions": {
        "models.HealthResponse": {"type": "object", "properties": {
            "status": {"type": "string", "example": "healthy"},
            "timestamp": {"type": "string", "example": "2023-01-01T00:00:00Z"},
            "version": {"type": "string", "example": "1.0.0"}}},
        "models.DBHealthResponse": {"type": "object", "properties": {
            "status": {"type": "string", "example": "healthy"},
            "timestamp": {"type": "string"},
            "connected": {"type": "boolean"},
            "latency": {"type": "string", "example": "1ms"},
            "error": {"type": "string"}}},
        "models.ErrorResponse": {"type": "object", "properties": {
            "success": {"type": "boolean", "example": false},
            "error": {"type": "string", "example": "email settings not configured"}}},
        "models.MessageResult": {"type": "object", "properties": {
            "status": {"type": "string", "example": "success"},
            "external_id": {"type": "string"},
            "subject": {"type": "string"},
            "email_id": {"type": "string"},
            "tasks_created": {"type": "integer"},
            "error": {"type": "string"}}},
        "models.SyncResponse": {"type": "object", "properties": {
            "success": {"type": "boolean", "example": true},
            "processedEmails": {"type": "integer", "example": 2},
            "skipped": {"type": "integer"},
            "failed": {"type": "integer"},
            "partial": {"type": "integer"},
            "usedFallback": {"type": "boolean"},
            "cancelled": {"type": "boolean"},
            "results": {"type": "array", "items": {"$ref": "#/definitions/models.MessageResult"}},
            "error": {"type": "string"},
            "message": {"type": "string", "example": "Sync completed"}}},
        "models.SyncRunsResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "runs": {"type": "array", "items": {"type": "object"}}}},
        "models.EmailSettings": {"type": "object", "properties": {
            "protocol": {"type": "string", "example": "imap"},
            "server": {"type": "string", "example": "imap.gmail.com"},
            "port": {"type": "integer", "example": 993},
            "username": {"type": "string"},
            "password": {"type": "string"},
            "use_ssl": {"type": "boolean", "example": true},
            "fetch_frequency": {"type": "string", "example": "12h"}}},
        "models.AISettings": {"type": "object", "properties": {
            "process_email_body": {"type": "boolean", "example": true},
            "extract_action_items": {"type": "boolean", "example": true},
            "mark_email_as_read": {"type": "boolean", "example": false}}},
        "models.ConnectionTestResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "message": {"type": "string"},
            "messages": {"type": "integer", "example": 42}}},
        "models.EmailListResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "emails": {"type": "array", "items": {"type": "object"}},
            "count": {"type": "integer"}}},
        "models.EmailDetailResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "email": {"type": "object"},
            "tasks": {"type": "array", "items": {"type": "object"}}}},
        "models.UpdateEmailRequest": {"type": "object", "properties": {
            "read": {"type": "boolean"},
            "starred": {"type": "boolean"}}},
        "models.TaskListResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "tasks": {"type": "array", "items": {"type": "object"}},
            "count": {"type": "integer"}}},
        "models.UpdateTaskRequest": {"type": "object", "properties": {
            "completed": {"type": "boolean"},
            "priority": {"type": "string", "example": "high"},
            "due_date": {"type": "string"},
            "clear_due_date": {"type": "boolean"}}},
        "models.StatsResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "stats": {"type": "object"}}},
        "models.SearchResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "results": {"type": "array", "items": {"type": "object"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Mailtriage API",
	Description:      "Mailbox ingestion with AI summaries and task extraction",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
