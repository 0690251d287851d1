// Package docs holds the Swagger documentation served under /swagger/
package docs

import "github.com/swaggo/swag"

// docTemplate is the served document. Endpoint detail lives in the
// annotations of api_docs.go.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication"},
        {"name": "Tasks"},
        {"name": "Applications"},
        {"name": "Favorites"},
        {"name": "Chat"},
        {"name": "Notifications"},
        {"name": "Profiles"},
        {"name": "Device"}
    ],
    "paths": {
        "/auth/register": {"post": {"tags": ["Authentication"], "summary": "Register a student or company account", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error"}, "409": {"description": "Email already in use"}}}},
        "/auth/login": {"post": {"tags": ["Authentication"], "summary": "Sign in with email and password", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}, "429": {"description": "Too many attempts"}}}},
        "/auth/google/url": {"get": {"tags": ["Authentication"], "summary": "Google consent URL", "responses": {"200": {"description": "OK"}}}},
        "/auth/google": {"post": {"tags": ["Authentication"], "summary": "Sign in with a Google authorization code", "responses": {"200": {"description": "OK"}, "201": {"description": "Account created"}}}},
        "/auth/logout": {"post": {"tags": ["Authentication"], "summary": "Revoke the current token", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}},
        "/auth/me": {"get": {"tags": ["Authentication"], "summary": "Current session", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/password-reset": {"post": {"tags": ["Authentication"], "summary": "Send a password reset email", "responses": {"200": {"description": "OK"}}}},
        "/auth/password-reset/confirm": {"post": {"tags": ["Authentication"], "summary": "Set a new password", "responses": {"204": {"description": "No Content"}}}},
        "/tasks": {"get": {"tags": ["Tasks"], "summary": "Visible tasks", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}, "post": {"tags": ["Tasks"], "summary": "Create a task", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}},
        "/tasks/{taskId}": {"get": {"tags": ["Tasks"], "summary": "Task detail", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/tasks/{taskId}/application": {"post": {"tags": ["Applications"], "summary": "Apply to a task", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Already applied"}}}},
        "/applications/{applicationId}/approve": {"post": {"tags": ["Applications"], "summary": "Approve and open a chat room", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/chats": {"get": {"tags": ["Chat"], "summary": "Chat rooms of the caller", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/notifications": {"get": {"tags": ["Notifications"], "summary": "Notifications of the caller", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "BridgeUs API",
	Description:      "Micro-task marketplace connecting students and companies.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
