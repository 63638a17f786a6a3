package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Todo API",
        "description": "Todo collections behind token authentication, admission control and input validation",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Registration, login and session tokens"},
        {"name": "Collections", "description": "Todo collections of the current user"},
        {"name": "Todos", "description": "Standard, deadline and saving todos"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/AuthEnvelope"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "Username or email taken", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthEnvelope"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/collections": {
            "get": {
                "tags": ["Collections"],
                "summary": "List collections",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Collections"],
                "summary": "Create collection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CollectionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/collections/{id}": {
            "get": {
                "tags": ["Collections"],
                "summary": "Get collection",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            },
            "put": {
                "tags": ["Collections"],
                "summary": "Update collection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CollectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            },
            "delete": {
                "tags": ["Collections"],
                "summary": "Delete collection and its todos",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/collections/{id}/tasks": {
            "get": {
                "tags": ["Todos"],
                "summary": "List todos of a collection",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Todos"],
                "summary": "Create todo",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTodoRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/tasks/{taskId}": {
            "put": {
                "tags": ["Todos"],
                "summary": "Update todo",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "taskId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTodoRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            },
            "delete": {
                "tags": ["Todos"],
                "summary": "Delete todo",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "taskId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/tasks/{taskId}/complete": {
            "post": {
                "tags": ["Todos"],
                "summary": "Complete todo",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "taskId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tasks/{taskId}/add-money": {
            "post": {
                "tags": ["Todos"],
                "summary": "Deposit into a saving todo",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "taskId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddMoneyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Not a saving todo or invalid amount", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["username", "name", "email", "password", "confirmPassword"],
            "properties": {
                "username": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "confirmPassword": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refreshToken": {"type": "string"}
            }
        },
        "CollectionRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "CreateTodoRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "type": {"type": "string", "enum": ["STANDARD", "DEADLINE", "SAVING"]},
                "dueDate": {"type": "string", "format": "date"},
                "targetAmount": {"type": "number"},
                "currentAmount": {"type": "number"}
            }
        },
        "UpdateTodoRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "completed": {"type": "boolean"},
                "type": {"type": "string", "enum": ["STANDARD", "DEADLINE", "SAVING"]},
                "dueDate": {"type": "string", "format": "date"},
                "targetAmount": {"type": "number"},
                "currentAmount": {"type": "number"}
            }
        },
        "AddMoneyRequest": {
            "type": "object",
            "required": ["amount"],
            "properties": {
                "amount": {"type": "number"}
            }
        },
        "AuthResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "tokenType": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "issuedAt": {"type": "string", "format": "date-time"},
                "user": {"type": "object"}
            }
        },
        "AuthEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/AuthResponse"}
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
