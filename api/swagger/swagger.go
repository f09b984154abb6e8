package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Section Swap API",
        "description": "Matches students exchanging class sections via direct swaps and rotation chains",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student roster and section preferences"},
        {"name": "Swaps", "description": "Swap search, commit and reporting"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "batch", "in": "query", "type": "string"},
                    {"name": "section", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "withMatches", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student by ID",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/students/{id}/preferences": {
            "put": {
                "tags": ["Students"],
                "summary": "Replace a student's desired sections",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePreferencesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/swaps/search": {
            "post": {
                "tags": ["Swaps"],
                "summary": "Search for a swap plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FindSwapRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Requester not found"}
                }
            }
        },
        "/api/v1/swaps/commit": {
            "post": {
                "tags": ["Swaps"],
                "summary": "Commit a previously found swap plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommitSwapRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Plan is stale, search again"}
                }
            }
        },
        "/api/v1/swaps/history": {
            "get": {
                "tags": ["Swaps"],
                "summary": "List committed swaps",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/swaps/matches": {
            "get": {
                "tags": ["Swaps"],
                "summary": "Per-student swap availability flags",
                "parameters": [
                    {"name": "batch", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/swaps/matches/export": {
            "get": {
                "tags": ["Swaps"],
                "summary": "Export the match listing as CSV or PDF",
                "parameters": [
                    {"name": "batch", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        }
    },
    "definitions": {
        "UpdatePreferencesRequest": {
            "type": "object",
            "required": ["desiredSections"],
            "properties": {
                "desiredSections": {"type": "array", "items": {"type": "string"}}
            }
        },
        "FindSwapRequest": {
            "type": "object",
            "properties": {
                "requesterId": {"type": "string"},
                "targetSections": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CommitSwapRequest": {
            "type": "object",
            "required": ["requesterId", "plan"],
            "properties": {
                "requesterId": {"type": "string"},
                "plan": {"$ref": "#/definitions/SwapPlan"}
            }
        },
        "SwapStep": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "studentName": {"type": "string"},
                "fromSection": {"type": "string"},
                "toSection": {"type": "string"},
                "isRequester": {"type": "boolean"}
            }
        },
        "SwapPlan": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["DIRECT", "ROTATION", "NONE"]},
                "targetSection": {"type": "string"},
                "partner": {"type": "object"},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/SwapStep"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
