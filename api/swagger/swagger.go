package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutor Match API",
        "description": "Tutor ranking and session assignment for peer tutoring coordinators.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Tutors", "description": "Tutor profiles and capacity"},
        {"name": "Requests", "description": "Tutee requests and their sessions"},
        {"name": "Matching", "description": "Ranked tutor candidates"},
        {"name": "Sessions", "description": "Assignment lifecycle"},
        {"name": "Admin", "description": "Term reset, load audit, exports"}
    ],
    "paths": {
        "/tutors": {
            "get": {
                "tags": ["Tutors"],
                "summary": "List tutors",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "accepting", "in": "query", "type": "boolean"},
                    {"name": "subject", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Tutors"],
                "summary": "Register tutor",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TutorPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutors/{id}": {
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "get": {
                "tags": ["Tutors"],
                "summary": "Get tutor",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Tutors"],
                "summary": "Update tutor profile",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TutorPayload"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Tutors"],
                "summary": "Deactivate tutor",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List tutoring requests",
                "parameters": [
                    {"name": "kind", "in": "query", "type": "string", "enum": ["TERM", "SINGLE"]},
                    {"name": "status", "in": "query", "type": "string", "enum": ["Pending", "Matched", "No Match"]},
                    {"name": "tutor_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit tutoring request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestPayload"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/{id}": {
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "get": {
                "tags": ["Requests"],
                "summary": "Get request with sessions",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Requests"],
                "summary": "Delete request and release its tutors",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/{id}/candidates": {
            "get": {
                "tags": ["Matching"],
                "summary": "Rank tutors for a request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "session_id", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/{id}/assign": {
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "post": {
                "tags": ["Sessions"],
                "summary": "Match a session to a tutor",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Tutor inactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Return a session to Pending",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/{id}/no-match": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Mark a session as No Match",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/{id}": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete a session",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/admin/term/reset": {
            "post": {
                "tags": ["Admin"],
                "summary": "End-of-term reset",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"type": "object", "properties": {"close_intake": {"type": "boolean"}}}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/admin/audits/load": {
            "post": {
                "tags": ["Admin"],
                "summary": "Audit tutee counts",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"type": "object", "properties": {"repair": {"type": "boolean"}}}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/admin/reports/roster": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export tutor roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "view", "in": "query", "type": "string", "enum": ["loads", "assignments"]},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Aggregated service metrics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "SubjectTopics": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "topics": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Schedule": {
            "type": "object",
            "description": "Day code (M,T,W,R,F,S) to list of timeslots such as 07:30-09:00",
            "additionalProperties": {"type": "array", "items": {"type": "string"}}
        },
        "TutorPayload": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/SubjectTopics"}},
                "availability": {"$ref": "#/definitions/Schedule"},
                "max_tutee_count": {"type": "integer"},
                "active": {"type": "boolean"}
            },
            "required": ["email", "full_name", "subjects"]
        },
        "SessionInput": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "topic": {"type": "string"}
            },
            "required": ["subject"]
        },
        "CreateRequestPayload": {
            "type": "object",
            "properties": {
                "tutee_name": {"type": "string"},
                "tutee_email": {"type": "string"},
                "kind": {"type": "string", "enum": ["TERM", "SINGLE"]},
                "preferred_tutor_id": {"type": "string"},
                "availability": {"$ref": "#/definitions/Schedule"},
                "notes": {"type": "string"},
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/SessionInput"}}
            },
            "required": ["tutee_name", "tutee_email", "kind", "sessions"]
        },
        "AssignSessionRequest": {
            "type": "object",
            "properties": {"tutor_id": {"type": "string"}},
            "required": ["tutor_id"]
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
