package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Occurrences API",
        "description": "Student occurrence tracking with role-based follow-up",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Occurrences", "description": "Occurrence records and follow-up"},
        {"name": "References", "description": "Teachers, rooms and students"},
        {"name": "Cache", "description": "Snapshot cache control"}
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
                "summary": "Readiness check, pings the occurrence store",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/occurrences": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "List occurrences",
                "parameters": [
                    {"name": "tutor", "in": "query", "type": "string"},
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Display status"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Occurrences"],
                "summary": "Record occurrence",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOccurrenceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Too many requests", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/occurrences/filters": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "List filter choices",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/occurrences/{id}": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "Get occurrence detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/occurrences/{id}/follow-up": {
            "patch": {
                "tags": ["Occurrences"],
                "summary": "Record follow-up remarks",
                "description": "Slots left out of the payload are unchanged. An empty remark reopens the slot.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "X-Follow-Up-Role", "in": "header", "type": "string", "enum": ["view", "tutor", "coordination", "management", "edit_all"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FollowUpRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Role cannot edit a requested slot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/references/teachers": {
            "get": {
                "tags": ["References"],
                "summary": "List teachers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/references/rooms": {
            "get": {
                "tags": ["References"],
                "summary": "List rooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/references/students": {
            "get": {
                "tags": ["References"],
                "summary": "List students with their tutors",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/cache/stats": {
            "get": {
                "tags": ["Cache"],
                "summary": "Snapshot cache statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/cache/invalidate": {
            "post": {
                "tags": ["Cache"],
                "summary": "Drop every cached snapshot",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "FollowUp": {
            "type": "object",
            "properties": {
                "remark": {"type": "string"},
                "flag": {"type": "string", "enum": ["pending", "done"]},
                "completed_at": {"type": "string", "format": "date-time"}
            }
        },
        "OccurrenceView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "teacher": {"type": "string"},
                "room": {"type": "string"},
                "student": {"type": "string"},
                "tutor": {"type": "string"},
                "description": {"type": "string"},
                "teacher_remark": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "tutor_follow_up": {"$ref": "#/definitions/FollowUp"},
                "coordination_follow_up": {"$ref": "#/definitions/FollowUp"},
                "management_follow_up": {"$ref": "#/definitions/FollowUp"},
                "status": {"type": "string", "enum": ["Aberta", "Atenção", "Assinada"]},
                "display_status": {"type": "string", "enum": ["Atenção", "Finalizada", "Assinada"]},
                "severity": {"type": "string", "enum": ["success", "danger", "warning", "secondary"]}
            }
        },
        "CreateOccurrenceRequest": {
            "type": "object",
            "properties": {
                "teacher": {"type": "string"},
                "room": {"type": "string"},
                "student": {"type": "string"},
                "description": {"type": "string"},
                "teacher_remark": {"type": "string"},
                "require_tutor": {"type": "boolean"},
                "require_coordination": {"type": "boolean"},
                "require_management": {"type": "boolean"}
            },
            "required": ["teacher", "room", "student", "description"]
        },
        "FollowUpRequest": {
            "type": "object",
            "properties": {
                "tutor": {"type": "string"},
                "coordination": {"type": "string"},
                "management": {"type": "string"}
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
                "meta": {"type": "object", "properties": {"notices": {"type": "array", "items": {"type": "string"}}}}
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
