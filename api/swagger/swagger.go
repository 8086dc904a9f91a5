package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly class timetable generation with structured constraints",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Timetables", "description": "Timetable generation, export and background jobs"},
        {"name": "Operations", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Operations"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Operations"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Operations"],
                "summary": "JSON metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a weekly timetable",
                "description": "Builds a periods x days grid. Unfillable slots are null and reported with a PARTIAL_ASSIGNMENT warning.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TimetableEnvelope"}},
                    "400": {"description": "CONFIG_ERROR or VALIDATION_ERROR", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "CONSTRAINT_CONFLICT or SOLVER_ERROR", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "CANCELLED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/export": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate and download a timetable",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/jobs": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Queue a timetable generation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/JobEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue full or scheduler disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/jobs/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a queued timetable generation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/JobEnvelope"}},
                    "404": {"description": "Unknown or expired job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ConstraintRequest": {
            "type": "object",
            "required": ["type"],
            "properties": {
                "type": {"type": "string", "enum": ["FIXED_BREAK", "FORBIDDEN_SLOT", "PREFERRED_SLOT", "NO_DOUBLE_BOOKING"]},
                "period": {"type": "integer", "description": "0-based row in the final day layout"},
                "label": {"type": "string"},
                "subject": {"type": "string"},
                "teacher": {"type": "integer", "description": "0-based teacher index"},
                "day": {"type": "integer", "description": "0-based day index"}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["workingDays", "classesPerDay", "subjects", "teachersPerSubject"],
            "properties": {
                "workingDays": {"type": "integer", "minimum": 1, "maximum": 7},
                "classesPerDay": {"type": "integer", "minimum": 1, "maximum": 12},
                "subjects": {"type": "array", "items": {"type": "string"}},
                "teachersPerSubject": {"type": "array", "items": {"type": "integer"}},
                "constraints": {"type": "array", "items": {"$ref": "#/definitions/ConstraintRequest"}}
            }
        },
        "Warning": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["UNSCHEDULABLE_SUBJECT", "PARTIAL_ASSIGNMENT"]},
                "message": {"type": "string"},
                "subject": {"type": "string"},
                "slots": {"type": "array", "items": {"type": "object", "properties": {"day": {"type": "integer"}, "period": {"type": "integer"}}}}
            }
        },
        "Timetable": {
            "type": "object",
            "properties": {
                "days": {"type": "array", "items": {"type": "string"}},
                "periods": {"type": "array", "items": {"type": "string"}},
                "schedule": {"type": "array", "items": {"type": "array", "items": {"type": "string", "x-nullable": true}}},
                "loads": {"type": "array", "items": {"type": "object"}},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/Warning"}},
                "stats": {"type": "object"}
            }
        },
        "TimetableJob": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED"]},
                "attempts": {"type": "integer"},
                "createdAt": {"type": "string", "format": "date-time"},
                "finishedAt": {"type": "string", "format": "date-time"},
                "result": {"$ref": "#/definitions/Timetable"},
                "error": {"$ref": "#/definitions/APIError"}
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
                "meta": {"type": "object"}
            }
        },
        "TimetableEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/Timetable"},
                "meta": {"type": "object"}
            }
        },
        "JobEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/TimetableJob"}
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
