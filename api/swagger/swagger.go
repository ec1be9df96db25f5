package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Phonebook API",
        "description": "Staff directory with a per person change history",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "People", "description": "Directory records"},
        {"name": "Changes", "description": "Per person change history"},
        {"name": "Lookups", "description": "Roles and departments"}
    ],
    "paths": {
        "/roles": {
            "get": {
                "tags": ["Lookups"],
                "summary": "List roles",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/departments": {
            "get": {
                "tags": ["Lookups"],
                "summary": "List departments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people": {
            "get": {
                "tags": ["People"],
                "summary": "List people",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "deleted", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["People"],
                "summary": "Create person",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "first_name", "in": "formData", "type": "string", "required": true},
                    {"name": "middle_name", "in": "formData", "type": "string"},
                    {"name": "last_name", "in": "formData", "type": "string", "required": true},
                    {"name": "email", "in": "formData", "type": "string", "required": true},
                    {"name": "personal_phone", "in": "formData", "type": "string", "required": true},
                    {"name": "business_phone", "in": "formData", "type": "string"},
                    {"name": "birthdate", "in": "formData", "type": "string", "description": "dd.MM."},
                    {"name": "hire_date", "in": "formData", "type": "string", "required": true, "description": "dd.MM.yyyy."},
                    {"name": "role", "in": "formData", "type": "string", "required": true},
                    {"name": "department", "in": "formData", "type": "string", "required": true},
                    {"name": "subject_group", "in": "formData", "type": "string"},
                    {"name": "subject", "in": "formData", "type": "string"},
                    {"name": "photo", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already used", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Photo could not be decoded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}": {
            "get": {
                "tags": ["People"],
                "summary": "Get person detail",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["People"],
                "summary": "Edit person",
                "description": "Applies the edit and records one change log entry describing every modified field.",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "first_name", "in": "formData", "type": "string", "required": true},
                    {"name": "middle_name", "in": "formData", "type": "string"},
                    {"name": "last_name", "in": "formData", "type": "string", "required": true},
                    {"name": "email", "in": "formData", "type": "string", "required": true},
                    {"name": "personal_phone", "in": "formData", "type": "string", "required": true},
                    {"name": "business_phone", "in": "formData", "type": "string"},
                    {"name": "birthdate", "in": "formData", "type": "string"},
                    {"name": "hire_date", "in": "formData", "type": "string", "required": true},
                    {"name": "role", "in": "formData", "type": "string", "required": true},
                    {"name": "department", "in": "formData", "type": "string", "required": true},
                    {"name": "subject_group", "in": "formData", "type": "string"},
                    {"name": "subject", "in": "formData", "type": "string"},
                    {"name": "photo", "in": "formData", "type": "file"},
                    {"name": "remove_photo", "in": "formData", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PersonUpdateEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Person deleted or email already used", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Photo could not be decoded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["People"],
                "summary": "Soft delete person",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeleteRequest"}}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Already deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}/restore": {
            "post": {
                "tags": ["People"],
                "summary": "Restore soft deleted person",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}/changes": {
            "get": {
                "tags": ["Changes"],
                "summary": "Full change history, newest first",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ChangeLogListEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}/changes/latest": {
            "get": {
                "tags": ["Changes"],
                "summary": "Latest change of a person",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ChangeLogEnvelope"}},
                    "404": {"description": "No changes recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}/changes/export": {
            "get": {
                "tags": ["Changes"],
                "summary": "Download change history",
                "produces": [
                    "text/csv",
                    "application/pdf",
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "DeleteRequest": {
            "type": "object",
            "properties": {
                "leave_date": {"type": "string", "description": "dd.MM.yyyy."},
                "comment": {"type": "string"}
            },
            "required": ["leave_date"]
        },
        "ChangeLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "person_id": {"type": "string"},
                "descriptions": {"type": "array", "items": {"type": "string"}},
                "changed_by": {"type": "string"},
                "changed_at": {"type": "string", "format": "date-time"}
            }
        },
        "ChangeLogEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ChangeLog"}
            }
        },
        "ChangeLogListEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/ChangeLog"}},
                "meta": {"type": "object"}
            }
        },
        "PersonUpdateEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object",
                    "properties": {
                        "person": {"type": "object"},
                        "changes": {"type": "array", "items": {"type": "string"}}
                    }
                }
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
