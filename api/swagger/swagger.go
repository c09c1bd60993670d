package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Capture API",
        "description": "Instructor approvals, scheduling and email for lecture recording",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "CAS sign in and development login"},
        {"name": "Users", "description": "Profiles and admin users"},
        {"name": "Courses", "description": "Approvals, opt outs, scheduling and reports"},
        {"name": "Email", "description": "Templates, queue and sent history"},
        {"name": "Jobs", "description": "Background job status and manual runs"}
    ],
    "paths": {
        "/auth/cas_login_url": {
            "get": {
                "tags": ["Auth"],
                "summary": "CAS login URL",
                "parameters": [{"name": "url", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/auth/dev_auth_login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Development login",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DevLoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"},
                    "404": {"description": "Development login disabled"}
                }
            }
        },
        "/user/my_profile": {
            "get": {
                "tags": ["Users"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/course/approve": {
            "post": {
                "tags": ["Courses"],
                "summary": "Approve recording of a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not an instructor of the section"},
                    "409": {"description": "Already approved"}
                }
            }
        },
        "/course/approvals/{termId}/{sectionId}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Approval status of a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "termId", "in": "path", "required": true, "type": "integer"},
                    {"name": "sectionId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses": {
            "post": {
                "tags": ["Courses"],
                "summary": "Filtered course list",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/course/schedule": {
            "post": {
                "tags": ["Courses"],
                "summary": "Schedule recordings in Kaltura",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Course lacks approvals or a capture room"}
                }
            }
        },
        "/courses/report": {
            "get": {
                "tags": ["Courses"],
                "summary": "Download course report",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "termId", "in": "query", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/email/templates/all": {
            "get": {
                "tags": ["Email"],
                "summary": "List email templates",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/emails/queue": {
            "post": {
                "tags": ["Email"],
                "summary": "Queue emails for sections",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/jobs": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Registered jobs",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/job/{jobKey}/start": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Start a job now",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "jobKey", "in": "path", "required": true, "type": "string"}],
                "responses": {"202": {"description": "Accepted"}}
            }
        }
    },
    "definitions": {
        "DevLoginRequest": {
            "type": "object",
            "properties": {
                "uid": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ApproveRequest": {
            "type": "object",
            "properties": {
                "sectionId": {"type": "integer"},
                "publishType": {"type": "string"},
                "recordingType": {"type": "string"}
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
