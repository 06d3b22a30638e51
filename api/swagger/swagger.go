package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "GrantOS API",
        "description": "Contract approval workflow engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token refresh"},
        {"name": "Contracts", "description": "Contract drafting and lifecycle"},
        {"name": "Workflow", "description": "Publish, review and decision operations"},
        {"name": "Reviews", "description": "Review comments and resolution"},
        {"name": "Assignments", "description": "Role-scoped contract views"},
        {"name": "Archive", "description": "Archival of closed contracts"},
        {"name": "Documents", "description": "Contract attachments"},
        {"name": "Reports", "description": "Aggregation, export and async report jobs"},
        {"name": "Dashboard", "description": "Role-shaped workflow summaries"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts": {
            "get": {
                "tags": ["Contracts"],
                "summary": "List contracts",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "dateRange", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Contracts"],
                "summary": "Create draft contract",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateContractRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}": {
            "get": {
                "tags": ["Contracts"],
                "summary": "Get contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Contracts"],
                "summary": "Partially update contract",
                "description": "Absent fields are untouched; present-but-empty fields clear the value. Requires the last-read version.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateContractRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Version conflict or contract locked"}
                }
            },
            "delete": {
                "tags": ["Contracts"],
                "summary": "Delete draft contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/contracts/{id}/publish": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Publish a draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PublishRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/contracts/{id}/review": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Submit program-manager review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}/decision": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Record director decision",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Decision already recorded"}
                }
            }
        },
        "/contracts/{id}/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Review state for one contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}/reviews/comments": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Add a review comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NewCommentPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviews/comments/{commentId}/resolve": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Resolve a review comment",
                "parameters": [
                    {"name": "commentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveCommentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved"}
                }
            }
        },
        "/contracts/my-drafts": {
            "get": {
                "tags": ["Assignments"],
                "summary": "My draft contracts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/assigned-to-me": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Contracts assigned to me",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/assigned-by-me": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Contracts I assigned to others",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archive/candidates": {
            "get": {
                "tags": ["Archive"],
                "summary": "List archive-eligible contracts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}/archive": {
            "post": {
                "tags": ["Archive"],
                "summary": "Archive one contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArchiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archive/batch": {
            "post": {
                "tags": ["Archive"],
                "summary": "Archive several contracts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchArchiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Attach a document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "description", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}/documents/{docId}/url": {
            "get": {
                "tags": ["Documents"],
                "summary": "Issue a signed download token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "docId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download an attachment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File payload"}
                }
            }
        },
        "/reports/contracts": {
            "get": {
                "tags": ["Reports"],
                "summary": "Contract report with aggregates",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "dateRange", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/contracts/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Synchronous CSV export",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV payload"}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an asynchronous report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/status": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File payload"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Workflow dashboard",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateContractRequest": {
            "type": "object",
            "properties": {
                "grant_name": {"type": "string"},
                "contract_number": {"type": "string"},
                "grantor": {"type": "string"},
                "grantee": {"type": "string"},
                "purpose": {"type": "string"},
                "notes": {"type": "string"},
                "filename": {"type": "string"},
                "total_amount": {"type": "number"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["grant_name"]
        },
        "UpdateContractRequest": {
            "type": "object",
            "properties": {
                "version": {"type": "integer"},
                "grant_name": {"type": "string"},
                "contract_number": {"type": "string"},
                "grantor": {"type": "string"},
                "grantee": {"type": "string"},
                "purpose": {"type": "string"},
                "notes": {"type": "string"},
                "total_amount": {"type": "number"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "agreement_metadata": {"type": "object"},
                "assigned_users": {"$ref": "#/definitions/AssignedUsersPayload"}
            },
            "required": ["version"]
        },
        "AssignedUsersPayload": {
            "type": "object",
            "properties": {
                "pm_users": {"type": "array", "items": {"type": "string"}},
                "pgm_users": {"type": "array", "items": {"type": "string"}},
                "director_users": {"type": "array", "items": {"type": "string"}}
            }
        },
        "PublishRequest": {
            "type": "object",
            "properties": {
                "notes": {"type": "string"},
                "publish_to_review": {"type": "boolean"},
                "publish_directly": {"type": "boolean"}
            }
        },
        "SubmitReviewRequest": {
            "type": "object",
            "properties": {
                "recommendation": {"type": "string", "enum": ["approve", "reject", "modify"]},
                "summary": {"type": "string"},
                "comments": {"type": "array", "items": {"$ref": "#/definitions/NewCommentPayload"}}
            },
            "required": ["recommendation", "summary"]
        },
        "DecisionRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["approve", "reject"]},
                "comments": {"type": "string"},
                "lock_contract": {"type": "boolean"},
                "risk_accepted": {"type": "boolean"},
                "business_sign_off": {"type": "boolean"}
            },
            "required": ["decision", "comments"]
        },
        "NewCommentPayload": {
            "type": "object",
            "properties": {
                "comment": {"type": "string"},
                "comment_type": {"type": "string"},
                "flagged_risk": {"type": "boolean"},
                "flagged_issue": {"type": "boolean"},
                "recommendation": {"type": "string"}
            },
            "required": ["comment"]
        },
        "ResolveCommentRequest": {
            "type": "object",
            "properties": {
                "response": {"type": "string"}
            },
            "required": ["response"]
        },
        "ArchiveRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["reason"]
        },
        "BatchArchiveRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}},
                "reason": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["ids", "reason"]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["contracts", "decisions", "archive"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "search": {"type": "string"},
                "status": {"type": "array", "items": {"type": "string"}},
                "dateRange": {"type": "string"}
            },
            "required": ["type", "format"]
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
