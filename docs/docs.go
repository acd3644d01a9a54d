// Package docs holds the OpenAPI description served at /swagger.
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
        "/api/jobs": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Queue a job that turns a YouTube or direct video URL into captioned short clips",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Create clip job",
                "parameters": [
                    {"description": "Job request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CreateJobRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/model.CreateJobResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/upload": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Upload a video file and queue a clip job for it",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Create clip job from upload",
                "parameters": [
                    {"type": "file", "description": "Video file (mp4, mov, mkv, webm)", "name": "file", "in": "formData", "required": true},
                    {"type": "integer", "description": "Clip length in seconds (5-600)", "name": "clipDuration", "in": "formData"},
                    {"type": "integer", "description": "Number of clips (1-20)", "name": "maxClips", "in": "formData"},
                    {"type": "string", "description": "9:16, 16:9 or 1:1", "name": "aspectRatio", "in": "formData"},
                    {"type": "boolean", "description": "Burn captions into clips", "name": "addCaptions", "in": "formData"},
                    {"type": "string", "description": "classic, bold, outline or glow", "name": "captionStyle", "in": "formData"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/model.CreateJobResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{jobId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the state, step and progress of a clip job",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get job status",
                "parameters": [{"type": "string", "description": "Job ID", "name": "jobId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.JobStatusResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{jobId}/result": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the rendered clips of a completed job",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get job result",
                "parameters": [{"type": "string", "description": "Job ID", "name": "jobId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.JobResultResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{jobId}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Ask a queued or processing job to stop at its next stage boundary",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Cancel job",
                "parameters": [{"type": "string", "description": "Job ID", "name": "jobId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.CancelJobResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/files/{jobId}/{filename}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Serve a rendered clip, thumbnail, caption file or archive. Videos are served inline, other files as attachments.",
                "produces": ["application/octet-stream"],
                "tags": ["Files"],
                "summary": "Download job artifact",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobId", "in": "path", "required": true},
                    {"type": "string", "description": "Artifact file name", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "model.CreateJobRequest": {
            "type": "object",
            "required": ["url"],
            "properties": {
                "url": {"type": "string", "maxLength": 2048},
                "clipDuration": {"type": "integer", "minimum": 5, "maximum": 600},
                "maxClips": {"type": "integer", "minimum": 1, "maximum": 20},
                "aspectRatio": {"type": "string", "enum": ["9:16", "16:9", "1:1"]},
                "addCaptions": {"type": "boolean"},
                "captionStyle": {"type": "string", "enum": ["classic", "bold", "outline", "glow"]}
            }
        },
        "model.CreateJobResponse": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "status": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.SelectedClip": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "start": {"type": "number"},
                "end": {"type": "number"},
                "duration": {"type": "number"},
                "text": {"type": "string"},
                "score": {"type": "number"},
                "filename": {"type": "string"},
                "url": {"type": "string"},
                "thumbnail": {"type": "string"},
                "thumbnailUrl": {"type": "string"}
            }
        },
        "model.Artifact": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "url": {"type": "string"},
                "size": {"type": "integer"}
            }
        },
        "model.SkippedClip": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "model.JobStatusResponse": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "status": {"type": "string", "enum": ["queued", "processing", "completed", "failed"]},
                "currentStep": {"type": "string"},
                "progress": {"type": "integer"},
                "clips": {"type": "array", "items": {"$ref": "#/definitions/model.SelectedClip"}},
                "errorCode": {"type": "string"},
                "errorMessage": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "model.JobResultResponse": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "clips": {"type": "array", "items": {"$ref": "#/definitions/model.SelectedClip"}},
                "archive": {"$ref": "#/definitions/model.Artifact"},
                "skipped": {"type": "array", "items": {"$ref": "#/definitions/model.SkippedClip"}},
                "completedAt": {"type": "string"}
            }
        },
        "model.CancelJobResponse": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "details": {}
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Enter your bearer token in the format **Bearer &lt;token&gt;**",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "ClipForge API",
	Description:      "Turns long-form videos into ranked, captioned short clips.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
