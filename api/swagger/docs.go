// Package swagger registers the OpenAPI description of the agriqa HTTP API.
package swagger

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
        "/chat": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qa"],
                "summary": "Answer a question with cited data sources",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorBody"}},
                    "408": {"description": "Request Timeout", "schema": {"$ref": "#/definitions/response.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/entities": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qa"],
                "summary": "Extract states, districts, crops and years from a question",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Entities"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/conversations/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["qa"],
                "summary": "Conversation history (not stored)",
                "parameters": [
                    {"type": "string", "in": "path", "name": "id", "required": true}
                ],
                "responses": {
                    "501": {"description": "Not Implemented", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/datasets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["datasets"],
                "summary": "List catalog datasets with cache status",
                "parameters": [
                    {"type": "string", "in": "query", "name": "category", "enum": ["agriculture", "climate"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.DatasetInfo"}}}
                }
            }
        },
        "/datasets/query": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["datasets"],
                "summary": "Query a dataset with equality and membership filters",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.DatasetQueryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.DatasetQueryResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/datasets/{key}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["datasets"],
                "summary": "Describe one dataset",
                "parameters": [
                    {"type": "string", "in": "path", "name": "key", "required": true},
                    {"type": "string", "in": "query", "name": "q", "description": "Question whose related indexed context is returned"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.DatasetInfo"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/datasets/{key}/refresh": {
            "post": {
                "produces": ["application/json"],
                "tags": ["datasets"],
                "summary": "Refetch a dataset from its source",
                "parameters": [
                    {"type": "string", "in": "path", "name": "key", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.DatasetInfo"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["application/json", "text/plain"],
                "tags": ["ops"],
                "summary": "Pipeline counters, as JSON or Prometheus text",
                "parameters": [
                    {"type": "string", "in": "query", "name": "format", "enum": ["json", "prometheus"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/admin/index/rebuild": {
            "post": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Drop and rebuild the relevance index",
                "responses": {
                    "200": {"description": "OK"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/admin/cache": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Clear the Redis caches",
                "responses": {
                    "200": {"description": "OK"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "handler.ChatRequest": {
            "type": "object",
            "required": ["query"],
            "properties": {
                "query": {"type": "string", "maxLength": 2000},
                "conversation_id": {"type": "string", "maxLength": 128}
            }
        },
        "handler.DatasetQueryRequest": {
            "type": "object",
            "required": ["dataset_key"],
            "properties": {
                "dataset_key": {"type": "string"},
                "filters": {"type": "object", "additionalProperties": {}},
                "limit": {"type": "integer", "minimum": 1, "maximum": 1000},
                "offset": {"type": "integer", "minimum": 0}
            }
        },
        "handler.DatasetQueryResponse": {
            "type": "object",
            "properties": {
                "dataset_key": {"type": "string"},
                "row_count": {"type": "integer"},
                "columns": {"type": "array", "items": {"type": "string"}},
                "rows": {"type": "array", "items": {"type": "object", "additionalProperties": {}}}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["healthy", "degraded"]},
                "version": {"type": "string"},
                "uptime_seconds": {"type": "number"},
                "services": {"type": "object", "additionalProperties": {"type": "string"}},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "model.DataSource": {
            "type": "object",
            "properties": {
                "dataset_id": {"type": "string"},
                "dataset_name": {"type": "string"},
                "organization": {"type": "string"},
                "url": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "model.Citation": {
            "type": "object",
            "properties": {
                "claim": {"type": "string"},
                "sources": {"type": "array", "items": {"$ref": "#/definitions/model.DataSource"}},
                "confidence": {"type": "number"}
            }
        },
        "model.Response": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "citations": {"type": "array", "items": {"$ref": "#/definitions/model.Citation"}},
                "query_type": {"type": "string"},
                "sub_queries": {"type": "array", "items": {"type": "string"}},
                "data_sources_used": {"type": "array", "items": {"$ref": "#/definitions/model.DataSource"}},
                "confidence": {"type": "number"},
                "processing_time": {"type": "number"},
                "conversation_id": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "model.Entities": {
            "type": "object",
            "properties": {
                "states": {"type": "array", "items": {"type": "string"}},
                "districts": {"type": "array", "items": {"type": "string"}},
                "crops": {"type": "array", "items": {"type": "string"}},
                "years": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "model.DatasetInfo": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "url": {"type": "string"},
                "category": {"type": "string"},
                "description": {"type": "string"},
                "row_count": {"type": "integer"},
                "columns": {"type": "array", "items": {"type": "string"}},
                "last_cached": {"type": "string", "format": "date-time"},
                "origin": {"type": "string"}
            }
        },
        "response.ErrorBody": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "error": {"type": "string"},
                "detail": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "agriqa API",
	Description:      "Questions about Indian agriculture and climate answered from government datasets.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
