package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly timetable generation, validation and version history for schools.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Timetable",
            "description": "Generation, lookup, validation and export"
        },
        {
            "name": "Timetable Versions",
            "description": "Monthly history and version management"
        },
        {
            "name": "Timetable Slots",
            "description": "Manual single slot editing"
        },
        {
            "name": "Ops",
            "description": "Health and metrics"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Readiness check of postgres and redis",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is unreachable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Process level request and generation counters",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/generate": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Generate a new timetable version for a school",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Generation in progress or conflicts found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "No active teaching assignments",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "504": {
                        "description": "Generation timed out",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/GenerateScheduleRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/class/{classId}": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Active timetable of a class",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "classId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/class/{classId}/day/{day}": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Class slots on one day",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "classId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "day",
                        "in": "path",
                        "type": "integer",
                        "required": true,
                        "description": "0 (Saturday) to 5 (Thursday)"
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/class/{classId}/teachers": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Teachers assigned to a class",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "classId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/teacher/{teacherId}": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Active timetable of a teacher",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "teacherId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/teacher/{teacherId}/day/{day}": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Teacher slots on one day",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "teacherId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "day",
                        "in": "path",
                        "type": "integer",
                        "required": true,
                        "description": "0 (Saturday) to 5 (Thursday)"
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/school": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Active timetable of the whole school",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/statistics": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Statistics of the active timetable",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/validate": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Validate an arbitrary slot list",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ValidateScheduleRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Validate the active timetable",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/export": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Download the active timetable",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Output format",
                        "enum": [
                            "csv",
                            "pdf"
                        ]
                    },
                    {
                        "name": "classId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "teacherId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ]
            }
        },
        "/api/v1/schedules/historical": {
            "get": {
                "tags": [
                    "Timetable Versions"
                ],
                "summary": "Timetable in force during a month",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "year",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "month",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/history": {
            "get": {
                "tags": [
                    "Timetable Versions"
                ],
                "summary": "Compare the timetables of two months",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "fromYear",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "fromMonth",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "toYear",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "toMonth",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/versions": {
            "get": {
                "tags": [
                    "Timetable Versions"
                ],
                "summary": "List stored timetable versions",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/slot": {
            "post": {
                "tags": [
                    "Timetable Slots"
                ],
                "summary": "Place or replace a single slot",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Teacher not assigned or invalid payload",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Teacher or class conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateSlotRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Timetable Slots"
                ],
                "summary": "Remove a single slot",
                "responses": {
                    "200": {
                        "description": "Deleted count, zero when the slot was empty",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "classId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "day",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "period",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules": {
            "delete": {
                "tags": [
                    "Timetable Versions"
                ],
                "summary": "Permanently delete every timetable version of a school",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School ID, defaults to the token's school"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "SubjectFrequencyOption": {
            "type": "object",
            "required": [
                "subjectId"
            ],
            "properties": {
                "subjectId": {
                    "type": "string"
                },
                "frequency": {
                    "type": "number"
                }
            }
        },
        "ClassGenerationOption": {
            "type": "object",
            "required": [
                "classId"
            ],
            "properties": {
                "classId": {
                    "type": "string"
                },
                "subjects": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/SubjectFrequencyOption"
                    }
                }
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "properties": {
                "schoolId": {
                    "type": "string"
                },
                "options": {
                    "type": "object",
                    "properties": {
                        "classes": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/ClassGenerationOption"
                            }
                        }
                    }
                }
            }
        },
        "ScheduleSlot": {
            "type": "object",
            "required": [
                "teacherId",
                "classId",
                "subjectId"
            ],
            "properties": {
                "day": {
                    "type": "integer",
                    "minimum": 0,
                    "maximum": 5
                },
                "period": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 6
                },
                "teacherId": {
                    "type": "string"
                },
                "classId": {
                    "type": "string"
                },
                "subjectId": {
                    "type": "string"
                },
                "startTime": {
                    "type": "string"
                },
                "endTime": {
                    "type": "string"
                },
                "roomNumber": {
                    "type": "string"
                }
            }
        },
        "ValidateScheduleRequest": {
            "type": "object",
            "properties": {
                "slots": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/ScheduleSlot"
                    }
                }
            }
        },
        "CreateSlotRequest": {
            "type": "object",
            "required": [
                "classId",
                "subjectId",
                "teacherId",
                "day",
                "period"
            ],
            "properties": {
                "schoolId": {
                    "type": "string"
                },
                "classId": {
                    "type": "string"
                },
                "subjectId": {
                    "type": "string"
                },
                "teacherId": {
                    "type": "string"
                },
                "day": {
                    "type": "integer",
                    "minimum": 0,
                    "maximum": 5
                },
                "period": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 6
                },
                "roomNumber": {
                    "type": "string"
                },
                "startTime": {
                    "type": "string",
                    "example": "08:00"
                },
                "endTime": {
                    "type": "string",
                    "example": "09:00"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "details": {
                    "type": "object"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
