// Package docs registers the OpenAPI document served at /swagger. The
// template is maintained by hand in the layout swaggo/swag emits, so keep
// it in step with the handler annotations when routes change.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/candles/{symbol}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["bars"],
                "summary": "Stored OHLCV bars",
                "parameters": [
                    {"type": "string", "description": "Ticker symbol", "name": "symbol", "in": "path", "required": true},
                    {"type": "string", "description": "15m, 1h, 4h, 1d or 1w", "name": "timeframe", "in": "query"},
                    {"type": "integer", "description": "Bars to return (1-5000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/service.Candle"}}},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/signals/haco": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "HACO series for one symbol",
                "parameters": [
                    {"type": "string", "name": "symbol", "in": "query", "required": true},
                    {"type": "string", "name": "timeframe", "in": "query"},
                    {"type": "integer", "name": "lengthUp", "in": "query"},
                    {"type": "integer", "name": "lengthDown", "in": "query"},
                    {"type": "integer", "name": "alertLookback", "in": "query"},
                    {"type": "integer", "name": "lookback", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.HACOSeries"}},
                    "400": {"description": "Bad Request"},
                    "422": {"description": "Unprocessable Entity"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        },
        "/api/signals/haco/scan": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "HACO scan across symbols",
                "parameters": [
                    {"type": "string", "description": "Comma separated symbols", "name": "symbols", "in": "query", "required": true},
                    {"type": "string", "name": "timeframe", "in": "query"},
                    {"type": "integer", "name": "lengthUp", "in": "query"},
                    {"type": "integer", "name": "lengthDown", "in": "query"},
                    {"type": "integer", "name": "alertLookback", "in": "query"},
                    {"type": "integer", "name": "lookback", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.ScanRow"}}},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/api/dashboard/{symbol}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "Mode-aware dashboard",
                "parameters": [
                    {"type": "string", "name": "symbol", "in": "path", "required": true},
                    {"type": "string", "description": "day, swing, position or crypto", "name": "mode", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Dashboard"}},
                    "400": {"description": "Bad Request"},
                    "422": {"description": "Unprocessable Entity"}
                }
            }
        },
        "/api/modes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "Mode profiles",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/backtest": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["backtest"],
                "summary": "Run a strategy backtest",
                "parameters": [
                    {"description": "Backtest request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.BacktestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.BacktestResponse"}},
                    "400": {"description": "Bad Request"},
                    "422": {"description": "Unprocessable Entity"}
                }
            }
        },
        "/api/backtests": {
            "get": {
                "produces": ["application/json"],
                "tags": ["backtest"],
                "summary": "Persisted backtest runs",
                "parameters": [
                    {"type": "string", "name": "symbol", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/strategies": {
            "get": {
                "produces": ["application/json"],
                "tags": ["backtest"],
                "summary": "Available strategies",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/alerts/test": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Dry-run alert rules",
                "parameters": [
                    {"description": "Alert test", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.AlertTestRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/alerts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "List alert rules",
                "parameters": [
                    {"type": "string", "name": "symbol", "in": "query"},
                    {"type": "integer", "name": "chat_id", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Create an alert rule",
                "parameters": [
                    {"description": "Alert rule", "name": "rule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.AlertRule"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/alerts/{id}": {
            "delete": {
                "tags": ["alerts"],
                "summary": "Delete an alert rule",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "definitions": {
        "domain.ScanRow": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "upw": {"type": "boolean"},
                "dnw": {"type": "boolean"},
                "state": {"type": "string"},
                "changed": {"type": "boolean"},
                "reason": {"type": "string"},
                "lt_state": {"type": "string"},
                "readiness": {"type": "number"},
                "error": {"type": "string"}
            }
        },
        "domain.AlertRule": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "mode": {"type": "string"},
                "timeframe": {"type": "string"},
                "chat_id": {"type": "integer"},
                "rules": {"type": "object"}
            }
        },
        "service.Candle": {
            "type": "object",
            "properties": {
                "time": {"type": "string"},
                "o": {"type": "number"},
                "h": {"type": "number"},
                "l": {"type": "number"},
                "c": {"type": "number"}
            }
        },
        "service.HACOSeries": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "timeframe": {"type": "string"},
                "series": {"type": "array", "items": {"type": "object"}},
                "last": {"type": "object"},
                "anomalies": {"type": "array", "items": {"type": "object"}}
            }
        },
        "service.Dashboard": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "timeframe": {"type": "string"},
                "candles": {"type": "array", "items": {"$ref": "#/definitions/service.Candle"}},
                "haco": {"type": "array", "items": {"type": "object"}},
                "hacolt": {"type": "array", "items": {"type": "object"}},
                "indicators": {"type": "object"},
                "readiness": {"type": "object"},
                "panels": {"type": "array", "items": {"type": "object"}},
                "mode": {"type": "string"},
                "available_modes": {"type": "array", "items": {"type": "string"}},
                "entries": {"type": "array", "items": {"type": "object"}},
                "exits": {"type": "array", "items": {"type": "object"}}
            }
        },
        "service.BacktestRequest": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "timeframe": {"type": "string"},
                "lookback": {"type": "integer"},
                "bars": {"type": "array", "items": {"type": "object"}},
                "params": {"type": "object"}
            }
        },
        "service.BacktestResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "symbol": {"type": "string"},
                "timeframe": {"type": "string"},
                "strategy": {"type": "string"},
                "trades": {"type": "array", "items": {"type": "object"}},
                "stats": {"type": "object"},
                "equityCurve": {"type": "array", "items": {"type": "object"}}
            }
        },
        "service.AlertTestRequest": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "mode": {"type": "string"},
                "tf": {"type": "string"},
                "rules": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "MacMarket API",
	Description:      "HACO trend-state signals, readiness scoring, scans, backtests and alerts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
