package loader

// workflowSchemaJSON is the JSON Schema every workflow file must satisfy
// before decoding. Embedded as a constant to avoid filesystem
// dependencies.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowt.dev/schemas/workflow.json",
  "type": "object",
  "required": ["name", "trigger", "steps"],
  "properties": {
    "name": { "type": "string", "minLength": 1 },
    "description": { "type": "string" },
    "folder": { "type": "string" },
    "enabled": { "type": "boolean" },
    "trigger": { "$ref": "#/$defs/trigger" },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "trigger": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "type": "string", "enum": ["manual", "schedule"] },
        "cron": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "step": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "params": { "type": "object" },
        "when": { "$ref": "#/$defs/condition" }
      },
      "additionalProperties": false
    },
    "condition": {
      "type": "object",
      "required": ["step", "equals"],
      "properties": {
        "step": { "type": "string", "minLength": 1 },
        "field": { "type": "string", "minLength": 1 },
        "equals": {},
        "match": { "type": "string", "enum": ["equals", "contains"] },
        "trim": { "type": "boolean" },
        "case_insensitive": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  }
}`
