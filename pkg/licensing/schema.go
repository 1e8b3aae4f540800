package licensing

import (
	"encoding/json"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
	"github.com/xeipuuv/gojsonschema"
)

// taskSchema constrains the declarative task document before any
// network call is made.
const taskSchema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "BIG-IQ utility license assignment task",
    "type": "object",
    "required": ["key", "offering", "device"],
    "properties": {
        "key": {
            "type": "string",
            "minLength": 1
        },
        "offering": {
            "type": "string",
            "minLength": 1
        },
        "device": {
            "type": "string",
            "minLength": 1
        },
        "managed": {
            "type": "boolean"
        },
        "device_port": {
            "type": "integer",
            "minimum": 1,
            "maximum": 65535
        },
        "device_username": {
            "type": "string"
        },
        "device_password": {
            "type": "string"
        },
        "unit_of_measure": {
            "type": "string",
            "enum": ["hourly", "daily", "monthly", "yearly"]
        },
        "state": {
            "type": "string",
            "enum": ["present", "absent"]
        }
    },
    "additionalProperties": false
}`

// ValidateTask validates the task document against the schema.
func ValidateTask(doc *TaskDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return newErrorf("Unable to marshal task document: %v", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(taskSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return newErrorf("Task document validation failed: %v", err)
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			log.Errorf("%s Task document is not valid: %s", licensingPrefix, desc)
		}
		return newErrorf("Task document is not valid: %s", result.Errors()[0])
	}
	return nil
}
