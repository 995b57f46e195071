// Package openapi embeds the OpenAPI document for the ticket API.
package openapi

import _ "embed"

//go:embed openapi.yaml
var YAML []byte
