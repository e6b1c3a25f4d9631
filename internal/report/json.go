package report

import "encoding/json"

// RenderJSON encodes the report as indented JSON
func RenderJSON(rep *Report) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}
