package page

import "encoding/json"

// decodeJSONString unmarshals a runtime.RemoteObject's raw Value (as
// returned by runtime.Evaluate) into dst. CDP returns primitive results as
// JSON already, so this is just a thin json.Unmarshal wrapper kept in one
// place so every call site handles a nil raw value the same way.
func decodeJSONString(raw []byte, dst *string) error {
	if len(raw) == 0 {
		*dst = ""
		return nil
	}
	return json.Unmarshal(raw, dst)
}
