package page

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestExecuteJSHarnessEmbedsUserCodeAsQuotedString(t *testing.T) {
	script := fmt.Sprintf(executeJSHarnessTemplate, `alert("hi")`)
	if !strings.Contains(script, `"alert(\"hi\")"`) {
		t.Errorf("expected user code safely quoted, got:\n%s", script)
	}
	if !strings.Contains(script, "sourceURL=browser_js_user_code.js") {
		t.Error("expected sourceURL comment for stack traces")
	}
}

func TestExecuteResultJSONRoundTrip(t *testing.T) {
	data := []byte(`{"success":true,"value":42,"logs":["a"],"errors":[]}`)
	var result ExecuteResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success true")
	}
	if string(result.Value) != "42" {
		t.Errorf("expected raw value 42, got %s", result.Value)
	}
}
