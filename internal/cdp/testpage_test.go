package cdp

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestStatusPageHTML(t *testing.T) {
	if StatusPageHTML == "" {
		t.Error("StatusPageHTML should not be empty")
	}

	expectedStrings := []string{
		"<!DOCTYPE html>",
		"<title>codebrowser</title>",
		"codebrowser is connected",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(StatusPageHTML, expected) {
			t.Errorf("StatusPageHTML should contain %q", expected)
		}
	}
}

func TestStatusPageHTMLBase64Encoding(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(StatusPageHTML))
	if encoded == "" {
		t.Error("base64 encoding of StatusPageHTML should not be empty")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Errorf("failed to decode base64: %v", err)
	}

	if string(decoded) != StatusPageHTML {
		t.Error("decoded HTML should match original")
	}
}
