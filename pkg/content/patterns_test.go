package content_test

import (
	"chatrelay/pkg/content"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsMaliciousPatterns(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "JavaScript URI", input: "javascript:alert()", want: true},
		{name: "JavaScript URI Upper Case", input: "JAVASCRIPT:alert(1)", want: true},
		{name: "Data URI", input: "data:text/html;base64,PHNjcmlwdD4=", want: true},
		{name: "VBScript URI", input: "vbscript:msgbox(1)", want: true},
		{name: "Event Handler", input: "<img src=x onerror=alert(1)>", want: true},
		{name: "Event Handler With Spaces", input: "x onload  = y", want: true},
		{name: "Script Tag", input: "hi <SCRIPT>", want: true},
		{name: "Server Template", input: "<% code %>", want: true},
		{name: "Template Literal", input: "${7*7}", want: true},
		{name: "Eval Call", input: "eval(atob('x'))", want: true},
		{name: "CSS Expression", input: "width: expression(alert(1))", want: true},
		{name: "Executable", input: "https://example.com/setup.exe", want: true},
		{name: "Batch File", input: "https://example.com/run.BAT", want: true},
		{name: "Command File", input: "run.cmd", want: true},
		{name: "Screensaver", input: "x.scr", want: true},
		{name: "PIF", input: "x.pif", want: true},
		{name: "Trusted Image", input: "https://www.w3.org/image.jpg", want: false},
		{name: "Plain Text", input: "hello world", want: false},
		{name: "Executable Extension Not At End", input: "https://example.com/setup.exe?x=1", want: false},
		{name: "Executable Name In Text", input: "setup.exe.txt", want: false},
		{name: "Empty", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, content.ContainsMaliciousPatterns(tt.input))
		})
	}
}
