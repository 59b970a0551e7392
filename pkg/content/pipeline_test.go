package content_test

import (
	"chatrelay/pkg/content"
	"chatrelay/pkg/domain"
	"chatrelay/pkg/serrors"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// decoded unmarshals a payload produced by the pipeline.
func decoded(t *testing.T, payload string) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &m), "payload must be a JSON object: %s", payload)

	return m
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Plain Text", input: `{"mensaje":"hello"}`, want: `{"mensaje":"hello"}`},
		{name: "Not JSON", input: "not json", want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "Empty", input: "", want: `{"mensaje":""}`},
		{name: "JSON Array", input: `[{"mensaje":"hi"}]`, want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "JSON String", input: `"hi"`, want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "JSON Null", input: "null", want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "Missing Message", input: `{"nombre":"Ana"}`, want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "Truncated Object", input: `{"mensaje":"hi"`, want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "Trailing Data", input: `{"mensaje":"hi"} {}`, want: `{"mensaje":"Formato de mensaje inválido"}`},
		{name: "Surrounding Whitespace", input: " \n{\"mensaje\":\"hi\"}\t ", want: `{"mensaje":"hi"}`},
		{name: "Trimmed Body", input: `{"mensaje":"  hi \n"}`, want: `{"mensaje":"hi"}`},
		{name: "Empty Body", input: `{"mensaje":""}`, want: `{"mensaje":""}`},
		{
			name:  "Script Body",
			input: `{"mensaje":"<script>alert(1)</script>"}`,
			want:  `{"mensaje":"&lt;script&gt;alert(1)&lt;&#x2F;script&gt;"}`,
		},
		{
			name:  "Name Sanitized In Place",
			input: `{"nombre":"<b>Ana</b>","mensaje":"hola"}`,
			want:  `{"nombre":"&lt;b&gt;Ana&lt;&#x2F;b&gt;","mensaje":"hola"}`,
		},
		{name: "Falsy Name Kept", input: `{"mensaje":"a","nombre":0}`, want: `{"mensaje":"a","nombre":0}`},
		{name: "Null Name Kept", input: `{"mensaje":"a","nombre":null}`, want: `{"mensaje":"a","nombre":null}`},
		{name: "Empty Name Kept", input: `{"mensaje":"a","nombre":""}`, want: `{"mensaje":"a","nombre":""}`},
		{name: "Number Name", input: `{"mensaje":"a","nombre":12.50}`, want: `{"mensaje":"a","nombre":"12.5"}`},
		{name: "Bool Name", input: `{"mensaje":"a","nombre":true}`, want: `{"mensaje":"a","nombre":"true"}`},
		{name: "Object Name", input: `{"mensaje":"a","nombre":{"x":1}}`, want: `{"mensaje":"a","nombre":"[object Object]"}`},
		{name: "Array Name", input: `{"mensaje":"a","nombre":["a",null,2]}`, want: `{"mensaje":"a","nombre":"a,,2"}`},
		{name: "Number Message", input: `{"mensaje":5,"nombre":"Ana"}`, want: `{"mensaje":"","nombre":"Ana"}`},
		{name: "Null Message", input: `{"mensaje":null}`, want: `{"mensaje":""}`},
		{name: "Duplicate Key", input: `{"mensaje":"a","id":1,"mensaje":"b"}`, want: `{"mensaje":"b","id":1}`},
		{
			name:  "Other Fields Preserved",
			input: `{"id":7,"mensaje":"hi","meta":{"tags": ["x", 2.50, true, null], "big": 1e21, "small": 0.0000001}}`,
			want:  `{"id":7,"mensaje":"hi","meta":{"tags":["x",2.5,true,null],"big":1e+21,"small":1e-7}}`,
		},
		{name: "Escapes Decoded", input: `{"mensaje":"café \"q\""}`, want: `{"mensaje":"café &quot;q&quot;"}`},
		{name: "Control Characters Escaped", input: `{"mensaje":"a\tb"}`, want: `{"mensaje":"a\tb"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, content.ValidateMessage(tt.input))
		})
	}
}

func TestValidateMessageScriptHasNoMarkup(t *testing.T) {
	out := decoded(t, content.ValidateMessage(`{"mensaje":"<script>alert(1)</script>"}`))
	msg, ok := out["mensaje"].(string)
	require.True(t, ok)
	require.NotContains(t, msg, "<")
	require.NotContains(t, msg, ">")
}

func TestValidateMessageLengthLimits(t *testing.T) {
	t.Run("Payload Over Limit", func(t *testing.T) {
		raw := `{"mensaje":"` + strings.Repeat("a", content.MaxPayloadLength) + `"}`
		require.Equal(t, `{"mensaje":"Mensaje demasiado largo"}`, content.ValidateMessage(raw))
	})

	t.Run("Payload Counted In Characters", func(t *testing.T) {
		// more than the limit in bytes, less in characters
		extra := strings.Repeat("ñ", 6000)
		out := decoded(t, content.ValidateMessage(`{"mensaje":"a","extra":"`+extra+`"}`))
		require.Equal(t, "a", out["mensaje"])
		require.Equal(t, extra, out["extra"])
	})

	t.Run("Astral Characters Count Twice", func(t *testing.T) {
		// 22 code units of framing plus two per emoji
		raw := `{"mensaje":"a","x":"` + strings.Repeat("😀", 4990) + `"}`
		require.Equal(t, `{"mensaje":"Mensaje demasiado largo"}`, content.ValidateMessage(raw))

		raw = `{"mensaje":"a","x":"` + strings.Repeat("😀", 4989) + `"}`
		require.Equal(t, strings.Repeat("😀", 4989), decoded(t, content.ValidateMessage(raw))["x"])
	})

	t.Run("Body Astral Characters Count Twice", func(t *testing.T) {
		res := content.Validate(`{"mensaje":"` + strings.Repeat("😀", content.MaxBodyLength/2+1) + `"}`)
		require.Equal(t, `{"mensaje":"Contenido demasiado largo"}`, res.Payload)

		body := strings.Repeat("😀", content.MaxBodyLength/2)
		require.Equal(t, body, decoded(t, content.ValidateMessage(`{"mensaje":"`+body+`"}`))["mensaje"])
	})

	t.Run("Body At Limit", func(t *testing.T) {
		body := strings.Repeat("a", content.MaxBodyLength)
		out := decoded(t, content.ValidateMessage(`{"mensaje":"`+body+`"}`))
		require.Equal(t, body, out["mensaje"])
	})

	t.Run("Body Over Limit Keeps Other Fields", func(t *testing.T) {
		body := strings.Repeat("a", content.MaxBodyLength+1)
		res := content.Validate(`{"nombre":"Ana","mensaje":"` + body + `"}`)
		require.Equal(t, `{"nombre":"Ana","mensaje":"Contenido demasiado largo"}`, res.Payload)
		require.Equal(t, domain.ContentKindRejected, res.Kind)
		require.ErrorIs(t, res.Err, serrors.ErrMalformedInput)
	})

	t.Run("Body Limit Applies After Trim", func(t *testing.T) {
		body := strings.Repeat("a", content.MaxBodyLength)
		out := decoded(t, content.ValidateMessage(`{"mensaje":"   `+body+`   "}`))
		require.Equal(t, body, out["mensaje"])
	})
}

func TestValidateMessageName(t *testing.T) {
	t.Run("Truncated To Fifty Characters", func(t *testing.T) {
		out := decoded(t, content.ValidateMessage(`{"mensaje":"a","nombre":"`+strings.Repeat("x", 60)+`"}`))
		require.Equal(t, strings.Repeat("x", 50), out["nombre"])
	})

	t.Run("Truncated Before Escaping", func(t *testing.T) {
		name := strings.Repeat("x", 49) + "<yy"
		out := decoded(t, content.ValidateMessage(`{"mensaje":"a","nombre":"`+name+`"}`))
		require.Equal(t, strings.Repeat("x", 49)+"&lt;", out["nombre"])
	})

	t.Run("Truncated In Characters", func(t *testing.T) {
		out := decoded(t, content.ValidateMessage(`{"mensaje":"a","nombre":"`+strings.Repeat("é", 60)+`"}`))
		require.Equal(t, strings.Repeat("é", 50), out["nombre"])
	})

	t.Run("Split Astral Character Dropped", func(t *testing.T) {
		out := decoded(t, content.ValidateMessage(`{"mensaje":"a","nombre":"a`+strings.Repeat("😀", 30)+`"}`))
		require.Equal(t, "a"+strings.Repeat("😀", 24), out["nombre"])
	})
}

func TestValidateMedia(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind domain.ContentKind
		wantMsg  string
	}{
		{name: "Image", body: w3Logo, wantKind: domain.ContentKindImage, wantMsg: content.ImageTag(w3Logo)},
		{name: "YouTube", body: ytWatch, wantKind: domain.ContentKindYouTube, wantMsg: content.EmbedCode(ytWatch)},
		{name: "Video", body: sampleMP4, wantKind: domain.ContentKindVideo, wantMsg: content.VideoTag(sampleMP4)},
		{name: "Padded Image", body: "  " + w3Logo + "\n", wantKind: domain.ContentKindImage, wantMsg: content.ImageTag(w3Logo)},
		{
			name:     "Untrusted Image Relayed As Text",
			body:     "https://evil.example/cat.png",
			wantKind: domain.ContentKindText,
			wantMsg:  "https:&#x2F;&#x2F;evil.example&#x2F;cat.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(map[string]string{"mensaje": tt.body})
			require.NoError(t, err)

			res := content.Validate(string(raw))
			require.Equal(t, tt.wantKind, res.Kind)
			require.Equal(t, tt.wantMsg, decoded(t, res.Payload)["mensaje"])
		})
	}
}

func TestValidateResultErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		wantKind domain.ContentKind
		wantErr  error
	}{
		{name: "Non String", raw: 42, wantKind: domain.ContentKindRejected, wantErr: serrors.ErrMalformedInput},
		{name: "Nil", raw: nil, wantKind: domain.ContentKindRejected, wantErr: serrors.ErrMalformedInput},
		{name: "Bytes", raw: []byte(`{"mensaje":"hi"}`), wantKind: domain.ContentKindRejected, wantErr: serrors.ErrMalformedInput},
		{name: "Invalid JSON", raw: "{", wantKind: domain.ContentKindRejected, wantErr: serrors.ErrMalformedInput},
		{name: "Non String Message", raw: `{"mensaje":[]}`, wantKind: domain.ContentKindRejected, wantErr: serrors.ErrMalformedInput},
		{name: "Malicious Text", raw: `{"mensaje":"javascript:alert(1)"}`, wantKind: domain.ContentKindText, wantErr: serrors.ErrMaliciousContent},
		{name: "Untrusted Video", raw: `{"mensaje":"https://evil.example/a.mp4"}`, wantKind: domain.ContentKindText, wantErr: serrors.ErrUntrustedContent},
		{name: "Clean Text", raw: `{"mensaje":"hola"}`, wantKind: domain.ContentKindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := content.Validate(tt.raw)
			require.Equal(t, tt.wantKind, res.Kind)
			if tt.wantErr == nil {
				require.NoError(t, res.Err)
			} else {
				require.ErrorIs(t, res.Err, tt.wantErr)
			}

			msg, ok := decoded(t, res.Payload)["mensaje"].(string)
			require.True(t, ok, "message must always be a string")
			require.NotEqual(t, tt.raw, msg)
		})
	}
}

func TestValidatePlainTextEscapedOnce(t *testing.T) {
	inputs := []string{
		"hello world",
		"  tabs\tand spaces  ",
		"a & b",
		"5 > 3 && 2 < 4",
		`quote "this" and 'that'`,
		`back\slash and /slash/ and ` + "`tick`",
		"¿Qué tal? ñandú 👋",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			raw, err := json.Marshal(map[string]string{"mensaje": in})
			require.NoError(t, err)

			out := decoded(t, content.ValidateMessage(string(raw)))
			require.Equal(t, content.SanitizeHTML(strings.TrimSpace(in)), out["mensaje"])
		})
	}
}

func TestPipelineValidateWithContext(t *testing.T) {
	p := content.NewPipeline(content.NewTrustedDomains("example.org"))
	ctx := context.Background()

	res := p.Validate(ctx, `{"mensaje":"https://example.org/cat.png"}`)
	require.Equal(t, domain.ContentKindImage, res.Kind)
	require.NoError(t, res.Err)

	out := decoded(t, p.ValidateMessage(ctx, `{"mensaje":"`+w3Logo+`"}`))
	require.Equal(t, content.SanitizeHTML(w3Logo), out["mensaje"])
}

func TestValidateConcurrent(t *testing.T) {
	inputs := []string{
		`{"mensaje":"hello"}`,
		`{"mensaje":"` + w3Logo + `"}`,
		`{"mensaje":"` + ytWatch + `"}`,
		`{"mensaje":"<script>"}`,
		"garbage",
	}
	want := make([]string, len(inputs))
	for i, in := range inputs {
		want[i] = content.ValidateMessage(in)
	}

	const workers = 8
	got := make([][]string, workers)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, in := range inputs {
				got[w] = append(got[w], content.ValidateMessage(in))
			}
		}()
	}
	wg.Wait()

	for w := range workers {
		require.Equal(t, want, got[w])
	}
}
