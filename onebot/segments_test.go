package onebot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCQ(t *testing.T) {
	segs := ParseCQ("[CQ:reply,id=42][CQ:at,qq=10001] /手办化 a&#44;b [CQ:image,file=x.png,url=https://img.example/a.png?x=1&amp;y=2]")
	require.Len(t, segs, 4)
	assert.Equal(t, "reply", segs[0].Type)
	assert.Equal(t, "42", segs[0].str("id"))
	assert.Equal(t, "at", segs[1].Type)
	assert.Equal(t, " /手办化 a,b ", segs[2].Data["text"])
	assert.Equal(t, "image", segs[3].Type)
	assert.Equal(t, "https://img.example/a.png?x=1&y=2", segs[3].str("url"))
}

func TestParseCQ_PlainText(t *testing.T) {
	segs := ParseCQ("just text")
	require.Len(t, segs, 1)
	assert.Equal(t, "just text", segs[0].str("text"))
	assert.Nil(t, ParseCQ(""))
}

func TestParseMessage(t *testing.T) {
	arr, err := ParseMessage(json.RawMessage(`[{"type":"text","data":{"text":"hi"}},{"type":"at","data":{"qq":10001}}]`))
	require.NoError(t, err)
	require.Len(t, arr, 2)
	assert.Equal(t, "10001", arr[1].str("qq"))

	str, err := ParseMessage(json.RawMessage(`"[CQ:at,qq=1]hi"`))
	require.NoError(t, err)
	assert.Len(t, str, 2)

	none, err := ParseMessage(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ParseMessage(json.RawMessage(`{"bad":true}`))
	assert.Error(t, err)
}

func TestToMarkup(t *testing.T) {
	segs := []Segment{
		{Type: "reply", Data: map[string]interface{}{"id": float64(42)}},
		{Type: "at", Data: map[string]interface{}{"qq": "10001"}},
		{Type: "at", Data: map[string]interface{}{"qq": "all"}},
		textSegment(" /修图 a<b "),
		{Type: "image", Data: map[string]interface{}{"file": "abc.image", "url": "https://img.example/a.png"}},
		{Type: "image", Data: map[string]interface{}{"file": "local.png"}},
		{Type: "mface", Data: map[string]interface{}{"url": "https://img.example/s.gif"}},
		{Type: "face", Data: map[string]interface{}{"id": "1"}},
	}
	got := ToMarkup(segs)
	assert.Equal(t, `<quote id="42"/><at id="10001"/><at type="all"/> /修图 a&lt;b <img src="https://img.example/a.png"/><mface url="https://img.example/s.gif"/>`, got)
}

func TestFromMarkup(t *testing.T) {
	segs := FromMarkup(`<quote id="7"/><at id="1"/>done <img src="data:image/png;base64,AAAA"/><img src="https://img.example/o.png"/>`)
	require.Len(t, segs, 5)
	assert.Equal(t, Segment{Type: "reply", Data: map[string]interface{}{"id": "7"}}, segs[0])
	assert.Equal(t, Segment{Type: "at", Data: map[string]interface{}{"qq": "1"}}, segs[1])
	assert.Equal(t, textSegment("done "), segs[2])
	assert.Equal(t, "base64://AAAA", segs[3].Data["file"])
	assert.Equal(t, "https://img.example/o.png", segs[4].Data["file"])
}
