package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringStrictJSON(t *testing.T) {
	v, res := String(`{"answer": "restart the pod"}`, "answer")
	assert.True(t, res.OK)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "restart the pod", v)
}

func TestStringFencedJSON(t *testing.T) {
	raw := "```json\n{\"answer\": \"restart the pod\"}\n```"
	v, res := String(raw, "answer")
	assert.True(t, res.OK)
	assert.Equal(t, "restart the pod", v)
}

func TestStringProseWrappedJSON(t *testing.T) {
	raw := `Sure, here is the result: {"answer": "restart the pod"} hope that helps`
	v, res := String(raw, "answer")
	assert.True(t, res.OK)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "restart the pod", v)
}

func TestStringMissingKey(t *testing.T) {
	_, res := String(`{"other": "value"}`, "answer")
	assert.False(t, res.OK)

	_, res = String("no json here at all", "answer")
	assert.False(t, res.OK)
}

func TestStringOrDefault(t *testing.T) {
	v, res := StringOr("not json", "answer", "fallback text")
	assert.False(t, res.OK)
	assert.Equal(t, "fallback text", v)

	v, res = StringOr(`{"answer": "real"}`, "answer", "fallback text")
	assert.True(t, res.OK)
	assert.Equal(t, "real", v)
}

func TestBool(t *testing.T) {
	v, res := Bool(`{"relevant": true}`, "relevant", false)
	assert.True(t, res.OK)
	assert.True(t, v)

	v, res = Bool(`{"relevant": false}`, "relevant", true)
	assert.True(t, res.OK)
	assert.False(t, v)

	// A quoted boolean is not a boolean.
	_, res = Bool(`{"relevant": "true"}`, "relevant", false)
	assert.False(t, res.OK)
}

func TestBoolKeywordHeuristic(t *testing.T) {
	v, res := Bool("yes", "relevant", false)
	assert.True(t, res.OK)
	assert.True(t, res.FallbackUsed)
	assert.True(t, v)

	v, res = Bool("  FALSE  ", "relevant", true)
	assert.True(t, res.OK)
	assert.False(t, v)

	v, res = Bool("maybe", "relevant", true)
	assert.False(t, res.OK)
	assert.True(t, v, "default value on failure")
}

func TestStringSlice(t *testing.T) {
	v, res := StringSlice(`{"sub_queries": ["first question", "second question"]}`, "sub_queries")
	assert.True(t, res.OK)
	assert.Equal(t, []string{"first question", "second question"}, v)
}

func TestStringSliceSkipsNonStrings(t *testing.T) {
	v, res := StringSlice(`{"sub_queries": ["  first question  ", 42, null, "", "second"]}`, "sub_queries")
	assert.True(t, res.OK)
	assert.Equal(t, []string{"first question", "second"}, v)
}

func TestStringSliceNotAnArray(t *testing.T) {
	_, res := StringSlice(`{"sub_queries": "just one"}`, "sub_queries")
	assert.False(t, res.OK)

	_, res = StringSlice("garbage", "sub_queries")
	assert.False(t, res.OK)
}

func TestStringSliceFenced(t *testing.T) {
	raw := "```\n{\"doc_types\": [\"runbook\", \"sop\"]}\n```"
	v, res := StringSlice(raw, "doc_types")
	assert.True(t, res.OK)
	assert.Equal(t, []string{"runbook", "sop"}, v)
}
