package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedSystem(t *testing.T) {
	blocks := CachedSystem("You extract team members from private equity firm bios.")
	require.Len(t, blocks, 1)
	assert.Equal(t, "You extract team members from private equity firm bios.", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Empty(t, blocks[0].CacheControl.TTL) // API default of five minutes
}

func TestToSDKMessages_RoleMapping(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "Extract the team from this page."},
		{Role: "assistant", Content: "["},
		{Role: "", Content: "continue"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
	// Anything that is not explicitly assistant is sent as user.
	assert.Equal(t, sdk.MessageParamRoleUser, out[2].Role)
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain block"},
		{Text: "cached block", CacheControl: &CacheControl{}},
		{Text: "long-lived block", CacheControl: &CacheControl{TTL: "1h"}},
	})
	require.Len(t, out, 3)

	assert.Equal(t, "plain block", out[0].Text)
	assert.Empty(t, out[0].CacheControl.Type)

	assert.Equal(t, "ephemeral", string(out[1].CacheControl.Type))
	assert.Empty(t, out[1].CacheControl.TTL)

	assert.Equal(t, "ephemeral", string(out[2].CacheControl.Type))
	assert.Equal(t, "1h", string(out[2].CacheControl.TTL))
}

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:           "msg_bio_01",
		Model:        "claude-haiku-4-5-20251001",
		StopReason:   "end_turn",
		StopSequence: "",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: `[{"name":"Laura Chen","title":"Managing Partner"}`},
			{Type: "text", Text: `,{"name":"Mark Okafor","title":"Principal"}]`},
		},
		Usage: sdk.Usage{
			InputTokens:              8421,
			OutputTokens:             312,
			CacheCreationInputTokens: 1200,
			CacheReadInputTokens:     6400,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_bio_01", resp.ID)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "text", resp.Content[0].Type)
	assert.Contains(t, resp.Content[0].Text, "Laura Chen")
	assert.Equal(t, int64(8421), resp.Usage.InputTokens)
	assert.Equal(t, int64(312), resp.Usage.OutputTokens)
	assert.Equal(t, int64(1200), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(6400), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{
		ID:         "msg_empty",
		Model:      "claude-haiku-4-5-20251001",
		StopReason: "max_tokens",
	})
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
	assert.Zero(t, resp.Usage.InputTokens)
}
