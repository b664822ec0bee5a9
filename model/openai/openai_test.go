package openai

import (
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
)

var _ model.Model = (*Model)(nil)

func TestReasoningContent(t *testing.T) {
	assert.Equal(t, "", reasoningContent(""))
	assert.Equal(t, "thinking", reasoningContent(`{"content":"","reasoning_content":"thinking"}`))
	assert.Equal(t, "alt", reasoningContent(`{"reasoning":"alt"}`))
	assert.Equal(t, "", reasoningContent(`{"content":"hi"}`))
}

func TestBuildMessages_Roles(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.NewSystemMessage("sys"),
		core.NewUserMessage("q"),
		core.NewAssistantMessage("a"),
	})
	assert.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "deepseek-reasoner"
		o.APIKey = "test"
	})
	assert.Equal(t, model.Info{Name: "deepseek-reasoner", Provider: "openai"}, m.Info())
}
