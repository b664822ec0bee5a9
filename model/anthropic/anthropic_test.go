package anthropic

import (
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages_SkipsSystemAndEmpty(t *testing.T) {
	msgs := []core.Message{
		core.NewSystemMessage("be nice"),
		core.NewUserMessage("q1"),
		core.NewAssistantMessage(""),
		core.NewAssistantMessage("a1"),
		core.NewUserMessage("q2"),
	}

	out := buildMessages(msgs)
	assert.Len(t, out, 3)

	system := extractSystem(msgs)
	assert.Len(t, system, 1)
	assert.Equal(t, "be nice", system[0].Text)
}

func TestBuildParams_Thinking(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.ThinkingBudget = 2048
	})
	params := m.buildParams([]core.Message{core.NewUserMessage("q")})
	assert.NotNil(t, params.Thinking.OfEnabled)
	assert.False(t, params.Temperature.Valid())
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", m.Info().Provider)
}
