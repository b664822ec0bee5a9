package engine

import (
	"context"
	"strings"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/util"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
)

const (
	// DefaultTitle is used whenever title synthesis fails or yields nothing.
	DefaultTitle = "新对话"
	// MaxTitleLength is the maximum title length in characters.
	MaxTitleLength = 20
)

// DefaultTitlePrompt asks the model for a short conversation title. Only the
// first 200 characters of the answer are included.
const DefaultTitlePrompt = `请根据以下对话内容，生成一个简洁的会话标题（不超过20个字符）：

用户问题：{{.query}}
助手回答：{{truncate 200 .response}}...

要求：
1. 标题要简洁明了，能概括对话主题
2. 不超过20个字符
3. 不要包含标点符号
4. 直接返回标题，不要其他内容

标题：`

// titleLabels are stripped from the model reply, in order.
var titleLabels = []string{"标题：", "：", ":"}

// CleanTitle normalizes a raw model reply into a title: label punctuation
// is removed, the result is cut to MaxTitleLength characters and an empty
// result becomes DefaultTitle.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for _, label := range titleLabels {
		title = strings.ReplaceAll(title, label, "")
	}
	title = strings.TrimSpace(title)
	title = util.Truncate(MaxTitleLength, title)
	if title == "" {
		return DefaultTitle
	}
	return title
}

// synthesizeTitle runs the non-streaming title call. Failures are logged and
// replaced by DefaultTitle; they never reach the caller.
func (e *Engine) synthesizeTitle(ctx context.Context, m model.Model, query, response string, logger logging.Logger) string {
	prompt, err := util.RenderTemplate(e.titlePrompt, map[string]any{
		"query":    query,
		"response": response,
	})
	if err != nil {
		logger.Error("Title generation error", "error", err)
		return DefaultTitle
	}

	raw, err := model.Complete(ctx, m, []core.Message{core.NewUserMessage(prompt)})
	if err != nil {
		logger.Error("Title generation error", "error", err)
		return DefaultTitle
	}
	return CleanTitle(raw)
}
