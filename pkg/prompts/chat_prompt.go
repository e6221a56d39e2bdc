package prompts

import (
	"strings"

	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/llmutils"
)

var _ PromptValue = ChatPromptValue{}

// ChatPromptValue is a prompt value that is a list of chat messages.
type ChatPromptValue []llms.Message

// String returns the chat message slice as a buffer string.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the ChatMessage slice.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}

// MessageFormatter formats values into messages
type MessageFormatter interface {
	FormatMessages(values map[string]any) ([]llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate renders a message of the role
type MessagePromptTemplate struct {
	Role   llms.Role
	Prompt PromptTemplate
}

// NewSystemMessagePromptTemplate returns system message template
func NewSystemMessagePromptTemplate(template string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleSystem, Prompt: NewPromptTemplate(template, inputVars)}
}

// NewHumanMessagePromptTemplate returns human message template
func NewHumanMessagePromptTemplate(template string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleHuman, Prompt: NewPromptTemplate(template, inputVars)}
}

// NewAIMessagePromptTemplate returns AI message template
func NewAIMessagePromptTemplate(template string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleAI, Prompt: NewPromptTemplate(template, inputVars)}
}

// FormatMessages implements MessageFormatter
func (p MessagePromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	text, err := p.Prompt.Format(values)
	if err != nil {
		return nil, err
	}
	return []llms.Message{llms.MessageFromTextParts(p.Role, text)}, nil
}

// GetInputVariables implements MessageFormatter
func (p MessagePromptTemplate) GetInputVariables() []string {
	return p.Prompt.InputVariables
}

// ChatPromptTemplate is a list of message templates
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

// NewChatPromptTemplate returns ChatPromptTemplate
func NewChatPromptTemplate(messages []MessageFormatter) ChatPromptTemplate {
	return ChatPromptTemplate{Messages: messages}
}

// FormatMessages renders all messages
func (p ChatPromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	var res []llms.Message
	for _, m := range p.Messages {
		msgs, err := m.FormatMessages(values)
		if err != nil {
			return nil, err
		}
		res = append(res, msgs...)
	}
	return res, nil
}

// FormatPrompt renders all messages as a prompt value
func (p ChatPromptTemplate) FormatPrompt(values map[string]any) (ChatPromptValue, error) {
	msgs, err := p.FormatMessages(values)
	if err != nil {
		return nil, err
	}
	return ChatPromptValue(msgs), nil
}

// GetInputVariables returns input variables of all messages
func (p ChatPromptTemplate) GetInputVariables() []string {
	var res []string
	for _, m := range p.Messages {
		res = append(res, m.GetInputVariables()...)
	}
	return res
}
