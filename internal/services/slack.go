package services

import (
	"fmt"
	"os"

	"github.com/multiplay/go-slack/chat"
	"github.com/multiplay/go-slack/webhook"
)

// SlackMessageService is a service sending messages to a Slack channel
type SlackMessageService struct {
	WebHookURL string
}

// SendMessage send a message to channel
func (slackMessageService *SlackMessageService) SendMessage(message string) {
	if slackMessageService == nil || slackMessageService.WebHookURL == "" {
		return
	}

	c := webhook.New(slackMessageService.WebHookURL)
	m := &chat.Message{Text: message}
	m.Send(c)
}

// SendMessageFormat send a format message to channel
func (slackMessageService *SlackMessageService) SendMessageFormat(format string, args ...interface{}) {
	if slackMessageService == nil || slackMessageService.WebHookURL == "" {
		return
	}

	c := webhook.New(slackMessageService.WebHookURL)

	text := fmt.Sprintf("[%s] ", os.Getenv("SERVER_STAGE"))
	text += fmt.Sprintf(format, args...)

	m := &chat.Message{Text: text}
	m.Send(c)
}
