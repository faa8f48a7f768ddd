package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"sms-hub/internal/config"
	"sms-hub/internal/models"
)

// MessageSender delivers a text message to a chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID string, message string) error
}

// defaultCodePattern matches the 4 to 8 digit one-time codes carried by most
// verification SMS.
var defaultCodePattern = regexp.MustCompile(`\b\d{4,8}\b`)

// TelegramProcessor forwards SMS to a Telegram chat. When a message template
// is configured, the extracted code is substituted into it; otherwise the
// whole SMS is forwarded.
type TelegramProcessor struct {
	config      config.ProcessorConfig
	sender      MessageSender
	logger      *zap.Logger
	codePattern *regexp.Regexp
}

func NewTelegramProcessor(name string, processorConfig config.ProcessorConfig, sender MessageSender, logger *zap.Logger) *TelegramProcessor {
	processor := &TelegramProcessor{
		config:      processorConfig,
		sender:      sender,
		logger:      logger,
		codePattern: defaultCodePattern,
	}

	if processorConfig.CodePattern != "" {
		if pattern, err := regexp.Compile(processorConfig.CodePattern); err == nil {
			processor.codePattern = pattern
		} else {
			logger.Warn("Invalid custom code pattern, using default",
				zap.String("trigger", name),
				zap.String("pattern", processorConfig.CodePattern),
				zap.Error(err))
		}
	}

	// The template takes the code through a single %s; append one when it is missing.
	if tpl := processorConfig.TelegramMessage; tpl != "" && !strings.Contains(tpl, "%s") {
		logger.Warn("Telegram message template has no %s verb, appending the code",
			zap.String("trigger", name),
			zap.String("template", tpl))
		processor.config.TelegramMessage = strings.ReplaceAll(tpl, "%", "%%") + " %s"
	}

	return processor
}

func (p *TelegramProcessor) ShouldProcess(event models.EmittedEvent) bool {
	return strings.TrimSpace(event.Message) != ""
}

func (p *TelegramProcessor) Process(ctx context.Context, event models.EmittedEvent) error {
	return p.sender.SendMessage(ctx, p.config.TelegramChatID, p.format(event))
}

func (p *TelegramProcessor) format(event models.EmittedEvent) string {
	if p.config.TelegramMessage == "" {
		return fmt.Sprintf("SMS from %s to %s:\n%s", event.Sender, event.LineNumber, event.Message)
	}
	return fmt.Sprintf(p.config.TelegramMessage, p.extractCode(event.Message))
}

func (p *TelegramProcessor) extractCode(text string) string {
	matches := p.codePattern.FindStringSubmatch(text)
	if len(matches) > 1 && matches[1] != "" {
		return matches[1]
	}
	if len(matches) > 0 {
		return matches[0]
	}
	return "not found"
}
