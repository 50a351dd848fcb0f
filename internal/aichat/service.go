package aichat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/config"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/pkg/anthropic"
)

// ErrConversationNotFound is returned when chat targets an unknown lead.
var ErrConversationNotFound = eris.New("aichat: conversation not found")

// fallbackReply is returned verbatim when the model is unreachable, so the
// operator sees a stable message instead of a raw transport error.
const fallbackReply = "I can't reach the analysis model right now. The lead data is saved; please try again in a moment."

const systemPrompt = `You are an assistant for brokers at a merchant cash advance firm. You are given one lead's profile, its latest financial analysis, and its lender qualification results. Answer the broker's questions about this lead concisely and concretely. Cite figures from the analysis when they exist; say so plainly when the data does not support an answer. Never invent lender terms.`

// Store is the slice of persistence the assistant needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error)
	ListLenderMatches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error)
	InsertChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error)
	ListChatMessages(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error)
}

const defaultMaxContext = 20

// Service answers broker questions about a lead, grounded in the lead's
// stored record. Both sides of every exchange are persisted.
type Service struct {
	store      Store
	llm        anthropic.Client
	maxContext int
	model      string
	maxTokens  int64
	timeout    time.Duration
}

func NewService(st Store, llm anthropic.Client, chatCfg config.ChatConfig, llmCfg config.AnthropicConfig) *Service {
	maxContext := chatCfg.MaxContextMessages
	if maxContext <= 0 {
		maxContext = defaultMaxContext
	}
	maxTokens := int64(llmCfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	timeout := 60 * time.Second
	if llmCfg.TimeoutSecs > 0 {
		timeout = time.Duration(llmCfg.TimeoutSecs) * time.Second
	}
	return &Service{
		store:      st,
		llm:        llm,
		maxContext: maxContext,
		model:      llmCfg.Model,
		maxTokens:  maxTokens,
		timeout:    timeout,
	}
}

// Ask persists the user's question, builds the lead context, asks the model,
// and persists the reply. A model failure still persists a canned reply so
// the transcript never loses a turn.
func (s *Service) Ask(ctx context.Context, conversationID, question string) (*model.ChatMessage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, eris.New("aichat: empty question")
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	history, err := s.store.ListChatMessages(ctx, conversationID, s.maxContext)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.InsertChatMessage(ctx, model.ChatMessage{
		ConversationID: conversationID,
		Role:           model.ChatRoleUser,
		Content:        question,
	}); err != nil {
		return nil, err
	}

	reply := s.generate(ctx, conv, history, question)

	saved, err := s.store.InsertChatMessage(ctx, model.ChatMessage{
		ConversationID: conversationID,
		Role:           model.ChatRoleAssistant,
		Content:        reply,
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// History returns the stored transcript, oldest first.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = s.maxContext
	}
	return s.store.ListChatMessages(ctx, conversationID, limit)
}

func (s *Service) generate(ctx context.Context, conv *model.Conversation, history []model.ChatMessage, question string) string {
	if s.llm == nil {
		return fallbackReply
	}

	leadContext, err := s.buildContext(ctx, conv)
	if err != nil {
		zap.L().Warn("aichat: context assembly incomplete", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	messages := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, anthropic.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, anthropic.Message{Role: "user", Content: leadContext + "\n\nQuestion: " + question})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:  messages,
	})
	if err != nil {
		zap.L().Warn("aichat: model call failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		return fallbackReply
	}
	resp.Usage.LogCost(s.model, "aichat")

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return fallbackReply
	}
	return reply
}

// buildContext renders the lead record into the prompt preamble. Missing
// pieces degrade the context, they never block the question.
func (s *Service) buildContext(ctx context.Context, conv *model.Conversation) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Lead: %s", conv.BusinessName)
	if conv.DBA != "" {
		fmt.Fprintf(&b, " (DBA %s)", conv.DBA)
	}
	fmt.Fprintf(&b, "\nPipeline state: %s\n", conv.State)
	if d := conv.Details; d != nil {
		if d.MonthlyRevenue != nil {
			fmt.Fprintf(&b, "Monthly revenue: $%.2f\n", *d.MonthlyRevenue)
		}
		if d.TIBMonths != nil {
			fmt.Fprintf(&b, "Time in business: %d months\n", *d.TIBMonths)
		}
		if d.FICOScore != nil {
			fmt.Fprintf(&b, "FICO: %d\n", *d.FICOScore)
		}
		if d.FundingAmount != nil {
			fmt.Fprintf(&b, "Requested funding: $%.2f\n", *d.FundingAmount)
		}
	}

	var firstErr error

	analysis, err := s.store.GetFCS(ctx, conv.ID)
	if err != nil {
		firstErr = err
	} else if analysis != nil && analysis.Status == model.FCSStatusCompleted {
		fmt.Fprintf(&b, "\nLatest financial analysis (%d statements):\n%s\n", analysis.StatementCount, analysis.ReportText)
	}

	matches, err := s.store.ListLenderMatches(ctx, conv.ID, true)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if len(matches) > 0 {
		b.WriteString("\nQualified lenders:\n")
		for _, m := range matches {
			fmt.Fprintf(&b, "- %s (tier %d, score %d", m.LenderName, m.Tier, m.MatchScore)
			if m.MaxAmount != nil {
				fmt.Fprintf(&b, ", max $%.0f", *m.MaxAmount)
			}
			b.WriteString(")\n")
		}
	}

	return b.String(), firstErr
}
