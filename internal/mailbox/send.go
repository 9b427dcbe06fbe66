package mailbox

import (
	"context"

	"github.com/lp24213/mailbridge/internal/models"
	"github.com/lp24213/mailbridge/internal/smtp"
)

// SendMessage delivers an outbound message from the account's address.
// Account lookup and credential failures come back as errors; everything
// past that point is reported inside the SendResult.
func (s *Service) SendMessage(ctx context.Context, ownerID, accountID string, msg *smtp.OutboundMessage) (*models.SendResult, error) {
	account, password, err := s.loadAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}

	if !account.IsActive {
		return &models.SendResult{
			Success:      false,
			ErrorCode:    "account_inactive",
			ErrorMessage: "account is deactivated",
		}, nil
	}

	result := s.sender.Send(account, password, msg)

	if result.Success {
		s.dispatcher.Dispatch(ctx, "email.sent", map[string]any{
			"account_id":  account.ID,
			"message_id":  result.MessageID,
			"accepted":    result.Accepted,
			"rejected":    result.Rejected,
			"subject":     msg.Subject,
			"attachments": result.AttachmentCount,
		})
	}

	return result, nil
}

// Events lists recorded integration events for the admin surface.
func (s *Service) Events(ctx context.Context, limit, offset int) ([]models.IntegrationEvent, error) {
	return s.dispatcher.Events(ctx, limit, offset)
}
