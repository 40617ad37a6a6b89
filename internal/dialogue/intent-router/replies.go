// internal/dialogue/intent-router/replies.go
package intentrouter

import (
	"fmt"
	"strings"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/models"
)

const (
	replyGreeting = "Hi! I can help you find laptops and accessories, place and track orders, or update your profile. What are you looking for?"

	replyHelp = "Here is what I can do:\n" +
		"- Search products: \"show me Dell laptops under $1500\"\n" +
		"- Place an order: \"I want to buy the XPS 13\"\n" +
		"- Track an order: \"where is order #1234\"\n" +
		"- Cancel an order: \"cancel order #1234\"\n" +
		"- Update your profile: \"change my email to me@example.com\""

	replyUnknown = "Sorry, I didn't quite get that. I can search products, manage orders, or update your profile. Try asking for example \"show me laptops under $1000\"."

	replyAskProduct  = "Which product would you like to order?"
	replyAskOrderID  = "Which order? Please give me the order number, for example \"order #1234\"."
	replyAskProfile  = "What would you like to update? You can change your name, email, phone or address, for example \"change my email to me@example.com\"."
	replyConfirmHint = "Please answer yes or no."

	replyAborted = "Okay, I won't do that. Anything else I can help with?"

	replyRetryable = "I'm having trouble reaching that service right now. Please try again in a moment."
)

func replyNoResults(f models.SearchFilters) string {
	if f.IsEmpty() {
		return "I couldn't find any matching products."
	}
	return "I couldn't find any products matching those filters. Try loosening the price range or removing a filter."
}

func formatProducts(products []models.Product, relaxed bool) string {
	var b strings.Builder
	if relaxed {
		b.WriteString("I couldn't find an exact match, but here are some close alternatives:\n")
	} else {
		b.WriteString(fmt.Sprintf("I found %d product(s):\n", len(products)))
	}
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (%s) $%.2f", p.Name, p.Brand, p.Price)
		if !p.InStock() {
			b.WriteString(" [out of stock]")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatOrderStatus(o *models.Order) string {
	switch o.Status {
	case models.OrderShipped:
		return fmt.Sprintf("Order #%d has shipped and is on its way.", o.ID)
	case models.OrderDelivered:
		return fmt.Sprintf("Order #%d was delivered.", o.ID)
	case models.OrderCancelled:
		return fmt.Sprintf("Order #%d is cancelled.", o.ID)
	default:
		return fmt.Sprintf("Order #%d is currently %s.", o.ID, strings.ToLower(string(o.Status)))
	}
}

func formatOrderCreated(o *models.Order) string {
	return fmt.Sprintf("Done! Order #%d is placed ($%.2f). You can track it any time with \"track order #%d\".", o.ID, o.TotalAmount, o.ID)
}

func formatOrderCancelled(o *models.Order) string {
	return fmt.Sprintf("Order #%d has been cancelled and stock is back on the shelf.", o.ID)
}

func formatAmbiguousOrderIDs(ids []string) string {
	return fmt.Sprintf("I found several order numbers (#%s). Which one did you mean?", strings.Join(ids, ", #"))
}

// replyForError maps a collaborator failure to user-facing text. Unmapped
// codes fall back to a generic apology so implementation detail never
// leaks into the conversation.
func replyForError(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeOrderNotFound:
		return "I couldn't find that order. Double-check the number and try again."
	case apperrors.ErrCodeOrderAlreadyCancelled:
		return "That order is already cancelled."
	case apperrors.ErrCodeOrderInvalidState:
		return "That order can't be cancelled any more. It has already shipped or been delivered."
	case apperrors.ErrCodeInsufficientStock:
		return "Sorry, we don't have enough of that product in stock right now."
	case apperrors.ErrCodeOrderCreateFailed:
		return "Sorry, I couldn't find that product to order. Could you name it more precisely?"
	case apperrors.ErrCodeUserNotFound:
		return "I couldn't find your account. Please make sure you are signed in."
	case apperrors.ErrCodeInvalidProfileField:
		return "That's not something I can update. You can change your name, email, phone or address."
	case apperrors.ErrCodeProfileUpdateFailed,
		apperrors.ErrCodeCatalogQueryFailed,
		apperrors.ErrCodeCatalogTimeout,
		apperrors.ErrCodeContextStoreUnavailable:
		return replyRetryable
	default:
		return "Something went wrong on my end. Please try again."
	}
}
