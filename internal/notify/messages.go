package notify

import "fmt"

// Messages renders the outbound texts.
type Messages struct {
	Brand string
	Token string
}

// NewMessages returns templates for a brand and affirmative token.
func NewMessages(brand, token string) Messages {
	return Messages{Brand: brand, Token: token}
}

// CheckIn is the daily check-in request sent to the user.
func (m Messages) CheckIn(firstName string) string {
	return fmt.Sprintf("Hi %s, this is your check in from %s. Please reply “%s” to this message so we know you’re safe and well.",
		firstName, m.Brand, m.Token)
}

// Reminder is sent to the user when the check-in is still open.
func (m Messages) Reminder(firstName string) string {
	return fmt.Sprintf("Hello %s, please respond “%s” as soon as possible. If we don’t hear from you soon we will notify your emergency contact person.",
		firstName, m.Token)
}

// Escalation is sent to the emergency contact.
func (m Messages) Escalation(contactName, userName string) string {
	return fmt.Sprintf("Hello %s, you are a nominated contact for %s. %s has not responded to their daily check in from %s. Please consider checking on them, thank you.",
		contactName, userName, userName, m.Brand)
}

// Confirmation acknowledges an affirmative reply.
func (m Messages) Confirmation() string {
	return fmt.Sprintf("Thank you! Have a wonderful day. %s.", m.Brand)
}
