package middleware

import (
	"golang.org/x/text/language"
)

// Message is a user facing text in both supported languages
type Message struct {
	RU string
	EN string
}

// Authentication messages
var (
	MsgAuthRequired   = Message{RU: "Требуется авторизация", EN: "Authentication required"}
	MsgTokenInvalid   = Message{RU: "Недействительный токен", EN: "Invalid token"}
	MsgTokenExpired   = Message{RU: "Срок действия токена истёк", EN: "Token has expired"}
	MsgTokenRevoked   = Message{RU: "Токен отозван", EN: "Token has been revoked"}
	MsgAccountBlocked = Message{RU: "Учётная запись заблокирована", EN: "Account has been blocked"}
	MsgAccountGone    = Message{RU: "Учётная запись не найдена или отключена", EN: "Account not found or deactivated"}
	MsgAdminOnly      = Message{RU: "Доступно только администраторам", EN: "Administrator access required"}
)

var messageMatcher = language.NewMatcher([]language.Tag{language.Russian, language.English})

// Localize renders both languages, the one preferred by acceptLanguage first.
// Russian leads when the header is missing or names neither language.
func (m Message) Localize(acceptLanguage string) string {
	if preferEnglish(acceptLanguage) {
		return m.EN + " / " + m.RU
	}
	return m.RU + " / " + m.EN
}

func preferEnglish(acceptLanguage string) bool {
	if acceptLanguage == "" {
		return false
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return false
	}
	_, index, confidence := messageMatcher.Match(tags...)
	return confidence != language.No && index == 1
}
