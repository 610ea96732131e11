package token

import "campus_chat_service/pkg/config"

// Function variables so tests can swap the JWT functions for stubs.
var (
	GenerateJWTFunc = GenerateJWT
	ParseJWTFunc    = ParseJWT
)

// GenerateJWTWrapper wrap GenerateJWT for test mocking
func GenerateJWTWrapper(userID, role string) (string, error) {
	return GenerateJWTFunc(userID, role, config.EnvConfig.ChatService)
}

// ParseJWTWrapper wrap ParseJWT for test mocking
func ParseJWTWrapper(t string) (*Claims, error) {
	return ParseJWTFunc(t)
}
