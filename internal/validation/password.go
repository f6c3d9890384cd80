package validation

import (
	"regexp"
	"strings"
)

// Классы символов для парольной политики
var (
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// MinPasswordLen минимальная длина пароля
const MinPasswordLen = 8

// ValidatePasswordPolicy проверяет пароль на соответствие политике и
// возвращает список ВСЕХ нарушенных правил, а не только первое -
// клиент показывает пользователю полный список исправлений.
// Пустой список означает, что пароль политике соответствует.
// Функция чистая, без побочных эффектов.
func ValidatePasswordPolicy(password string) []string {
	var violations []string

	if len(password) < MinPasswordLen {
		violations = append(violations, "Password must be at least 8 characters")
	}
	if !upperPattern.MatchString(password) {
		violations = append(violations, "Include at least one uppercase letter")
	}
	if !lowerPattern.MatchString(password) {
		violations = append(violations, "Include at least one lowercase letter")
	}
	if !digitPattern.MatchString(password) {
		violations = append(violations, "Include at least one number")
	}
	if !specialPattern.MatchString(password) {
		violations = append(violations, "Include at least one special character")
	}

	return violations
}

// PolicyError несет полный список нарушений парольной политики.
// На границе API превращается в 422 с агрегированным сообщением.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// CheckPasswordPolicy возвращает *PolicyError, если пароль нарушает политику
func CheckPasswordPolicy(password string) error {
	if violations := ValidatePasswordPolicy(password); len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
