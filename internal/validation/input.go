package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxClientNameLength    = 255
	MaxClientEmailLength   = 255
	MinCommentLength       = 1
	MaxCommentLength       = 5000
	MinProposalTitleLength = 1
	MaxProposalTitleLength = 200
	MaxProposalNotesLength = 5000
	MinValidityDays        = 1
	MaxValidityDays        = 365
	MaxMoneyAmount         = 100000000.0 // 100 миллионов
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if len(email) > MaxClientEmailLength {
		return fmt.Errorf("email должен быть не более %d символов", MaxClientEmailLength)
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateClientName проверяет имя клиента из портала.
func ValidateClientName(name string) error {
	if err := ValidateNonEmpty("имя", name); err != nil {
		return err
	}
	return ValidateLength("имя", strings.TrimSpace(name), 1, MaxClientNameLength)
}

// ValidateComment проверяет комментарий клиента.
func ValidateComment(comment string) error {
	if err := ValidateNonEmpty("комментарий", comment); err != nil {
		return err
	}
	return ValidateLength("комментарий", strings.TrimSpace(comment), MinCommentLength, MaxCommentLength)
}

// ValidateProposalTitle проверяет название предложения.
func ValidateProposalTitle(title string) error {
	if err := ValidateNonEmpty("название предложения", title); err != nil {
		return err
	}
	return ValidateLength("название предложения", strings.TrimSpace(title), MinProposalTitleLength, MaxProposalTitleLength)
}

// ValidateProposalNotes проверяет примечания предложения.
func ValidateProposalNotes(notes *string) error {
	if notes == nil {
		return nil
	}
	return ValidateLength("примечания", *notes, 0, MaxProposalNotesLength)
}

// ValidateValidityDays проверяет срок действия предложения.
func ValidateValidityDays(days int) error {
	if days < MinValidityDays || days > MaxValidityDays {
		return fmt.Errorf("срок действия должен быть от %d до %d дней", MinValidityDays, MaxValidityDays)
	}
	return nil
}

// ValidateAmount проверяет денежную сумму.
func ValidateAmount(fieldName string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("%s не может быть отрицательной", fieldName)
	}
	if amount > MaxMoneyAmount {
		return fmt.Errorf("%s превышает максимально допустимое значение", fieldName)
	}
	return nil
}
