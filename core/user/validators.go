package user

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/maktab-uz/maktab/core"
)

var (
	rolesTag  = "roles"
	rolesText = "invalid roles"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to the phone number or the full name"

	digitsRegex = regexp.MustCompile(`\D`)
)

// InitValidators registers the user validators. core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(rolesTag, rolesValidation)
	core.RegisterCustomTranslation(validate, translator, rolesTag, rolesText)

	validate.RegisterStructValidation(
		userStructValidation,
		NewUser{}, UpdateUser{}, ChangePassword{}, SetNewPassword{},
	)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// Custom Validators

// rolesValidation checks that provided user roles are all in AllRoles
func rolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().(Roles)
	if !ok {
		return false
	}
	for _, role := range roles {
		if !role.Valid() {
			return false
		}
	}
	return true
}

// userStructValidation applies the password policy on every struct carrying a new password.
func userStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(v.Password, "password", "Password", sl, v.Phone, v.FullName)
	case UpdateUser:
		if v.Password != "" {
			validatePassword(v.Password, "password", "Password", sl, v.Phone, v.FullName)
		}
	case ChangePassword:
		validatePassword(v.NewPassword, "new_password", "NewPassword", sl)
	case SetNewPassword:
		validatePassword(v.NewPassword, "new_password", "NewPassword", sl, v.Phone)
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no user attrs similarity
func validatePassword(pwd, field, structField string, sl validator.StructLevel, attrs ...string) {
	if pwd == "" {
		return // reported by `required`
	}
	if tag := PasswordPolicyViolation(pwd, attrs...); tag != "" {
		sl.ReportError(pwd, field, structField, tag, "")
	}
}

// PasswordPolicyViolation returns the validation tag of the first rule pwd breaks, or "".
func PasswordPolicyViolation(pwd string, attrs ...string) string {
	// - minLen: 8
	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return pwdMinLenTag
	}

	var digitCount int
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		return pwdNotAllNumTag
	}

	// - no user attrs similarity
	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		if similarity(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			return pwdAttrSimTag
		}
		// phone numbers are compared on their digits only
		if digits := digitsRegex.ReplaceAllString(attr, ""); digits != "" && strings.Contains(lpwd, digits) {
			return pwdAttrSimTag
		}
	}
	return ""
}

func similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}
