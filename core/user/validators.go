package user

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/mahudhurio/core"
)

var (
	studentFieldsTag  = "studentfields"
	studentFieldsText = "this field is required for students"

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
	pwdAttrSimText = "password cannot be similar to user attributes"
)

func init() {
	core.Validate.RegisterStructValidation(newUserStructValidation, NewUser{})
	core.RegisterCustomTranslation(core.Validate, core.Translator, studentFieldsTag, studentFieldsText)
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdAttrSimTag, pwdAttrSimText)
}

func (nu NewUser) Validate() error {
	return core.Validate.Struct(nu)
}

// newUserStructValidation enforces the password policy and the
// student-only required fields (roll number, year, semester).
func newUserStructValidation(sl validator.StructLevel) {
	nu := sl.Current().Interface().(NewUser)

	if nu.Role == RoleStudent {
		if core.CleanString(nu.RollNumber) == "" {
			sl.ReportError(nu.RollNumber, "roll_number", "RollNumber", studentFieldsTag, "")
		}
		if nu.Year == 0 {
			sl.ReportError(nu.Year, "year", "Year", studentFieldsTag, "")
		}
		if nu.Semester == 0 {
			sl.ReportError(nu.Semester, "semester", "Semester", studentFieldsTag, "")
		}
	}

	validatePassword(sl, nu)
}

func validatePassword(sl validator.StructLevel, nu NewUser) {
	pwd := nu.Password
	if pwd == "" {
		return // `required` covers it
	}

	if len(pwd) < pwdMinLen {
		sl.ReportError(pwd, "password", "Password", pwdMinLenTag, "")
	}
	if strings.IndexFunc(pwd, unicode.IsSpace) >= 0 {
		sl.ReportError(pwd, "password", "Password", pwdNoSpaceTag, "")
	}
	if allNumeric(pwd) {
		sl.ReportError(pwd, "password", "Password", pwdNotAllNumTag, "")
	}
	for _, attr := range []string{nu.Name, nu.Email, nu.RollNumber} {
		if attr == "" {
			continue
		}
		if similarity(strings.ToLower(pwd), strings.ToLower(attr)) > pwdMaxSim {
			sl.ReportError(pwd, "password", "Password", pwdAttrSimTag, "")
			break
		}
	}
}

func allNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// similarity is the difflib ratio of the two strings compared rune-wise.
func similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
