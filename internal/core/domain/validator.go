package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, trans)
}

// validateStruct runs tag validation and folds field errors into one
// ConfigurationError with translated, human-readable messages.
func validateStruct(p Profile) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ConfigurationError(p.Type, err.Error(), "")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	sort.Strings(msgs)
	return ConfigurationError(p.Type,
		fmt.Sprintf("invalid profile %q: %s", p.ID, strings.Join(msgs, "; ")),
		"fix the profile fields in the configuration file")
}
