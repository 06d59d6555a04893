package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	idRe    = regexp.MustCompile(idPattern)
	runIDRe = regexp.MustCompile(runIDPattern)
)

// Result is the tagged outcome every validator function returns: either
// {OK: true, Value} or {OK: false, Error} where Error is a human-readable
// list of "path: message" fragments joined by "; ".
type Result[T any] struct {
	OK    bool
	Value T
	Error string
}

func ok[T any](v T) Result[T]        { return Result[T]{OK: true, Value: v} }
func fail[T any](msg string) Result[T] { return Result[T]{OK: false, Error: msg} }

// validate is a package-level validator.Validate with the schema's custom
// tag registrations, built once at package init — mirroring the teacher's
// config.RegisterCustomValidators/validator.New(...) pattern.
var validate = buildValidator()

func buildValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("id", func(fl validator.FieldLevel) bool {
		return idRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("runid", func(fl validator.FieldLevel) bool {
		return runIDRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("topic", func(fl validator.FieldLevel) bool {
		return validTopics[fl.Field().String()]
	})
	_ = v.RegisterValidation("sentiment", func(fl validator.FieldLevel) bool {
		return validSentiments[fl.Field().String()]
	})
	_ = v.RegisterValidation("memaction", func(fl validator.FieldLevel) bool {
		return validActions[fl.Field().String()]
	})
	return v
}

// formatValidationErrors converts validator.ValidationErrors into the
// "field: message" list joined by "; " mandated for every validator in this
// package — the same shape as the teacher's internal/config validator.
func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		messages := make([]string, 0, len(verrs))
		for _, e := range verrs {
			messages = append(messages, fmt.Sprintf("%s: %s", e.Namespace(), describeTag(e)))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", e.Param())
	case "gte":
		return "must be non-negative"
	case "id":
		return "must match ^[A-Za-z0-9_-]+$"
	case "runid":
		return `must match ^[a-f0-9-]+(-(cp|checkpoint)\d+)?$`
	case "topic":
		return "must be a recognized topic_label"
	case "sentiment":
		return "must be one of positive, neutral, negative"
	case "memaction":
		return "must be one of reply, new_post, upvote"
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

// ValidatePostRequest decodes and validates a POST /post body.
func ValidatePostRequest(data []byte) Result[PostRequest] {
	var req PostRequest
	if err := strictUnmarshal(data, &req); err != nil {
		return fail[PostRequest]("body: invalid JSON")
	}
	if err := validate.Struct(req); err != nil {
		return fail[PostRequest](formatValidationErrors(err))
	}
	return ok(req)
}

// ValidateVoteRequest decodes and validates a POST /vote body.
func ValidateVoteRequest(data []byte) Result[VoteRequest] {
	var req VoteRequest
	if err := strictUnmarshal(data, &req); err != nil {
		return fail[VoteRequest]("body: invalid JSON")
	}
	if err := validate.Struct(req); err != nil {
		return fail[VoteRequest](formatValidationErrors(err))
	}
	return ok(req)
}

// ValidateMemory decodes and validates a POST /memory body. Validation is
// purely structural: enum membership, length/range bounds, and regex
// shape — no cross-field checks beyond that.
func ValidateMemory(data []byte) Result[MemoryFile] {
	if len(data) > MaxMemoryBytes {
		return fail[MemoryFile](fmt.Sprintf("body: exceeds maximum size of %d bytes", MaxMemoryBytes))
	}

	var file MemoryFile
	if err := strictUnmarshal(data, &file); err != nil {
		return fail[MemoryFile](fmt.Sprintf("body: invalid JSON: %s", err.Error()))
	}

	if err := validate.Struct(file); err != nil {
		return fail[MemoryFile](formatValidationErrors(err))
	}

	if len(file.Entries) > MaxEntries {
		return fail[MemoryFile](fmt.Sprintf("entries: must be at most %d elements", MaxEntries))
	}

	if msg := validateEntries(file.Entries); msg != "" {
		return fail[MemoryFile](msg)
	}

	return ok(file)
}

// validateEntries dives into each tagged entry variant's own field tags,
// since go-playground/validator's "dive" does not follow a hand-rolled sum
// type with mutually exclusive pointer fields.
func validateEntries(entries []MemoryEntry) string {
	var messages []string
	for i, e := range entries {
		v := e.activeValue()
		if v == nil {
			messages = append(messages, fmt.Sprintf("entries[%d]: unset variant", i))
			continue
		}
		if err := validate.Struct(v); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					messages = append(messages, fmt.Sprintf("entries[%d].%s: %s", i, fe.Namespace(), describeTag(fe)))
				}
				continue
			}
			messages = append(messages, fmt.Sprintf("entries[%d]: %s", i, err.Error()))
		}
	}
	return strings.Join(messages, "; ")
}
